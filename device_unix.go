//go:build linux || darwin

package gxserialagent

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"unsafe"

	"github.com/Gurux/gxcommon-go"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

const hasNativeBackend = true

type unixDevice struct {
	name  string
	owner string
	f     *os.File
	fd    int
	// Self-pipe used to wake up the notifier.
	r   *os.File
	w   *os.File
	rfd int

	mu      sync.Mutex
	handler DataReadyHandler

	notify  *atomic.Bool
	hangup  *atomic.Bool
	closing *atomic.Bool
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error

	input  *unixInput
	output *unixOutput
}

type unixInput struct {
	d      *unixDevice
	closed *atomic.Bool
}

type unixOutput struct {
	d      *unixDevice
	closed *atomic.Bool
}

func lookupPort(name string) error {
	st, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
		}
		return err
	}
	if st.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("%w: %s is not a character device", ErrDeviceNotFound, name)
	}
	return nil
}

func openError(name string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	case errors.Is(err, unix.EBUSY), errors.Is(err, unix.EWOULDBLOCK):
		return fmt.Errorf("%w: %s", ErrPortBusy, name)
	}
	return fmt.Errorf("open %s: %w", name, err)
}

func openDevice(name string, owner string) (Device, error) {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, openError(name, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = unix.Close(fd)
		return nil, openError(name, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		_ = unix.Close(fd)
		return nil, openError(name, err)
	}
	d := &unixDevice{
		name:    name,
		owner:   owner,
		fd:      fd,
		f:       os.NewFile(uintptr(fd), name),
		notify:  atomic.NewBool(false),
		hangup:  atomic.NewBool(false),
		closing: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
	d.input = &unixInput{d: d, closed: atomic.NewBool(false)}
	d.output = &unixOutput{d: d, closed: atomic.NewBool(false)}
	d.r, d.w, err = os.Pipe()
	if err != nil {
		_ = d.f.Close()
		return nil, err
	}
	d.rfd = int(d.r.Fd())
	_ = unix.SetNonblock(d.rfd, true)
	_ = flushInput(fd)
	go d.run()
	return d, nil
}

func (d *unixDevice) Name() string {
	return d.name
}

func (d *unixDevice) getTermios() (*unix.Termios, error) {
	if d.closing.Load() {
		return nil, os.ErrClosed
	}
	t, err := unix.IoctlGetTermios(d.fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("tcgetattr failed: %w", err)
	}
	return t, nil
}

func (d *unixDevice) setTermios(value *unix.Termios) error {
	if err := unix.IoctlSetTermios(d.fd, ioctlSetTermios, value); err != nil {
		return fmt.Errorf("tcsetattr failed: %w", err)
	}
	return nil
}

func (d *unixDevice) SetParams(baudRate gxcommon.BaudRate, dataBits int, parity gxcommon.Parity, stopBits StopBits) error {
	t, err := d.getTermios()
	if err != nil {
		return err
	}
	t.Cflag |= unix.CLOCAL | unix.CREAD
	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST | unix.ONLCR | unix.OCRNL
	t.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IGNBRK | unix.INPCK | unix.ISTRIP
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	if err := setSpeed(t, baudRate); err != nil {
		return err
	}
	t.Cflag &^= unix.CSIZE
	switch dataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return fmt.Errorf("%w: data bits %d", ErrUnsupportedOperation, dataBits)
	}
	// CSTOPB means 1.5 stop bits with five data bits.
	t.Cflag &^= unix.CSTOPB
	switch {
	case stopBits == StopBitsOne:
	case stopBits == StopBitsOnePointFive && dataBits == 5,
		stopBits == StopBitsTwo && dataBits != 5:
		t.Cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("%w: %s stop bits with %d data bits", ErrUnsupportedOperation, stopBits, dataBits)
	}
	if err := setParity(t, parity); err != nil {
		return err
	}
	return d.setTermios(t)
}

func (d *unixDevice) SetFlowControlNone() error {
	t, err := d.getTermios()
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	t.Cflag &^= unix.CRTSCTS
	return d.setTermios(t)
}

func (d *unixDevice) Settings() (*GXSerialSettings, error) {
	t, err := d.getTermios()
	if err != nil {
		return nil, err
	}
	baudRate, err := getSpeed(t)
	if err != nil {
		return nil, err
	}
	var dataBits int
	switch t.Cflag & unix.CSIZE {
	case unix.CS5:
		dataBits = 5
	case unix.CS6:
		dataBits = 6
	case unix.CS7:
		dataBits = 7
	default:
		dataBits = 8
	}
	stopBits := StopBitsOne
	if t.Cflag&unix.CSTOPB != 0 {
		stopBits = StopBitsTwo
		if dataBits == 5 {
			stopBits = StopBitsOnePointFive
		}
	}
	return NewGXSerialSettings(d.name, baudRate, dataBits, getParity(t), stopBits), nil
}

func (d *unixDevice) SetDTR(on bool) error {
	return d.setModemBit(unix.TIOCM_DTR, on)
}

func (d *unixDevice) SetRTS(on bool) error {
	return d.setModemBit(unix.TIOCM_RTS, on)
}

func (d *unixDevice) setModemBit(bit int, on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	if err := ioctlSetIntPointer(d.fd, req, bit); err != nil {
		return fmt.Errorf("set modem bit failed: %w", err)
	}
	return nil
}

func ioctlSetIntPointer(fd int, req uint, value int) error {
	v := int32(value)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *unixDevice) Input() Input {
	return d.input
}

func (d *unixDevice) Output() Output {
	return d.output
}

func (d *unixDevice) SetDataReadyHandler(h DataReadyHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler != nil {
		return ErrTooManyHandlers
	}
	d.handler = h
	d.wake()
	return nil
}

func (d *unixDevice) RemoveDataReadyHandler() {
	d.mu.Lock()
	d.handler = nil
	d.mu.Unlock()
	d.wake()
}

func (d *unixDevice) NotifyOnDataAvailable(enable bool) {
	d.notify.Store(enable)
	d.wake()
}

func (d *unixDevice) currentHandler() DataReadyHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler
}

func (d *unixDevice) wake() {
	_, _ = d.w.Write([]byte{0})
}

// run is the notifier. It polls the device only while a handler is
// registered and notifications are enabled.
func (d *unixDevice) run() {
	defer func() {
		_ = d.r.Close()
		_ = d.w.Close()
		close(d.done)
	}()
	tmp := make([]byte, 32)
	for {
		pfds := []unix.PollFd{{Fd: int32(d.rfd), Events: unix.POLLIN}}
		if d.notify.Load() && d.currentHandler() != nil {
			pfds = append(pfds, unix.PollFd{Fd: int32(d.fd), Events: unix.POLLIN})
		}
		if _, err := unix.Poll(pfds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			d.hangup.Store(true)
			d.dispatch()
			return
		}
		if pfds[0].Revents&unix.POLLIN != 0 {
			for {
				if n, err := unix.Read(d.rfd, tmp); n <= 0 || err != nil {
					break
				}
			}
		}
		if d.closing.Load() {
			return
		}
		if len(pfds) == 2 {
			ev := pfds[1].Revents
			if ev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
				d.hangup.Store(true)
				d.dispatch()
				return
			}
			if ev&unix.POLLIN != 0 {
				d.dispatch()
			}
		}
	}
}

func (d *unixDevice) dispatch() {
	if h := d.currentHandler(); h != nil && d.notify.Load() {
		h.DataAvailable()
	}
}

// Close releases the device. It does not wait for the notifier, so it can
// be called from a data ready handler.
func (d *unixDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		d.notify.Store(false)
		d.input.closed.Store(true)
		d.output.closed.Store(true)
		d.wake()
		_ = unix.IoctlSetInt(d.fd, unix.TIOCNXCL, 0)
		_ = unix.Flock(d.fd, unix.LOCK_UN)
		d.closeErr = d.f.Close()
	})
	return d.closeErr
}

func (in *unixInput) Available() (int, error) {
	if in.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	n, err := unix.IoctlGetInt(in.d.fd, ioctlInQueue)
	if err != nil {
		if in.d.hangup.Load() || errors.Is(err, unix.EIO) {
			return 0, fmt.Errorf("%w: %w", ErrDeviceHangup, err)
		}
		return 0, fmt.Errorf("available: %w", err)
	}
	if n == 0 && in.d.hangup.Load() {
		return 0, ErrDeviceHangup
	}
	return n, nil
}

func (in *unixInput) Read(p []byte) (int, error) {
	if in.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return in.d.f.Read(p)
}

func (in *unixInput) Close() error {
	in.closed.Store(true)
	return nil
}

func (out *unixOutput) Write(p []byte) (int, error) {
	if out.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return out.d.f.Write(p)
}

func (out *unixOutput) Flush() error {
	if out.closed.Load() {
		return io.ErrClosedPipe
	}
	return drain(out.d.fd)
}

func (out *unixOutput) Close() error {
	out.closed.Store(true)
	return nil
}
