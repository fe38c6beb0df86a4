//go:build windows

package gxserialagent

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unsafe"

	"github.com/Gurux/gxcommon-go"
	"go.uber.org/atomic"
	"golang.org/x/sys/windows"
)

const hasNativeBackend = true

const (
	dcbFBinary         = 1 << 0
	dcbFParity         = 1 << 1
	dcbFOutxCtsFlow    = 1 << 2
	dcbFOutxDsrFlow    = 1 << 3
	dcbFDtrControlMask = 0x3 << 4
	dcbFDsrSensitivity = 1 << 6
	dcbFOutX           = 1 << 8
	dcbFInX            = 1 << 9
	dcbFErrorChar      = 1 << 10
	dcbFNull           = 1 << 11
	dcbFRtsControlMask = 0x3 << 12
	dcbFAbortOnError   = 1 << 14
)

// DCB parity and stop bit values.
const (
	noParity    = 0
	oddParity   = 1
	evenParity  = 2
	markParity  = 3
	spaceParity = 4

	oneStopBit   = 0
	one5StopBits = 1
	twoStopBits  = 2
)

type windowsDevice struct {
	name    string
	h       windows.Handle
	ovRead  windows.Overlapped
	ovWrite windows.Overlapped
	closeEv windows.Handle
	// Signalled when notifications are enabled so the reader goroutine
	// reports bytes queued while they were off.
	wakeEv windows.Handle

	// Bytes read by the reader goroutine and not yet consumed.
	qmu   sync.Mutex
	queue []byte

	mu      sync.Mutex
	handler DataReadyHandler

	notify  *atomic.Bool
	closing *atomic.Bool
	readErr *atomic.Error

	// Guards the hand-off of the events between Close and the reader goroutine.
	evMu   sync.Mutex
	exited bool

	closeOnce sync.Once
	input     *windowsInput
	output    *windowsOutput
}

type windowsInput struct {
	d      *windowsDevice
	closed *atomic.Bool
}

type windowsOutput struct {
	d      *windowsDevice
	closed *atomic.Bool
}

func lookupPort(name string) error {
	ports, err := GetPortNames()
	if err != nil {
		return err
	}
	for _, it := range ports {
		if strings.EqualFold(it, name) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

func openError(name string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_FILE_NOT_FOUND):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED), errors.Is(err, windows.ERROR_SHARING_VIOLATION):
		return fmt.Errorf("%w: %s", ErrPortBusy, name)
	}
	return fmt.Errorf("open %s: %w", name, err)
}

func openDevice(name string, owner string) (Device, error) {
	path := `\\.\` + name
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return nil, openError(name, err)
	}
	d := &windowsDevice{
		name:    name,
		h:       h,
		notify:  atomic.NewBool(false),
		closing: atomic.NewBool(false),
		readErr: atomic.NewError(nil),
	}
	d.input = &windowsInput{d: d, closed: atomic.NewBool(false)}
	d.output = &windowsOutput{d: d, closed: atomic.NewBool(false)}
	if d.closeEv, err = windows.CreateEvent(nil, 1, 0, nil); err != nil {
		d.release()
		return nil, fmt.Errorf("CreateEvent(closing) failed: %w", err)
	}
	if d.ovRead.HEvent, err = windows.CreateEvent(nil, 0, 0, nil); err != nil {
		d.release()
		return nil, fmt.Errorf("CreateEvent(read) failed: %w", err)
	}
	if d.ovWrite.HEvent, err = windows.CreateEvent(nil, 0, 0, nil); err != nil {
		d.release()
		return nil, fmt.Errorf("CreateEvent(write) failed: %w", err)
	}
	if d.wakeEv, err = windows.CreateEvent(nil, 0, 0, nil); err != nil {
		d.release()
		return nil, fmt.Errorf("CreateEvent(wake) failed: %w", err)
	}
	if err := windows.PurgeComm(d.h,
		windows.PURGE_TXCLEAR|windows.PURGE_TXABORT|windows.PURGE_RXCLEAR|windows.PURGE_RXABORT,
	); err != nil {
		d.release()
		return nil, fmt.Errorf("PurgeComm failed: %w", err)
	}
	go d.run()
	return d, nil
}

func (d *windowsDevice) Name() string {
	return d.name
}

func (d *windowsDevice) getCommState() (*windows.DCB, error) {
	if d.closing.Load() {
		return nil, io.ErrClosedPipe
	}
	var dcb windows.DCB
	dcb.DCBlength = uint32(unsafe.Sizeof(dcb))
	if err := windows.GetCommState(d.h, &dcb); err != nil {
		return nil, fmt.Errorf("GetCommState failed: %w", err)
	}
	return &dcb, nil
}

func (d *windowsDevice) setCommState(dcb *windows.DCB) error {
	if err := windows.SetCommState(d.h, dcb); err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return fmt.Errorf("%w: SetCommState: %w", ErrUnsupportedOperation, err)
		}
		return fmt.Errorf("SetCommState failed: %w", err)
	}
	return nil
}

func (d *windowsDevice) SetParams(baudRate gxcommon.BaudRate, dataBits int, parity gxcommon.Parity, stopBits StopBits) error {
	dcb, err := d.getCommState()
	if err != nil {
		return err
	}
	dcb.BaudRate = uint32(baudRate)
	dcb.ByteSize = byte(dataBits)
	switch parity {
	case gxcommon.ParityNone:
		dcb.Parity = noParity
	case gxcommon.ParityOdd:
		dcb.Parity = oddParity
	case gxcommon.ParityEven:
		dcb.Parity = evenParity
	case gxcommon.ParityMark:
		dcb.Parity = markParity
	case gxcommon.ParitySpace:
		dcb.Parity = spaceParity
	default:
		return fmt.Errorf("%w: parity %d", ErrUnsupportedOperation, parity)
	}
	switch stopBits {
	case StopBitsOne:
		dcb.StopBits = oneStopBit
	case StopBitsOnePointFive:
		dcb.StopBits = one5StopBits
	case StopBitsTwo:
		dcb.StopBits = twoStopBits
	}
	if dcb.Parity != noParity {
		dcb.Flags |= dcbFParity
	} else {
		dcb.Flags &^= dcbFParity
	}
	dcb.Flags |= dcbFBinary
	dcb.Flags &^= dcbFNull | dcbFErrorChar | dcbFAbortOnError
	return d.setCommState(dcb)
}

func (d *windowsDevice) SetFlowControlNone() error {
	dcb, err := d.getCommState()
	if err != nil {
		return err
	}
	dcb.Flags &^= dcbFOutxCtsFlow | dcbFOutxDsrFlow | dcbFDsrSensitivity | dcbFOutX | dcbFInX
	dcb.Flags &^= dcbFDtrControlMask | dcbFRtsControlMask
	return d.setCommState(dcb)
}

func (d *windowsDevice) Settings() (*GXSerialSettings, error) {
	dcb, err := d.getCommState()
	if err != nil {
		return nil, err
	}
	var parity gxcommon.Parity
	switch dcb.Parity {
	case oddParity:
		parity = gxcommon.ParityOdd
	case evenParity:
		parity = gxcommon.ParityEven
	case markParity:
		parity = gxcommon.ParityMark
	case spaceParity:
		parity = gxcommon.ParitySpace
	default:
		parity = gxcommon.ParityNone
	}
	var stopBits StopBits
	switch dcb.StopBits {
	case one5StopBits:
		stopBits = StopBitsOnePointFive
	case twoStopBits:
		stopBits = StopBitsTwo
	default:
		stopBits = StopBitsOne
	}
	return NewGXSerialSettings(d.name, gxcommon.BaudRate(dcb.BaudRate), int(dcb.ByteSize), parity, stopBits), nil
}

func (d *windowsDevice) SetDTR(on bool) error {
	f := uint32(windows.CLRDTR)
	if on {
		f = windows.SETDTR
	}
	return windows.EscapeCommFunction(d.h, f)
}

func (d *windowsDevice) SetRTS(on bool) error {
	f := uint32(windows.CLRRTS)
	if on {
		f = windows.SETRTS
	}
	return windows.EscapeCommFunction(d.h, f)
}

func (d *windowsDevice) Input() Input {
	return d.input
}

func (d *windowsDevice) Output() Output {
	return d.output
}

func (d *windowsDevice) SetDataReadyHandler(h DataReadyHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler != nil {
		return ErrTooManyHandlers
	}
	d.handler = h
	return nil
}

func (d *windowsDevice) RemoveDataReadyHandler() {
	d.mu.Lock()
	d.handler = nil
	d.mu.Unlock()
}

// NotifyOnDataAvailable enables or disables notifications. Handlers are
// only called from the reader goroutine.
func (d *windowsDevice) NotifyOnDataAvailable(enable bool) {
	d.notify.Store(enable)
	if enable && !d.closing.Load() {
		_ = windows.SetEvent(d.wakeEv)
	}
}

func (d *windowsDevice) buffered() int {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return len(d.queue)
}

func (d *windowsDevice) dispatch() {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil && d.notify.Load() {
		h.DataAvailable()
	}
}

// run is the reader goroutine. Received bytes are queued and the handler is notified.
func (d *windowsDevice) run() {
	defer d.exit()
	for {
		data, err := d.read()
		if d.closing.Load() {
			return
		}
		if err != nil {
			d.readErr.Store(err)
			d.dispatch()
			d.idle()
			return
		}
		if len(data) != 0 {
			d.qmu.Lock()
			d.queue = append(d.queue, data...)
			d.qmu.Unlock()
			d.dispatch()
		}
	}
}

// wake reports bytes queued while notifications were off.
func (d *windowsDevice) wake() {
	if d.buffered() != 0 || d.readErr.Load() != nil {
		d.dispatch()
	}
}

// idle keeps serving wake-ups after a read error until the device is closed.
func (d *windowsDevice) idle() {
	handles := []windows.Handle{d.closeEv, d.wakeEv}
	for {
		idx, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if err != nil || idx != windows.WAIT_OBJECT_0+1 || d.closing.Load() {
			return
		}
		d.wake()
	}
}

// exit releases the events if Close has already run. Otherwise Close releases them.
func (d *windowsDevice) exit() {
	d.evMu.Lock()
	d.exited = true
	closing := d.closing.Load()
	d.evMu.Unlock()
	if closing {
		d.releaseEvents()
	}
}

func (d *windowsDevice) bytesToRead() (int, error) {
	var flags uint32
	var st windows.ComStat
	if err := windows.ClearCommError(d.h, &flags, &st); err != nil {
		return 0, fmt.Errorf("ClearCommError failed: %w", err)
	}
	return int(st.CBInQue), nil
}

func (d *windowsDevice) read() ([]byte, error) {
	count, err := d.bytesToRead()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		count = 1
	}
	buf := make([]byte, count)
	var n uint32
	_ = windows.ResetEvent(d.ovRead.HEvent)
	err = windows.ReadFile(d.h, buf, &n, &d.ovRead)
	if err == nil {
		return buf[:n], nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	handles := []windows.Handle{d.closeEv, d.ovRead.HEvent, d.wakeEv}
	for {
		idx, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if err != nil {
			return nil, fmt.Errorf("read wait failed: %w", err)
		}
		if idx == windows.WAIT_OBJECT_0 {
			return nil, nil
		}
		if idx == windows.WAIT_OBJECT_0+1 {
			break
		}
		d.wake()
		if d.closing.Load() {
			return nil, nil
		}
	}
	if err := windows.GetOverlappedResult(d.h, &d.ovRead, &n, true); err != nil {
		if errors.Is(err, windows.ERROR_OPERATION_ABORTED) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return buf[:n], nil
}

func (d *windowsDevice) write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var n uint32
	_ = windows.ResetEvent(d.ovWrite.HEvent)
	err := windows.WriteFile(d.h, data, &n, &d.ovWrite)
	if err == nil {
		return len(data), nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	handles := []windows.Handle{d.closeEv, d.ovWrite.HEvent}
	idx, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
	if err != nil {
		return 0, fmt.Errorf("write wait failed: %w", err)
	}
	if idx == windows.WAIT_OBJECT_0 {
		return 0, io.ErrClosedPipe
	}
	if err := windows.GetOverlappedResult(d.h, &d.ovWrite, &n, true); err != nil {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	return int(n), nil
}

// Close releases the device. Close does not wait for the reader goroutine so
// it may be called from a handler. Whichever of the two finishes last
// releases the events.
func (d *windowsDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.notify.Store(false)
		d.input.closed.Store(true)
		d.output.closed.Store(true)
		d.evMu.Lock()
		d.closing.Store(true)
		_ = windows.SetEvent(d.closeEv)
		exited := d.exited
		d.evMu.Unlock()
		_ = windows.CancelIoEx(d.h, nil)
		err = windows.CloseHandle(d.h)
		if exited {
			d.releaseEvents()
		}
	})
	return err
}

func (d *windowsDevice) release() {
	if d.h != 0 && d.h != windows.InvalidHandle {
		_ = windows.CloseHandle(d.h)
	}
	d.releaseEvents()
}

func (d *windowsDevice) releaseEvents() {
	for _, h := range []windows.Handle{d.ovRead.HEvent, d.ovWrite.HEvent, d.closeEv, d.wakeEv} {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
	}
}

func (in *windowsInput) Available() (int, error) {
	if in.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	n := in.d.buffered()
	if n == 0 {
		if err := in.d.readErr.Load(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (in *windowsInput) Read(p []byte) (int, error) {
	if in.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	d := in.d
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if len(d.queue) == 0 {
		if err := d.readErr.Load(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	n := copy(p, d.queue)
	d.queue = d.queue[n:]
	return n, nil
}

func (in *windowsInput) Close() error {
	in.closed.Store(true)
	return nil
}

func (out *windowsOutput) Write(p []byte) (int, error) {
	if out.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return out.d.write(p)
}

func (out *windowsOutput) Flush() error {
	if out.closed.Load() {
		return io.ErrClosedPipe
	}
	return windows.FlushFileBuffers(out.d.h)
}

func (out *windowsOutput) Close() error {
	out.closed.Store(true)
	return nil
}
