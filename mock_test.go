package gxserialagent

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/Gurux/gxcommon-go"
)

var errMockIO = errors.New("mock i/o failure")

// mockDriver is a Driver with scripted devices.
type mockDriver struct {
	mu      sync.Mutex
	ids     map[string]*mockIdentifier
	lookups int
}

func newMockDriver() *mockDriver {
	return &mockDriver{ids: map[string]*mockIdentifier{}}
}

func (m *mockDriver) add(name string) *mockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev := newMockDevice(name)
	m.ids[name] = &mockIdentifier{dev: dev}
	return dev
}

func (m *mockDriver) Lookup(name string) (Identifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	id, ok := m.ids[name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return id, nil
}

func (m *mockDriver) PortNames() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make([]string, 0, len(m.ids))
	for k := range m.ids {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret, nil
}

type mockIdentifier struct {
	dev *mockDevice
}

func (id *mockIdentifier) Name() string {
	return id.dev.name
}

func (id *mockIdentifier) Open(owner string) (Device, error) {
	d := id.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy || d.open {
		return nil, ErrPortBusy
	}
	d.open = true
	d.closed = false
	d.owner = owner
	d.opens++
	d.in = &mockInput{dev: d}
	d.out = &mockOutput{dev: d}
	return d, nil
}

// mockDevice records the calls made to it.
type mockDevice struct {
	name string

	mu       sync.Mutex
	events   []string
	owner    string
	busy     bool
	open     bool
	closed   bool
	opens    int
	notify   bool
	handler  DataReadyHandler
	applied  *GXSerialSettings
	readback *GXSerialSettings
	// Returned by SetParams in order. Nil entries and an empty slice mean success.
	paramsErrs []error
	params     int
	flowErr    error
	dtrErr     error
	rtsErr     error
	closeErr   error

	in  *mockInput
	out *mockOutput
}

func newMockDevice(name string) *mockDevice {
	return &mockDevice{name: name}
}

func (d *mockDevice) log(event string) {
	d.events = append(d.events, event)
}

func (d *mockDevice) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func (d *mockDevice) Name() string {
	return d.name
}

func (d *mockDevice) SetParams(baudRate gxcommon.BaudRate, dataBits int, parity gxcommon.Parity, stopBits StopBits) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.params++
	d.log("params")
	if len(d.paramsErrs) != 0 {
		err := d.paramsErrs[0]
		d.paramsErrs = d.paramsErrs[1:]
		if err != nil {
			return err
		}
	}
	d.applied = NewGXSerialSettings(d.name, baudRate, dataBits, parity, stopBits)
	return nil
}

func (d *mockDevice) SetFlowControlNone() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("flow")
	return d.flowErr
}

func (d *mockDevice) SetDTR(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("dtr")
	return d.dtrErr
}

func (d *mockDevice) SetRTS(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("rts")
	return d.rtsErr
}

func (d *mockDevice) Settings() (*GXSerialSettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readback != nil {
		return d.readback.WithName(d.name), nil
	}
	if d.applied == nil {
		return nil, errMockIO
	}
	return d.applied, nil
}

func (d *mockDevice) Input() Input {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.in
}

func (d *mockDevice) Output() Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out
}

func (d *mockDevice) SetDataReadyHandler(h DataReadyHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handler != nil {
		return ErrTooManyHandlers
	}
	d.log("set_handler")
	d.handler = h
	return nil
}

func (d *mockDevice) RemoveDataReadyHandler() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("remove_handler")
	d.handler = nil
}

func (d *mockDevice) NotifyOnDataAvailable(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify = enable
}

func (d *mockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("close_device")
	d.open = false
	d.closed = true
	return d.closeErr
}

func (d *mockDevice) Handler() DataReadyHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handler
}

// feed queues received bytes and notifies the handler the same way a notifier goroutine does.
func (d *mockDevice) feed(p []byte) {
	d.mu.Lock()
	d.in.data.Write(p)
	h := d.handler
	notify := d.notify
	d.mu.Unlock()
	if h != nil && notify {
		h.DataAvailable()
	}
}

type mockInput struct {
	dev      *mockDevice
	data     bytes.Buffer
	availErr error
	readErr  error
	closeErr error
	closed   bool
}

func (in *mockInput) Available() (int, error) {
	in.dev.mu.Lock()
	defer in.dev.mu.Unlock()
	if in.availErr != nil {
		return 0, in.availErr
	}
	return in.data.Len(), nil
}

func (in *mockInput) Read(p []byte) (int, error) {
	in.dev.mu.Lock()
	defer in.dev.mu.Unlock()
	if in.readErr != nil {
		return 0, in.readErr
	}
	if in.data.Len() == 0 {
		return 0, io.EOF
	}
	return in.data.Read(p)
}

func (in *mockInput) Close() error {
	in.dev.mu.Lock()
	defer in.dev.mu.Unlock()
	in.dev.log("close_raw_input")
	in.closed = true
	return in.closeErr
}

type mockOutput struct {
	dev      *mockDevice
	data     bytes.Buffer
	flushes  int
	closeErr error
	closed   bool
}

func (out *mockOutput) Write(p []byte) (int, error) {
	out.dev.mu.Lock()
	defer out.dev.mu.Unlock()
	if out.closed {
		return 0, io.ErrClosedPipe
	}
	return out.data.Write(p)
}

func (out *mockOutput) Flush() error {
	out.dev.mu.Lock()
	defer out.dev.mu.Unlock()
	out.flushes++
	return nil
}

func (out *mockOutput) Close() error {
	out.dev.mu.Lock()
	defer out.dev.mu.Unlock()
	out.dev.log("close_raw_output")
	out.closed = true
	return out.closeErr
}

func (out *mockOutput) String() string {
	out.dev.mu.Lock()
	defer out.dev.mu.Unlock()
	return out.data.String()
}
