package gxserialagent

import (
	"io"

	"github.com/Gurux/gxcommon-go"
)

// DataReadyHandler is notified by the device when new bytes may be available.
// The device calls it from one goroutine at a time and never re-enters it.
type DataReadyHandler interface {
	DataAvailable()
}

// Input is the raw receive side of an open device.
type Input interface {
	io.ReadCloser
	// Available returns the number of bytes that can be read without blocking.
	Available() (int, error)
}

// Output is the raw transmit side of an open device.
type Output interface {
	io.WriteCloser
	Flush() error
}

// Device is an exclusively opened serial device.
type Device interface {
	// Name returns the device name.
	Name() string
	// SetParams applies the line parameters. Errors wrapping
	// ErrUnsupportedOperation are permanent, others may be retried.
	SetParams(baudRate gxcommon.BaudRate, dataBits int, parity gxcommon.Parity, stopBits StopBits) error
	// SetFlowControlNone disables hardware and software flow control.
	SetFlowControlNone() error
	SetDTR(on bool) error
	SetRTS(on bool) error
	// Settings reads the line parameters back from the device.
	Settings() (*GXSerialSettings, error)
	Input() Input
	Output() Output
	// SetDataReadyHandler registers the only handler of the device.
	// ErrTooManyHandlers is returned if one is already registered.
	SetDataReadyHandler(h DataReadyHandler) error
	// RemoveDataReadyHandler removes the handler. It is a no-op if there is none.
	RemoveDataReadyHandler()
	// NotifyOnDataAvailable enables or disables data ready notifications.
	NotifyOnDataAvailable(enable bool)
	io.Closer
}

// Identifier is a resolved device that can be opened.
type Identifier interface {
	Name() string
	// Open opens the device exclusively. ErrPortBusy is returned if it is owned elsewhere.
	Open(owner string) (Device, error)
}

// Driver resolves device names.
type Driver interface {
	// Lookup returns ErrDeviceNotFound if the device does not exist.
	Lookup(name string) (Identifier, error)
	// PortNames returns the available device names.
	PortNames() ([]string, error)
}
