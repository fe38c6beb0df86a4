package gxserialagent

import (
	"errors"
	"runtime"
	"sort"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes an available serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Port enumeration of the operating system.
var (
	listPorts       = serial.GetPortsList
	listPortDetails = enumerator.GetDetailedPortsList
)

// GetPortNames returns the sorted names of the available serial ports.
func GetPortNames() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}

// GetPortDetails returns the available serial ports with USB details when known.
func GetPortDetails() ([]PortInfo, error) {
	list, err := listPortDetails()
	if err != nil {
		return nil, err
	}
	ret := make([]PortInfo, 0, len(list))
	for _, it := range list {
		ret = append(ret, PortInfo{
			Name:         it.Name,
			IsUSB:        it.IsUSB,
			VID:          it.VID,
			PID:          it.PID,
			SerialNumber: it.SerialNumber,
			Product:      it.Product,
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Name < ret[j].Name
	})
	return ret, nil
}

var backendAvailable = sync.OnceValue(func() bool {
	if !hasNativeBackend {
		return false
	}
	if _, err := serial.GetPortsList(); err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.FunctionNotImplemented {
			return false
		}
	}
	return true
})

// IsSerialBackendAvailable returns true if serial ports can be used on this platform.
// The result is computed once.
func IsSerialBackendAvailable() bool {
	return backendAvailable()
}

type nativeDriver struct{}

type nativeIdentifier struct {
	name string
}

// NativeDriver returns the driver for the serial ports of the operating system.
func NativeDriver() Driver {
	return nativeDriver{}
}

func (nativeDriver) Lookup(name string) (Identifier, error) {
	if !IsSerialBackendAvailable() {
		return nil, ErrBackendUnavailable
	}
	if name == "" {
		return nil, ErrDeviceNotFound
	}
	if err := lookupPort(name); err != nil {
		return nil, err
	}
	return nativeIdentifier{name: name}, nil
}

func (nativeDriver) PortNames() ([]string, error) {
	if !IsSerialBackendAvailable() {
		return nil, ErrBackendUnavailable
	}
	return GetPortNames()
}

func (id nativeIdentifier) Name() string {
	return id.name
}

func (id nativeIdentifier) Open(owner string) (Device, error) {
	return openDevice(id.name, owner)
}

func platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
