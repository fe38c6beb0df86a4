package gxserialagent

import (
	"fmt"

	"github.com/Gurux/gxcommon-go"
)

// Parameter keys and their default values.
const (
	ParameterPort   = "comm.port"
	ParameterRate   = "comm.rate"
	ParameterBits   = "comm.bits"
	ParameterStop   = "comm.stop"
	ParameterParity = "comm.parity"

	DefaultPort     = "COM3"
	DefaultBaudRate = gxcommon.BaudRate(9600)
	DefaultDataBits = 8
)

// Parameters is a key/value configuration source.
type Parameters interface {
	// Get returns the value of key or def if the key is not set.
	Get(key string, def string) string
}

// MapParameters is a Parameters backed by a map.
type MapParameters map[string]string

// Get implements Parameters.
func (m MapParameters) Get(key string, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// ConfigureParameters resolves the port and validates the line settings
// before anything is applied. The agent keeps its old settings on failure.
func (a *GXSerialAgent) ConfigureParameters(parameters Parameters) error {
	name := parameters.Get(ParameterPort, DefaultPort)
	id, err := a.driver.Lookup(name)
	if err != nil {
		return &ConfigurationError{Err: fmt.Errorf("no such port %s: %w", name, err)}
	}
	baudRate, err := ParseBaud(parameters.Get(ParameterRate, "9600"))
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	dataBits, err := ParseDataBits(parameters.Get(ParameterBits, "8"))
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	stopBits, err := ParseStopBits(parameters.Get(ParameterStop, "1"))
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	parity, err := ParseParity(parameters.Get(ParameterParity, "N"))
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	a.cfgMu.Lock()
	a.settings = NewGXSerialSettings(name, baudRate, dataBits, parity, stopBits)
	a.identifier = id
	a.cfgMu.Unlock()
	return nil
}
