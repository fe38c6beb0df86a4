package gxserialagent

import (
	"errors"
	"fmt"
)

// Sentinel errors for connect and stream failures.
var (
	ErrDeviceNotFound       = errors.New("serial device not found")
	ErrPortBusy             = errors.New("serial port is busy")
	ErrUnsupportedOperation = errors.New("operation not supported by device")
	ErrSettingsMismatch     = errors.New("actual port settings are not requested settings")
	ErrConfigurationFailed  = errors.New("serial port configuration failed")
	ErrTooManyHandlers      = errors.New("data ready handler already registered")
	ErrNotConfigured        = errors.New("serial settings are not configured")
	ErrStreamClosed         = errors.New("stream is closed")
	ErrDeviceHangup         = errors.New("serial device hung up")
	ErrBackendUnavailable   = errors.New("serial backend is not available")
)

// ParseErrorKind tells why a settings field was rejected.
type ParseErrorKind int

const (
	// MissingField is returned when the field is absent.
	MissingField ParseErrorKind = iota
	// InvalidField is returned when the field has an unaccepted value.
	InvalidField
)

// String returns the kind name.
func (k ParseErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing"
	case InvalidField:
		return "invalid"
	}
	return fmt.Sprintf("ParseErrorKind(%d)", int(k))
}

// ParseError reports a rejected settings text.
// Field is the 1-based field index, or 0 when the whole text is empty.
type ParseError struct {
	Kind  ParseErrorKind
	Field int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse serial settings: %s (field %d)", e.Msg, e.Field)
}

func missingField(field int, msg string) error {
	return &ParseError{Kind: MissingField, Field: field, Msg: msg}
}

func invalidField(field int, msg string) error {
	return &ParseError{Kind: InvalidField, Field: field, Msg: msg}
}

// ConnectError is returned when the port session can not be opened.
type ConnectError struct {
	Port string // Device name
	Op   string // Step that failed (e.g. "lookup", "open", "configure")
	Err  error  // Underlying error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Port, e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// MismatchError is returned when the device did not accept the requested settings.
type MismatchError struct {
	Actual    *GXSerialSettings
	Requested *GXSerialSettings
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: %s != %s", ErrSettingsMismatch, e.Actual, e.Requested)
}

// Is makes MismatchError match ErrSettingsMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrSettingsMismatch
}

// ConfigurationError is returned when settings can not be resolved from parameters.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("serial configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsParseError returns the ParseError of the error chain, if present.
func IsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
