package gxserialagent

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Gurux/gxcommon-go"
	"go.uber.org/atomic"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PipeAgent is the lifecycle contract between a hosting agent and its media.
// StartAgent opens the media before the host reports itself started and
// StopAgent releases it after the host has stopped. Connect and Disconnect
// publish and withdraw the real streams.
type PipeAgent interface {
	StartAgent() error
	StopAgent() error
	Connect() error
	Disconnect() error
	RealInputStream() io.ReadCloser
	SetRealInputStream(value io.ReadCloser)
	RealOutputStream() io.WriteCloser
	SetRealOutputStream(value io.WriteCloser)
}

// ErrorHandler is called when the receive path fails.
type ErrorHandler func(a *GXSerialAgent, err error)

// TraceHandler is called for trace messages allowed by the trace level.
type TraceHandler func(a *GXSerialAgent, e gxcommon.TraceEventArgs)

// MediaStateHandler is called when the agent state changes.
type MediaStateHandler func(a *GXSerialAgent, e gxcommon.MediaStateEventArgs)

// GXSerialAgent exposes a serial device as a bidirectional byte stream.
type GXSerialAgent struct {
	name   string
	driver Driver

	// Lifecycle lock. Held while the port is connected or disconnected.
	mu sync.Mutex

	// Configuration lock. The session is replaced holding both locks.
	cfgMu      sync.RWMutex
	state      gxcommon.MediaState
	settings   *GXSerialSettings
	identifier Identifier
	session    *portSession
	bufferSize int

	// Stream lock.
	smu    sync.RWMutex
	input  io.ReadCloser
	output io.WriteCloser

	bytesSent     *atomic.Uint64
	bytesReceived *atomic.Uint64

	// Callback lock.
	cbMu       sync.RWMutex
	traceLevel gxcommon.TraceLevel
	onState    MediaStateHandler
	onTrace    TraceHandler
	onErr      ErrorHandler

	sleep func(time.Duration)
	// Printer for localized messages.
	p *message.Printer
}

var _ PipeAgent = (*GXSerialAgent)(nil)

// NewGXSerialAgent creates an agent. The native serial driver is used when driver is nil.
// The name identifies the agent as the owner of the opened device.
func NewGXSerialAgent(name string, driver Driver) *GXSerialAgent {
	if driver == nil {
		driver = NativeDriver()
	}
	a := &GXSerialAgent{
		name:          name,
		driver:        driver,
		state:         gxcommon.MediaStateClosed,
		bufferSize:    DefaultBufferSize,
		bytesSent:     atomic.NewUint64(0),
		bytesReceived: atomic.NewUint64(0),
		sleep:         time.Sleep,
	}
	a.Localize(language.AmericanEnglish)
	return a
}

// Name returns the agent name.
func (a *GXSerialAgent) Name() string {
	return a.name
}

// Configure sets the serial settings from explicit values.
func (a *GXSerialAgent) Configure(port string,
	baudRate gxcommon.BaudRate,
	dataBits int,
	parity gxcommon.Parity,
	stopBits StopBits) {
	a.ConfigureSettings(NewGXSerialSettings(port, baudRate, dataBits, parity, stopBits))
}

// ConfigureSettings sets the serial settings. They are used on the next StartAgent.
func (a *GXSerialAgent) ConfigureSettings(value *GXSerialSettings) {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	if a.settings == nil || value == nil || a.settings.Name() != value.Name() {
		a.identifier = nil
	}
	a.settings = value
}

// Settings returns the requested serial settings.
func (a *GXSerialAgent) Settings() *GXSerialSettings {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.settings
}

// ActualSettings returns the settings read back from the open device.
func (a *GXSerialAgent) ActualSettings() *GXSerialSettings {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	if a.session == nil {
		return nil
	}
	return a.session.actual
}

// SetBufferSize sets the size of the receive queue used on the next StartAgent.
func (a *GXSerialAgent) SetBufferSize(value int) error {
	if value <= 0 {
		return gxcommon.ErrInvalidArgument
	}
	a.cfgMu.Lock()
	a.bufferSize = value
	a.cfgMu.Unlock()
	return nil
}

// Device returns the open device, or nil if the agent is not connected.
func (a *GXSerialAgent) Device() Device {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	if a.session == nil {
		return nil
	}
	return a.session.device
}

// State returns the current media state.
func (a *GXSerialAgent) State() gxcommon.MediaState {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.state
}

// IsOpen returns true when the streams are published.
func (a *GXSerialAgent) IsOpen() bool {
	return a.State() == gxcommon.MediaStateOpen
}

// String returns the serial settings.
func (a *GXSerialAgent) String() string {
	s := a.Settings()
	if s == nil {
		return ""
	}
	return s.String()
}

// GetName returns the device name.
func (a *GXSerialAgent) GetName() string {
	s := a.Settings()
	if s == nil {
		return ""
	}
	return s.Name()
}

// GetMediaType returns the media type name.
func (a *GXSerialAgent) GetMediaType() string {
	return "Serial"
}

// Validate checks that a serial port is selected.
func (a *GXSerialAgent) Validate() error {
	if a.GetName() == "" {
		return errors.New(a.p.Sprintf("msg.no_serial_port_selected"))
	}
	return nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// GetSettings returns the serial settings as XML elements.
func (a *GXSerialAgent) GetSettings() string {
	s := a.Settings()
	if s == nil {
		return ""
	}
	var b strings.Builder
	if s.Name() != "" {
		fmt.Fprintf(&b, "<Port>%s</Port>\n", xmlEscape(s.Name()))
	}
	fmt.Fprintf(&b, "<Bps>%d</Bps>\n", int(s.BaudRate()))
	fmt.Fprintf(&b, "<ByteSize>%d</ByteSize>\n", s.DataBits())
	fmt.Fprintf(&b, "<Parity>%s</Parity>\n", parityString(s.Parity()))
	fmt.Fprintf(&b, "<StopBits>%s</StopBits>\n", s.StopBits())
	return b.String()
}

// SetSettings updates the serial settings from XML elements.
// Missing elements keep their current or default values.
func (a *GXSerialAgent) SetSettings(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	current := a.Settings()
	if current == nil {
		current = NewGXSerialSettings(DefaultPort, DefaultBaudRate, DefaultDataBits, gxcommon.ParityNone, StopBitsOne)
	}
	port := current.Name()
	baudRate := current.BaudRate()
	dataBits := current.DataBits()
	parity := current.Parity()
	stopBits := current.StopBits()

	dec := xml.NewDecoder(strings.NewReader("<root>" + value + "</root>"))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local == "root" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &se); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		switch se.Name.Local {
		case "Port":
			port = v
		case "Bps":
			baudRate, err = ParseBaud(v)
		case "ByteSize":
			dataBits, err = ParseDataBits(v)
		case "Parity":
			parity, err = ParseParity(v)
		case "StopBits":
			stopBits, err = ParseStopBits(v)
		}
		if err != nil {
			return err
		}
	}
	a.Configure(port, baudRate, dataBits, parity, stopBits)
	return nil
}

// GetBytesSent returns the amount of bytes written to the device.
func (a *GXSerialAgent) GetBytesSent() uint64 {
	return a.bytesSent.Load()
}

// GetBytesReceived returns the amount of bytes read from the device.
func (a *GXSerialAgent) GetBytesReceived() uint64 {
	return a.bytesReceived.Load()
}

// ResetByteCounters resets the sent and received byte counters.
func (a *GXSerialAgent) ResetByteCounters() {
	a.bytesSent.Store(0)
	a.bytesReceived.Store(0)
}

// GetTrace returns the trace level.
func (a *GXSerialAgent) GetTrace() gxcommon.TraceLevel {
	a.cbMu.RLock()
	defer a.cbMu.RUnlock()
	return a.traceLevel
}

// SetTrace sets the trace level.
func (a *GXSerialAgent) SetTrace(traceLevel gxcommon.TraceLevel) error {
	a.cbMu.Lock()
	a.traceLevel = traceLevel
	a.cbMu.Unlock()
	return nil
}

// SetOnError sets the handler for receive errors.
func (a *GXSerialAgent) SetOnError(value ErrorHandler) {
	a.cbMu.Lock()
	a.onErr = value
	a.cbMu.Unlock()
}

// SetOnMediaStateChange sets the handler for state changes.
func (a *GXSerialAgent) SetOnMediaStateChange(value MediaStateHandler) {
	a.cbMu.Lock()
	a.onState = value
	a.cbMu.Unlock()
}

// SetOnTrace sets the trace handler.
func (a *GXSerialAgent) SetOnTrace(value TraceHandler) {
	a.cbMu.Lock()
	a.onTrace = value
	a.cbMu.Unlock()
}

// Open connects the agent. It is the same as StartAgent.
func (a *GXSerialAgent) Open() error {
	return a.StartAgent()
}

// Close disconnects the agent. It is the same as StopAgent.
func (a *GXSerialAgent) Close() error {
	return a.StopAgent()
}

// StartAgent opens and verifies the serial port and publishes the streams.
// The agent returns to the closed state if any step fails.
func (a *GXSerialAgent) StartAgent() error {
	err := a.startAgent()
	if err != nil {
		a.errorf(err)
	}
	return err
}

func (a *GXSerialAgent) startAgent() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State() == gxcommon.MediaStateOpen {
		return nil
	}
	a.statef(gxcommon.MediaStateOpening)
	err := a.serialConnect()
	if err == nil {
		err = a.connect()
		if err != nil {
			a.serialDisconnect()
		}
	}
	if err != nil {
		a.statef(gxcommon.MediaStateClosed)
		return err
	}
	a.statef(gxcommon.MediaStateOpen)
	return nil
}

// StopAgent withdraws the streams and releases the serial port.
// It can be called any number of times.
func (a *GXSerialAgent) StopAgent() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.State() == gxcommon.MediaStateClosed && a.session == nil {
		return nil
	}
	a.statef(gxcommon.MediaStateClosing)
	a.disconnect()
	a.serialDisconnect()
	a.statef(gxcommon.MediaStateClosed)
	return nil
}

// Connect publishes the receive queue and the device output as the real streams.
func (a *GXSerialAgent) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connect()
}

// Disconnect closes and withdraws the real streams.
func (a *GXSerialAgent) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnect()
	return nil
}

func (a *GXSerialAgent) connect() error {
	if a.session == nil {
		return ErrStreamClosed
	}
	a.SetRealInputStream(a.session.bridge)
	a.SetRealOutputStream(a.session.writer)
	return nil
}

func (a *GXSerialAgent) disconnect() {
	if output := a.RealOutputStream(); output != nil {
		if err := output.Close(); err != nil {
			a.trace(gxcommon.TraceTypesError, a.p.Sprintf("msg.close_failed", "output stream", a.GetName(), err))
		}
	}
	a.SetRealOutputStream(nil)
	if input := a.RealInputStream(); input != nil {
		if err := input.Close(); err != nil {
			a.trace(gxcommon.TraceTypesError, a.p.Sprintf("msg.close_failed", "input stream", a.GetName(), err))
		}
	}
	a.SetRealInputStream(nil)
}

// RealInputStream returns the published input stream.
func (a *GXSerialAgent) RealInputStream() io.ReadCloser {
	a.smu.RLock()
	defer a.smu.RUnlock()
	return a.input
}

// SetRealInputStream sets the published input stream.
func (a *GXSerialAgent) SetRealInputStream(value io.ReadCloser) {
	a.smu.Lock()
	a.input = value
	a.smu.Unlock()
}

// RealOutputStream returns the published output stream.
func (a *GXSerialAgent) RealOutputStream() io.WriteCloser {
	a.smu.RLock()
	defer a.smu.RUnlock()
	return a.output
}

// SetRealOutputStream sets the published output stream.
func (a *GXSerialAgent) SetRealOutputStream(value io.WriteCloser) {
	a.smu.Lock()
	a.output = value
	a.smu.Unlock()
}

// Read reads from the published input stream.
func (a *GXSerialAgent) Read(p []byte) (int, error) {
	input := a.RealInputStream()
	if input == nil {
		return 0, ErrStreamClosed
	}
	return input.Read(p)
}

// Write writes to the published output stream.
func (a *GXSerialAgent) Write(p []byte) (int, error) {
	output := a.RealOutputStream()
	if output == nil {
		return 0, ErrStreamClosed
	}
	return output.Write(p)
}

// Send converts data to bytes and writes it to the published output stream.
func (a *GXSerialAgent) Send(data any) error {
	tmp, err := gxcommon.ToBytes(data, binary.BigEndian)
	if err != nil {
		return err
	}
	str, err := gxcommon.ToString(data)
	if err != nil {
		return err
	}
	a.tracef(gxcommon.TraceTypesSent, "TX: %s", str)
	_, err = a.Write(tmp)
	return err
}

func (a *GXSerialAgent) serialConnect() error {
	a.cfgMu.RLock()
	settings := a.settings
	id := a.identifier
	bufferSize := a.bufferSize
	a.cfgMu.RUnlock()
	if settings == nil {
		return ErrNotConfigured
	}
	name := settings.Name()
	a.trace(gxcommon.TraceTypesInfo, a.p.Sprintf("msg.opening_port", settings))
	if id == nil {
		var err error
		id, err = a.driver.Lookup(name)
		if err != nil {
			a.trace(gxcommon.TraceTypesError, a.p.Sprintf("msg.open_failed", name, err))
			return &ConnectError{Port: name, Op: "lookup", Err: err}
		}
		a.cfgMu.Lock()
		if a.settings == settings {
			a.identifier = id
		}
		a.cfgMu.Unlock()
	}
	s, err := openSession(a, id, settings, bufferSize)
	if err != nil {
		a.trace(gxcommon.TraceTypesError, a.p.Sprintf("msg.open_failed", name, err))
		return err
	}
	a.cfgMu.Lock()
	a.session = s
	a.cfgMu.Unlock()
	a.trace(gxcommon.TraceTypesInfo, a.p.Sprintf("msg.port_open", s.actual))
	return nil
}

func (a *GXSerialAgent) serialDisconnect() {
	s := a.session
	if s == nil {
		return
	}
	name := s.device.Name()
	a.trace(gxcommon.TraceTypesInfo, a.p.Sprintf("msg.closing_port", name))
	a.cfgMu.Lock()
	a.session = nil
	a.cfgMu.Unlock()
	s.close()
	a.trace(gxcommon.TraceTypesInfo, a.p.Sprintf("msg.port_closed", name))
}

func (a *GXSerialAgent) errorf(err error) {
	a.cbMu.RLock()
	cb := a.onErr
	a.cbMu.RUnlock()
	if cb != nil {
		cb(a, err)
	}
}

func (a *GXSerialAgent) tracef(traceType gxcommon.TraceTypes, fmtStr string, args ...any) {
	a.cbMu.RLock()
	trace := !(int(a.traceLevel) < int(traceType))
	cb := a.onTrace
	a.cbMu.RUnlock()
	if cb != nil && trace {
		p := gxcommon.NewTraceEventArgs(traceType, fmt.Sprintf(fmtStr, args...), "")
		cb(a, *p)
	}
}

func (a *GXSerialAgent) trace(traceType gxcommon.TraceTypes, message string) {
	a.cbMu.RLock()
	trace := !(int(a.traceLevel) < int(traceType))
	cb := a.onTrace
	a.cbMu.RUnlock()
	if cb != nil && trace {
		p := gxcommon.NewTraceEventArgs(traceType, message, "")
		cb(a, *p)
	}
}

// statef changes the state. The caller holds the lifecycle lock.
func (a *GXSerialAgent) statef(state gxcommon.MediaState) {
	a.cfgMu.Lock()
	a.state = state
	a.cfgMu.Unlock()
	a.cbMu.RLock()
	cb := a.onState
	a.cbMu.RUnlock()
	if cb != nil {
		cb(a, *gxcommon.NewMediaStateEventArgs(state))
	}
}

// Localize messages for the specified language.
// No errors is returned if language is not supported.
func (a *GXSerialAgent) Localize(language language.Tag) {
	a.p = message.NewPrinter(language)
}
