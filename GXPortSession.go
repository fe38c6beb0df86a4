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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Gurux/gxcommon-go"
)

const (
	// RetryCount is the maximum amount of attempts to apply the line settings.
	RetryCount = 10
	// RetryDelay is multiplied with the attempt number to get the back-off delay.
	RetryDelay = 10 * time.Millisecond
	// DefaultBufferSize is the size of the read buffer and the receive queue.
	DefaultBufferSize = 256
)

// portSession is an open and verified device.
// It is the data ready handler of the device.
type portSession struct {
	agent     *GXSerialAgent
	id        Identifier
	device    Device
	requested *GXSerialSettings
	actual    *GXSerialSettings
	input     Input
	output    Output
	buffer    []byte
	bridge    *bridge
	writer    *outputStream
	closeOnce sync.Once
}

// openSession opens the device, applies and verifies the settings and registers
// the session as the data ready handler. Nothing is left open on failure.
func openSession(a *GXSerialAgent, id Identifier, settings *GXSerialSettings, bufferSize int) (*portSession, error) {
	name := settings.Name()
	device, err := id.Open(a.name)
	if err != nil {
		return nil, &ConnectError{Port: name, Op: "open", Err: err}
	}
	s := &portSession{agent: a, id: id, device: device, requested: settings}
	if err := s.configure(); err != nil {
		_ = device.Close()
		return nil, &ConnectError{Port: name, Op: "configure", Err: err}
	}
	s.input = device.Input()
	s.output = device.Output()
	s.buffer = make([]byte, bufferSize)
	s.bridge = newBridge(bufferSize)
	s.writer = newOutputStream(s.output, a.bytesSent)
	if err := device.SetDataReadyHandler(s); err != nil {
		_ = device.Close()
		return nil, &ConnectError{Port: name, Op: "register", Err: err}
	}
	device.NotifyOnDataAvailable(true)
	return s, nil
}

func (s *portSession) configure() error {
	if err := s.setSerialSettings(); err != nil {
		return err
	}
	if err := s.device.SetFlowControlNone(); err != nil {
		return fmt.Errorf("flow control: %w", err)
	}
	if err := s.device.SetDTR(false); err != nil {
		s.agent.trace(gxcommon.TraceTypesInfo, s.agent.p.Sprintf("msg.modem_line", "DTR", s.device.Name(), err))
	}
	if err := s.device.SetRTS(false); err != nil {
		s.agent.trace(gxcommon.TraceTypesInfo, s.agent.p.Sprintf("msg.modem_line", "RTS", s.device.Name(), err))
	}
	actual, err := s.device.Settings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if !actual.Equal(s.requested) {
		return &MismatchError{Actual: actual, Requested: s.requested}
	}
	s.actual = actual
	return nil
}

// setSerialSettings applies the settings. Unsupported settings fail at once,
// other failures are retried with a growing delay.
func (s *portSession) setSerialSettings() error {
	r := s.requested
	var err error
	for attempt := 1; attempt <= RetryCount; attempt++ {
		err = s.device.SetParams(r.BaudRate(), r.DataBits(), r.Parity(), r.StopBits())
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnsupportedOperation) {
			return err
		}
		s.agent.trace(gxcommon.TraceTypesError, s.agent.p.Sprintf("msg.retry", s.device.Name(), attempt, err))
		if attempt < RetryCount {
			s.agent.sleep(time.Duration(attempt) * RetryDelay)
		}
	}
	return fmt.Errorf("%w: %d attempts: %w", ErrConfigurationFailed, RetryCount, err)
}

// DataAvailable moves the available bytes from the device to the receive queue.
// Errors are latched to the queue and never returned to the caller.
func (s *portSession) DataAvailable() {
	for {
		count, err := s.input.Available()
		if err != nil {
			s.fail(err)
			return
		}
		if count <= 0 {
			return
		}
		n, err := s.input.Read(s.buffer)
		if n > 0 {
			_, werr := s.bridge.Write(s.buffer[:n])
			if werr == nil {
				werr = s.bridge.Flush()
			}
			if werr != nil {
				s.fail(werr)
				return
			}
			s.agent.bytesReceived.Add(uint64(n))
			s.agent.tracef(gxcommon.TraceTypesReceived, "RX: % X", s.buffer[:n])
		}
		if err != nil {
			s.fail(err)
			return
		}
		if n == 0 {
			return
		}
	}
}

func (s *portSession) fail(err error) {
	if !s.bridge.SetError(err) || errors.Is(err, io.ErrClosedPipe) {
		return
	}
	s.agent.trace(gxcommon.TraceTypesError, s.agent.p.Sprintf("msg.read_failed", s.device.Name(), err))
	s.agent.errorf(err)
}

// close releases the session in order. Every close is attempted and failures are only traced.
func (s *portSession) close() {
	s.closeOnce.Do(func() {
		s.device.RemoveDataReadyHandler()
		s.closeQuietly("output stream", s.writer)
		s.closeQuietly("input stream", s.bridge)
		s.closeQuietly("raw output", s.output)
		s.closeQuietly("raw input", s.input)
		s.closeQuietly("device", s.device)
	})
}

func (s *portSession) closeQuietly(what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		s.agent.trace(gxcommon.TraceTypesError, s.agent.p.Sprintf("msg.close_failed", what, s.device.Name(), err))
	}
}
