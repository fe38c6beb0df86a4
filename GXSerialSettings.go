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
	"fmt"
	"strconv"
	"strings"

	"github.com/Gurux/gxcommon-go"
)

// StopBits is the amount of stop bits.
type StopBits int

const (
	// StopBitsOne is one stop bit.
	StopBitsOne StopBits = iota
	// StopBitsOnePointFive is one and a half stop bits.
	StopBitsOnePointFive
	// StopBitsTwo is two stop bits.
	StopBitsTwo
)

// String returns the stop bits in the settings text format.
func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsOnePointFive:
		return "1.5"
	case StopBitsTwo:
		return "2"
	}
	return "?"
}

// GXSerialSettings holds the line settings of a serial port.
// The value is never modified after it is created.
type GXSerialSettings struct {
	name     string
	baudRate gxcommon.BaudRate
	dataBits int
	parity   gxcommon.Parity
	stopBits StopBits
}

// NewGXSerialSettings creates serial settings from explicit values.
func NewGXSerialSettings(name string,
	baudRate gxcommon.BaudRate,
	dataBits int,
	parity gxcommon.Parity,
	stopBits StopBits) *GXSerialSettings {
	return &GXSerialSettings{name: name, baudRate: baudRate, dataBits: dataBits, parity: parity, stopBits: stopBits}
}

// Parse parses settings in "name,baud,bits,parity,stop" format, e.g. "COM3,9600,8,n,1".
// Empty fields are skipped and fields after the fifth are ignored.
func Parse(value string) (*GXSerialSettings, error) {
	if value == "" {
		return nil, missingField(0, "settings cannot be empty")
	}
	tokens := strings.FieldsFunc(value, func(r rune) bool { return r == ',' })
	next := func() (string, bool) {
		if len(tokens) == 0 {
			return "", false
		}
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, true
	}

	name, ok := next()
	if !ok {
		return nil, missingField(1, "missing name")
	}
	tok, ok := next()
	if !ok {
		return nil, missingField(2, "missing data rate")
	}
	baud, err := ParseBaud(tok)
	if err != nil {
		return nil, err
	}
	tok, ok = next()
	if !ok {
		return nil, missingField(3, "missing data bits")
	}
	bits, err := ParseDataBits(tok)
	if err != nil {
		return nil, err
	}
	tok, ok = next()
	if !ok {
		return nil, missingField(4, "missing parity bits")
	}
	parity, err := ParseParity(tok)
	if err != nil {
		return nil, err
	}
	tok, ok = next()
	if !ok {
		return nil, missingField(5, "missing stop bits")
	}
	stop, err := ParseStopBits(tok)
	if err != nil {
		return nil, err
	}
	return NewGXSerialSettings(name, baud, bits, parity, stop), nil
}

// ParseBaud parses a positive baud rate.
func ParseBaud(value string) (gxcommon.BaudRate, error) {
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return 0, invalidField(2, "invalid data rate")
	}
	return gxcommon.BaudRate(v), nil
}

// ParseDataBits parses the amount of data bits. Accepted values are "5", "6", "7" and "8".
func ParseDataBits(value string) (int, error) {
	switch value {
	case "5":
		return 5, nil
	case "6":
		return 6, nil
	case "7":
		return 7, nil
	case "8":
		return 8, nil
	}
	return 0, invalidField(3, "invalid data bits")
}

// ParseParity parses a single letter parity: n, e, o, m or s. Case is ignored.
func ParseParity(value string) (gxcommon.Parity, error) {
	switch strings.ToLower(value) {
	case "n":
		return gxcommon.ParityNone, nil
	case "e":
		return gxcommon.ParityEven, nil
	case "o":
		return gxcommon.ParityOdd, nil
	case "m":
		return gxcommon.ParityMark, nil
	case "s":
		return gxcommon.ParitySpace, nil
	}
	return gxcommon.ParityNone, invalidField(4, "invalid parity bits")
}

// ParseStopBits parses stop bits. Accepted values are "1", "1.5" and "2".
func ParseStopBits(value string) (StopBits, error) {
	switch value {
	case "1":
		return StopBitsOne, nil
	case "1.5":
		return StopBitsOnePointFive, nil
	case "2":
		return StopBitsTwo, nil
	}
	return StopBitsOne, invalidField(5, "invalid stop bits")
}

// parityString returns the single letter of the parity.
func parityString(value gxcommon.Parity) string {
	switch value {
	case gxcommon.ParityNone:
		return "n"
	case gxcommon.ParityEven:
		return "e"
	case gxcommon.ParityOdd:
		return "o"
	case gxcommon.ParityMark:
		return "m"
	case gxcommon.ParitySpace:
		return "s"
	}
	return "?"
}

// Name returns the device name.
func (s *GXSerialSettings) Name() string {
	return s.name
}

// BaudRate returns the used baud rate.
func (s *GXSerialSettings) BaudRate() gxcommon.BaudRate {
	return s.baudRate
}

// DataBits returns the amount of the data bits.
func (s *GXSerialSettings) DataBits() int {
	return s.dataBits
}

// Parity returns the used parity.
func (s *GXSerialSettings) Parity() gxcommon.Parity {
	return s.parity
}

// StopBits returns the used stop bits.
func (s *GXSerialSettings) StopBits() StopBits {
	return s.stopBits
}

// WithName returns a copy of the settings for another device.
func (s *GXSerialSettings) WithName(name string) *GXSerialSettings {
	ret := *s
	ret.name = name
	return &ret
}

// Equal compares the line parameters. The device name is not compared.
func (s *GXSerialSettings) Equal(other *GXSerialSettings) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.baudRate == other.baudRate &&
		s.dataBits == other.dataBits &&
		s.parity == other.parity &&
		s.stopBits == other.stopBits
}

// String returns the settings in the same format that Parse accepts.
func (s *GXSerialSettings) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s,%d,%d,%s,%s", s.name, int(s.baudRate), s.dataBits, parityString(s.parity), s.stopBits)
}
