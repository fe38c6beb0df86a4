package gxserialagent

import (
	"fmt"
	"testing"

	"github.com/Gurux/gxcommon-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireParseError(t *testing.T, err error, kind ParseErrorKind, field int) {
	t.Helper()
	pe, ok := IsParseError(err)
	require.True(t, ok, "expected parse error, got %v", err)
	assert.Equal(t, kind, pe.Kind)
	assert.Equal(t, field, pe.Field)
}

func TestParse(t *testing.T) {
	s, err := Parse("COM1,300,5,n,1")
	require.NoError(t, err)
	assert.Equal(t, "COM1", s.Name())
	assert.Equal(t, gxcommon.BaudRate(300), s.BaudRate())
	assert.Equal(t, 5, s.DataBits())
	assert.Equal(t, gxcommon.ParityNone, s.Parity())
	assert.Equal(t, StopBitsOne, s.StopBits())
}

func TestParseOnePointFive(t *testing.T) {
	s, err := Parse("COM2,2400,6,e,1.5")
	require.NoError(t, err)
	assert.Equal(t, gxcommon.ParityEven, s.Parity())
	assert.Equal(t, StopBitsOnePointFive, s.StopBits())
	assert.Equal(t, "COM2,2400,6,e,1.5", s.String())
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse("")
	assert.Nil(t, s)
	requireParseError(t, err, MissingField, 0)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		value string
		kind  ParseErrorKind
		field int
	}{
		{",,,", MissingField, 1},
		{"COM3", MissingField, 2},
		{"COM3,9600", MissingField, 3},
		{"COM3,9600,8", MissingField, 4},
		{"COM3,9600,8,n", MissingField, 5},
		{"COM3,bad,8,n,1", InvalidField, 2},
		{"COM3,0,8,n,1", InvalidField, 2},
		{"COM3,-300,8,n,1", InvalidField, 2},
		{"COM3,300,4,n,1", InvalidField, 3},
		{"COM3,300,9,n,1", InvalidField, 3},
		{"COM3,300,8,bad,1", InvalidField, 4},
		{"COM3,300,8,8,1", InvalidField, 4},
		{"COM3,300,8,n,0", InvalidField, 5},
		{"COM3,300,8,n,4", InvalidField, 5},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			s, err := Parse(tt.value)
			assert.Nil(t, s)
			requireParseError(t, err, tt.kind, tt.field)
		})
	}
}

func TestParseSkipsEmptyFields(t *testing.T) {
	s, err := Parse("COM3,,9600,8,,N,2,extra")
	require.NoError(t, err)
	assert.Equal(t, "COM3,9600,8,n,2", s.String())
}

func TestParseParityIgnoresCase(t *testing.T) {
	for value, expected := range map[string]gxcommon.Parity{
		"N": gxcommon.ParityNone,
		"E": gxcommon.ParityEven,
		"O": gxcommon.ParityOdd,
		"M": gxcommon.ParityMark,
		"S": gxcommon.ParitySpace,
	} {
		p, err := ParseParity(value)
		require.NoError(t, err)
		assert.Equal(t, expected, p)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	for _, bits := range []string{"5", "6", "7", "8"} {
		for _, parity := range []string{"n", "e", "o", "m", "s"} {
			for _, stop := range []string{"1", "1.5", "2"} {
				value := fmt.Sprintf("/dev/ttyS0,115200,%s,%s,%s", bits, parity, stop)
				s, err := Parse(value)
				require.NoError(t, err)
				again, err := Parse(s.String())
				require.NoError(t, err)
				assert.Equal(t, value, again.String())
			}
		}
	}
}

func TestSettingsEqual(t *testing.T) {
	a, err := Parse("COM3,9600,8,n,1")
	require.NoError(t, err)
	b, err := Parse("COM3,9600,8,n,1")
	require.NoError(t, err)
	c, err := Parse("COM3,19200,8,n,1")
	require.NoError(t, err)
	d, err := Parse("COM4,9600,8,n,1")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(d), "name is not compared")
	assert.False(t, a.Equal(nil))
	assert.True(t, a.WithName("COM9").Equal(a))
	assert.Equal(t, "COM9", a.WithName("COM9").Name())
	assert.Equal(t, "COM3", a.Name())
}
