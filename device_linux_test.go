//go:build linux

package gxserialagent

import (
	"testing"
	"time"

	"github.com/Gurux/gxcommon-go"
	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPty(t *testing.T) (*GXSerialAgent, func([]byte), func() string) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	a := NewGXSerialAgent("pty", nil)
	a.Configure(slave.Name(), 9600, 8, gxcommon.ParityNone, StopBitsOne)
	write := func(p []byte) {
		_, err := master.Write(p)
		require.NoError(t, err)
	}
	read := func() string {
		buf := make([]byte, 128)
		n, err := master.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}
	return a, write, read
}

func TestNativeDeviceRoundTrip(t *testing.T) {
	a, write, read := openPty(t)
	require.NoError(t, a.StartAgent())
	t.Cleanup(func() { _ = a.StopAgent() })
	assert.Equal(t, 8, a.ActualSettings().DataBits())

	received := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := a.Read(buf)
		if err == nil {
			received <- string(buf[:n])
		}
	}()
	write([]byte("ping"))
	select {
	case msg := <-received:
		assert.Equal(t, "ping", msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for data from master")
	}

	_, err := a.Write([]byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, "pong", read())
	assert.Equal(t, uint64(4), a.GetBytesSent())
	assert.Equal(t, uint64(4), a.GetBytesReceived())
}

func TestNativeDeviceBusy(t *testing.T) {
	a, _, _ := openPty(t)
	require.NoError(t, a.StartAgent())
	t.Cleanup(func() { _ = a.StopAgent() })

	b := NewGXSerialAgent("other", nil)
	b.ConfigureSettings(a.Settings())
	assert.ErrorIs(t, b.StartAgent(), ErrPortBusy)

	require.NoError(t, a.StopAgent())
	require.NoError(t, b.StartAgent())
	require.NoError(t, b.StopAgent())
}

func TestNativeDeviceMismatch(t *testing.T) {
	// A pseudo terminal always reads back eight data bits without parity.
	a, _, _ := openPty(t)
	s := a.Settings()
	a.Configure(s.Name(), 9600, 7, gxcommon.ParityEven, StopBitsOne)
	err := a.StartAgent()
	assert.ErrorIs(t, err, ErrSettingsMismatch)
	assert.Nil(t, a.Device())
}

func TestNativeDeviceNotFound(t *testing.T) {
	a := NewGXSerialAgent("test", nil)
	a.Configure("/dev/ttyDoesNotExist0", 9600, 8, gxcommon.ParityNone, StopBitsOne)
	assert.ErrorIs(t, a.StartAgent(), ErrDeviceNotFound)
}

func TestNativeDeviceHangup(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { slave.Close() })

	a := NewGXSerialAgent("pty", nil)
	a.Configure(slave.Name(), 9600, 8, gxcommon.ParityNone, StopBitsOne)
	errs := make(chan error, 1)
	a.SetOnError(func(_ *GXSerialAgent, err error) {
		select {
		case errs <- err:
		default:
		}
	})
	require.NoError(t, a.StartAgent())
	t.Cleanup(func() { _ = a.StopAgent() })

	require.NoError(t, master.Close())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrDeviceHangup)
	case <-time.After(time.Second):
		t.Fatal("hang-up was not reported")
	}
	_, err = a.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrDeviceHangup)
}

func TestNativeDeviceHandlers(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	id, err := NativeDriver().Lookup(slave.Name())
	require.NoError(t, err)
	d, err := id.Open("test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, d.SetDataReadyHandler(&portSession{}))
	assert.ErrorIs(t, d.SetDataReadyHandler(&portSession{}), ErrTooManyHandlers)
	d.RemoveDataReadyHandler()
	d.RemoveDataReadyHandler()
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

func TestIsSerialBackendAvailable(t *testing.T) {
	assert.True(t, IsSerialBackendAvailable())
	assert.Equal(t, IsSerialBackendAvailable(), IsSerialBackendAvailable())
}
