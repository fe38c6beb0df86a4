//go:build windows

package gxserialagent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"golang.org/x/sys/windows"
)

type countingHandler struct {
	d       *windowsDevice
	active  *atomic.Int32
	maxSeen *atomic.Int32
	calls   *atomic.Int32
}

func (h *countingHandler) DataAvailable() {
	n := h.active.Inc()
	defer h.active.Dec()
	if n > h.maxSeen.Load() {
		h.maxSeen.Store(n)
	}
	h.calls.Inc()
	buf := make([]byte, 16)
	for {
		if n, _ := h.d.input.Read(buf); n == 0 {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
}

// newBrokenDevice returns a device whose reads fail at once. The reader
// goroutine is running and idle when it returns.
func newBrokenDevice(t *testing.T) *windowsDevice {
	t.Helper()
	d := &windowsDevice{
		name:    "COM99",
		notify:  atomic.NewBool(false),
		closing: atomic.NewBool(false),
		readErr: atomic.NewError(nil),
	}
	d.input = &windowsInput{d: d, closed: atomic.NewBool(false)}
	d.output = &windowsOutput{d: d, closed: atomic.NewBool(false)}
	var err error
	d.closeEv, err = windows.CreateEvent(nil, 1, 0, nil)
	require.NoError(t, err)
	d.ovRead.HEvent, err = windows.CreateEvent(nil, 0, 0, nil)
	require.NoError(t, err)
	d.ovWrite.HEvent, err = windows.CreateEvent(nil, 0, 0, nil)
	require.NoError(t, err)
	d.wakeEv, err = windows.CreateEvent(nil, 0, 0, nil)
	require.NoError(t, err)
	go d.run()
	require.Eventually(t, func() bool { return d.readErr.Load() != nil }, time.Second, time.Millisecond)
	return d
}

func (d *windowsDevice) hasExited() bool {
	d.evMu.Lock()
	defer d.evMu.Unlock()
	return d.exited
}

func TestWindowsNotificationsAreSerialized(t *testing.T) {
	d := newBrokenDevice(t)
	h := &countingHandler{
		d:       d,
		active:  atomic.NewInt32(0),
		maxSeen: atomic.NewInt32(0),
		calls:   atomic.NewInt32(0),
	}
	require.NoError(t, d.SetDataReadyHandler(h))

	d.qmu.Lock()
	d.queue = append(d.queue, "queued before notifications"...)
	d.qmu.Unlock()
	for i := 0; i != 5; i++ {
		go d.NotifyOnDataAvailable(true)
	}
	assert.Eventually(t, func() bool { return h.calls.Load() != 0 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), h.maxSeen.Load())
	assert.Zero(t, d.buffered())

	_ = d.Close()
	assert.Eventually(t, d.hasExited, time.Second, time.Millisecond)
}

func TestWindowsEventsOutliveReadError(t *testing.T) {
	d := newBrokenDevice(t)
	assert.False(t, d.hasExited())
	// The reader keeps the events until the device is closed.
	assert.NoError(t, windows.SetEvent(d.ovWrite.HEvent))
	assert.NoError(t, windows.ResetEvent(d.ovWrite.HEvent))
	assert.NoError(t, windows.SetEvent(d.ovRead.HEvent))

	_ = d.Close()
	assert.Eventually(t, d.hasExited, time.Second, time.Millisecond)
	_, err := d.input.Available()
	assert.Error(t, err)
}
