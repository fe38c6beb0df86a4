package gxserialagent

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeReadWrite(t *testing.T) {
	b := newBridge(8)
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, b.Buffered())

	buf := make([]byte, 3)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(buf[:n]))

	// Wraps around the end of the ring.
	_, err = b.Write([]byte("world!"))
	require.NoError(t, err)
	buf = make([]byte, 16)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "loworld!", string(buf[:n]))
	assert.Equal(t, 0, b.Buffered())
}

func TestBridgeWriteBlocksWhenFull(t *testing.T) {
	b := newBridge(4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := b.Write([]byte("abcdefgh"))
		assert.NoError(t, err)
	}()
	select {
	case <-done:
		t.Fatal("write should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}
	got, err := io.ReadAll(io.LimitReader(b, 8))
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(got))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write did not complete")
	}
}

func TestBridgeReadBlocksUntilData(t *testing.T) {
	b := newBridge(0)
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := b.Read(buf)
		got <- string(buf[:n])
	}()
	time.Sleep(20 * time.Millisecond)
	_, err := b.Write([]byte("ok"))
	require.NoError(t, err)
	select {
	case <-got:
		t.Fatal("read should wait for flush")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, b.Flush())
	select {
	case v := <-got:
		assert.Equal(t, "ok", v)
	case <-time.After(time.Second):
		t.Fatal("read was not woken up")
	}
}

func TestBridgeFlushAfterClose(t *testing.T) {
	b := newBridge(4)
	require.NoError(t, b.Flush())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Flush(), io.ErrClosedPipe)
}

func TestBridgeLatchedError(t *testing.T) {
	b := newBridge(8)
	_, err := b.Write([]byte("x"))
	require.NoError(t, err)
	boom := errors.New("boom")
	assert.True(t, b.SetError(boom))
	assert.False(t, b.SetError(errors.New("second")))
	assert.Equal(t, boom, b.Err())

	buf := make([]byte, 4)
	for i := 0; i != 3; i++ {
		n, err := b.Read(buf)
		assert.Equal(t, 0, n)
		assert.Equal(t, boom, err)
	}
}

func TestBridgeLatchedErrorWakesReader(t *testing.T) {
	b := newBridge(8)
	boom := errors.New("boom")
	errs := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 1))
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)
	b.SetError(boom)
	select {
	case err := <-errs:
		assert.Equal(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("read was not woken up")
	}
}

func TestBridgeClose(t *testing.T) {
	b := newBridge(2)
	_, err := b.Write([]byte("ab"))
	require.NoError(t, err)

	writeErr := make(chan error, 1)
	go func() {
		_, err := b.Write([]byte("c"))
		writeErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	select {
	case err := <-writeErr:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(time.Second):
		t.Fatal("write was not woken up")
	}

	buf := make([]byte, 4)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))
	_, err = b.Read(buf)
	assert.Equal(t, io.EOF, err)
}
