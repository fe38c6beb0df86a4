package gxserialagent

import (
	"sync"

	"go.uber.org/atomic"
)

// outputStream forwards writes to the raw device output.
// Close only detaches the stream. The raw output is closed by the session.
type outputStream struct {
	mu     sync.Mutex
	output Output
	sent   *atomic.Uint64
}

func newOutputStream(output Output, sent *atomic.Uint64) *outputStream {
	return &outputStream{output: output, sent: sent}
}

func (o *outputStream) target() (Output, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.output == nil {
		return nil, ErrStreamClosed
	}
	return o.output, nil
}

// Write implements io.Writer.
func (o *outputStream) Write(p []byte) (int, error) {
	out, err := o.target()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(p)
	if n > 0 && o.sent != nil {
		o.sent.Add(uint64(n))
	}
	return n, err
}

// WriteByte implements io.ByteWriter.
func (o *outputStream) WriteByte(c byte) error {
	_, err := o.Write([]byte{c})
	return err
}

// Flush flushes the raw output.
func (o *outputStream) Flush() error {
	out, err := o.target()
	if err != nil {
		return err
	}
	return out.Flush()
}

// Close detaches the raw output.
func (o *outputStream) Close() error {
	o.mu.Lock()
	o.output = nil
	o.mu.Unlock()
	return nil
}
