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
	"io"
	"sync"

	"go.uber.org/atomic"
)

// bridge is a bounded byte FIFO between the data ready handler and the reader.
// Write blocks while the buffer is full and Read blocks while it is empty.
// Once an error is latched it is returned from every Read until the bridge is closed.
type bridge struct {
	mu     sync.Mutex
	buf    []byte
	head   int
	size   int
	closed bool
	// Closed and replaced when data is appended or the state changes.
	dataReady chan struct{}
	// Closed and replaced when data is consumed or the state changes.
	spaceReady chan struct{}
	err        *atomic.Error
}

func newBridge(size int) *bridge {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &bridge{
		buf:        make([]byte, size),
		dataReady:  make(chan struct{}),
		spaceReady: make(chan struct{}),
		err:        atomic.NewError(nil),
	}
}

func signal(ch *chan struct{}) {
	old := *ch
	*ch = make(chan struct{})
	close(old)
}

// Write appends all of p, blocking while the buffer is full.
// Blocked readers are woken by Flush, or by Write itself when the buffer fills up.
func (b *bridge) Write(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return n, io.ErrClosedPipe
		}
		if b.size == len(b.buf) {
			ch := b.spaceReady
			b.mu.Unlock()
			<-ch
			continue
		}
		n += b.put(p[n:])
		if b.size == len(b.buf) {
			signal(&b.dataReady)
		}
		b.mu.Unlock()
	}
	return n, nil
}

// Flush wakes up readers waiting for the written bytes.
func (b *bridge) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return io.ErrClosedPipe
	}
	if b.size != 0 {
		signal(&b.dataReady)
	}
	return nil
}

// Read reads buffered bytes, blocking until at least one byte is available,
// an error is latched or the bridge is closed.
func (b *bridge) Read(p []byte) (int, error) {
	for {
		b.mu.Lock()
		if err := b.err.Load(); err != nil {
			b.mu.Unlock()
			return 0, err
		}
		if b.size != 0 {
			n := b.get(p)
			signal(&b.spaceReady)
			b.mu.Unlock()
			return n, nil
		}
		if b.closed {
			b.mu.Unlock()
			return 0, io.EOF
		}
		if len(p) == 0 {
			b.mu.Unlock()
			return 0, nil
		}
		ch := b.dataReady
		b.mu.Unlock()
		<-ch
	}
}

// ReadByte reads a single byte.
func (b *bridge) ReadByte() (byte, error) {
	var tmp [1]byte
	if _, err := b.Read(tmp[:]); err != nil {
		return 0, err
	}
	return tmp[0], nil
}

// SetError latches err. Only the first error is kept.
func (b *bridge) SetError(err error) bool {
	if err == nil || !b.err.CompareAndSwap(nil, err) {
		return false
	}
	b.mu.Lock()
	signal(&b.dataReady)
	b.mu.Unlock()
	return true
}

// Err returns the latched error.
func (b *bridge) Err() error {
	return b.err.Load()
}

// Buffered returns the amount of bytes waiting to be read.
func (b *bridge) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Close wakes up blocked readers and writers. Closing a closed bridge is a no-op.
func (b *bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		signal(&b.dataReady)
		signal(&b.spaceReady)
	}
	return nil
}

func (b *bridge) put(p []byte) int {
	n := 0
	for n < len(p) && b.size < len(b.buf) {
		tail := (b.head + b.size) % len(b.buf)
		end := len(b.buf)
		if tail < b.head {
			end = b.head
		}
		c := copy(b.buf[tail:end], p[n:])
		b.size += c
		n += c
	}
	return n
}

func (b *bridge) get(p []byte) int {
	n := 0
	for n < len(p) && b.size != 0 {
		end := b.head + b.size
		if end > len(b.buf) {
			end = len(b.buf)
		}
		c := copy(p[n:], b.buf[b.head:end])
		b.head = (b.head + c) % len(b.buf)
		b.size -= c
		n += c
	}
	return n
}
