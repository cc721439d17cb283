// Package pipes implements the guest standard I/O endpoints: callback-backed
// write pipes with unbuffered, line and block buffering policies, and a
// feedable blocking line reader for interactive guest stdin.
package pipes

import (
	"bytes"
	"sync"
)

// UnbufferedWriter forwards every Write directly to the sink callback.
type UnbufferedWriter struct {
	sink func([]byte)
}

// NewUnbufferedWriter creates a write pipe without buffering.
func NewUnbufferedWriter(sink func([]byte)) *UnbufferedWriter {
	return &UnbufferedWriter{sink: sink}
}

func (w *UnbufferedWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.sink(p)
	}
	return len(p), nil
}

// LineWriter buffers written bytes and emits one sink call per complete
// line, without the trailing newline. Close flushes any partial line.
type LineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	sink func([]byte)
}

// NewLineWriter creates a line-buffered write pipe.
func NewLineWriter(sink func([]byte)) *LineWriter {
	return &LineWriter{sink: sink}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		b := w.buf.Bytes()
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, b[:i])
		w.buf.Next(i + 1)
		w.sink(line)
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.sink(append([]byte(nil), w.buf.Bytes()...))
		w.buf.Reset()
	}
	return nil
}

// DefaultBlockSize is the emission threshold of BlockWriter.
const DefaultBlockSize = 4096

// BlockWriter buffers written bytes and emits fixed-size blocks.
// Close flushes the final partial block.
type BlockWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	size int
	sink func([]byte)
}

// NewBlockWriter creates a block-buffered write pipe emitting size-byte
// blocks; size <= 0 uses DefaultBlockSize.
func NewBlockWriter(size int, sink func([]byte)) *BlockWriter {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &BlockWriter{size: size, sink: sink}
}

func (w *BlockWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for w.buf.Len() >= w.size {
		block := make([]byte, w.size)
		copy(block, w.buf.Bytes()[:w.size])
		w.buf.Next(w.size)
		w.sink(block)
	}
	return len(p), nil
}

// Close flushes the final partial block.
func (w *BlockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.sink(append([]byte(nil), w.buf.Bytes()...))
		w.buf.Reset()
	}
	return nil
}
