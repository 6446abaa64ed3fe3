// Package eventlog provides an append-only JSON-lines log of delivered
// kernel messages, used both as the run's audit trail and as the input to
// deterministic-replay verification (spec.md §9).
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andrewsonin/simkernel/internal/kernel"
)

// Writer writes delivered messages as JSON lines to a file. Generalized
// from the teacher's own writer.go, which logged a single fixed
// domain.Event type; this core logs whatever kernel.Message the kernel
// just dispatched.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	count  uint64
}

// NewWriter creates a new event log writer at the given path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &Writer{
		file:   f,
		writer: bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Write appends a message to the log.
func (w *Writer) Write(msg *kernel.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Count returns the number of messages written.
func (w *Writer) Count() uint64 {
	return w.count
}

// Reader reads messages back from a JSON-lines event log.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewReader opens an event log for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 1024*1024)
	return &Reader{file: f, scanner: scanner}, nil
}

// Next reads the next message. Returns nil, io.EOF at end of log.
func (r *Reader) Next() (*kernel.Message, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var msg kernel.Message
	if err := json.Unmarshal(r.scanner.Bytes(), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// ReadAll reads every message from the log.
func (r *Reader) ReadAll() ([]*kernel.Message, error) {
	var msgs []*kernel.Message
	for {
		m, err := r.Next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, m)
	}
}

// Close closes the log file.
func (r *Reader) Close() error {
	return r.file.Close()
}
