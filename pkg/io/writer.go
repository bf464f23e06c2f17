package io

import (
	"bufio"
	"encoding/json"
	"io"
)

// JSONLWriter writes detection results as one JSON object per line.
type JSONLWriter struct {
	w   *bufio.Writer
	c   io.Closer
	enc *json.Encoder
}

// NewJSONLWriter wraps the destination in a line-oriented JSON writer. If
// the destination is an io.Closer it is closed by Close.
func NewJSONLWriter(dst io.Writer) *JSONLWriter {
	w := bufio.NewWriter(dst)
	jw := &JSONLWriter{
		w:   w,
		enc: json.NewEncoder(w),
	}
	if c, ok := dst.(io.Closer); ok {
		jw.c = c
	}
	return jw
}

// Write outputs a single result.
func (w *JSONLWriter) Write(result Result) error {
	return w.enc.Encode(result)
}

// WriteAll outputs multiple results.
func (w *JSONLWriter) WriteAll(results []Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered output and releases the destination.
func (w *JSONLWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}
