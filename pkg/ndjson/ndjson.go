// Package ndjson implements the newline-delimited JSON stream format used
// between the backend and proxy tiers: one JSON object per line, terminated
// by end-of-stream or a single error frame of the form
//
//	{"error":{"code":"INTERNAL","message":"..."}}
//
// The error frame lets a consumer distinguish "stream finished" from
// "stream failed mid-flight"; a data object never carries an "error" key.
package ndjson

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const ContentType = "application/x-ndjson"

// StreamError is the in-band failure signal of a stream. Receiving one means
// the producer aborted; everything received before it is partial data.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed: [%s] %s", e.Code, e.Message)
}

type errorFrame struct {
	Error *StreamError `json:"error"`
}

// Writer emits one value per line and flushes after each write so elements
// reach the peer without buffering delay.
type Writer struct {
	enc   *json.Encoder
	flush func()
}

func NewWriter(w io.Writer) *Writer {
	nw := &Writer{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		nw.flush = f.Flush
	}
	return nw
}

func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	if w.flush != nil {
		w.flush()
	}
	return nil
}

// WriteError terminates the stream with an error frame.
func (w *Writer) WriteError(code, message string) error {
	return w.Write(errorFrame{Error: &StreamError{Code: code, Message: message}})
}

// Decoder reads a stream written by Writer. Decode returns io.EOF at a clean
// end-of-stream and *StreamError when the producer sent an error frame.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

func (d *Decoder) Decode(v any) error {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		return err
	}
	var frame errorFrame
	if err := json.Unmarshal(raw, &frame); err == nil && frame.Error != nil {
		return frame.Error
	}
	return json.Unmarshal(raw, v)
}
