// Package rpcserver implements the length-prefixed JSON request/response
// protocol shared by every daemon in the system: the supervisor, the
// privileged systemd helper, and the event bus control plane.
package rpcserver

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MaxFrameSize is the largest frame the codec accepts. A bigger length
// prefix is a protocol violation and the connection is dropped.
const MaxFrameSize = 1 << 20 // 1 MiB

// Request is a framed command sent to a daemon.
type Request struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // always "request"
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Response is the framed reply to a Request. ID echoes the request's ID.
type Response struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // always "response"
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func successResponse(id string, payload any) (Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response payload: %w", err)
	}
	return Response{
		ID:        id,
		Type:      "response",
		Status:    StatusSuccess,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

func errorResponse(id string, err error) Response {
	return Response{
		ID:        id,
		Type:      "response",
		Status:    StatusError,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// WriteFrame writes a big-endian uint32 length prefix followed by the
// JSON-encoded value.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame and unmarshals it into v.
// ErrFrameTooLarge is returned when the declared length exceeds
// MaxFrameSize; callers must treat that as fatal for the connection.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameSize {
		return ErrFrameTooLarge
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read frame body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}

// ErrFrameTooLarge is returned by ReadFrame when a peer declares a frame
// length larger than MaxFrameSize. The connection must be dropped.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size of %d bytes", MaxFrameSize)
