package rpcserver

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is a connection to a daemon's Unix socket, issuing one
// request/response round trip per Call. It is not safe for concurrent use
// by multiple goroutines; callers needing concurrency should use one
// Client per goroutine or serialize Calls externally.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon listening at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// DialTimeout connects with a deadline, useful while waiting for a daemon
// that may still be starting up.
func DialTimeout(path string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends command with the given params and decodes the response
// payload into result (a pointer), or returns the server's error string
// wrapped as a Go error. result may be nil to discard the payload.
func (c *Client) Call(command string, params any, result any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	req := Request{
		ID:        uuid.NewString(),
		Type:      "request",
		Command:   command,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	if err := WriteFrame(c.conn, req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := ReadFrame(c.conn, &resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.Status == StatusError {
		return fmt.Errorf("%s: %s", command, resp.Error)
	}

	if result != nil && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, result); err != nil {
			return fmt.Errorf("decode response payload: %w", err)
		}
	}

	return nil
}

// WaitForSocket polls for the socket at path to become dialable, useful
// right after starting a daemon subprocess. It gives up after timeout.
func WaitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(25 * time.Millisecond)
	}
	return fmt.Errorf("socket %s not ready after %s: %w", path, timeout, lastErr)
}
