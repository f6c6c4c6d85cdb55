// Package helperclient is the supervisor-side connection to the
// privileged systemd helper (C5): connect, issue one or more commands,
// disconnect.
package helperclient

import (
	"fmt"

	"github.com/philcali/pandemic/internal/helper"
	"github.com/philcali/pandemic/internal/rpcserver"
)

// Client is a short-lived stateful connection to the helper daemon.
type Client struct {
	rpc *rpcserver.Client
}

// Connect dials the helper's socket.
func Connect(socketPath string) (*Client, error) {
	rpc, err := rpcserver.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to helper: %w", err)
	}
	return &Client{rpc: rpc}, nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	return c.rpc.Close()
}

// CreateService asks the helper to write the unit template and override
// drop-in for serviceName, then reload systemd.
func (c *Client) CreateService(serviceName, templateContent, overrideConfig string) error {
	return c.rpc.Call("createService", map[string]string{
		"serviceName":     serviceName,
		"templateContent": templateContent,
		"overrideConfig":  overrideConfig,
	}, nil)
}

// RemoveService asks the helper to stop, disable, and delete serviceName.
func (c *Client) RemoveService(serviceName string) error {
	return c.rpc.Call("removeService", map[string]string{"serviceName": serviceName}, nil)
}

// StartService starts serviceName.
func (c *Client) StartService(serviceName string) error {
	return c.rpc.Call("startService", map[string]string{"serviceName": serviceName}, nil)
}

// StopService stops serviceName.
func (c *Client) StopService(serviceName string) error {
	return c.rpc.Call("stopService", map[string]string{"serviceName": serviceName}, nil)
}

// RestartService restarts serviceName.
func (c *Client) RestartService(serviceName string) error {
	return c.rpc.Call("restartService", map[string]string{"serviceName": serviceName}, nil)
}

// GetStatus fetches the live status for serviceName.
func (c *Client) GetStatus(serviceName string) (helper.Status, error) {
	var status helper.Status
	err := c.rpc.Call("getStatus", map[string]string{"serviceName": serviceName}, &status)
	return status, err
}

// GetLogs fetches the most recent lines log entries for serviceName.
func (c *Client) GetLogs(serviceName string, lines int) ([]helper.LogEntry, error) {
	var result struct {
		Entries []helper.LogEntry `json:"entries"`
	}
	err := c.rpc.Call("getLogs", map[string]any{"serviceName": serviceName, "lines": lines}, &result)
	return result.Entries, err
}
