package supervisor

import (
	"context"
	"encoding/json"
)

func (d *Daemon) handleGetConfig(ctx context.Context, payload json.RawMessage) (any, error) {
	return d.cfg, nil
}

// handleSetConfig is a documented stub: the spec leaves runtime
// configuration mutation unspecified beyond "return the loaded
// configuration"; there is no hot-apply path for a running daemon.
func (d *Daemon) handleSetConfig(ctx context.Context, payload json.RawMessage) (any, error) {
	return map[string]any{"status": "unsupported", "config": d.cfg}, nil
}
