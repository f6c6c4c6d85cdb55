package rpcserver

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
)

// SocketConfig controls how a daemon's listening socket is created.
type SocketConfig struct {
	Path  string
	Mode  os.FileMode // e.g. 0660
	Owner string      // optional user name; missing user is a warning, not fatal
	Group string      // optional group name; missing group is a warning, not fatal
}

// bindSocket ensures the parent directory exists, removes any stale socket
// file, binds and listens, then applies permissions. Mirrors the five-step
// sequence in spec section 4.1.
func bindSocket(cfg SocketConfig) (net.Listener, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create socket directory %s: %w", dir, err)
	}

	if err := os.Remove(cfg.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", cfg.Path, err)
	}

	listener, err := net.Listen("unix", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Path, err)
	}

	mode := cfg.Mode
	if mode == 0 {
		mode = 0660
	}
	if err := os.Chmod(cfg.Path, mode); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod %s: %w", cfg.Path, err)
	}

	chownSocket(cfg.Path, cfg.Owner, cfg.Group)

	return listener, nil
}

// unlinkSocket removes the socket file at shutdown. A socket that is
// already gone is not an error.
func unlinkSocket(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink socket %s: %w", path, err)
	}
	return nil
}

// chownSocket applies optional owner/group to the socket file. A missing
// user or group is logged as a warning and otherwise ignored, per spec.
func chownSocket(path, owner, group string) {
	if owner == "" && group == "" {
		return
	}

	uid, gid := -1, -1

	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			slog.Warn("socket owner not found", "user", owner, "path", path)
		} else if id, err := strconv.Atoi(u.Uid); err == nil {
			uid = id
		}
	}

	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			slog.Warn("socket group not found", "group", group, "path", path)
		} else if id, err := strconv.Atoi(g.Gid); err == nil {
			gid = id
		}
	}

	if uid == -1 && gid == -1 {
		return
	}
	if err := syscall.Chown(path, uid, gid); err != nil {
		slog.Warn("failed to chown socket", "path", path, "error", err)
	}
}
