package eventbus

import (
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/philcali/pandemic/internal/rpcserver"
)

// Source is one push-only fan-out socket: subscribers connect and read
// framed events forever. There is no request/response on this socket.
//
// Go has no weak-reference set like the original's WeakSet; a live
// subscriber set keyed by a monotonically increasing id, self-removing
// under lock on first write failure, gives the same "dead subscribers
// vanish without intervention" property.
type Source struct {
	id         string
	socketPath string

	listener net.Listener

	mu          sync.Mutex
	subscribers map[uint64]net.Conn
	nextID      uint64

	// publishMu serializes Publish calls: two concurrent publishes to the
	// same source must never interleave their WriteFrame byte sequences
	// on a shared subscriber connection.
	publishMu sync.Mutex
}

// NewSource binds a fan-out socket for sourceID at <eventsDir>/<id>.sock.
func NewSource(eventsDir, sourceID string) (*Source, error) {
	socketPath := filepath.Join(eventsDir, sourceID+".sock")

	listener, err := rpcserverBindEventSocket(socketPath)
	if err != nil {
		return nil, err
	}

	s := &Source{
		id:          sourceID,
		socketPath:  socketPath,
		listener:    listener,
		subscribers: make(map[uint64]net.Conn),
	}
	go s.acceptLoop()
	return s, nil
}

// rpcserverBindEventSocket repeats the control sockets' create-dir,
// unlink-stale, listen and chmod steps (it has no chown step), at a
// looser 0666 mode since any local subscriber may read a fan-out socket.
func rpcserverBindEventSocket(path string) (net.Listener, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0666); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return listener, nil
}

// SocketPath returns the bound socket path.
func (s *Source) SocketPath() string { return s.socketPath }

// SubscriberCount reports the number of currently live subscribers.
func (s *Source) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Source) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		id := s.nextID
		s.nextID++
		s.subscribers[id] = conn
		s.mu.Unlock()
	}
}

// Publish serializes event once and writes it to every live subscriber in
// best-effort order. A subscriber whose write fails is dropped from the
// live set and never causes Publish to return an error. With no
// subscribers this is a no-op.
//
// publishMu is held across the whole snapshot-and-write sequence: without
// it, two concurrent publishes to the same source (the common case for
// "core", which every supervisor handler emits to) could each grab a
// subscriber's conn and interleave their WriteFrame byte sequences,
// corrupting that subscriber's stream. Holding the lock here serializes
// publishes per source without affecting other sources' fan-out.
func (s *Source) Publish(event Event) int {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	ids := make([]uint64, 0, len(s.subscribers))
	conns := make([]net.Conn, 0, len(s.subscribers))
	for id, conn := range s.subscribers {
		ids = append(ids, id)
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	delivered := 0
	for i, conn := range conns {
		if err := rpcserver.WriteFrame(conn, event); err != nil {
			s.removeSubscriber(ids[i])
			continue
		}
		delivered++
	}
	return delivered
}

func (s *Source) removeSubscriber(id uint64) {
	s.mu.Lock()
	conn, ok := s.subscribers[id]
	if ok {
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Close stops accepting new subscribers, closes all live connections, and
// unlinks the socket.
func (s *Source) Close() error {
	_ = s.listener.Close()

	s.mu.Lock()
	for id, conn := range s.subscribers {
		_ = conn.Close()
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove event source socket", "path", s.socketPath, "error", err)
	}
	return nil
}
