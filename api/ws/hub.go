// Package ws serves live owner notifications over websocket. Notifications
// for an owner without a session are queued elsewhere and drained here on
// the owner's next connection.
package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cross/infra/metrics"
	exitwal "cross/infra/wal/exit"
)

// Queue is the durable per-owner offline queue.
type Queue interface {
	Put(topic string, payloads ...[]byte) ([]uint64, error)
	Scan(topic string, fn func(exitwal.Entry) error) error
	Delete(topic string, seq uint64) error
}

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

type session struct {
	owner string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Hub tracks one session per owner. A newer connection replaces the older.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session

	queue        Queue
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option { return func(h *Hub) { h.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

// WithPingInterval sets how often idle sessions are pinged and their
// offline queue re-checked.
func WithPingInterval(d time.Duration) Option { return func(h *Hub) { h.pingInterval = d } }

func NewHub(queue Queue, opts ...Option) *Hub {
	h := &Hub{
		sessions: map[string]*session{},
		queue:    queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: 15 * time.Second,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "ws")
	return h
}

// Push hands payload to owner's live session. It reports false when the
// owner is offline or its send buffer is full.
func (h *Hub) Push(owner string, payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[owner]
	if !ok {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		h.log.Warn("send buffer full", "owner", owner)
		return false
	}
}

// Online reports whether owner has a live session.
func (h *Hub) Online(owner string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[owner]
	return ok
}

// ServeHTTP upgrades /ws?owner=<id>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "owner", owner, "err", err)
		return
	}

	s := &session{owner: owner, conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	h.register(s)

	go h.writeLoop(s)
	h.readLoop(s)
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	old := h.sessions[s.owner]
	h.sessions[s.owner] = s
	h.mu.Unlock()

	if old != nil {
		h.log.Info("session replaced", "owner", s.owner)
		old.close()
	} else {
		h.metrics.SessionOpened()
	}
	h.log.Info("session opened", "owner", s.owner, "remote", s.conn.RemoteAddr().String())
}

// unregister removes s if it is still the owner's session and requeues
// whatever it had not written yet.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	current := h.sessions[s.owner] == s
	if current {
		delete(h.sessions, s.owner)
	}
	h.mu.Unlock()

	if current {
		h.metrics.SessionClosed()
	}

	var pending [][]byte
	for drained := false; !drained; {
		select {
		case msg := <-s.send:
			pending = append(pending, msg)
		default:
			drained = true
		}
	}
	if len(pending) > 0 {
		if _, err := h.queue.Put(exitwal.UserTopic(s.owner), pending...); err != nil {
			h.log.Error("requeue failed, notifications lost", "owner", s.owner, "count", len(pending), "err", err)
		}
	}
	h.log.Info("session closed", "owner", s.owner, "requeued", len(pending))
}

func (h *Hub) readLoop(s *session) {
	defer func() {
		s.close()
		h.unregister(s)
	}()

	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read failed", "owner", s.owner, "err", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *session) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	if !h.drain(s) {
		return
	}
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := h.write(s, websocket.TextMessage, msg); err != nil {
				// Put back so unregister requeues it.
				select {
				case s.send <- msg:
				default:
				}
				return
			}
		case <-ticker.C:
			if err := h.write(s, websocket.PingMessage, nil); err != nil {
				return
			}
			if !h.drain(s) {
				return
			}
		}
	}
}

// drain writes the owner's queued notifications in order, deleting each
// once written. It reports false when the connection failed.
func (h *Hub) drain(s *session) bool {
	topic := exitwal.UserTopic(s.owner)
	var entries []exitwal.Entry
	if err := h.queue.Scan(topic, func(e exitwal.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		h.log.Warn("offline queue scan failed", "owner", s.owner, "err", err)
		return true
	}

	for _, e := range entries {
		if err := h.write(s, websocket.TextMessage, e.Payload); err != nil {
			return false
		}
		if err := h.queue.Delete(topic, e.Seq); err != nil {
			h.log.Warn("offline queue delete failed", "owner", s.owner, "seq", e.Seq, "err", err)
		}
	}
	if len(entries) > 0 {
		h.log.Debug("offline queue drained", "owner", s.owner, "count", len(entries))
	}
	return true
}

func (h *Hub) write(s *session, kind int, payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(kind, payload)
}
