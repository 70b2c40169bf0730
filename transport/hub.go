package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
	"github.com/theoremus-urban-solutions/asset-tracking/internal/observability"
	"github.com/theoremus-urban-solutions/asset-tracking/subscription"
)

// Options carries the transport policy knobs.
type Options struct {
	// HeartbeatInterval is how often the server pings each connection.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long to wait for any read (pong included)
	// before declaring the connection dead.
	HeartbeatTimeout time.Duration
	// WriteTimeout bounds a single outbound write.
	WriteTimeout time.Duration
	// SendBuffer is the per-connection outbound buffer size.
	SendBuffer int
}

// Hub owns observer connections and fans bus events out to the ones whose
// subscriptions match.
type Hub struct {
	registry *subscription.Registry
	verifier TokenVerifier
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	busSub *bus.Subscription

	mu    sync.RWMutex
	conns map[string]*Conn

	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewHub subscribes to the bus and starts the fan-out loop.
func NewHub(b bus.Bus, registry *subscription.Registry, verifier TokenVerifier, opts Options, logger *slog.Logger) (*Hub, error) {
	busSub, err := b.Subscribe(bus.TopicAll)
	if err != nil {
		return nil, err
	}
	h := &Hub{
		registry: registry,
		verifier: verifier,
		opts:     opts,
		logger:   logger.With("component", "transport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		busSub: busSub,
		conns:  make(map[string]*Conn),
	}
	h.wg.Add(1)
	go h.run()
	return h, nil
}

// run pushes each bus event to every connection with a matching
// subscription. The event is marshaled once per fan-out.
func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.busSub.Done():
			return
		case ev := <-h.busSub.Events():
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			for _, connID := range h.registry.SubscribersFor(ev) {
				h.mu.RLock()
				c := h.conns[connID]
				h.mu.RUnlock()
				if c == nil {
					continue
				}
				if n := c.enqueue(data); n > 0 {
					h.dropped.Add(n)
					observability.DroppedEvents.Add(float64(n))
				}
			}
		}
	}
}

// ServeHTTP authenticates and upgrades an observer connection. The token
// comes from the "token" query parameter or an Authorization bearer header.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	identity, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newConn(uuid.NewString(), identity, ws, h)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	observability.ObserverConnections.Inc()
	observability.ActiveObservers.Inc()
	h.logger.Info("observer connected", "conn", c.id, "subject", identity.Subject, "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// remove detaches a connection and purges its registry entries. Called
// exactly once per connection, before its buffer stops draining.
func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()
	if !ok {
		return
	}
	removed := h.registry.RemoveConnection(c.id)
	observability.ActiveObservers.Dec()
	h.logger.Info("observer disconnected", "conn", c.id, "subscriptions_removed", removed)
}

// Dropped returns the events dropped on full connection buffers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// ActiveConnections returns the number of connected observers.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close tears down the fan-out loop and every connection.
func (h *Hub) Close() {
	h.busSub.Unsubscribe()
	h.wg.Wait()
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
