package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
	"github.com/theoremus-urban-solutions/asset-tracking/internal/observability"
)

// Sweeper periodically flags assets that have gone silent. Assets active
// for longer than staleAfter become stale; stale assets silent for longer
// than offlineAfter become offline. Every transition publishes a
// presence.changed event. An accepted upsert resets status to active, so
// the sweep never fires twice for the same state without an intervening
// change.
type Sweeper struct {
	store        *Store
	bus          bus.Bus
	interval     time.Duration
	staleAfter   time.Duration
	offlineAfter time.Duration
	logger       *slog.Logger
	now          func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper builds a presence sweeper. A nil now selects time.Now.
func NewSweeper(store *Store, b bus.Bus, interval, staleAfter, offlineAfter time.Duration, logger *slog.Logger, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:        store,
		bus:          b,
		interval:     interval,
		staleAfter:   staleAfter,
		offlineAfter: offlineAfter,
		logger:       logger.With("component", "presence"),
		now:          now,
		stop:         make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(context.Background())
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Sweep runs one pass. Offline transitions are evaluated before stale ones
// so an asset never jumps two states in a single pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	for _, st := range s.store.TransitionIdle(StatusStale, StatusOffline, s.offlineAfter) {
		s.publish(ctx, st, StatusStale)
	}
	for _, st := range s.store.TransitionIdle(StatusActive, StatusStale, s.staleAfter) {
		s.publish(ctx, st, StatusActive)
	}
}

func (s *Sweeper) publish(ctx context.Context, st AssetState, previous Status) {
	change := PresenceChange{
		Status:     st.Status,
		Previous:   previous,
		LastSeenAt: st.LastUpdatedAt,
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	ev := bus.Event{
		Type:       bus.EventPresenceChanged,
		AssetType:  string(st.Identity.Type),
		AssetID:    st.Identity.ID,
		Payload:    payload,
		ServerTime: s.now().UTC(),
	}
	if err := s.bus.Publish(ctx, bus.TopicPresence, ev); err != nil {
		s.logger.Warn("publish presence.changed failed", "asset", st.Identity.String(), "err", err)
		return
	}
	observability.EventsPublished.WithLabelValues(string(bus.EventPresenceChanged)).Inc()
	observability.PresenceTransitions.WithLabelValues(string(st.Status)).Inc()
}
