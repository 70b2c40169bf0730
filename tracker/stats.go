package tracker

import (
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
)

// RateCounter counts occurrences in per-second buckets over a fixed rolling
// window.
type RateCounter struct {
	mu      sync.Mutex
	buckets []uint64
	lastSec int64
	now     func() time.Time
}

// NewRateCounter creates a counter with the given window. A nil now selects
// time.Now.
func NewRateCounter(window time.Duration, now func() time.Time) *RateCounter {
	if now == nil {
		now = time.Now
	}
	n := int(window / time.Second)
	if n < 1 {
		n = 1
	}
	return &RateCounter{
		buckets: make([]uint64, n),
		now:     now,
	}
}

// Incr records one occurrence now.
func (r *RateCounter) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec := r.now().Unix()
	r.advance(sec)
	r.buckets[sec%int64(len(r.buckets))]++
}

// PerSecond returns the mean rate over the window.
func (r *RateCounter) PerSecond() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(r.now().Unix())
	var total uint64
	for _, b := range r.buckets {
		total += b
	}
	return float64(total) / float64(len(r.buckets))
}

// advance zeroes buckets the clock has passed since the last observation.
func (r *RateCounter) advance(sec int64) {
	if r.lastSec == 0 {
		r.lastSec = sec
		return
	}
	gap := sec - r.lastSec
	if gap <= 0 {
		return
	}
	if gap > int64(len(r.buckets)) {
		gap = int64(len(r.buckets))
	}
	for i := int64(1); i <= gap; i++ {
		r.buckets[(r.lastSec+i)%int64(len(r.buckets))] = 0
	}
	r.lastSec = sec
}

// CounterSource feeds an externally owned counter into a stats snapshot.
type CounterSource func() uint64

// Aggregator derives TrackingStats on demand from the state store plus a
// rolling count of bus activity. It is read-only over tracked state.
type Aggregator struct {
	store *Store
	rate  *RateCounter
	sub   *bus.Subscription
	now   func() time.Time

	mu           sync.Mutex
	droppedFuncs []CounterSource
	staleFuncs   []CounterSource
}

// NewAggregator subscribes to all bus events and starts counting them into
// the rolling window. A nil now selects time.Now.
func NewAggregator(store *Store, b bus.Bus, window time.Duration, now func() time.Time) (*Aggregator, error) {
	if now == nil {
		now = time.Now
	}
	sub, err := b.Subscribe(bus.TopicAll)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		store: store,
		rate:  NewRateCounter(window, now),
		sub:   sub,
		now:   now,
	}
	go a.observe()
	return a, nil
}

func (a *Aggregator) observe() {
	for {
		select {
		case <-a.sub.Done():
			return
		case <-a.sub.Events():
			a.rate.Incr()
		}
	}
}

// AddDroppedSource registers a counter whose value is summed into
// TrackingStats.DroppedEvents (bus drops, transport drops).
func (a *Aggregator) AddDroppedSource(f CounterSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.droppedFuncs = append(a.droppedFuncs, f)
}

// AddStaleSource registers a counter summed into TrackingStats.StaleReports.
func (a *Aggregator) AddStaleSource(f CounterSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staleFuncs = append(a.staleFuncs, f)
}

// Close cancels the aggregator's bus subscription.
func (a *Aggregator) Close() {
	a.sub.Unsubscribe()
}

// Snapshot scans the store and computes the current stats. O(n) in asset
// count.
func (a *Aggregator) Snapshot() TrackingStats {
	stats := TrackingStats{
		PerType:         map[string]TypeStats{},
		EventsPerSecond: a.rate.PerSecond(),
		GeneratedAt:     a.now().UTC(),
	}
	for _, st := range a.store.List() {
		stats.TotalAssets++
		pt := stats.PerType[string(st.Identity.Type)]
		pt.Total++
		switch st.Status {
		case StatusActive:
			stats.ActiveCount++
			pt.Active++
		case StatusStale:
			stats.StaleCount++
			pt.Stale++
		case StatusOffline:
			stats.OfflineCount++
			pt.Offline++
		}
		stats.PerType[string(st.Identity.Type)] = pt
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.droppedFuncs {
		stats.DroppedEvents += f()
	}
	for _, f := range a.staleFuncs {
		stats.StaleReports += f()
	}
	return stats
}
