package tracker

import (
	"hash/fnv"
	"sync"
	"time"
)

const storeShards = 64

// AppliedResult reports the outcome of an upsert. Previous is nil when the
// asset was not tracked before.
type AppliedResult struct {
	Applied  bool
	Previous *AssetState
}

// Store is the authoritative mapping of asset identity to latest known
// state. Entries are owned exclusively by the store; callers only ever see
// copies.
//
// Mutations for one identity are linearized by the identity's shard lock;
// identities on different shards never contend. A report whose timestamp is
// older than the stored timestamp minus the lateness window is discarded so
// reordering beyond the window can never regress state freshness.
type Store struct {
	latenessWindow time.Duration
	now            func() time.Time
	shards         [storeShards]storeShard
}

type storeShard struct {
	mu      sync.RWMutex
	entries map[AssetIdentity]*AssetState
}

// NewStore creates a store with the given lateness window. A nil now
// selects time.Now.
func NewStore(latenessWindow time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := &Store{latenessWindow: latenessWindow, now: now}
	for i := range s.shards {
		s.shards[i].entries = make(map[AssetIdentity]*AssetState)
	}
	return s
}

func (s *Store) shardFor(id AssetIdentity) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id.Type))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(id.ID))
	return &s.shards[h.Sum32()%storeShards]
}

// Upsert applies the report unless its timestamp falls outside the lateness
// window of the stored one. On apply the status resets to active and
// LastUpdatedAt is set to receipt time. The decision and the write are
// atomic for the identity.
func (s *Store) Upsert(id AssetIdentity, report LocationReport) AppliedResult {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	existing, ok := sh.entries[id]
	if !ok {
		sh.entries[id] = &AssetState{
			Identity:      id,
			LastReport:    report,
			LastUpdatedAt: s.now(),
			Status:        StatusActive,
		}
		return AppliedResult{Applied: true}
	}

	prev := *existing
	cutoff := existing.LastReport.Timestamp.Add(-s.latenessWindow)
	if report.Timestamp.Before(cutoff) {
		return AppliedResult{Applied: false, Previous: &prev}
	}

	existing.LastReport = report
	existing.LastUpdatedAt = s.now()
	existing.Status = StatusActive
	return AppliedResult{Applied: true, Previous: &prev}
}

// Get returns a copy of the asset's state.
func (s *Store) Get(id AssetIdentity) (AssetState, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.entries[id]
	if !ok {
		return AssetState{}, false
	}
	return *st, true
}

// MarkStatus sets the asset's presence status, with the same per-identity
// atomicity as Upsert. It reports whether the asset exists and the status
// actually changed.
func (s *Store) MarkStatus(id AssetIdentity, status Status) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.entries[id]
	if !ok || st.Status == status {
		return false
	}
	st.Status = status
	return true
}

// List returns a point-in-time snapshot of every tracked state. All shard
// read locks are held while copying so the view is consistent.
func (s *Store) List() []AssetState {
	return s.snapshot(func(AssetState) bool { return true })
}

// ListByType returns a point-in-time snapshot of every state of the given
// asset type.
func (s *Store) ListByType(t AssetType) []AssetState {
	return s.snapshot(func(st AssetState) bool { return st.Identity.Type == t })
}

func (s *Store) snapshot(keep func(AssetState) bool) []AssetState {
	for i := range s.shards {
		s.shards[i].mu.RLock()
	}
	defer func() {
		for i := range s.shards {
			s.shards[i].mu.RUnlock()
		}
	}()
	var out []AssetState
	for i := range s.shards {
		for _, st := range s.shards[i].entries {
			if keep(*st) {
				out = append(out, *st)
			}
		}
	}
	return out
}

// Len returns the number of tracked assets.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].entries)
		s.shards[i].mu.RUnlock()
	}
	return n
}

// TransitionIdle moves every asset currently in `from` whose LastUpdatedAt
// is older than idleFor into `to`, and returns copies of the transitioned
// states. Each transition is atomic with respect to Upsert/MarkStatus on
// the same identity, so a sweep can never fire twice for the same state
// without an intervening change.
func (s *Store) TransitionIdle(from, to Status, idleFor time.Duration) []AssetState {
	deadline := s.now().Add(-idleFor)
	var out []AssetState
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, st := range sh.entries {
			if st.Status == from && st.LastUpdatedAt.Before(deadline) {
				st.Status = to
				out = append(out, *st)
			}
		}
		sh.mu.Unlock()
	}
	return out
}
