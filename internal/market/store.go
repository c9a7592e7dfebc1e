// Package market implements the state-and-detection engine: per-token
// rolling snapshot storage, dormancy classification, tiered spike detection
// with per-tier cooldowns, and universe membership management.
package market

import (
	"math"
	"sync"
	"time"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// activityChangeThresholdPct is the minimum absolute 5-minute price change
// that counts as "showed activity" for the staleness clock.
const activityChangeThresholdPct = 1.0

// assetState is the per-token mutable record. It is owned exclusively by
// SnapshotStore and never escapes the store's lock.
type assetState struct {
	address      string
	source       domain.Source
	createdAt    time.Time // age anchor: pair creation when known, else first snapshot
	firstSeenAt  time.Time
	snapshots    []domain.Snapshot
	lastAlertAt  map[domain.Tier]time.Time
	lastActiveAt time.Time
}

// SnapshotStore owns the token -> state mapping. All access goes through its
// exported operations; per-token updates are atomic with respect to that
// token's own state only.
type SnapshotStore struct {
	mu       sync.RWMutex
	assets   map[string]*assetState
	capacity int
	now      func() time.Time
}

// NewSnapshotStore creates a store whose per-token series is bounded at
// capacity snapshots (oldest evicted first).
func NewSnapshotStore(capacity int) *SnapshotStore {
	return &SnapshotStore{
		assets:   make(map[string]*assetState),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends the record's snapshot to the token's series, creating the
// state lazily on first observation. A token with an unverified source is
// never created. Out-of-order snapshots (older than the newest held) are
// dropped to keep the series non-decreasing by timestamp.
func (s *SnapshotStore) Record(rec domain.TokenRecord) error {
	snap := rec.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.assets[rec.Address]
	if !ok {
		if !rec.Source.Verified() {
			return domain.ErrUnverifiedSource
		}
		createdAt := snap.Timestamp
		if rec.PairCreatedAt != nil {
			createdAt = *rec.PairCreatedAt
		}
		st = &assetState{
			address:     rec.Address,
			source:      rec.Source,
			createdAt:   createdAt,
			firstSeenAt: s.now(),
			lastAlertAt: make(map[domain.Tier]time.Time),
		}
		s.assets[rec.Address] = st
	} else if st.source == domain.SourceUnknown && rec.Source.Verified() {
		// Backfill a source that was unset; once set it is immutable.
		st.source = rec.Source
	}

	if n := len(st.snapshots); n > 0 && snap.Timestamp.Before(st.snapshots[n-1].Timestamp) {
		return nil
	}

	st.snapshots = append(st.snapshots, snap)
	if len(st.snapshots) > s.capacity {
		st.snapshots = append(st.snapshots[:0], st.snapshots[1:]...)
	}

	if snap.Volume5m > 0 || math.Abs(snap.PriceChange5m) > activityChangeThresholdPct {
		st.lastActiveAt = snap.Timestamp
	}

	return nil
}

// Window returns the contiguous suffix of snapshots observed within the last
// `minutes` minutes. Unknown tokens yield an empty slice. The returned slice
// is a copy and safe to retain.
func (s *SnapshotStore) Window(address string, minutes int) []domain.Snapshot {
	cutoff := s.now().Add(-time.Duration(minutes) * time.Minute)

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.assets[address]
	if !ok {
		return nil
	}

	// Snapshots are ordered; find the first inside the window.
	i := len(st.snapshots)
	for i > 0 && !st.snapshots[i-1].Timestamp.Before(cutoff) {
		i--
	}
	out := make([]domain.Snapshot, len(st.snapshots)-i)
	copy(out, st.snapshots[i:])
	return out
}

// TryMarkAlert atomically checks that the (address, tier) pair is armed --
// never alerted, or past the cooldown -- and stamps lastAlertAt if so. The
// stamp happens before any delivery side effect, which is what guarantees
// at most one alert per tier per cooldown window even when evaluations for
// the same token overlap.
func (s *SnapshotStore) TryMarkAlert(address string, tier domain.Tier, now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.assets[address]
	if !ok {
		return false
	}
	if last, alerted := st.lastAlertAt[tier]; alerted {
		if now.Sub(last) < cooldown {
			return false
		}
		if now.Before(last) {
			// Stamps only move forward.
			return false
		}
	}
	st.lastAlertAt[tier] = now
	return true
}

// LastAlert reports the most recent alert stamp for the (address, tier)
// pair.
func (s *SnapshotStore) LastAlert(address string, tier domain.Tier) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.assets[address]
	if !ok {
		return time.Time{}, false
	}
	t, ok := st.lastAlertAt[tier]
	return t, ok
}

// Tracked returns the number of tokens with live state.
func (s *SnapshotStore) Tracked() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// SnapshotCount returns the series length for one token.
func (s *SnapshotStore) SnapshotCount(address string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.assets[address]; ok {
		return len(st.snapshots)
	}
	return 0
}

// EvictStale deletes every state whose lastActiveAt is older than maxIdle
// and returns the evicted records for archival. Tokens that never showed
// activity are measured from their first-seen time instead.
func (s *SnapshotStore) EvictStale(maxIdle time.Duration) []domain.EvictedAsset {
	horizon := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []domain.EvictedAsset
	for addr, st := range s.assets {
		anchor := st.lastActiveAt
		if anchor.IsZero() {
			anchor = st.firstSeenAt
		}
		if anchor.After(horizon) {
			continue
		}
		evicted = append(evicted, domain.EvictedAsset{
			Address:      st.address,
			Source:       st.source,
			CreatedAt:    st.createdAt,
			FirstSeenAt:  st.firstSeenAt,
			LastActiveAt: st.lastActiveAt,
			Snapshots:    st.snapshots,
		})
		delete(s.assets, addr)
	}
	return evicted
}
