package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
)

// UniverseManager owns the set of token addresses currently eligible for
// monitoring. Membership is independent of snapshot state: removing a token
// from the universe never deletes its recorded history (the cleanup cycle
// does that on staleness).
type UniverseManager struct {
	mu      sync.RWMutex
	members map[string]struct{}

	provider domain.MarketDataProvider
	runtime  *config.Runtime
	queries  []string
	logger   *slog.Logger
	now      func() time.Time
}

// NewUniverseManager creates a manager that discovers candidates through the
// provider's keyword search using the given per-source query hints.
func NewUniverseManager(
	provider domain.MarketDataProvider,
	runtime *config.Runtime,
	queries []string,
	logger *slog.Logger,
) *UniverseManager {
	return &UniverseManager{
		members:  make(map[string]struct{}),
		provider: provider,
		runtime:  runtime,
		queries:  queries,
		logger:   logger.With(slog.String("component", "universe")),
		now:      time.Now,
	}
}

// Eligible applies the combined membership predicate: verified source, a
// market cap strictly between zero and the ceiling, liquidity at or above
// the floor, a positive price, and sufficient age. The age check is skipped
// when the pair creation time is unknown.
func Eligible(rec domain.TokenRecord, s config.Settings, now time.Time) bool {
	if !rec.Source.Verified() {
		return false
	}
	if rec.MarketCap <= 0 || rec.MarketCap >= s.MaxMarketCap {
		return false
	}
	if rec.LiquidityUSD < s.MinLiquidityUSD {
		return false
	}
	if rec.Price <= 0 {
		return false
	}
	if rec.PairCreatedAt != nil && rec.AgeHours(now) < s.MinTokenAgeHours {
		return false
	}
	return true
}

// Discover searches the provider per configured query hint, filters the
// results through the eligibility predicate, and adds survivors to the
// universe. Adds are idempotent; the newly added addresses are returned.
// Per-query failures are logged and skipped so one bad search never aborts
// discovery.
func (u *UniverseManager) Discover(ctx context.Context) []string {
	settings := u.runtime.Current()
	now := u.now()

	var added []string
	for _, query := range u.queries {
		recs, err := u.provider.Search(ctx, query)
		if err != nil {
			u.logger.Warn("discovery search failed",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, rec := range recs {
			if !Eligible(rec, settings, now) {
				continue
			}
			if u.Add(rec.Address) {
				added = append(added, rec.Address)
			}
		}
	}

	if len(added) > 0 {
		u.logger.Info("discovered new tokens", slog.Int("count", len(added)))
	}
	return added
}

// Revalidate re-fetches one tracked token and re-applies the eligibility
// predicate, removing the token from the universe on failure. Existing
// snapshot state is left untouched.
func (u *UniverseManager) Revalidate(ctx context.Context, address string) error {
	recs, err := u.provider.Tokens(ctx, []string{address})
	if err != nil {
		return fmt.Errorf("universe: revalidate %s: %w", address, err)
	}

	var current *domain.TokenRecord
	for i := range recs {
		if recs[i].Address == address {
			current = &recs[i]
			break
		}
	}

	if current == nil || !Eligible(*current, u.runtime.Current(), u.now()) {
		if u.Remove(address) {
			u.logger.Info("token no longer eligible, removed from universe",
				slog.String("address", address),
			)
		}
	}
	return nil
}

// Add inserts an address into the universe. It reports whether the address
// was newly added; duplicate adds are no-ops.
func (u *UniverseManager) Add(address string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.members[address]; ok {
		return false
	}
	u.members[address] = struct{}{}
	return true
}

// Remove deletes an address from the universe and reports whether it was
// present.
func (u *UniverseManager) Remove(address string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.members[address]; !ok {
		return false
	}
	delete(u.members, address)
	return true
}

// Contains reports membership.
func (u *UniverseManager) Contains(address string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.members[address]
	return ok
}

// Count returns the universe cardinality.
func (u *UniverseManager) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.members)
}

// Members returns a point-in-time copy of the membership. Tokens added while
// a monitor cycle is in flight are simply picked up next cycle.
func (u *UniverseManager) Members() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, 0, len(u.members))
	for addr := range u.members {
		out = append(out, addr)
	}
	return out
}
