package market

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

var testBase = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRecord builds a record that passes every hard gate under the default
// settings: verified source, mid-range market cap, healthy liquidity.
func testRecord(addr string, ts time.Time, price float64) domain.TokenRecord {
	return domain.TokenRecord{
		Address:      addr,
		Symbol:       "TST",
		Name:         "Test Token",
		Price:        price,
		MarketCap:    50_000,
		Volume5m:     50,
		LiquidityUSD: 5_000,
		Source:       domain.SourceRaydium,
		FetchedAt:    ts,
	}
}

func TestRecordRejectsUnverifiedSource(t *testing.T) {
	store := NewSnapshotStore(10)

	rec := testRecord("addr1", testBase, 1.0)
	rec.Source = domain.SourceUnknown

	err := store.Record(rec)
	require.ErrorIs(t, err, domain.ErrUnverifiedSource)
	assert.Equal(t, 0, store.Tracked())
}

func TestRecordCapsSeriesAtCapacity(t *testing.T) {
	const capacity = 5
	store := NewSnapshotStore(capacity)
	store.now = func() time.Time { return testBase }

	for i := 0; i < capacity+3; i++ {
		ts := testBase.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Record(testRecord("addr1", ts, 1.0+float64(i))))
	}

	require.Equal(t, capacity, store.SnapshotCount("addr1"))

	// The oldest three were evicted; the survivor series starts at the
	// fourth observation.
	store.now = func() time.Time { return testBase.Add(10 * time.Minute) }
	window := store.Window("addr1", 60)
	require.Len(t, window, capacity)
	assert.Equal(t, testBase.Add(3*time.Minute), window[0].Timestamp)
	assert.Equal(t, testBase.Add(7*time.Minute), window[len(window)-1].Timestamp)
}

func TestRecordDropsOutOfOrderSnapshot(t *testing.T) {
	store := NewSnapshotStore(10)

	require.NoError(t, store.Record(testRecord("addr1", testBase.Add(10*time.Minute), 1.0)))
	require.NoError(t, store.Record(testRecord("addr1", testBase.Add(5*time.Minute), 2.0)))

	assert.Equal(t, 1, store.SnapshotCount("addr1"))
}

func TestWindowBoundsByObservationTime(t *testing.T) {
	store := NewSnapshotStore(10)
	store.now = func() time.Time { return testBase.Add(2 * time.Hour) }

	require.NoError(t, store.Record(testRecord("addr1", testBase, 1.0)))
	require.NoError(t, store.Record(testRecord("addr1", testBase.Add(90*time.Minute), 1.1)))
	require.NoError(t, store.Record(testRecord("addr1", testBase.Add(110*time.Minute), 1.2)))

	window := store.Window("addr1", 60)
	require.Len(t, window, 2)
	assert.Equal(t, testBase.Add(90*time.Minute), window[0].Timestamp)

	assert.Empty(t, store.Window("unknown", 60))
}

func TestTryMarkAlertCooldown(t *testing.T) {
	store := NewSnapshotStore(10)
	require.NoError(t, store.Record(testRecord("addr1", testBase, 1.0)))

	cooldown := 30 * time.Minute

	// First fire arms the cooldown.
	require.True(t, store.TryMarkAlert("addr1", domain.Tier25, testBase, cooldown))

	// Inside the window the tier stays suppressed.
	assert.False(t, store.TryMarkAlert("addr1", domain.Tier25, testBase.Add(10*time.Minute), cooldown))
	assert.False(t, store.TryMarkAlert("addr1", domain.Tier25, testBase.Add(29*time.Minute), cooldown))

	// The other tier has its own independent window.
	assert.True(t, store.TryMarkAlert("addr1", domain.Tier50, testBase.Add(10*time.Minute), cooldown))

	// Once the full cooldown has elapsed the tier re-arms.
	assert.True(t, store.TryMarkAlert("addr1", domain.Tier25, testBase.Add(30*time.Minute), cooldown))

	last, ok := store.LastAlert("addr1", domain.Tier25)
	require.True(t, ok)
	assert.Equal(t, testBase.Add(30*time.Minute), last)
}

func TestTryMarkAlertUnknownToken(t *testing.T) {
	store := NewSnapshotStore(10)
	assert.False(t, store.TryMarkAlert("ghost", domain.Tier25, testBase, time.Minute))
}

func TestEvictStale(t *testing.T) {
	store := NewSnapshotStore(10)
	store.now = func() time.Time { return testBase }

	// Activity 48h in the past.
	idle := testRecord("idle", testBase.Add(-48*time.Hour), 1.0)
	require.NoError(t, store.Record(idle))

	// Never showed activity; staleness is measured from first-seen.
	quiet := testRecord("quiet", testBase.Add(-48*time.Hour), 1.0)
	quiet.Volume5m = 0
	quiet.PriceChange5m = 0
	require.NoError(t, store.Record(quiet))

	// Recent activity.
	fresh := testRecord("fresh", testBase.Add(-time.Hour), 1.0)
	require.NoError(t, store.Record(fresh))

	// First-seen stamps above were taken at testBase; age the quiet token by
	// moving the clock forward before evicting.
	store.now = func() time.Time { return testBase.Add(25 * time.Hour) }
	require.NoError(t, store.Record(testRecord("fresh", testBase.Add(25*time.Hour), 1.0)))

	evicted := store.EvictStale(24 * time.Hour)
	require.Len(t, evicted, 2)

	got := map[string]domain.EvictedAsset{}
	for _, e := range evicted {
		got[e.Address] = e
	}
	require.Contains(t, got, "idle")
	require.Contains(t, got, "quiet")

	assert.Equal(t, domain.SourceRaydium, got["idle"].Source)
	assert.NotEmpty(t, got["idle"].Snapshots)
	assert.True(t, got["quiet"].LastActiveAt.IsZero())

	assert.Equal(t, 1, store.Tracked())
	assert.Equal(t, 2, store.SnapshotCount("fresh"))
}
