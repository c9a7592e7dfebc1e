package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
	"github.com/lkozlowski/tokensentry/internal/market"
	"github.com/lkozlowski/tokensentry/internal/ratelimit"
	"github.com/lkozlowski/tokensentry/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProvider struct {
	mu          sync.Mutex
	records     []domain.TokenRecord
	searchRecs  map[string][]domain.TokenRecord
	err         error
	tokensCalls int
}

func (p *stubProvider) Tokens(_ context.Context, addresses []string) ([]domain.TokenRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokensCalls++
	if p.err != nil {
		return nil, p.err
	}
	want := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		want[a] = struct{}{}
	}
	var out []domain.TokenRecord
	for _, rec := range p.records {
		if _, ok := want[rec.Address]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *stubProvider) Search(_ context.Context, query string) ([]domain.TokenRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.searchRecs[query], nil
}

type stubSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (s *stubSink) Deliver(_ context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return s.err
}

type stubArchiver struct {
	batches [][]domain.EvictedAsset
}

func (a *stubArchiver) ArchiveEvicted(_ context.Context, assets []domain.EvictedAsset) error {
	a.batches = append(a.batches, assets)
	return nil
}

type stubBroadcaster struct {
	alerts []domain.Alert
}

func (b *stubBroadcaster) Broadcast(alert domain.Alert) {
	b.alerts = append(b.alerts, alert)
}

type orchFixture struct {
	provider *stubProvider
	sink     *stubSink
	store    *market.SnapshotStore
	universe *market.UniverseManager
	runtime  *config.Runtime
	orch     *Orchestrator
	opts     *Options
}

func newOrchFixture(t *testing.T, provider *stubProvider) *orchFixture {
	t.Helper()

	cfg := config.Defaults()
	rt := config.NewRuntime(&cfg)
	logger := testLogger()

	store := market.NewSnapshotStore(cfg.Monitor.SnapshotCapacity)
	classifier := market.DormancyClassifier{
		VolumeCeilingUSD:       cfg.Dormancy.VolumeCeilingUSD,
		VolatilityThresholdPct: cfg.Dormancy.VolatilityThresholdPct,
	}
	detector := market.NewSpikeDetector(store, classifier, rt, cfg.Dormancy.BaselineWindowMinutes, logger)
	universe := market.NewUniverseManager(provider, rt, []string{"raydium"}, logger)
	sink := &stubSink{}

	opts := Options{
		Universe: universe,
		Store:    store,
		Detector: detector,
		Provider: provider,
		Limiter:  ratelimit.New(1000, time.Minute),
		Sink:     sink,
		Runtime:  rt,

		PollingInterval:   time.Minute,
		DiscoveryInterval: time.Hour,
		CleanupInterval:   6 * time.Hour,
		BatchSize:         cfg.Provider.BatchSize,
		InterAlertDelay:   0,
		MaxIdle:           24 * time.Hour,
		Retry:             retry.Options{MaxAttempts: 2, BaseDelay: time.Millisecond},

		Logger: logger,
	}

	f := &orchFixture{
		provider: provider,
		sink:     sink,
		store:    store,
		universe: universe,
		runtime:  rt,
	}
	f.opts = &opts
	f.orch = New(opts)
	return f
}

// rebuild recreates the orchestrator after the test mutated opts.
func (f *orchFixture) rebuild() {
	f.orch = New(*f.opts)
}

func monitoredRecord(addr string, ts time.Time, price float64) domain.TokenRecord {
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

func seedDormantHistory(t *testing.T, store *market.SnapshotStore, addr string) {
	t.Helper()
	now := time.Now()
	for _, offset := range []time.Duration{-30, -20, -10} {
		require.NoError(t, store.Record(monitoredRecord(addr, now.Add(offset*time.Minute), 1.0)))
	}
}

func TestMonitorCycleFiresAndRecords(t *testing.T) {
	spiking := monitoredRecord("addr-1", time.Now(), 1.3)
	spiking.PriceChange5m = 30

	provider := &stubProvider{records: []domain.TokenRecord{spiking}}
	f := newOrchFixture(t, provider)

	seedDormantHistory(t, f.store, "addr-1")
	f.universe.Add("addr-1")

	require.NoError(t, f.orch.monitorCycle(context.Background()))

	require.Len(t, f.sink.alerts, 1)
	assert.Equal(t, "addr-1", f.sink.alerts[0].Address)
	assert.Equal(t, domain.Tier25, f.sink.alerts[0].Tier)

	// The cycle's snapshot landed after evaluation.
	assert.Equal(t, 4, f.store.SnapshotCount("addr-1"))

	// The spike snapshot broke dormancy and the tier is inside its
	// cooldown; a second cycle stays silent.
	require.NoError(t, f.orch.monitorCycle(context.Background()))
	assert.Len(t, f.sink.alerts, 1)
}

func TestMonitorCyclePausedSkips(t *testing.T) {
	provider := &stubProvider{}
	f := newOrchFixture(t, provider)
	f.universe.Add("addr-1")

	f.runtime.SetPaused(true)
	require.NoError(t, f.orch.monitorCycle(context.Background()))
	assert.Equal(t, 0, provider.tokensCalls)

	f.runtime.SetPaused(false)
	require.NoError(t, f.orch.monitorCycle(context.Background()))
	assert.Equal(t, 1, provider.tokensCalls)
}

func TestMonitorCycleEmptyUniverse(t *testing.T) {
	provider := &stubProvider{}
	f := newOrchFixture(t, provider)

	require.NoError(t, f.orch.monitorCycle(context.Background()))
	assert.Equal(t, 0, provider.tokensCalls)
}

func TestMonitorCycleBatchFailureIsSkipped(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	f := newOrchFixture(t, provider)
	f.universe.Add("addr-1")

	// Exhausted retries skip the batch without failing the cycle.
	require.NoError(t, f.orch.monitorCycle(context.Background()))
	assert.Empty(t, f.sink.alerts)
	assert.Equal(t, 2, provider.tokensCalls)
}

func TestMonitorCycleSinkFailureDoesNotAbort(t *testing.T) {
	spiking := monitoredRecord("addr-1", time.Now(), 1.3)
	spiking.PriceChange5m = 30

	provider := &stubProvider{records: []domain.TokenRecord{spiking}}
	f := newOrchFixture(t, provider)
	f.sink.err = errors.New("channel rejected message")

	seedDormantHistory(t, f.store, "addr-1")
	f.universe.Add("addr-1")

	broadcaster := &stubBroadcaster{}
	f.opts.Broadcaster = broadcaster
	f.rebuild()

	require.NoError(t, f.orch.monitorCycle(context.Background()))

	// Delivery failed but the alert still reached the other sinks.
	require.Len(t, f.sink.alerts, 1)
	require.Len(t, broadcaster.alerts, 1)
	assert.Equal(t, f.sink.alerts[0].ID, broadcaster.alerts[0].ID)
}

func TestDiscoveryCycleAddsAndRevalidates(t *testing.T) {
	candidate := monitoredRecord("good", time.Now(), 1.0)

	provider := &stubProvider{
		records:    []domain.TokenRecord{candidate},
		searchRecs: map[string][]domain.TokenRecord{"raydium": {candidate}},
	}
	f := newOrchFixture(t, provider)

	// A member the provider no longer returns gets revalidated away.
	f.universe.Add("vanished")

	require.NoError(t, f.orch.discoveryCycle(context.Background()))

	assert.True(t, f.universe.Contains("good"))
	assert.False(t, f.universe.Contains("vanished"))
	assert.Equal(t, 1, f.universe.Count())
}

func TestCleanupCycleEvictsAndArchives(t *testing.T) {
	provider := &stubProvider{}
	f := newOrchFixture(t, provider)

	archiver := &stubArchiver{}
	f.opts.Archiver = archiver
	f.rebuild()

	// Last activity far beyond the idle horizon.
	old := monitoredRecord("stale", time.Now().Add(-48*time.Hour), 1.0)
	require.NoError(t, f.store.Record(old))

	fresh := monitoredRecord("fresh", time.Now().Add(-time.Hour), 1.0)
	require.NoError(t, f.store.Record(fresh))

	require.NoError(t, f.orch.cleanupCycle(context.Background()))

	assert.Equal(t, 1, f.store.Tracked())
	require.Len(t, archiver.batches, 1)
	require.Len(t, archiver.batches[0], 1)
	assert.Equal(t, "stale", archiver.batches[0][0].Address)

	// Nothing stale, nothing archived.
	require.NoError(t, f.orch.cleanupCycle(context.Background()))
	assert.Len(t, archiver.batches, 1)
}

func TestRunStopsOnCancellation(t *testing.T) {
	provider := &stubProvider{}
	f := newOrchFixture(t, provider)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after cancellation")
	}
}
