package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkozlowski/tokensentry/internal/config"
	"github.com/lkozlowski/tokensentry/internal/domain"
)

type fakeProvider struct {
	tokens    map[string]domain.TokenRecord
	search    map[string][]domain.TokenRecord
	searchErr map[string]error
	tokensErr error

	tokensCalls int
}

func (f *fakeProvider) Tokens(_ context.Context, addresses []string) ([]domain.TokenRecord, error) {
	f.tokensCalls++
	if f.tokensErr != nil {
		return nil, f.tokensErr
	}
	var out []domain.TokenRecord
	for _, addr := range addresses {
		if rec, ok := f.tokens[addr]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeProvider) Search(_ context.Context, query string) ([]domain.TokenRecord, error) {
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	return f.search[query], nil
}

func newUniverseFixture(provider *fakeProvider) (*UniverseManager, *config.Runtime) {
	cfg := config.Defaults()
	rt := config.NewRuntime(&cfg)
	u := NewUniverseManager(provider, rt, []string{"raydium", "pump"}, testLogger())
	u.now = func() time.Time { return testBase }
	return u, rt
}

func TestEligible(t *testing.T) {
	cfg := config.Defaults()
	settings := config.NewRuntime(&cfg).Current()
	old := testBase.Add(-48 * time.Hour)

	base := testRecord("addr1", testBase, 1.0)
	base.PairCreatedAt = &old
	require.True(t, Eligible(base, settings, testBase))

	cases := map[string]func(*domain.TokenRecord){
		"unverified source": func(r *domain.TokenRecord) { r.Source = domain.SourceUnknown },
		"zero market cap":   func(r *domain.TokenRecord) { r.MarketCap = 0 },
		"cap at ceiling":    func(r *domain.TokenRecord) { r.MarketCap = settings.MaxMarketCap },
		"thin liquidity":    func(r *domain.TokenRecord) { r.LiquidityUSD = settings.MinLiquidityUSD - 1 },
		"zero price":        func(r *domain.TokenRecord) { r.Price = 0 },
		"too young": func(r *domain.TokenRecord) {
			young := testBase.Add(-time.Hour)
			r.PairCreatedAt = &young
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := base
			mutate(&rec)
			assert.False(t, Eligible(rec, settings, testBase))
		})
	}

	// Unknown creation time skips the age check instead of failing it.
	noAge := base
	noAge.PairCreatedAt = nil
	assert.True(t, Eligible(noAge, settings, testBase))
}

func TestAddRemoveIdempotent(t *testing.T) {
	u, _ := newUniverseFixture(&fakeProvider{})

	assert.True(t, u.Add("addr1"))
	assert.False(t, u.Add("addr1"))
	assert.Equal(t, 1, u.Count())
	assert.True(t, u.Contains("addr1"))

	assert.True(t, u.Remove("addr1"))
	assert.False(t, u.Remove("addr1"))
	assert.Equal(t, 0, u.Count())
}

func TestDiscoverFiltersAndDeduplicates(t *testing.T) {
	old := testBase.Add(-48 * time.Hour)

	eligible := testRecord("good", testBase, 1.0)
	eligible.PairCreatedAt = &old

	tooBig := testRecord("big", testBase, 1.0)
	tooBig.PairCreatedAt = &old
	tooBig.MarketCap = 10_000_000

	provider := &fakeProvider{
		search: map[string][]domain.TokenRecord{
			"raydium": {eligible, tooBig},
		},
		searchErr: map[string]error{
			"pump": errors.New("search unavailable"),
		},
	}
	u, _ := newUniverseFixture(provider)

	added := u.Discover(context.Background())
	assert.Equal(t, []string{"good"}, added)
	assert.Equal(t, 1, u.Count())

	// A second pass finds nothing new.
	assert.Empty(t, u.Discover(context.Background()))
	assert.Equal(t, 1, u.Count())
}

func TestRevalidateKeepsEligibleToken(t *testing.T) {
	old := testBase.Add(-48 * time.Hour)
	rec := testRecord("addr1", testBase, 1.0)
	rec.PairCreatedAt = &old

	provider := &fakeProvider{tokens: map[string]domain.TokenRecord{"addr1": rec}}
	u, _ := newUniverseFixture(provider)
	u.Add("addr1")

	require.NoError(t, u.Revalidate(context.Background(), "addr1"))
	assert.True(t, u.Contains("addr1"))
}

func TestRevalidateRemovesMissingToken(t *testing.T) {
	provider := &fakeProvider{tokens: map[string]domain.TokenRecord{}}
	u, _ := newUniverseFixture(provider)
	u.Add("gone")

	require.NoError(t, u.Revalidate(context.Background(), "gone"))
	assert.False(t, u.Contains("gone"))
}

func TestRevalidateRemovesIneligibleToken(t *testing.T) {
	rec := testRecord("addr1", testBase, 1.0)
	rec.MarketCap = 10_000_000

	provider := &fakeProvider{tokens: map[string]domain.TokenRecord{"addr1": rec}}
	u, _ := newUniverseFixture(provider)
	u.Add("addr1")

	require.NoError(t, u.Revalidate(context.Background(), "addr1"))
	assert.False(t, u.Contains("addr1"))
}

func TestRevalidateFetchFailureKeepsMembership(t *testing.T) {
	provider := &fakeProvider{tokensErr: errors.New("boom")}
	u, _ := newUniverseFixture(provider)
	u.Add("addr1")

	err := u.Revalidate(context.Background(), "addr1")
	require.Error(t, err)
	assert.True(t, u.Contains("addr1"))
}
