package dexscreener

import (
	"strconv"
	"strings"
	"time"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// pairsResponse is the envelope returned by both the bulk token lookup and
// the keyword search endpoints.
type pairsResponse struct {
	Pairs []APIPair `json:"pairs"`
}

// APIPair is the raw provider shape for one trading pair. Numeric fields
// frequently arrive partially populated; normalization defaults them to
// zero. PriceUSD is a decimal rendered as text.
type APIPair struct {
	ChainID       string             `json:"chainId"`
	DexID         string             `json:"dexId"`
	PairAddress   string             `json:"pairAddress"`
	BaseToken     APIToken           `json:"baseToken"`
	PriceUSD      string             `json:"priceUsd"`
	FDV           float64            `json:"fdv"`
	Volume        map[string]float64 `json:"volume"`      // keyed by window label: "5m", "24h"
	PriceChange   map[string]float64 `json:"priceChange"` // keyed by window label: "5m", "1h", "24h"
	Liquidity     APILiquidity       `json:"liquidity"`
	PairCreatedAt int64              `json:"pairCreatedAt"` // unix ms; 0 when unknown
}

// APIToken is the base-token descriptor inside a pair.
type APIToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// APILiquidity carries the pair's pooled liquidity in USD.
type APILiquidity struct {
	USD float64 `json:"usd"`
}

// ToTokenRecord validates and normalizes one raw pair into the strict
// internal record shape. A missing address or an unparsable price makes the
// record invalid; the caller drops it without failing the batch.
func (p *APIPair) ToTokenRecord(fetchedAt time.Time) (domain.TokenRecord, bool) {
	address := strings.TrimSpace(p.BaseToken.Address)
	if address == "" {
		return domain.TokenRecord{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUSD), 64)
	if err != nil {
		return domain.TokenRecord{}, false
	}

	rec := domain.TokenRecord{
		Address:        address,
		Symbol:         p.BaseToken.Symbol,
		Name:           p.BaseToken.Name,
		Price:          price,
		MarketCap:      p.FDV,
		Volume5m:       p.Volume["5m"],
		Volume24h:      p.Volume["24h"],
		LiquidityUSD:   p.Liquidity.USD,
		PriceChange5m:  p.PriceChange["5m"],
		PriceChange1h:  p.PriceChange["1h"],
		PriceChange24h: p.PriceChange["24h"],
		Venue:          p.DexID,
		Source:         domain.ClassifySource(p.DexID),
		FetchedAt:      fetchedAt,
	}

	// A zero creation timestamp disables the age filter for this record
	// rather than rejecting it.
	if p.PairCreatedAt > 0 {
		created := time.UnixMilli(p.PairCreatedAt).UTC()
		rec.PairCreatedAt = &created
	}

	return rec, true
}
