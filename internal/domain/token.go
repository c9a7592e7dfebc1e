package domain

import (
	"strings"
	"time"
)

// Source identifies the trading venue a token was verified against. It is a
// closed enum: tokens whose venue hint resolves to SourceUnknown are never
// stored, tracked, or alerted on.
type Source string

const (
	SourceUnknown Source = ""
	SourceRaydium Source = "raydium"
	SourcePumpFun Source = "pumpfun"
)

// Verified reports whether the source is one of the permitted origins.
func (s Source) Verified() bool {
	return s == SourceRaydium || s == SourcePumpFun
}

// ClassifySource maps a provider venue hint (e.g. a DEX identifier string)
// onto the closed Source enum. Unrecognized hints yield SourceUnknown.
func ClassifySource(venue string) Source {
	v := strings.ToLower(strings.TrimSpace(venue))
	switch {
	case strings.Contains(v, "raydium"):
		return SourceRaydium
	case strings.Contains(v, "pump"):
		return SourcePumpFun
	default:
		return SourceUnknown
	}
}

// Snapshot is a single point-in-time market observation for one token.
// Snapshots are immutable once appended to an asset's series.
type Snapshot struct {
	Timestamp      time.Time
	Price          float64
	MarketCap      float64
	Volume5m       float64
	Volume24h      float64
	LiquidityUSD   float64
	PriceChange5m  float64
	PriceChange24h float64
}

// TokenRecord is the strict internal shape of one provider record after
// boundary normalization. Missing optional numeric fields are zero; a nil
// PairCreatedAt means the creation time is unknown and age filtering is
// skipped for this record.
type TokenRecord struct {
	Address        string
	Symbol         string
	Name           string
	Price          float64
	MarketCap      float64
	Volume5m       float64
	Volume24h      float64
	LiquidityUSD   float64
	PriceChange5m  float64
	PriceChange1h  float64
	PriceChange24h float64
	PairCreatedAt  *time.Time
	Venue          string
	Source         Source
	FetchedAt      time.Time
}

// AgeHours returns the token age in hours at the given instant, or -1 when
// the pair creation time is unknown.
func (r TokenRecord) AgeHours(now time.Time) float64 {
	if r.PairCreatedAt == nil {
		return -1
	}
	return now.Sub(*r.PairCreatedAt).Hours()
}

// Snapshot converts the record into the immutable Snapshot appended to the
// token's rolling series.
func (r TokenRecord) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:      r.FetchedAt,
		Price:          r.Price,
		MarketCap:      r.MarketCap,
		Volume5m:       r.Volume5m,
		Volume24h:      r.Volume24h,
		LiquidityUSD:   r.LiquidityUSD,
		PriceChange5m:  r.PriceChange5m,
		PriceChange24h: r.PriceChange24h,
	}
}
