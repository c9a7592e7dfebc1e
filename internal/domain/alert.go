package domain

import "time"

// Tier is the severity level of a qualifying 5-minute price spike.
type Tier string

const (
	Tier25 Tier = "tier25"
	Tier50 Tier = "tier50"
)

// Threshold returns the minimum 5-minute price change (percent) for the tier.
func (t Tier) Threshold() float64 {
	switch t {
	case Tier50:
		return 50
	case Tier25:
		return 25
	default:
		return 0
	}
}

// Alert is emitted when a dormant token's price spikes past a tier
// threshold. It is a pure value: delivery, rendering, and persistence
// belong to collaborators.
type Alert struct {
	ID            string // UUID
	Address       string
	Symbol        string
	Name          string
	Source        Source
	Tier          Tier
	AgeHours      float64 // -1 when pair creation time is unknown
	PriceChange5m float64
	Price         float64
	MarketCap     float64
	Volume5m      float64
	LiquidityUSD  float64
	Timestamp     time.Time
}
