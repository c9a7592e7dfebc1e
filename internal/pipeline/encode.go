package pipeline

import (
	"encoding/json"
	"time"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

const (
	alertsChannel = "alerts"
	alertsStream  = "alerts:stream"
)

// alertEvent is the JSON shape published to the alert bus for external
// consumers.
type alertEvent struct {
	ID            string  `json:"id"`
	Address       string  `json:"address"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Source        string  `json:"source"`
	Tier          string  `json:"tier"`
	AgeHours      float64 `json:"age_hours"`
	PriceChange5m float64 `json:"price_change_5m"`
	Price         float64 `json:"price"`
	MarketCap     float64 `json:"market_cap"`
	Volume5m      float64 `json:"volume_5m"`
	LiquidityUSD  float64 `json:"liquidity_usd"`
	Timestamp     string  `json:"timestamp"`
}

func encodeAlert(alert domain.Alert) ([]byte, error) {
	return json.Marshal(alertEvent{
		ID:            alert.ID,
		Address:       alert.Address,
		Symbol:        alert.Symbol,
		Name:          alert.Name,
		Source:        string(alert.Source),
		Tier:          string(alert.Tier),
		AgeHours:      alert.AgeHours,
		PriceChange5m: alert.PriceChange5m,
		Price:         alert.Price,
		MarketCap:     alert.MarketCap,
		Volume5m:      alert.Volume5m,
		LiquidityUSD:  alert.LiquidityUSD,
		Timestamp:     alert.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
