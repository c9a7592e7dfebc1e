package notify

import (
	"fmt"
	"strings"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// Render formats an alert into a channel-agnostic title and message body.
// Channel-specific markup (bold etc.) is applied by each sender.
func Render(alert domain.Alert) (title, message string) {
	emoji := "🚨"
	if alert.Tier == domain.Tier50 {
		emoji = "🔥"
	}
	title = fmt.Sprintf("%s %s spike +%.1f%% (%s)",
		emoji, alert.Symbol, alert.PriceChange5m, tierLabel(alert.Tier))

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", alert.Name, alert.Symbol)
	fmt.Fprintf(&b, "Address: %s\n", alert.Address)
	fmt.Fprintf(&b, "Source: %s\n", alert.Source)
	fmt.Fprintf(&b, "Price: $%s\n", formatPrice(alert.Price))
	fmt.Fprintf(&b, "5m change: %+.1f%%\n", alert.PriceChange5m)
	fmt.Fprintf(&b, "Market cap: $%.0f\n", alert.MarketCap)
	fmt.Fprintf(&b, "Liquidity: $%.0f\n", alert.LiquidityUSD)
	fmt.Fprintf(&b, "5m volume: $%.0f\n", alert.Volume5m)
	if alert.AgeHours >= 0 {
		fmt.Fprintf(&b, "Age: %.1fh\n", alert.AgeHours)
	}
	fmt.Fprintf(&b, "Time: %s", alert.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))

	return title, b.String()
}

func tierLabel(t domain.Tier) string {
	switch t {
	case domain.Tier50:
		return "tier 50"
	case domain.Tier25:
		return "tier 25"
	default:
		return string(t)
	}
}

// formatPrice keeps enough precision for sub-cent token prices without
// printing scientific notation.
func formatPrice(p float64) string {
	switch {
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	case p >= 0.001:
		return fmt.Sprintf("%.6f", p)
	default:
		return fmt.Sprintf("%.10f", p)
	}
}
