package market

import "github.com/lkozlowski/tokensentry/internal/domain"

// maxStepPct is the largest adjacent-snapshot price step (percent) a token
// may show and still count as dormant.
const maxStepPct = 10.0

// minDormancySnapshots is the floor below which dormancy cannot be proven.
// A cold-start token with a thin window is never treated as quiet.
const minDormancySnapshots = 3

// DormancyClassifier is a pure predicate over a baseline window of
// snapshots. It holds no state and is safe to share.
type DormancyClassifier struct {
	// VolumeCeilingUSD bounds the cumulative 5-minute volume across the
	// window.
	VolumeCeilingUSD float64
	// VolatilityThresholdPct bounds the relative first-to-last price drift
	// over the window.
	VolatilityThresholdPct float64
}

// Dormant reports whether the window shows low volume, low net drift, and
// no single outsized step. All three must hold; any violation short-circuits
// to false.
func (c DormancyClassifier) Dormant(window []domain.Snapshot) bool {
	if len(window) < minDormancySnapshots {
		return false
	}

	var volume float64
	for _, snap := range window {
		volume += snap.Volume5m
	}
	if volume >= c.VolumeCeilingUSD {
		return false
	}

	first := window[0].Price
	last := window[len(window)-1].Price
	if first <= 0 {
		return false
	}
	drift := (last - first) / first * 100
	if drift < 0 {
		drift = -drift
	}
	if drift >= c.VolatilityThresholdPct {
		return false
	}

	for i := 1; i < len(window); i++ {
		prev := window[i-1].Price
		if prev <= 0 {
			return false
		}
		step := (window[i].Price - prev) / prev * 100
		if step > maxStepPct {
			return false
		}
	}

	return true
}
