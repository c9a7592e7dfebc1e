package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection
// pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertSelectCols = `id, address, symbol, name, source, tier, age_hours,
	price_change_5m, price, market_cap, volume_5m, liquidity_usd, created_at`

// Insert stores one fired alert.
func (s *AlertStore) Insert(ctx context.Context, alert domain.Alert) error {
	const query = `
		INSERT INTO alerts (
			id, address, symbol, name, source, tier, age_hours,
			price_change_5m, price, market_cap, volume_5m, liquidity_usd, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		alert.ID, alert.Address, alert.Symbol, alert.Name,
		string(alert.Source), string(alert.Tier), alert.AgeHours,
		alert.PriceChange5m, alert.Price, alert.MarketCap,
		alert.Volume5m, alert.LiquidityUSD, alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// ListRecent returns the most recent alerts ordered by creation time.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	query := `SELECT ` + alertSelectCols + ` FROM alerts ORDER BY created_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var source, tier string

		if err := rows.Scan(
			&a.ID, &a.Address, &a.Symbol, &a.Name, &source, &tier, &a.AgeHours,
			&a.PriceChange5m, &a.Price, &a.MarketCap,
			&a.Volume5m, &a.LiquidityUSD, &a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		a.Source = domain.Source(source)
		a.Tier = domain.Tier(tier)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate alerts: %w", err)
	}

	return alerts, nil
}

// Compile-time interface check.
var _ domain.AlertStore = (*AlertStore)(nil)
