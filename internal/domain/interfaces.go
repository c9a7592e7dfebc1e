package domain

import (
	"context"
	"io"
	"time"
)

// MarketDataProvider is the outbound boundary to the market-data API. Both
// methods return records already normalized into the strict TokenRecord
// shape; malformed provider records are dropped at the boundary, never
// propagated.
type MarketDataProvider interface {
	// Tokens performs a bulk lookup for the given addresses. The provider
	// bounds the batch size; callers must chunk accordingly.
	Tokens(ctx context.Context, addresses []string) ([]TokenRecord, error)
	// Search performs a keyword search against the provider's index.
	Search(ctx context.Context, query string) ([]TokenRecord, error)
}

// AlertStore persists alert history.
type AlertStore interface {
	Insert(ctx context.Context, alert Alert) error
	ListRecent(ctx context.Context, limit int) ([]Alert, error)
}

// SignalBus fans alerts out to external consumers over a message channel.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// EvictedAsset is the terminal record of one tracked asset removed by the
// cleanup cycle, handed to the archiver before the state is discarded.
type EvictedAsset struct {
	Address      string
	Source       Source
	CreatedAt    time.Time
	FirstSeenAt  time.Time
	LastActiveAt time.Time
	Snapshots    []Snapshot
}
