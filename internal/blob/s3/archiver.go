package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lkozlowski/tokensentry/internal/domain"
)

// Archiver serializes evicted asset state to JSONL and uploads it to cold
// storage. Eviction from the live store has already happened by the time
// ArchiveEvicted runs; an upload failure therefore loses only the archive
// copy, never live state.
type Archiver struct {
	writer domain.BlobWriter
	now    func() time.Time
}

// NewArchiver creates an Archiver writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{
		writer: writer,
		now:    time.Now,
	}
}

// evictedRecord is the archived JSONL row for one evicted asset.
type evictedRecord struct {
	Address      string            `json:"address"`
	Source       string            `json:"source"`
	CreatedAt    time.Time         `json:"created_at"`
	FirstSeenAt  time.Time         `json:"first_seen_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
	Snapshots    []domain.Snapshot `json:"snapshots"`
}

// ArchiveEvicted uploads the batch as one JSONL object at
// archive/evicted/YYYY-MM-DD/<unix-nanos>.jsonl.
func (a *Archiver) ArchiveEvicted(ctx context.Context, assets []domain.EvictedAsset) error {
	if len(assets) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, asset := range assets {
		row := evictedRecord{
			Address:      asset.Address,
			Source:       string(asset.Source),
			CreatedAt:    asset.CreatedAt,
			FirstSeenAt:  asset.FirstSeenAt,
			LastActiveAt: asset.LastActiveAt,
			Snapshots:    asset.Snapshots,
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("s3blob: marshal evicted %s: %w", asset.Address, err)
		}
	}

	now := a.now().UTC()
	path := fmt.Sprintf("archive/evicted/%s/%d.jsonl", now.Format("2006-01-02"), now.UnixNano())

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive evicted upload: %w", err)
	}
	return nil
}
