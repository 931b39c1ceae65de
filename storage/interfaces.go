package storage

import (
	"context"

	"festival-scraper/models"
)

// FestivalStore is the interface any festival backend must satisfy.
type FestivalStore interface {
	UpsertBatch(ctx context.Context, batch []*models.CanonicalFestival) (BatchResult, error)
}

// RunStore persists per-source run metadata.
type RunStore interface {
	SaveRun(ctx context.Context, m *models.SourceRunMetadata) error
	RecentRuns(ctx context.Context, limit int) ([]*models.SourceRunMetadata, error)
}

// RawRecordWriter is the interface for persisting unprocessed listing records.
type RawRecordWriter interface {
	WriteRaw(records []models.RawListingRecord) error
	Close() error
}

// BatchResult counts the outcome of one or more upserts.
type BatchResult struct {
	Written  int // new rows
	Updated  int // existing rows refreshed
	Failed   int
	Failures []*models.WriteConflictError
}

// Add accumulates o into r.
func (r *BatchResult) Add(o BatchResult) {
	r.Written += o.Written
	r.Updated += o.Updated
	r.Failed += o.Failed
	r.Failures = append(r.Failures, o.Failures...)
}

// Committed is the number of rows that reached storage.
func (r BatchResult) Committed() int {
	return r.Written + r.Updated
}

// DiscardStore accepts every batch without storing it; used for dry runs.
type DiscardStore struct{}

func (DiscardStore) UpsertBatch(_ context.Context, batch []*models.CanonicalFestival) (BatchResult, error) {
	return BatchResult{Written: len(batch)}, nil
}
