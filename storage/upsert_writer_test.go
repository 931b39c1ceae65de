package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festival-scraper/models"
	"festival-scraper/utils"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testRetry() *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep}
}

// recordingStore fails any batch containing a poisoned hash.
type recordingStore struct {
	mu      sync.Mutex
	batches [][]*models.CanonicalFestival
	poison  map[string]bool
	failAll int
}

func (s *recordingStore) UpsertBatch(_ context.Context, batch []*models.CanonicalFestival) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	if s.failAll > 0 {
		s.failAll--
		return BatchResult{}, errors.New("connection reset")
	}
	for _, f := range batch {
		if s.poison[f.IdentityHash] {
			return BatchResult{}, errors.New("constraint violation")
		}
	}
	return BatchResult{Written: len(batch)}, nil
}

func TestWriterFlushesAtBatchSize(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	w := NewUpsertWriter(store, WriterOptions{BatchSize: 2, Retry: testRetry()})

	var flushed int
	for _, f := range append(sampleBatch(), festival("x", "9", "Extra", nil, nil)) {
		res, err := w.Add(ctx, f)
		require.NoError(t, err)
		flushed += res.Written
	}
	assert.Equal(t, 4, flushed)
	assert.Len(t, store.batches, 2)
	assert.Equal(t, 0, w.Pending())

	w.Add(ctx, festival("x", "10", "Last", nil, nil))
	res, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 5, w.Totals().Written)

	res, err = w.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Len(t, store.batches, 3, "empty flush does not hit the store")
}

func TestWriterReplacesBufferedDuplicate(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	w := NewUpsertWriter(store, WriterOptions{BatchSize: 10, Retry: testRetry()})

	a := festival("festivalinfo", "1", "Pinkpop", nil, nil)
	b := festival("festivalinfo", "1", "Pinkpop 2025", nil, nil)
	_, _ = w.Add(ctx, a)
	_, _ = w.Add(ctx, b)
	assert.Equal(t, 1, w.Pending())

	_, err := w.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, store.batches, 1)
	assert.Equal(t, "Pinkpop 2025", store.batches[0][0].Name)
}

func TestWriterRetriesWholeBatch(t *testing.T) {
	store := &recordingStore{failAll: 2}
	w := NewUpsertWriter(store, WriterOptions{BatchSize: 10, Retry: testRetry()})
	for _, f := range sampleBatch() {
		_, _ = w.Add(context.Background(), f)
	}
	res, err := w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)
	assert.Len(t, store.batches, 3, "two failures then success, no per-record fallback")
}

func TestWriterIsolatesPoisonRecord(t *testing.T) {
	batch := sampleBatch()
	store := &recordingStore{poison: map[string]bool{batch[1].IdentityHash: true}}
	w := NewUpsertWriter(store, WriterOptions{BatchSize: 10, Retry: testRetry()})
	for _, f := range batch {
		_, _ = w.Add(context.Background(), f)
	}

	res, err := w.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, batch[1].IdentityHash, res.Failures[0].IdentityHash)
	assert.Equal(t, "Lowlands", res.Failures[0].Name)
	// three whole-batch attempts, then one per record
	assert.Len(t, store.batches, 3+3)
}

func TestWriterPoisonRecordOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	batch := sampleBatch()
	batch[2].DurationDays = -1
	w := NewUpsertWriter(s, WriterOptions{BatchSize: 10, Retry: testRetry()})
	for _, f := range batch {
		_, _ = w.Add(ctx, f)
	}
	res, err := w.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, 1, res.Failed)

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriterCancelled(t *testing.T) {
	store := &recordingStore{failAll: 100}
	w := NewUpsertWriter(store, WriterOptions{BatchSize: 10, Retry: testRetry()})
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = w.Add(ctx, sampleBatch()[0])
	cancel()

	_, err := w.Flush(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriterReportsFlushes(t *testing.T) {
	var seen []BatchResult
	w := NewUpsertWriter(DiscardStore{}, WriterOptions{
		BatchSize: 2,
		OnFlush:   func(r BatchResult, _ time.Duration) { seen = append(seen, r) },
	})
	for _, f := range sampleBatch() {
		_, _ = w.Add(context.Background(), f)
	}
	_, _ = w.Flush(context.Background())
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[0].Written)
	assert.Equal(t, 1, seen[1].Written)
}
