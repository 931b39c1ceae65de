package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"festival-scraper/models"
	"festival-scraper/utils"
)

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 50

// WriterOptions configure an UpsertWriter.
type WriterOptions struct {
	BatchSize int
	// Retry governs whole-batch attempts before falling back to per-record
	// writes. Nil means three attempts (two retries) with backoff.
	Retry  *utils.RetryConfig
	Logger *utils.Logger
	// OnFlush, when set, observes every flushed batch.
	OnFlush func(BatchResult, time.Duration)
}

// UpsertWriter buffers canonical records and writes them in batches. It is
// the only path by which the pipeline touches a FestivalStore.
type UpsertWriter struct {
	store     FestivalStore
	batchSize int
	retry     *utils.RetryConfig
	logger    *utils.Logger
	onFlush   func(BatchResult, time.Duration)

	mu     sync.Mutex
	buf    []*models.CanonicalFestival
	index  map[string]int
	totals BatchResult
}

// NewUpsertWriter creates a writer over store.
func NewUpsertWriter(store FestivalStore, opts WriterOptions) *UpsertWriter {
	size := opts.BatchSize
	if size < 1 {
		size = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	retry := opts.Retry
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Jitter: 0.2}
	}
	r := *retry
	if r.Logger == nil {
		r.Logger = logger
	}
	return &UpsertWriter{
		store:     store,
		batchSize: size,
		retry:     &r,
		logger:    logger,
		onFlush:   opts.OnFlush,
		index:     make(map[string]int),
	}
}

// Add buffers f and flushes when the buffer is full. The returned result
// covers the flushed batch, if any. A record whose identity hash is already
// buffered replaces the earlier one.
func (w *UpsertWriter) Add(ctx context.Context, f *models.CanonicalFestival) (BatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i, ok := w.index[f.IdentityHash]; ok {
		w.buf[i] = f
		return BatchResult{}, nil
	}
	w.index[f.IdentityHash] = len(w.buf)
	w.buf = append(w.buf, f)
	if len(w.buf) < w.batchSize {
		return BatchResult{}, nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is buffered.
func (w *UpsertWriter) Flush(ctx context.Context) (BatchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// Pending is the number of buffered records.
func (w *UpsertWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Totals is the sum of every flushed batch so far.
func (w *UpsertWriter) Totals() BatchResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.totals
	t.Failures = append([]*models.WriteConflictError(nil), w.totals.Failures...)
	return t
}

func (w *UpsertWriter) flushLocked(ctx context.Context) (BatchResult, error) {
	if len(w.buf) == 0 {
		return BatchResult{}, nil
	}
	batch := w.buf
	w.buf = nil
	w.index = make(map[string]int)

	start := time.Now()
	res, err := w.writeBatch(ctx, batch)
	w.totals.Add(res)
	if w.onFlush != nil {
		w.onFlush(res, time.Since(start))
	}
	return res, err
}

// writeBatch tries the whole batch, then isolates failing records one by
// one. Only a cancelled context is returned as an error; record failures
// are reported in the result.
func (w *UpsertWriter) writeBatch(ctx context.Context, batch []*models.CanonicalFestival) (BatchResult, error) {
	var res BatchResult
	err := w.retry.Do(ctx, fmt.Sprintf("upsert batch of %d", len(batch)), func(ctx context.Context) error {
		var uerr error
		res, uerr = w.store.UpsertBatch(ctx, batch)
		return uerr
	})
	if err == nil {
		w.logger.Debug("[writer] Batch of %d: %d new, %d updated", len(batch), res.Written, res.Updated)
		return res, nil
	}
	if ctx.Err() != nil {
		return BatchResult{}, fmt.Errorf("writer: batch of %d abandoned: %w", len(batch), ctx.Err())
	}

	w.logger.Warn("[writer] Batch of %d failed, writing records one by one: %v", len(batch), err)
	res = BatchResult{}
	for _, f := range batch {
		one, ferr := w.store.UpsertBatch(ctx, []*models.CanonicalFestival{f})
		if ferr != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("writer: record %s abandoned: %w", f.IdentityHash, ctx.Err())
			}
			res.Failed++
			res.Failures = append(res.Failures, &models.WriteConflictError{
				IdentityHash: f.IdentityHash,
				Name:         f.Name,
				Err:          ferr,
			})
			w.logger.Error("[writer] %q (%s) rejected: %v", f.Name, f.SourceWebsite, ferr)
			continue
		}
		res.Add(one)
	}
	return res, nil
}
