// Package pipeline runs sources end to end: pagination, extraction,
// enrichment, deduplication and batched upserts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"festival-scraper/metrics"
	"festival-scraper/models"
	"festival-scraper/scraper"
	"festival-scraper/services"
	"festival-scraper/storage"
	"festival-scraper/utils"
)

const (
	// DefaultDetailConcurrency caps parallel detail fetches within a page.
	DefaultDetailConcurrency = 5
	// DefaultFlushTimeout bounds the final flush after a cancellation.
	DefaultFlushTimeout = 30 * time.Second
)

// RunnerConfig describes one source run.
type RunnerConfig struct {
	RunID   string
	Adapter scraper.SourceAdapter
	Fetcher scraper.Fetcher
	Browser scraper.Browser
	Fetch   scraper.FetchOptions

	StartPage         int
	MaxPages          int
	DetailConcurrency int
	BatchSize         int
	FailureThreshold  int
	StableIterations  int
	MaxClicks         int
	Settle            time.Duration
	ExtraWait         utils.DelayWindow
	WriteRetry        *utils.RetryConfig
	FlushTimeout      time.Duration

	// StartedAt is the run start; its year completes yearless listing dates.
	StartedAt time.Time
}

// Runner drives one source through PENDING → PAGING → EXTRACTING → WRITING
// and on to a terminal state. A Runner is single-use.
type Runner struct {
	cfg        RunnerConfig
	store      storage.FestivalStore
	runs       storage.RunStore
	raw        storage.RawRecordWriter
	checkpoint *Checkpoint
	logger     *utils.Logger

	meta     models.SourceRunMetadata
	enricher *services.Enricher
	dedup    *services.Deduplicator
	writer   *storage.UpsertWriter
}

// NewRunner creates a runner. runs, raw and checkpoint may be nil.
func NewRunner(cfg RunnerConfig, store storage.FestivalStore, runs storage.RunStore,
	raw storage.RawRecordWriter, checkpoint *Checkpoint, logger *utils.Logger) *Runner {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	if cfg.DetailConcurrency < 1 {
		cfg.DetailConcurrency = DefaultDetailConcurrency
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	source := cfg.Adapter.Name()
	logger = logger.With("source", source)

	r := &Runner{
		cfg:        cfg,
		store:      store,
		runs:       runs,
		raw:        raw,
		checkpoint: checkpoint,
		logger:     logger,
		enricher:   services.NewEnricher(cfg.StartedAt),
		dedup:      services.NewDeduplicator(),
		meta: models.SourceRunMetadata{
			RunID:     cfg.RunID,
			Source:    source,
			StartedAt: cfg.StartedAt,
			State:     models.StatePending,
		},
	}
	r.writer = storage.NewUpsertWriter(store, storage.WriterOptions{
		BatchSize: cfg.BatchSize,
		Retry:     cfg.WriteRetry,
		Logger:    logger,
		OnFlush: func(res storage.BatchResult, took time.Duration) {
			metrics.RecordBatch(source, res.Written, res.Updated, res.Failed, took)
		},
	})
	return r
}

// Run executes the source and returns its metadata, which is also persisted
// through the RunStore whatever the outcome.
func (r *Runner) Run(ctx context.Context) *models.SourceRunMetadata {
	source := r.meta.Source
	if ctx.Err() != nil {
		r.logger.Warn("[%s] Cancelled before start", source)
		r.transition(models.StatePartial)
		return r.finish(ctx, false)
	}
	r.logger.Info("[%s] Run %s starting", source, r.cfg.RunID)

	budget := scraper.NewFailureBudget(source, r.cfg.FailureThreshold, func(name string) {
		metrics.RecordBudgetTrip(name)
		r.logger.Error("[%s] Failure budget exhausted, aborting source", name)
	})
	paginator, err := scraper.NewPaginator(r.cfg.Adapter, scraper.DriverConfig{
		Fetcher:          r.cfg.Fetcher,
		Browser:          r.cfg.Browser,
		Options:          r.cfg.Fetch,
		StartPage:        r.cfg.StartPage,
		MaxPages:         r.cfg.MaxPages,
		StableIterations: r.cfg.StableIterations,
		MaxClicks:        r.cfg.MaxClicks,
		Settle:           r.cfg.Settle,
		ExtraWait:        r.cfg.ExtraWait,
		Budget:           budget,
		Logger:           r.logger,
	})
	if err != nil {
		r.meta.RecordError("setup", err)
		r.transition(models.StateFailed)
		return r.finish(ctx, false)
	}

	r.transition(models.StatePaging)
	stats, perr := paginator.Paginate(ctx, func(doc *scraper.Document) error {
		return r.visit(ctx, doc)
	})

	for _, e := range stats.Errs {
		r.meta.RecordError("page", e)
	}
	metrics.RecordPageFailures(source, stats.Failures)

	cancelled := ctx.Err() != nil
	broken := false
	if perr != nil && !cancelled {
		broken = true
		r.meta.RecordError("source", perr)
	}

	if r.meta.State != models.StateWriting {
		r.transition(models.StateWriting)
	}
	r.flush(ctx)

	switch {
	case cancelled:
		r.logger.Warn("[%s] Cancelled after %d pages", source, r.meta.PagesProcessed)
		r.transition(models.StatePartial)
	case broken, r.meta.Committed() == 0:
		r.transition(models.StateFailed)
	case r.meta.Errors > 0:
		r.transition(models.StatePartial)
	default:
		r.transition(models.StateSucceeded)
	}
	return r.finish(ctx, !cancelled && !broken)
}

// enrichment is the outcome of one record's detail pass.
type enrichment struct {
	festival *models.CanonicalFestival
	errs     []error
	// aborted is set when cancellation interrupted the detail fetch.
	aborted bool
}

// visit processes one listing document: extract, enrich in parallel, then
// dedup and buffer in page order.
func (r *Runner) visit(ctx context.Context, doc *scraper.Document) error {
	source := r.meta.Source
	r.transition(models.StateExtracting)

	ex := r.cfg.Adapter.ParseListing(doc)
	r.meta.ListingsSeen += ex.Seen()
	r.meta.Skipped += len(ex.Skipped)
	metrics.RecordSkipped(source, len(ex.Skipped))
	for _, s := range ex.Skipped {
		r.logger.Debug("[%s] Skipped listing %s", source, s)
	}
	if r.raw != nil && len(ex.Records) > 0 {
		if err := r.raw.WriteRaw(ex.Records); err != nil {
			r.logger.Warn("[%s] Raw CSV write failed: %v", source, err)
		}
	}

	candidates := make([]models.RawListingRecord, 0, len(ex.Records))
	for _, rec := range ex.Records {
		if rec.SourceID != "" && !r.dedup.ClaimNative(source, rec.SourceID) {
			continue
		}
		candidates = append(candidates, rec)
	}

	results := make([]*enrichment, len(candidates))
	pool := utils.NewWorkerPool(r.cfg.DetailConcurrency)
	for i, rec := range candidates {
		if !pool.Submit(ctx, func() { results[i] = r.enrich(ctx, rec) }) {
			break
		}
	}
	pool.Wait()

	r.transition(models.StateWriting)
	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	for _, res := range results {
		if res == nil || res.aborted {
			continue
		}
		for _, e := range res.errs {
			r.meta.RecordError(res.festival.Name, e)
		}
		f := res.festival
		if err := services.Validate(f); err != nil {
			r.meta.RecordError("validate", err)
			continue
		}
		if f.SourceID == "" && !r.dedup.Accept(f) {
			continue
		}
		flushed, err := r.writer.Add(wctx, f)
		r.account(flushed, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if r.checkpoint != nil && doc.Page > 0 {
		flushed, err := r.writer.Flush(wctx)
		r.account(flushed, err)
		if err == nil {
			if cerr := r.checkpoint.MarkPage(r.cfg.RunID, source, doc.Page); cerr != nil {
				r.logger.Warn("[%s] Checkpoint not saved: %v", source, cerr)
			}
		}
	}

	r.meta.PagesProcessed++
	metrics.RecordPage(source)
	r.logger.Info("[%s] Page %d: %d listings, %d skipped, %d written so far",
		source, doc.Page, ex.Seen(), len(ex.Skipped), r.meta.Committed())
	r.transition(models.StatePaging)
	return nil
}

// enrich fetches the detail page of rec and merges it into the list-tier
// record. A failed fetch keeps the list values.
func (r *Runner) enrich(ctx context.Context, rec models.RawListingRecord) *enrichment {
	var (
		detail *models.DetailFields
		errs   []error
	)
	if rec.DetailURL != "" {
		doc, err := r.detailFetcher().Fetch(ctx, rec.DetailURL, r.detailOptions())
		switch {
		case err != nil && ctx.Err() != nil:
			return &enrichment{aborted: true}
		case err != nil:
			metrics.RecordDetailFailure(r.meta.Source)
			r.logger.Warn("[%s] Detail %s failed, keeping listing values: %v", r.meta.Source, rec.DetailURL, err)
			errs = append(errs, fmt.Errorf("detail: %w", err))
		default:
			d := r.cfg.Adapter.ParseDetail(doc)
			detail = &d
		}
	}

	f, perrs := r.enricher.Enrich(rec, detail, r.cfg.Adapter.Locale())
	return &enrichment{festival: f, errs: append(errs, perrs...)}
}

func (r *Runner) detailFetcher() scraper.Fetcher {
	if r.cfg.Adapter.Pagination().DetailBrowser {
		if b, ok := r.cfg.Browser.(scraper.Fetcher); ok {
			return b
		}
	}
	return r.cfg.Fetcher
}

func (r *Runner) detailOptions() scraper.FetchOptions {
	opts := r.cfg.Fetch
	opts.WaitSelector = ""
	return opts
}

// writeContext detaches writes from cancellation so a buffered batch still
// reaches storage, bounded by FlushTimeout.
func (r *Runner) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FlushTimeout)
}

func (r *Runner) flush(ctx context.Context) {
	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	res, err := r.writer.Flush(wctx)
	r.account(res, err)
}

func (r *Runner) account(res storage.BatchResult, err error) {
	r.meta.UniquesWritten += res.Written
	r.meta.Updated += res.Updated
	for _, f := range res.Failures {
		r.meta.RecordError("write", f)
	}
	if err != nil {
		r.meta.RecordError("write", err)
	}
}

func (r *Runner) transition(to models.RunState) {
	if !models.CanTransition(r.meta.State, to) {
		r.logger.Error("[%s] Illegal state change %s -> %s", r.meta.Source, r.meta.State, to)
		return
	}
	r.meta.State = to
}

// finish stamps the outcome, records metrics, logs the summary and persists
// the metadata on a context that survives cancellation.
func (r *Runner) finish(ctx context.Context, completed bool) *models.SourceRunMetadata {
	m := &r.meta
	m.DuplicatesSuppressed = r.dedup.Suppressed()
	m.FinishedAt = time.Now().UTC()
	if m.FinishedAt.Before(m.StartedAt) {
		m.FinishedAt = m.StartedAt
	}
	m.Status = models.StatusFor(m.State)

	metrics.RecordDuplicates(m.Source, m.DuplicatesSuppressed)
	metrics.RecordRun(m.Source, string(m.Status), m.Duration())

	r.logger.Zerolog().Info().
		Str("run_id", m.RunID).
		Str("state", string(m.State)).
		Str("status", string(m.Status)).
		Int("listings_seen", m.ListingsSeen).
		Int("uniques_written", m.UniquesWritten).
		Int("updated", m.Updated).
		Int("duplicates_suppressed", m.DuplicatesSuppressed).
		Int("skipped", m.Skipped).
		Int("errors", m.Errors).
		Int("pages", m.PagesProcessed).
		Dur("duration", m.Duration()).
		Msg("source run finished")

	wctx, cancel := r.writeContext(ctx)
	defer cancel()
	if r.runs != nil {
		if err := r.runs.SaveRun(wctx, m); err != nil {
			r.logger.Error("[%s] Saving run metadata failed: %v", m.Source, err)
		}
	}
	if err := r.checkpoint.MarkDone(m.RunID, m.Source, m.Status, completed); err != nil {
		r.logger.Warn("[%s] Checkpoint not saved: %v", m.Source, err)
	}
	return m
}
