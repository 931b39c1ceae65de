package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"festival-scraper/models"
	"festival-scraper/scraper"
	"festival-scraper/sources"
	"festival-scraper/storage"
	"festival-scraper/utils"
)

// DefaultConcurrency is the number of sources run at once.
const DefaultConcurrency = 3

// Transport builds the fetchers for one source. Each source gets its own
// pacing, so the factory is called once per source per run.
type Transport func(e sources.Entry) (scraper.Fetcher, scraper.Browser)

// Options are the run-wide knobs. Zero values fall back to defaults.
type Options struct {
	Concurrency       int
	DetailConcurrency int
	MaxPages          int
	BatchSize         int
	FailureThreshold  int
	StableIterations  int
	MaxClicks         int
	Settle            time.Duration
	ExtraWait         utils.DelayWindow
	Fetch             scraper.FetchOptions
	WriteRetry        *utils.RetryConfig
	FlushTimeout      time.Duration
	// Resume continues from the checkpoint instead of starting over.
	Resume bool
}

// Orchestrator runs many sources with bounded concurrency. Failures stay
// inside their source.
type Orchestrator struct {
	store      storage.FestivalStore
	runs       storage.RunStore
	raw        storage.RawRecordWriter
	checkpoint *Checkpoint
	transport  Transport
	opts       Options
	logger     *utils.Logger
	now        func() time.Time
}

// NewOrchestrator wires the shared sinks. runs, raw and checkpoint may be nil.
func NewOrchestrator(store storage.FestivalStore, runs storage.RunStore, raw storage.RawRecordWriter,
	checkpoint *Checkpoint, transport Transport, opts Options, logger *utils.Logger) *Orchestrator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		store:      store,
		runs:       runs,
		raw:        raw,
		checkpoint: checkpoint,
		transport:  transport,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes every entry under one run id and returns their metadata in
// entry order. Sources skipped on resume are left out; sources reached after
// cancellation are reported as partial without fetching anything.
func (o *Orchestrator) Run(ctx context.Context, entries []sources.Entry) []models.SourceRunMetadata {
	runID := uuid.NewString()
	started := o.now()
	o.logger.Info("[orchestrator] Run %s: %d sources, concurrency %d", runID, len(entries), o.opts.Concurrency)

	if !o.opts.Resume {
		if err := o.checkpoint.Reset(); err != nil {
			o.logger.Warn("[orchestrator] Checkpoint reset failed: %v", err)
		}
	}

	results := make([]*models.SourceRunMetadata, len(entries))
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, e := range entries {
		startPage := 1
		if o.opts.Resume {
			skip, page := o.checkpoint.Resume(e.Name())
			if skip {
				o.logger.Info("[orchestrator] %s already succeeded, skipping", e.Name())
				continue
			}
			if e.Adapter.Pagination().Kind == scraper.PaginationPaged {
				startPage = page
			}
		}
		g.Go(func() error {
			results[i] = o.runner(e, runID, started, startPage).Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.SourceRunMetadata, 0, len(entries))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out
}

func (o *Orchestrator) runner(e sources.Entry, runID string, started time.Time, startPage int) *Runner {
	fetcher, browser := o.transport(e)
	maxPages := o.opts.MaxPages
	if e.MaxPages > 0 {
		maxPages = e.MaxPages
	}
	return NewRunner(RunnerConfig{
		RunID:             runID,
		Adapter:           e.Adapter,
		Fetcher:           fetcher,
		Browser:           browser,
		Fetch:             o.opts.Fetch,
		StartPage:         startPage,
		MaxPages:          maxPages,
		DetailConcurrency: o.opts.DetailConcurrency,
		BatchSize:         o.opts.BatchSize,
		FailureThreshold:  o.opts.FailureThreshold,
		StableIterations:  o.opts.StableIterations,
		MaxClicks:         o.opts.MaxClicks,
		Settle:            o.opts.Settle,
		ExtraWait:         o.opts.ExtraWait,
		WriteRetry:        o.opts.WriteRetry,
		FlushTimeout:      o.opts.FlushTimeout,
		StartedAt:         started,
	}, o.store, o.runs, o.raw, o.checkpoint, o.logger)
}
