package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"festival-scraper/models"
)

// SaveRun records the final metadata of one source run. Saving the same
// (run, source) twice keeps the latest values.
func (s *SQLStore) SaveRun(ctx context.Context, m *models.SourceRunMetadata) error {
	samples, err := json.Marshal(m.ErrorSamples)
	if err != nil {
		return fmt.Errorf("storage: encode error samples: %w", err)
	}
	if m.ErrorSamples == nil {
		samples = []byte("[]")
	}

	cols := []string{
		"run_id", "source", "state", "status", "listings_seen", "uniques_written", "updated",
		"duplicates", "skipped", "errors", "pages", "started_at", "finished_at", "error_samples",
	}
	query := fmt.Sprintf("INSERT INTO source_runs (%s) VALUES (%s) %s",
		strings.Join(cols, ", "), placeholders(len(cols)),
		s.dialect.onConflict("run_id, source", cols[2:]))

	_, err = s.db.ExecContext(ctx, s.dialect.Rebind(query),
		m.RunID, m.Source, string(m.State), string(m.Status),
		m.ListingsSeen, m.UniquesWritten, m.Updated, m.DuplicatesSuppressed,
		m.Skipped, m.Errors, m.PagesProcessed,
		m.StartedAt.UTC(), m.FinishedAt.UTC(), string(samples))
	if err != nil {
		return fmt.Errorf("storage: save run %s/%s: %w", m.RunID, m.Source, err)
	}
	return nil
}

// RecentRuns returns the latest source runs, newest first.
func (s *SQLStore) RecentRuns(ctx context.Context, limit int) ([]*models.SourceRunMetadata, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT run_id, source, state, status, listings_seen, uniques_written, updated,
		       duplicates, skipped, errors, pages, started_at, finished_at, error_samples
		FROM source_runs
		ORDER BY started_at DESC, source
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SourceRunMetadata
	for rows.Next() {
		var (
			m             models.SourceRunMetadata
			state, status string
			samples       string
		)
		if err := rows.Scan(&m.RunID, &m.Source, &state, &status, &m.ListingsSeen, &m.UniquesWritten,
			&m.Updated, &m.DuplicatesSuppressed, &m.Skipped, &m.Errors, &m.PagesProcessed,
			&m.StartedAt, &m.FinishedAt, &samples); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		m.State, m.Status = models.RunState(state), models.RunStatus(status)
		if samples != "" {
			if err := json.Unmarshal([]byte(samples), &m.ErrorSamples); err != nil {
				return nil, fmt.Errorf("storage: decode error samples: %w", err)
			}
		}
		runs = append(runs, &m)
	}
	return runs, rows.Err()
}
