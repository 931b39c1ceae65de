package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"festival-scraper/models"
	"festival-scraper/utils"
)

// SQLStore persists festivals and run metadata in PostgreSQL, SQLite or MySQL.
type SQLStore struct {
	db      *sql.DB
	dialect *Dialect
}

// StoredFestival is a festivals row including the user-owned columns.
type StoredFestival struct {
	ID int64
	models.CanonicalFestival
	Favorite   bool
	Archived   bool
	Notes      string
	SalesStage string
}

// Open connects to the database, retrying the ping the way a freshly started
// container needs, and returns a store. It does not migrate.
func Open(ctx context.Context, driver, dsn string, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY between concurrent sources.
		db.SetMaxOpenConns(1)
	}

	ping := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, MaxDelay: 2 * time.Second, Logger: logger}
	if err := ping.Do(ctx, "ping "+driver, db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping failed after retries: %w", err)
	}

	s, err := NewSQLStore(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open handle.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// DB exposes the handle for maintenance commands and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the store's SQL dialect.
func (s *SQLStore) Dialect() *Dialect { return s.dialect }

// Migrate creates the festivals and source_runs tables if missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// UpsertBatch inserts or refreshes batch in one transaction and reports how
// many rows were new. Records must have distinct identity hashes.
func (s *SQLStore) UpsertBatch(ctx context.Context, batch []*models.CanonicalFestival) (BatchResult, error) {
	var res BatchResult
	if len(batch) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.existingHashes(ctx, tx, batch)
	if err != nil {
		return res, err
	}

	args := make([]any, 0, len(batch)*len(festivalColumns))
	for _, f := range batch {
		args = append(args,
			f.IdentityHash, f.SourceWebsite, f.SourceID, f.Name,
			dateArg(f.StartDate), dateArg(f.EndDate), f.DurationDays, f.Location,
			f.DetailURL, strings.Join(f.Flags, ","), f.ScrapedAt.UTC(),
		)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.insertFestivals(len(batch)), args...); err != nil {
		return res, fmt.Errorf("storage: upsert %d festivals: %w", len(batch), err)
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("storage: commit: %w", err)
	}

	res.Updated = len(existing)
	res.Written = len(batch) - res.Updated
	return res, nil
}

func (s *SQLStore) existingHashes(ctx context.Context, tx *sql.Tx, batch []*models.CanonicalFestival) (map[string]bool, error) {
	args := make([]any, len(batch))
	for i, f := range batch {
		args[i] = f.IdentityHash
	}
	query := s.dialect.Rebind("SELECT identity_hash FROM festivals WHERE identity_hash IN (" +
		placeholders(len(batch)) + ")")

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: lookup existing: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("storage: scan hash: %w", err)
		}
		found[strings.TrimSpace(h)] = true
	}
	return found, rows.Err()
}

// Get loads one festival by identity hash. It returns nil, nil when absent.
func (s *SQLStore) Get(ctx context.Context, identityHash string) (*StoredFestival, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT id, identity_hash, source_website, source_id, name, start_date, end_date,
		       duration_days, location, detail_url, quality_flags, scraped_at,
		       favorite, archived, notes, sales_stage
		FROM festivals WHERE identity_hash = ?`), identityHash)

	var (
		f          StoredFestival
		start, end sql.NullString
		flags      string
	)
	err := row.Scan(&f.ID, &f.IdentityHash, &f.SourceWebsite, &f.SourceID, &f.Name, &start, &end,
		&f.DurationDays, &f.Location, &f.DetailURL, &flags, &f.ScrapedAt,
		&f.Favorite, &f.Archived, &f.Notes, &f.SalesStage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", identityHash, err)
	}
	f.IdentityHash = strings.TrimSpace(f.IdentityHash)
	f.StartDate = parseStoredDate(start)
	f.EndDate = parseStoredDate(end)
	if flags != "" {
		f.Flags = strings.Split(flags, ",")
	}
	return &f, nil
}

// Count returns the number of festivals, optionally for one source.
func (s *SQLStore) Count(ctx context.Context, source string) (int, error) {
	query, args := "SELECT COUNT(*) FROM festivals", []any{}
	if source != "" {
		query += " WHERE source_website = ?"
		args = append(args, source)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(models.DateLayout)
}

// parseStoredDate reads DATE columns, which drivers return either as
// "2006-01-02" text or as a timestamp rendered by database/sql.
func parseStoredDate(s sql.NullString) *time.Time {
	if !s.Valid || len(s.String) < len(models.DateLayout) {
		return nil
	}
	t, err := time.Parse(models.DateLayout, s.String[:len(models.DateLayout)])
	if err != nil {
		return nil
	}
	return &t
}
