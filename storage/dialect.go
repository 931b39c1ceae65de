package storage

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
)

// festivalColumns are written by the pipeline. The user-owned columns
// (favorite, archived, notes, sales_stage) are never part of an upsert.
var festivalColumns = []string{
	"identity_hash", "source_website", "source_id", "name",
	"start_date", "end_date", "duration_days", "location",
	"detail_url", "quality_flags", "scraped_at",
}

// updateColumns are refreshed when a row already exists.
var updateColumns = festivalColumns[2:]

// Dialect holds the SQL that differs between backends.
type Dialect struct {
	Driver string
	schema []string
}

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (*Dialect, error) {
	switch driver {
	case DriverPostgres:
		return &Dialect{Driver: driver, schema: postgresSchema}, nil
	case DriverSQLite:
		return &Dialect{Driver: driver, schema: sqliteSchema}, nil
	case DriverMySQL:
		return &Dialect{Driver: driver, schema: mysqlSchema}, nil
	}
	return nil, fmt.Errorf("storage: unsupported driver %q", driver)
}

// Rebind rewrites ? placeholders into the driver's style.
func (d *Dialect) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertFestivals builds a multi-row upsert for rows records.
func (d *Dialect) insertFestivals(rows int) string {
	row := "(" + placeholders(len(festivalColumns)) + ")"
	values := make([]string, rows)
	for i := range values {
		values[i] = row
	}
	query := fmt.Sprintf("INSERT INTO festivals (%s) VALUES %s %s",
		strings.Join(festivalColumns, ", "),
		strings.Join(values, ","),
		d.onConflict("identity_hash", updateColumns))
	return d.Rebind(query)
}

// onConflict renders the upsert clause refreshing cols when key collides.
// MySQL resolves the conflict on any unique key.
func (d *Dialect) onConflict(key string, cols []string) string {
	set := make([]string, len(cols))
	if d.Driver == DriverMySQL {
		for i, c := range cols {
			set[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
	}
	for i, c := range cols {
		set[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(set, ", "))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS festivals (
		id             BIGSERIAL PRIMARY KEY,
		identity_hash  CHAR(64)     NOT NULL UNIQUE,
		source_website VARCHAR(64)  NOT NULL,
		source_id      TEXT         NOT NULL DEFAULT '',
		name           TEXT         NOT NULL,
		start_date     DATE,
		end_date       DATE,
		duration_days  INTEGER      NOT NULL DEFAULT 0 CHECK (duration_days >= 0),
		location       TEXT         NOT NULL DEFAULT '',
		detail_url     TEXT         NOT NULL DEFAULT '',
		quality_flags  TEXT         NOT NULL DEFAULT '',
		scraped_at     TIMESTAMPTZ  NOT NULL,
		favorite       BOOLEAN      NOT NULL DEFAULT FALSE,
		archived       BOOLEAN      NOT NULL DEFAULT FALSE,
		notes          TEXT         NOT NULL DEFAULT '',
		sales_stage    VARCHAR(32)  NOT NULL DEFAULT 'new',
		created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CHECK (start_date IS NULL OR end_date IS NULL OR end_date >= start_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_festivals_source ON festivals(source_website)`,
	`CREATE INDEX IF NOT EXISTS idx_festivals_start  ON festivals(start_date)`,
	`CREATE TABLE IF NOT EXISTS source_runs (
		run_id          VARCHAR(36) NOT NULL,
		source          VARCHAR(64) NOT NULL,
		state           VARCHAR(16) NOT NULL,
		status          VARCHAR(16) NOT NULL,
		listings_seen   INTEGER     NOT NULL DEFAULT 0,
		uniques_written INTEGER     NOT NULL DEFAULT 0,
		updated         INTEGER     NOT NULL DEFAULT 0,
		duplicates      INTEGER     NOT NULL DEFAULT 0,
		skipped         INTEGER     NOT NULL DEFAULT 0,
		errors          INTEGER     NOT NULL DEFAULT 0,
		pages           INTEGER     NOT NULL DEFAULT 0,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL,
		error_samples   TEXT        NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, source)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS festivals (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		identity_hash  TEXT    NOT NULL UNIQUE,
		source_website TEXT    NOT NULL,
		source_id      TEXT    NOT NULL DEFAULT '',
		name           TEXT    NOT NULL,
		start_date     TEXT,
		end_date       TEXT,
		duration_days  INTEGER NOT NULL DEFAULT 0 CHECK (duration_days >= 0),
		location       TEXT    NOT NULL DEFAULT '',
		detail_url     TEXT    NOT NULL DEFAULT '',
		quality_flags  TEXT    NOT NULL DEFAULT '',
		scraped_at     TIMESTAMP NOT NULL,
		favorite       INTEGER NOT NULL DEFAULT 0,
		archived       INTEGER NOT NULL DEFAULT 0,
		notes          TEXT    NOT NULL DEFAULT '',
		sales_stage    TEXT    NOT NULL DEFAULT 'new',
		created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (start_date IS NULL OR end_date IS NULL OR end_date >= start_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_festivals_source ON festivals(source_website)`,
	`CREATE INDEX IF NOT EXISTS idx_festivals_start  ON festivals(start_date)`,
	`CREATE TABLE IF NOT EXISTS source_runs (
		run_id          TEXT    NOT NULL,
		source          TEXT    NOT NULL,
		state           TEXT    NOT NULL,
		status          TEXT    NOT NULL,
		listings_seen   INTEGER NOT NULL DEFAULT 0,
		uniques_written INTEGER NOT NULL DEFAULT 0,
		updated         INTEGER NOT NULL DEFAULT 0,
		duplicates      INTEGER NOT NULL DEFAULT 0,
		skipped         INTEGER NOT NULL DEFAULT 0,
		errors          INTEGER NOT NULL DEFAULT 0,
		pages           INTEGER NOT NULL DEFAULT 0,
		started_at      TIMESTAMP NOT NULL,
		finished_at     TIMESTAMP NOT NULL,
		error_samples   TEXT    NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, source)
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS festivals (
		id             BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		identity_hash  CHAR(64)     NOT NULL,
		source_website VARCHAR(64)  NOT NULL,
		source_id      VARCHAR(255) NOT NULL DEFAULT '',
		name           VARCHAR(512) NOT NULL,
		start_date     DATE         NULL,
		end_date       DATE         NULL,
		duration_days  INT          NOT NULL DEFAULT 0,
		location       VARCHAR(1024) NOT NULL DEFAULT '',
		detail_url     VARCHAR(2048) NOT NULL DEFAULT '',
		quality_flags  VARCHAR(255) NOT NULL DEFAULT '',
		scraped_at     DATETIME     NOT NULL,
		favorite       BOOLEAN      NOT NULL DEFAULT FALSE,
		archived       BOOLEAN      NOT NULL DEFAULT FALSE,
		notes          VARCHAR(4096) NOT NULL DEFAULT '',
		sales_stage    VARCHAR(32)  NOT NULL DEFAULT 'new',
		created_at     DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_festivals_identity (identity_hash),
		KEY idx_festivals_source (source_website),
		KEY idx_festivals_start (start_date),
		CHECK (duration_days >= 0),
		CHECK (start_date IS NULL OR end_date IS NULL OR end_date >= start_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS source_runs (
		run_id          CHAR(36)    NOT NULL,
		source          VARCHAR(64) NOT NULL,
		state           VARCHAR(16) NOT NULL,
		status          VARCHAR(16) NOT NULL,
		listings_seen   INT         NOT NULL DEFAULT 0,
		uniques_written INT         NOT NULL DEFAULT 0,
		updated         INT         NOT NULL DEFAULT 0,
		duplicates      INT         NOT NULL DEFAULT 0,
		skipped         INT         NOT NULL DEFAULT 0,
		errors          INT         NOT NULL DEFAULT 0,
		pages           INT         NOT NULL DEFAULT 0,
		started_at      DATETIME    NOT NULL,
		finished_at     DATETIME    NOT NULL,
		error_samples   TEXT        NOT NULL,
		PRIMARY KEY (run_id, source)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
