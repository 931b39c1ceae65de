package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"festival-scraper/models"
)

// CSVWriter appends raw listing records to a CSV audit file, one row per
// listing element as it came off the page. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

var csvHeader = []string{"source", "source_id", "name", "raw_date_text", "location", "detail_url", "scraped_at"}

// NewCSVWriter opens path for appending, creating it and its directory as
// needed. A new or empty file starts with the header row.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	c := &CSVWriter{file: f, writer: csv.NewWriter(f), now: time.Now}
	if info.Size() == 0 {
		if err := c.writer.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		c.writer.Flush()
	}
	return c, nil
}

// WriteRaw appends records and flushes.
func (c *CSVWriter) WriteRaw(records []models.RawListingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().UTC().Format(time.RFC3339)
	for _, r := range records {
		row := []string{
			r.SourceWebsite,
			r.SourceID,
			r.Name,
			r.RawDateText,
			r.Location,
			r.DetailURL,
			stamp,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
