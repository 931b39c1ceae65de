package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"festival-scraper/models"
)

// SourceCheckpoint is the saved progress of one source.
type SourceCheckpoint struct {
	RunID string `json:"run_id"`
	// LastPage is the last paged listing page whose records were flushed.
	// It is reset to 0 when the walk reaches its natural end.
	LastPage  int              `json:"last_page"`
	Status    models.RunStatus `json:"status,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Checkpoint records per-source progress in a JSON file so an interrupted
// run can resume. A nil *Checkpoint is valid and records nothing.
type Checkpoint struct {
	path string

	mu      sync.Mutex
	sources map[string]*SourceCheckpoint
}

type checkpointFile struct {
	Sources map[string]*SourceCheckpoint `json:"sources"`
}

// LoadCheckpoint reads path. A missing file yields an empty checkpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{path: path, sources: make(map[string]*SourceCheckpoint)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	var f checkpointFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	if f.Sources != nil {
		c.sources = f.Sources
	}
	return c, nil
}

// Resume tells the runner where to pick a source up. skip is true when the
// source already succeeded; startPage is the first paged page still to do.
func (c *Checkpoint) Resume(source string) (skip bool, startPage int) {
	if c == nil {
		return false, 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sources[source]
	if !ok {
		return false, 1
	}
	if s.Status == models.StatusSuccess {
		return true, 0
	}
	return false, s.LastPage + 1
}

// Get returns a copy of the saved progress of source.
func (c *Checkpoint) Get(source string) (SourceCheckpoint, bool) {
	if c == nil {
		return SourceCheckpoint{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sources[source]
	if !ok {
		return SourceCheckpoint{}, false
	}
	return *s, true
}

// Reset forgets all progress.
func (c *Checkpoint) Reset() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = make(map[string]*SourceCheckpoint)
	return c.saveLocked()
}

// MarkPage records that page of source is durably written.
func (c *Checkpoint) MarkPage(runID, source string, page int) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entryLocked(source)
	s.RunID = runID
	s.LastPage = page
	s.Status = ""
	s.UpdatedAt = time.Now().UTC()
	return c.saveLocked()
}

// MarkDone records the terminal status of source. completed means the walk
// reached the end of the listing, so a later resume starts from page one.
func (c *Checkpoint) MarkDone(runID, source string, status models.RunStatus, completed bool) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entryLocked(source)
	s.RunID = runID
	s.Status = status
	if completed {
		s.LastPage = 0
	}
	s.UpdatedAt = time.Now().UTC()
	return c.saveLocked()
}

func (c *Checkpoint) entryLocked(source string) *SourceCheckpoint {
	s, ok := c.sources[source]
	if !ok {
		s = &SourceCheckpoint{}
		c.sources[source] = s
	}
	return s
}

// saveLocked writes to a temporary file and renames it over path.
func (c *Checkpoint) saveLocked() error {
	data, err := json.MarshalIndent(checkpointFile{Sources: c.sources}, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}
