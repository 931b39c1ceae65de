package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"festival-scraper/models"
	"festival-scraper/utils"
)

// IdentityHash returns the stable natural key of a festival. A native source
// id wins; otherwise the folded name and start date identify the record.
func IdentityHash(source, sourceID, name string, start *time.Time) string {
	source = strings.ToLower(strings.TrimSpace(source))
	sourceID = strings.TrimSpace(sourceID)

	var parts []string
	if sourceID != "" {
		parts = []string{"id", source, sourceID}
	} else {
		startKey := ""
		if start != nil {
			startKey = start.Format(models.DateLayout)
		}
		parts = []string{"name", source, IdentityName(name), startKey}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Rehash recomputes f.IdentityHash from its inputs. Call it whenever the
// name, id or start date changes.
func Rehash(f *models.CanonicalFestival) {
	f.IdentityHash = IdentityHash(f.SourceWebsite, f.SourceID, f.Name, f.StartDate)
}

// Deduplicator suppresses repeated identities within one source run. It is
// safe for concurrent use; build one per run.
type Deduplicator struct {
	seen       *utils.SeenSet
	suppressed atomic.Int64
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: utils.NewSeenSet()}
}

// ClaimNative admits a record by its native id before the detail page is
// fetched. It returns false, counting a suppression, when the id was already
// claimed in this run. Records admitted here are final; only records without
// a native id go through Accept.
func (d *Deduplicator) ClaimNative(source, sourceID string) bool {
	if d.seen.Add(IdentityHash(source, sourceID, "", nil)) {
		return true
	}
	d.suppressed.Add(1)
	return false
}

// Accept rehashes f and records its identity, returning true the first time
// it is seen. Repeats are counted as suppressed.
func (d *Deduplicator) Accept(f *models.CanonicalFestival) bool {
	Rehash(f)
	if d.seen.Add(f.IdentityHash) {
		return true
	}
	d.suppressed.Add(1)
	return false
}

// Suppressed returns the number of repeats dropped so far.
func (d *Deduplicator) Suppressed() int {
	return int(d.suppressed.Load())
}

// Unique returns the number of distinct identities accepted.
func (d *Deduplicator) Unique() int {
	return d.seen.Size()
}
