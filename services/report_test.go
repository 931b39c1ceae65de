package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"festival-scraper/models"
	"festival-scraper/utils"
)

func sampleRuns() []models.SourceRunMetadata {
	base := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	failed := models.SourceRunMetadata{
		Source: "musicfestivalwizard", Status: models.StatusFailed,
		StartedAt: base, FinishedAt: base.Add(5 * time.Minute),
	}
	failed.RecordError("paginate", errors.New("3 consecutive failures"))
	return []models.SourceRunMetadata{
		{
			Source: "festivalinfo", Status: models.StatusSuccess, ListingsSeen: 40,
			UniquesWritten: 30, Updated: 8, DuplicatesSuppressed: 2, PagesProcessed: 2,
			StartedAt: base, FinishedAt: base.Add(time.Minute),
		},
		{
			Source: "festivalfans", Status: models.StatusPartial, ListingsSeen: 12,
			UniquesWritten: 10, Skipped: 1, Errors: 1, PagesProcessed: 1,
			StartedAt: base, FinishedAt: base.Add(2 * time.Minute),
		},
		failed,
	}
}

func TestReportTotals(t *testing.T) {
	svc := NewReportService(utils.NewNopLogger(), &bytes.Buffer{})
	r := svc.Generate(sampleRuns())
	if r.ListingsSeen != 52 {
		t.Errorf("ListingsSeen: got %d, want 52", r.ListingsSeen)
	}
	if r.Inserted != 40 || r.Updated != 8 {
		t.Errorf("Inserted/Updated: got %d/%d, want 40/8", r.Inserted, r.Updated)
	}
	if r.Errors != 2 {
		t.Errorf("Errors: got %d, want 2", r.Errors)
	}
	if r.ByStatus[models.StatusPartial] != 1 || r.ByStatus[models.StatusFailed] != 1 {
		t.Errorf("ByStatus: got %v", r.ByStatus)
	}
}

func TestReportSortsAndFindsSlowest(t *testing.T) {
	svc := NewReportService(utils.NewNopLogger(), &bytes.Buffer{})
	r := svc.Generate(sampleRuns())
	if r.Sources[0].Source != "festivalfans" {
		t.Errorf("first source: got %q, want festivalfans", r.Sources[0].Source)
	}
	if r.Slowest == nil || r.Slowest.Source != "musicfestivalwizard" {
		t.Errorf("Slowest: got %+v", r.Slowest)
	}
}

func TestReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	svc := NewReportService(utils.NewNopLogger(), &buf)
	r := svc.Generate(nil)
	if r.Slowest != nil {
		t.Error("empty report should have no slowest source")
	}
	svc.Print(r)
	if !strings.Contains(buf.String(), "No sources were run") {
		t.Errorf("empty report output missing placeholder:\n%s", buf.String())
	}
}

func TestReportPrintIncludesErrorSamples(t *testing.T) {
	var buf bytes.Buffer
	svc := NewReportService(utils.NewNopLogger(), &buf)
	svc.Print(svc.Generate(sampleRuns()))
	out := buf.String()
	for _, want := range []string{"festivalinfo", "PARTIAL", "3 consecutive failures"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a very long festival name", 10); got != "a very ..." {
		t.Errorf("got %q", got)
	}
}
