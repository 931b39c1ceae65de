package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"festival-scraper/models"
)

func TestCSVWriterAppendsRawRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.WriteRaw([]models.RawListingRecord{
				{SourceWebsite: "festivalinfo", SourceID: "1", Name: "Pinkpop, the \"original\"", RawDateText: "13 - 15 juni"},
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header + 4", len(rows))
	}
	if rows[0][0] != "source" || rows[1][2] != "Pinkpop, the \"original\"" {
		t.Errorf("unexpected rows: %v", rows[:2])
	}
}

func TestCSVWriterAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	for run := 0; run < 2; run++ {
		w, err := NewCSVWriter(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteRaw([]models.RawListingRecord{{SourceWebsite: "festivalfans", Name: "Paaspop"}}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want one header and two records", len(rows))
	}
}
