package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"festival-scraper/models"
	"festival-scraper/utils"
)

// RunReport aggregates the metadata of the sources processed in one run.
type RunReport struct {
	Sources        []models.SourceRunMetadata
	ListingsSeen   int
	Inserted       int
	Updated        int
	Duplicates     int
	Skipped        int
	Errors         int
	PagesProcessed int
	ByStatus       map[models.RunStatus]int
	Slowest        *models.SourceRunMetadata
}

type ReportService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewReportService(logger *utils.Logger, out io.Writer) *ReportService {
	return &ReportService{logger: logger, out: out}
}

func (s *ReportService) Generate(runs []models.SourceRunMetadata) *RunReport {
	report := &RunReport{ByStatus: make(map[models.RunStatus]int)}
	if len(runs) == 0 {
		return report
	}

	report.Sources = append(report.Sources, runs...)
	sort.Slice(report.Sources, func(i, j int) bool {
		return report.Sources[i].Source < report.Sources[j].Source
	})

	var slowest time.Duration
	for i := range report.Sources {
		m := &report.Sources[i]
		report.ListingsSeen += m.ListingsSeen
		report.Inserted += m.UniquesWritten
		report.Updated += m.Updated
		report.Duplicates += m.DuplicatesSuppressed
		report.Skipped += m.Skipped
		report.Errors += m.Errors
		report.PagesProcessed += m.PagesProcessed
		report.ByStatus[m.Status]++
		if d := m.Duration(); report.Slowest == nil || d > slowest {
			slowest = d
			report.Slowest = m
		}
	}

	return report
}

func (s *ReportService) Print(r *RunReport) {
	out := s.out
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(out, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(out, "\033[1;35m  FESTIVAL INGESTION RUN\033[0m\n")
	fmt.Fprintf(out, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(out, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(out, "  %s\n", thin)
	fmt.Fprintf(out, "  Sources               : \033[1m%d\033[0m\n", len(r.Sources))
	fmt.Fprintf(out, "  Pages processed       : \033[1m%d\033[0m\n", r.PagesProcessed)
	fmt.Fprintf(out, "  Listings seen         : \033[1m%d\033[0m\n", r.ListingsSeen)
	fmt.Fprintf(out, "  Inserted / updated    : \033[1;32m%d\033[0m / \033[1;32m%d\033[0m\n", r.Inserted, r.Updated)
	fmt.Fprintf(out, "  Duplicates suppressed : \033[1m%d\033[0m\n", r.Duplicates)
	fmt.Fprintf(out, "  Skipped elements      : \033[1m%d\033[0m\n", r.Skipped)
	fmt.Fprintf(out, "  Errors                : \033[1;31m%d\033[0m\n", r.Errors)
	fmt.Fprintln(out)

	fmt.Fprintf(out, "\033[1;33m  Per Source\033[0m\n")
	fmt.Fprintf(out, "  %s\n", thin)
	if len(r.Sources) == 0 {
		fmt.Fprintf(out, "  No sources were run\n")
	} else {
		for _, m := range r.Sources {
			fmt.Fprintf(out, "  %-22s %s  seen %-4d new %-4d upd %-4d dup %-3d err %-3d %s\n",
				truncate(m.Source, 22), statusBadge(m.Status),
				m.ListingsSeen, m.UniquesWritten, m.Updated, m.DuplicatesSuppressed, m.Errors,
				m.Duration().Round(time.Second))
		}
	}
	fmt.Fprintln(out)

	if r.Slowest != nil {
		fmt.Fprintf(out, "\033[1;33m  Slowest Source\033[0m\n")
		fmt.Fprintf(out, "  %s\n", thin)
		fmt.Fprintf(out, "  %s (%s)\n", r.Slowest.Source, r.Slowest.Duration().Round(time.Second))
		fmt.Fprintln(out)
	}

	if r.Errors > 0 {
		fmt.Fprintf(out, "\033[1;33m  Error Samples\033[0m\n")
		fmt.Fprintf(out, "  %s\n", thin)
		for _, m := range r.Sources {
			for _, sample := range m.ErrorSamples {
				fmt.Fprintf(out, "  [%s] %s\n", m.Source, truncate(sample, 80))
			}
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "\033[1;35m%s\033[0m\n\n", sep)
}

func statusBadge(status models.RunStatus) string {
	switch status {
	case models.StatusSuccess:
		return "\033[1;32mSUCCESS\033[0m"
	case models.StatusPartial:
		return "\033[1;33mPARTIAL\033[0m"
	default:
		return "\033[1;31mFAILED \033[0m"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
