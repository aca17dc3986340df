// Package reconcile merges extracted candidate records against the
// template index into a write-plan and a run report. The pass is
// strictly sequential in upload order so duplicate-submission
// resolution is reproducible across runs.
package reconcile

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kmuchiri/kcse-results/internal/extract"
	"github.com/kmuchiri/kcse-results/internal/template"
)

// WriteInstruction is re-exported from the template package; the
// reconciler produces them, the template writer consumes them.
type WriteInstruction = template.WriteInstruction

// Page is one uploaded image's extraction outcome in upload order.
// Record is nil when extraction produced no candidate; Warnings then
// carry the reason.
type Page struct {
	SourceFile string
	Record     *extract.CandidateRecord
	Warnings   []string
}

// RunReport aggregates the outcome of a full run. Errors is ordered:
// template warnings first, then per-page messages in upload order.
// Immutable once returned from Reconcile.
type RunReport struct {
	Processed int
	Failed    int
	Errors    []string
}

// Reconciler merges pages against a template index.
type Reconciler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// cellClaim remembers which source file last wrote a cell, for
// conflict audit messages.
type cellClaim struct {
	source string
	value  string
}

// Reconcile walks pages in order and emits the complete write-plan
// plus the final report. The index is read-only here. Conflicting
// cell writes resolve last-wins, each overwrite recorded with both
// source filenames.
func (r *Reconciler) Reconcile(ix *template.Index, pages []Page) ([]WriteInstruction, *RunReport) {
	report := &RunReport{Errors: append([]string{}, ix.Warnings()...)}
	var plan []WriteInstruction
	claims := make(map[[2]int]cellClaim)

	for _, page := range pages {
		report.Errors = append(report.Errors, page.Warnings...)
		if page.Record == nil {
			report.Failed++
			continue
		}
		rec := page.Record

		row, ok := ix.Row(rec.IndexNumber)
		if !ok {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Index %s not found in template", rec.IndexNumber))
			r.logger.Warn("reconcile.index.unmatched", "index", rec.IndexNumber, "source", rec.SourceFile)
			continue
		}
		report.Processed++

		for _, code := range sortedCodes(rec.Subjects) {
			col, ok := ix.Column(code)
			if !ok {
				// Template simply has no column for this subject;
				// not a failure.
				r.logger.Debug("reconcile.subject.nocolumn", "subject", code, "index", rec.IndexNumber)
				continue
			}
			plan = r.claim(plan, claims, report, row, col, rec.Subjects[code], rec.SourceFile)
		}
		if rec.MeanGrade != "" {
			if col, ok := ix.MeanColumn(); ok {
				plan = r.claim(plan, claims, report, row, col, rec.MeanGrade, rec.SourceFile)
			}
		}

		r.logger.Debug("reconcile.record.ok",
			"index", rec.IndexNumber, "row", row,
			"subjects", len(rec.Subjects), "source", rec.SourceFile,
		)
	}

	return plan, report
}

func (r *Reconciler) claim(plan []WriteInstruction, claims map[[2]int]cellClaim, report *RunReport, row, col int, value, source string) []WriteInstruction {
	cell := [2]int{row, col}
	if prev, taken := claims[cell]; taken && prev.source != source {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"WriteConflict: row %d col %d value %q from %s overwrites %q from %s",
			row, col, value, source, prev.value, prev.source))
	}
	claims[cell] = cellClaim{source: source, value: value}
	return append(plan, WriteInstruction{Row: row, Col: col, Value: value})
}

// sortedCodes fixes subject iteration order so the plan and report
// are deterministic for identical input.
func sortedCodes(m map[string]string) []string {
	codes := make([]string, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
