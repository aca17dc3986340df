// Package pipeline coordinates one run: per-image OCR + extraction
// fanned out over a bounded worker pool, then a single deterministic
// reconcile pass against the template and exactly one template
// write. A crash before the write leaves the template untouched.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmuchiri/kcse-results/internal/extract"
	"github.com/kmuchiri/kcse-results/internal/ocr"
	"github.com/kmuchiri/kcse-results/internal/reconcile"
	"github.com/kmuchiri/kcse-results/internal/rules"
	"github.com/kmuchiri/kcse-results/internal/subjects"
	"github.com/kmuchiri/kcse-results/internal/template"
)

// TextExtractor is the OCR collaborator: image file -> raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (ocr.Result, error)
}

// ImageFile is one uploaded screenshot, in upload order.
type ImageFile struct {
	Filename string
	Data     []byte
}

// Page is one screenshot already on disk.
type Page struct {
	Filename string
	Path     string
}

// Processor runs the extraction-and-population pipeline. Rules and
// Subjects are read-only and shared across all images.
type Processor struct {
	Logger   *slog.Logger
	OCR      TextExtractor
	Rules    *rules.Compiled
	Subjects *subjects.Table
	Workers  int
}

func NewProcessor(logger *slog.Logger, ocrx TextExtractor, rs *rules.Compiled, tbl *subjects.Table, workers int) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Processor{Logger: logger, OCR: ocrx, Rules: rs, Subjects: tbl, Workers: workers}
}

// Process is the single entry point: template bytes plus uploaded
// images in, populated template bytes plus a report out. The error
// is non-nil only for fatal conditions (unreadable template, missing
// index column, cancelled context); per-image problems land in the
// report instead.
func (p *Processor) Process(ctx context.Context, templateBytes []byte, images []ImageFile) ([]byte, *reconcile.RunReport, error) {
	tmpDir, err := os.MkdirTemp("", "kcse-run-*")
	if err != nil {
		return nil, nil, fmt.Errorf("temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	pages := make([]Page, 0, len(images))
	for i, img := range images {
		// Prefix with the position so duplicate filenames cannot
		// collide on disk.
		path := filepath.Join(tmpDir, fmt.Sprintf("%03d_%s", i, filepath.Base(img.Filename)))
		if err := os.WriteFile(path, img.Data, 0o600); err != nil {
			return nil, nil, fmt.Errorf("stage image %s: %w", img.Filename, err)
		}
		pages = append(pages, Page{Filename: img.Filename, Path: path})
	}

	return p.ProcessPages(ctx, templateBytes, pages)
}

// ProcessPages is Process for images already on disk (the server
// saves uploads before processing; the CLI reads a directory).
func (p *Processor) ProcessPages(ctx context.Context, templateBytes []byte, pages []Page) ([]byte, *reconcile.RunReport, error) {
	runID := uuid.New()
	start := time.Now()

	// The index column is the one fatal precondition; fail before
	// any OCR work begins.
	ix, err := template.ParseIndex(templateBytes, p.Rules.Rules, p.Logger)
	if err != nil {
		return nil, nil, err
	}

	p.Logger.Info("pipeline.run.start",
		"run_id", runID.String(),
		"images", len(pages),
		"template_students", ix.StudentCount(),
	)

	results := p.extractAll(ctx, pages)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	plan, report := reconcile.New(p.Logger).Reconcile(ix, results)

	out, err := ix.Apply(templateBytes, plan)
	if err != nil {
		return nil, report, fmt.Errorf("apply write-plan: %w", err)
	}

	p.Logger.Info("pipeline.run.ok",
		"run_id", runID.String(),
		"processed", report.Processed,
		"failed", report.Failed,
		"writes", len(plan),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, report, nil
}

// extractAll runs OCR+extraction per page on a bounded pool. Results
// land in a slice indexed by upload position, so reconciliation sees
// upload order no matter which worker finished first. A failed page
// never blocks its siblings.
func (p *Processor) extractAll(ctx context.Context, pages []Page) []reconcile.Page {
	results := make([]reconcile.Page, len(pages))
	sem := make(chan struct{}, p.Workers)
	var wg sync.WaitGroup

	for i, page := range pages {
		if ctx.Err() != nil {
			// Stop issuing further work; pages not started resolve
			// as failures in the report.
			results[i] = reconcile.Page{
				SourceFile: page.Filename,
				Warnings:   []string{fmt.Sprintf("%s: run cancelled before processing", page.Filename)},
			}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, page Page) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.extractOne(ctx, page)
		}(i, page)
	}
	wg.Wait()
	return results
}

func (p *Processor) extractOne(ctx context.Context, page Page) reconcile.Page {
	res, err := p.OCR.ExtractText(ctx, page.Path)
	if err != nil {
		p.Logger.Warn("pipeline.ocr.failed", "file", page.Filename, "error", err)
		return reconcile.Page{
			SourceFile: page.Filename,
			Warnings:   []string{fmt.Sprintf("%s: OCR failed: %v", page.Filename, err)},
		}
	}

	lines := extract.NormalizeLines(res.Text)
	rec, warnings := extract.Extract(page.Filename, lines, p.Rules, p.Subjects)
	if rec == nil {
		p.Logger.Warn("pipeline.extract.nocandidate", "file", page.Filename, "ocr_bytes", len(res.Text))
		return reconcile.Page{SourceFile: page.Filename, Warnings: warnings}
	}

	p.Logger.Debug("pipeline.extract.ok",
		"file", page.Filename,
		"index", rec.IndexNumber,
		"subjects", len(rec.Subjects),
		"mean", rec.MeanGrade,
		"ocr_confidence", res.Confidence,
	)
	return reconcile.Page{SourceFile: page.Filename, Record: rec, Warnings: warnings}
}
