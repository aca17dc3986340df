// Package ocr shells out to tesseract to turn result-slip
// screenshots into raw text. The text is treated as an opaque, noisy
// producer output; all interpretation happens downstream in extract.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// Config holds tesseract invocation settings.
type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Lang      string // default "eng"

	PSM int // page segmentation mode; 6 suits the uniform slip block
	OEM int // 1 = LSTM; leave 0 to use default

	TessdataDir string
}

// Result is one image's OCR outcome.
type Result struct {
	Text       string
	Language   string
	Duration   time.Duration
	Confidence float32
	Warnings   []string
}

// Extractor runs tesseract on screenshot files.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

// ExtractText OCRs one image file. An error means tesseract itself
// failed; empty-but-successful output is returned as-is and handled
// by the caller as a no-candidate page.
func (e *Extractor) ExtractText(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		e.logger.Error("ocr.tesseract.failed", "path", path, "error", err)
		return Result{Warnings: []string{string(errb)}}, fmt.Errorf("tesseract: %w", err)
	}

	txt := reBoxNoise.ReplaceAllString(string(out), "")
	res := Result{
		Text:       txt,
		Language:   e.cfg.Lang,
		Duration:   time.Since(start),
		Confidence: heuristicConfidence(txt),
	}
	e.logger.Debug("ocr.tesseract.ok",
		"path", path,
		"bytes", len(txt),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
