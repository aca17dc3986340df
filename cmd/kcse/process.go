package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kmuchiri/kcse-results/constants"
	"github.com/kmuchiri/kcse-results/internal/common"
	"github.com/kmuchiri/kcse-results/internal/pipeline"
	"github.com/kmuchiri/kcse-results/internal/store"
)

func newProcessCommand() *cobra.Command {
	var (
		templatePath string
		imagesDir    string
		outPath      string
		rulesPath    string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process a directory of screenshots into a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			logger := slog.Default()
			if workers > 0 {
				cfg.Pipeline.Workers = workers
			}
			if rulesPath == "" {
				rulesPath = cfg.RulesPath
			}

			proc, err := buildProcessor(cfg, rulesPath, logger)
			if err != nil {
				return err
			}

			templateBytes, err := os.ReadFile(templatePath)
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}

			pages, err := collectPages(imagesDir)
			if err != nil {
				return err
			}
			if len(pages) == 0 {
				return fmt.Errorf("no screenshots found in %s", imagesDir)
			}

			if outPath == "" {
				outPath = filepath.Join(filepath.Dir(templatePath),
					fmt.Sprintf("kcse_results_%s.xlsx", time.Now().Format("20060102_150405")))
			}

			started := time.Now()
			out, report, err := proc.ProcessPages(cmd.Context(), templateBytes, pages)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			recordBatchRun(cmd.Context(), cfg, report.Processed, report.Failed, len(report.Errors), len(pages), started, filepath.Base(outPath), logger)

			fmt.Printf("Processed: %d\nFailed:    %d\nOutput:    %s\n", report.Processed, report.Failed, outPath)
			for _, msg := range report.Errors {
				fmt.Printf("  - %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "path to the XLSX template (required)")
	cmd.Flags().StringVar(&imagesDir, "images-dir", "", "directory of result-slip screenshots (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output XLSX path (default: next to template)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "extraction rules JSON file")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent OCR workers")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("images-dir")
	return cmd
}

// collectPages lists the directory's screenshots in name order, so
// batch runs have a stable processing order.
func collectPages(dir string) ([]pipeline.Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read images dir: %w", err)
	}
	var pages []pipeline.Page
	for _, e := range entries {
		if e.IsDir() || !constants.IsAllowedImage(e.Name()) {
			continue
		}
		pages = append(pages, pipeline.Page{
			Filename: e.Name(),
			Path:     filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Filename < pages[j].Filename })
	return pages, nil
}

func recordBatchRun(ctx context.Context, cfg *common.Config, processed, failed, errCount, images int, started time.Time, outName string, logger *slog.Logger) {
	runs, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Warn("open run store", "error", err)
		return
	}
	defer func() { _ = runs.Close() }()

	status := constants.RunStatusOK
	if failed > 0 {
		status = constants.RunStatusPartial
	}
	if processed == 0 {
		status = constants.RunStatusFailed
	}
	run := store.Run{
		ID:         uuid.New().String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Status:     status,
		Images:     images,
		Processed:  processed,
		Failed:     failed,
		ErrorCount: errCount,
		OutputFile: outName,
	}
	if err := runs.RecordRun(ctx, run); err != nil {
		logger.Warn("record run", "error", err)
	}
}
