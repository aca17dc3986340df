package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kmuchiri/kcse-results/internal/common"
	"github.com/kmuchiri/kcse-results/internal/ocr"
	"github.com/kmuchiri/kcse-results/internal/pipeline"
	"github.com/kmuchiri/kcse-results/internal/rules"
	"github.com/kmuchiri/kcse-results/internal/server"
	"github.com/kmuchiri/kcse-results/internal/store"
	"github.com/kmuchiri/kcse-results/internal/subjects"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload/download HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := slog.Default()

			proc, err := buildProcessor(cfg, cfg.RulesPath, logger)
			if err != nil {
				return err
			}

			runs, err := store.Open(cfg.Store.DBPath)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer func() {
				if cerr := runs.Close(); cerr != nil {
					logger.Error("close run store", "error", cerr)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server, proc, runs, logger)
			return srv.ListenAndServe(ctx)
		},
	}
}

// buildProcessor wires rules, subject table, OCR, and the pipeline
// from config. Shared by serve and process.
func buildProcessor(cfg *common.Config, rulesPath string, logger *slog.Logger) (*pipeline.Processor, error) {
	rs, err := rules.Load(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	compiled, err := rs.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	tbl := subjects.NewTable(rs.SubjectAliases)

	ocrx := ocr.NewExtractor(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		PSM:         rs.OCRPSM,
		OEM:         cfg.OCR.OEM,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	return pipeline.NewProcessor(logger, ocrx, compiled, tbl, cfg.Pipeline.Workers), nil
}
