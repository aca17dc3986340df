package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kmuchiri/kcse-results/constants"
	"github.com/kmuchiri/kcse-results/internal/common"
	"github.com/kmuchiri/kcse-results/internal/pipeline"
	"github.com/kmuchiri/kcse-results/internal/store"
	"github.com/kmuchiri/kcse-results/internal/template"
)

const maxErrorsShown = 10

type uploadResponse struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	Processed   int      `json:"processed"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors"`
	OutputFile  string   `json:"output_file"`
	DownloadURL string   `json:"download_url"`
	FileSize    int64    `json:"file_size"`
}

// handleUpload accepts one template plus one-or-more screenshots,
// runs the pipeline, saves the populated template, and renders the
// run report.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "could not parse upload: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	templates := r.MultipartForm.File["template"]
	screenshots := r.MultipartForm.File["screenshots"]
	if len(templates) == 0 || len(screenshots) == 0 {
		s.writeError(w, http.StatusBadRequest, "Missing files. Please upload both screenshots and template.")
		return
	}

	tmplHeader := templates[0]
	if !constants.IsAllowedTemplate(tmplHeader.Filename) {
		s.writeError(w, http.StatusBadRequest, "Template must be an Excel file (.xlsx)")
		return
	}
	templateBytes, err := readPart(tmplHeader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read template: "+err.Error())
		return
	}

	var (
		images     []pipeline.ImageFile
		preErrors  []string
		preFailed  int
		totalPages int
	)
	for _, fh := range screenshots {
		if fh.Filename == "" {
			continue
		}
		totalPages++
		if !constants.IsAllowedImage(fh.Filename) {
			preFailed++
			preErrors = append(preErrors, fmt.Sprintf("%s: Invalid file type", fh.Filename))
			continue
		}
		data, err := readPart(fh)
		if err != nil {
			preFailed++
			preErrors = append(preErrors, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		name := filepath.Base(fh.Filename)
		if err := s.keepUploadCopy(name, data); err != nil {
			s.logger.Warn("server.upload.keepcopy", "file", name, "error", err)
		}
		images = append(images, pipeline.ImageFile{Filename: name, Data: data})
	}

	if len(images) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "No processable screenshots in upload.",
			"errors": capErrors(preErrors),
		})
		return
	}

	out, report, err := s.proc.Process(r.Context(), templateBytes, images)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, template.ErrMissingIndexColumn) {
			status = http.StatusBadRequest
		}
		s.logger.Error("server.upload.failed",
			"request_id", common.RequestIDFromContext(r.Context()), "error", err)
		s.recordRun(r, store.Run{
			ID: uuid.New().String(), StartedAt: started, FinishedAt: time.Now(),
			Status: constants.RunStatusFailed, Images: totalPages,
		})
		s.writeError(w, status, "Processing error: "+err.Error())
		return
	}

	report.Failed += preFailed
	allErrors := append(append([]string{}, preErrors...), report.Errors...)

	if report.Processed == 0 {
		s.recordRun(r, store.Run{
			ID: uuid.New().String(), StartedAt: started, FinishedAt: time.Now(),
			Status: constants.RunStatusFailed, Images: totalPages,
			Failed: report.Failed, ErrorCount: len(allErrors),
		})
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "No data extracted from screenshots. Please check image quality.",
			"errors": capErrors(allErrors),
		})
		return
	}

	outName := fmt.Sprintf("kcse_results_%s.xlsx", time.Now().Format("20060102_150405"))
	outPath := filepath.Join(s.cfg.OutputDir, outName)
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err == nil {
		err = os.WriteFile(outPath, out, 0o644)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not save output: "+err.Error())
		return
	}

	status := constants.RunStatusOK
	if report.Failed > 0 {
		status = constants.RunStatusPartial
	}
	s.recordRun(r, store.Run{
		ID: uuid.New().String(), StartedAt: started, FinishedAt: time.Now(),
		Status: status, Images: totalPages,
		Processed: report.Processed, Failed: report.Failed,
		ErrorCount: len(allErrors), OutputFile: outName,
	})

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success:     true,
		Message:     fmt.Sprintf("Successfully processed %d screenshots", report.Processed),
		Processed:   report.Processed,
		Failed:      report.Failed,
		Errors:      capErrors(allErrors),
		OutputFile:  outName,
		DownloadURL: "/download/" + outName,
		FileSize:    int64(len(out)),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if name == "" || name == "." || name == ".." {
		s.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	path := filepath.Join(s.cfg.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "kcse-results",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uploads := countFiles(s.cfg.UploadDir, "*")
	outputs := countFiles(s.cfg.OutputDir, "*.xlsx")

	stats := map[string]any{
		"uploads": uploads,
		"outputs": outputs,
		"version": "1.0.0",
	}
	if s.runs != nil {
		if runs, processed, failed, err := s.runs.Totals(r.Context()); err == nil {
			stats["runs"] = runs
			stats["processed"] = processed
			stats["failed"] = failed
		}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) recordRun(r *http.Request, run store.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(r.Context(), run); err != nil {
		s.logger.Warn("server.run.record", "error", err)
	}
}

// keepUploadCopy mirrors the upload into the upload dir so failed
// extractions can be re-inspected.
func (s *Server) keepUploadCopy(name string, data []byte) error {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cfg.UploadDir, name), data, 0o644)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("server.response.encode", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func capErrors(errs []string) []string {
	if len(errs) > maxErrorsShown {
		return errs[:maxErrorsShown]
	}
	return errs
}

func countFiles(dir, pattern string) int {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	return len(matches)
}
