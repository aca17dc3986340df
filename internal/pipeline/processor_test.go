package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kmuchiri/kcse-results/internal/ocr"
	"github.com/kmuchiri/kcse-results/internal/rules"
	"github.com/kmuchiri/kcse-results/internal/subjects"
	"github.com/kmuchiri/kcse-results/internal/template"
)

// stubOCR serves canned text per filename; the pipeline never needs
// a real tesseract in tests.
type stubOCR struct {
	texts map[string]string
	errs  map[string]error
}

func (s stubOCR) ExtractText(_ context.Context, path string) (ocr.Result, error) {
	name := filepath.Base(path)
	if err, ok := s.errs[name]; ok {
		return ocr.Result{}, err
	}
	return ocr.Result{Text: s.texts[name], Confidence: 0.9}, nil
}

func newTestProcessor(t *testing.T, stub stubOCR) *Processor {
	t.Helper()
	rs, err := rules.Default().Compile()
	if err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	tbl := subjects.NewTable(rules.Default().SubjectAliases)
	return NewProcessor(nil, stub, rs, tbl, 2)
}

func buildTemplate(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

func standardTemplate(t *testing.T) []byte {
	t.Helper()
	return buildTemplate(t,
		[]any{"INDEXNO", "NAME", "ENG", "MAT", "MEAN GRADE"},
		[]any{"12345678", "ASHA MOHAMED"},
		[]any{"99999999", "CAROL NJERI"},
	)
}

func cellValue(t *testing.T, data []byte, cell string) string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer func() { _ = f.Close() }()
	v, err := f.GetCellValue(f.GetSheetName(0), cell)
	if err != nil {
		t.Fatalf("GetCellValue(%s): %v", cell, err)
	}
	return v
}

func TestProcessHappyPath(t *testing.T) {
	stub := stubOCR{texts: map[string]string{
		"slip.png": "INDEX NO: 12345678\nENGLISH A\nMATH B+\nMEAN GRADE B",
	}}
	p := newTestProcessor(t, stub)

	out, report, err := p.ProcessPages(context.Background(), standardTemplate(t),
		[]Page{{Filename: "slip.png", Path: "slip.png"}})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want processed=1 failed=0", report)
	}
	if got := cellValue(t, out, "C2"); got != "A" {
		t.Errorf("ENG cell = %q, want A", got)
	}
	if got := cellValue(t, out, "D2"); got != "B+" {
		t.Errorf("MAT cell = %q, want B+", got)
	}
	if got := cellValue(t, out, "E2"); got != "B" {
		t.Errorf("MEAN cell = %q, want B", got)
	}
}

func TestProcessGarbledImageDoesNotBlockSiblings(t *testing.T) {
	stub := stubOCR{texts: map[string]string{
		"good.png":   "INDEX NO: 12345678\nENGLISH A\nMATH B+\nMEAN GRADE B",
		"blurry.png": "~~~ ### ***",
	}}
	p := newTestProcessor(t, stub)

	out, report, err := p.ProcessPages(context.Background(), standardTemplate(t), []Page{
		{Filename: "blurry.png", Path: "blurry.png"},
		{Filename: "good.png", Path: "good.png"},
	})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want processed=1 failed=1", report)
	}
	if !containsSubstring(report.Errors, "NoIndexNumberFound: blurry.png") {
		t.Errorf("Errors = %v", report.Errors)
	}
	if got := cellValue(t, out, "C2"); got != "A" {
		t.Errorf("sibling image not processed, ENG cell = %q", got)
	}
}

func TestProcessOCRFailureIsPerImage(t *testing.T) {
	stub := stubOCR{
		texts: map[string]string{
			"good.png": "INDEX NO: 12345678\nENGLISH A\nMATH B+",
		},
		errs: map[string]error{
			"broken.png": errors.New("tesseract: exit status 1"),
		},
	}
	p := newTestProcessor(t, stub)

	_, report, err := p.ProcessPages(context.Background(), standardTemplate(t), []Page{
		{Filename: "broken.png", Path: "broken.png"},
		{Filename: "good.png", Path: "good.png"},
	})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want processed=1 failed=1", report)
	}
	if !containsSubstring(report.Errors, "OCR failed") {
		t.Errorf("Errors = %v", report.Errors)
	}
}

func TestProcessDuplicateSubmissionLastWins(t *testing.T) {
	stub := stubOCR{texts: map[string]string{
		"first.png":  "INDEX NO: 99999999\nENGLISH A",
		"second.png": "INDEX NO: 99999999\nENGLISH B",
	}}
	p := newTestProcessor(t, stub)

	out, report, err := p.ProcessPages(context.Background(), standardTemplate(t), []Page{
		{Filename: "first.png", Path: "first.png"},
		{Filename: "second.png", Path: "second.png"},
	})
	if err != nil {
		t.Fatalf("ProcessPages: %v", err)
	}
	if report.Processed != 2 {
		t.Errorf("Processed = %d, want 2", report.Processed)
	}
	if got := cellValue(t, out, "C3"); got != "B" {
		t.Errorf("ENG cell = %q, want last-processed B", got)
	}
	var conflict string
	for _, e := range report.Errors {
		if strings.Contains(e, "WriteConflict") {
			conflict = e
		}
	}
	if conflict == "" || !strings.Contains(conflict, "first.png") || !strings.Contains(conflict, "second.png") {
		t.Errorf("conflict entry = %q, must name both files", conflict)
	}
}

func TestProcessDeterministicAcrossRuns(t *testing.T) {
	stub := stubOCR{texts: map[string]string{
		"a.png": "INDEX NO: 12345678\nENGLISH A\nMATH B+\nMEAN GRADE B",
		"b.png": "INDEX NO: 99999999\nENGLISH C\nMATH D+",
		"c.png": "INDEX NO: 99999999\nENGLISH C-",
	}}
	pages := []Page{
		{Filename: "a.png", Path: "a.png"},
		{Filename: "b.png", Path: "b.png"},
		{Filename: "c.png", Path: "c.png"},
	}
	tmpl := standardTemplate(t)

	p := newTestProcessor(t, stub)
	out1, report1, err := p.ProcessPages(context.Background(), tmpl, pages)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	out2, report2, err := p.ProcessPages(context.Background(), tmpl, pages)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(report1, report2) {
		t.Errorf("reports differ:\n%+v\n%+v", report1, report2)
	}
	if !bytes.Equal(out1, out2) {
		t.Error("outputs differ across identical runs")
	}
}

func TestProcessMissingIndexColumnAbortsBeforeOCR(t *testing.T) {
	called := false
	stub := stubOCR{texts: map[string]string{}}
	p := newTestProcessor(t, stub)
	p.OCR = ocrFunc(func(ctx context.Context, path string) (ocr.Result, error) {
		called = true
		return ocr.Result{}, nil
	})

	noIndex := buildTemplate(t, []any{"NAME", "ENG"}, []any{"ASHA MOHAMED"})
	_, _, err := p.ProcessPages(context.Background(), noIndex,
		[]Page{{Filename: "slip.png", Path: "slip.png"}})
	if !errors.Is(err, template.ErrMissingIndexColumn) {
		t.Fatalf("err = %v, want ErrMissingIndexColumn", err)
	}
	if called {
		t.Error("OCR ran despite fatal template error")
	}
}

type ocrFunc func(ctx context.Context, path string) (ocr.Result, error)

func (f ocrFunc) ExtractText(ctx context.Context, path string) (ocr.Result, error) {
	return f(ctx, path)
}

func containsSubstring(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
