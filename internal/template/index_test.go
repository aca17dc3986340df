package template

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kmuchiri/kcse-results/internal/rules"
)

// buildTemplate produces XLSX bytes with the given header and data
// rows on the default sheet.
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
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write template: %v", err)
	}
	return buf.Bytes()
}

func standardTemplate(t *testing.T) []byte {
	t.Helper()
	return buildTemplate(t,
		[]any{"INDEXNO", "NAME", "ENG", "KIS", "MAT", "MEAN GRADE"},
		[]any{"12345678", "ASHA MOHAMED"},
		[]any{"87654321", "BRIAN OTIENO"},
		[]any{"99999999", "CAROL NJERI"},
	)
}

func TestParseIndexColumns(t *testing.T) {
	ix, err := ParseIndex(standardTemplate(t), rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	for code, wantCol := range map[string]int{"ENG": 3, "KIS": 4, "MAT": 5} {
		if col, ok := ix.Column(code); !ok || col != wantCol {
			t.Errorf("Column(%s) = (%d, %t), want (%d, true)", code, col, ok, wantCol)
		}
	}
	if col, ok := ix.MeanColumn(); !ok || col != 6 {
		t.Errorf("MeanColumn() = (%d, %t), want (6, true)", col, ok)
	}
	if _, ok := ix.Column("PHY"); ok {
		t.Error("Column(PHY) should be absent")
	}

	for idx, wantRow := range map[string]int{"12345678": 2, "87654321": 3, "99999999": 4} {
		if row, ok := ix.Row(idx); !ok || row != wantRow {
			t.Errorf("Row(%s) = (%d, %t), want (%d, true)", idx, row, ok, wantRow)
		}
	}
	if ix.StudentCount() != 3 {
		t.Errorf("StudentCount() = %d, want 3", ix.StudentCount())
	}
}

func TestParseIndexMissingIndexColumnFatal(t *testing.T) {
	data := buildTemplate(t,
		[]any{"NAME", "ENG", "MAT"},
		[]any{"ASHA MOHAMED", "", ""},
	)
	_, err := ParseIndex(data, rules.Default(), nil)
	if !errors.Is(err, ErrMissingIndexColumn) {
		t.Fatalf("err = %v, want ErrMissingIndexColumn", err)
	}
}

func TestParseIndexDuplicateFirstWins(t *testing.T) {
	data := buildTemplate(t,
		[]any{"INDEXNO", "ENG"},
		[]any{"12345678"},
		[]any{"12345678"},
		[]any{"12345678"},
	)
	ix, err := ParseIndex(data, rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	row, ok := ix.Row("12345678")
	if !ok || row != 2 {
		t.Errorf("Row = (%d, %t), want first occurrence row 2", row, ok)
	}
	if len(ix.Warnings()) != 2 {
		t.Errorf("Warnings = %v, want 2 duplicate warnings", ix.Warnings())
	}
	for _, w := range ix.Warnings() {
		if !strings.Contains(w, "TemplateDuplicateIndex") {
			t.Errorf("warning %q missing TemplateDuplicateIndex tag", w)
		}
	}

	// Repeat parsing: the mapping must be identical run over run.
	ix2, err := ParseIndex(data, rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex (second): %v", err)
	}
	if row2, _ := ix2.Row("12345678"); row2 != row {
		t.Errorf("Row differs across runs: %d vs %d", row, row2)
	}
}

func TestRowSuffixFallback(t *testing.T) {
	data := buildTemplate(t,
		[]any{"INDEXNO", "ENG"},
		[]any{"44748019001"},
	)
	ix, err := ParseIndex(data, rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	// OCR dropped the leading digits.
	if row, ok := ix.Row("748019001"); !ok || row != 2 {
		t.Errorf("Row(9-digit suffix) = (%d, %t), want (2, true)", row, ok)
	}
	// Extracted index carries a year the template lacks.
	if row, ok := ix.Row("44748019001/2019"); !ok || row != 2 {
		t.Errorf("Row(with year) = (%d, %t), want (2, true)", row, ok)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	data := standardTemplate(t)
	ix, err := ParseIndex(data, rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}

	row, _ := ix.Row("12345678")
	engCol, _ := ix.Column("ENG")
	matCol, _ := ix.Column("MAT")
	meanCol, _ := ix.MeanColumn()

	plan := []WriteInstruction{
		{Row: row, Col: engCol, Value: "A"},
		{Row: row, Col: matCol, Value: "B+"},
		{Row: row, Col: meanCol, Value: "B"},
	}
	out, err := ix.Apply(data, plan)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("reopen output: %v", err)
	}
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	checks := map[string]string{"C2": "A", "E2": "B+", "F2": "B"}
	for cell, want := range checks {
		got, err := f.GetCellValue(sheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		if got != want {
			t.Errorf("cell %s = %q, want %q", cell, got, want)
		}
	}

	// Unrelated template structure is untouched.
	if got, _ := f.GetCellValue(sheet, "B2"); got != "ASHA MOHAMED" {
		t.Errorf("cell B2 = %q, want original name preserved", got)
	}
	if got, _ := f.GetCellValue(sheet, "A1"); got != "INDEXNO" {
		t.Errorf("header A1 = %q, want INDEXNO", got)
	}
}

func TestApplyLastWinsPerCell(t *testing.T) {
	data := standardTemplate(t)
	ix, err := ParseIndex(data, rules.Default(), nil)
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	row, _ := ix.Row("99999999")
	engCol, _ := ix.Column("ENG")

	plan := []WriteInstruction{
		{Row: row, Col: engCol, Value: "A"},
		{Row: row, Col: engCol, Value: "B"},
	}
	out, err := ix.Apply(data, plan)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = f.Close() }()
	cell, _ := excelize.CoordinatesToCellName(engCol, row)
	if got, _ := f.GetCellValue(f.GetSheetName(0), cell); got != "B" {
		t.Errorf("cell %s = %q, want later write B", cell, got)
	}
}
