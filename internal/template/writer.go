package template

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// WriteInstruction is one cell of the write-plan. Row and Col are
// 1-based template coordinates.
type WriteInstruction struct {
	Row   int
	Col   int
	Value string
}

// Apply writes the plan into a copy of the template and returns the
// serialized workbook. Later instructions for the same cell
// overwrite earlier ones, so applying the same plan twice yields the
// same output. The input bytes are never modified and the workbook
// is saved exactly once.
func (ix *Index) Apply(data []byte, plan []WriteInstruction) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Collapse the plan to a single value per cell, preserving
	// last-wins order, then write in row/col order so the saved
	// workbook is byte-identical for identical plans.
	final := make(map[[2]int]string, len(plan))
	for _, wi := range plan {
		final[[2]int{wi.Row, wi.Col}] = wi.Value
	}
	cells := make([][2]int, 0, len(final))
	for cell := range final {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i][0] != cells[j][0] {
			return cells[i][0] < cells[j][0]
		}
		return cells[i][1] < cells[j][1]
	})
	for _, cell := range cells {
		name, err := excelize.CoordinatesToCellName(cell[1], cell[0])
		if err != nil {
			return nil, fmt.Errorf("cell (%d,%d): %w", cell[0], cell[1], err)
		}
		if err := f.SetCellStr(ix.sheet, name, final[cell]); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", name, err)
		}
	}

	if err := ix.forceIndexColumnText(f); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// forceIndexColumnText sets the index column to text format so
// spreadsheet apps do not render index numbers as floats with a ".0"
// tail, which would break the join key on the next round trip.
func (ix *Index) forceIndexColumnText(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{NumFmt: 49}) // 49 = "@" (text)
	if err != nil {
		return fmt.Errorf("text style: %w", err)
	}
	col, err := excelize.ColumnNumberToName(ix.indexCol)
	if err != nil {
		return fmt.Errorf("index column name: %w", err)
	}
	if err := f.SetColStyle(ix.sheet, col, style); err != nil {
		return fmt.Errorf("set index column style: %w", err)
	}
	return nil
}
