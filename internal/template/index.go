// Package template loads the uploaded spreadsheet once, builds the
// index-number -> row and subject-code -> column lookups, and applies
// a finished write-plan in a single save.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kmuchiri/kcse-results/constants"
	"github.com/kmuchiri/kcse-results/internal/rules"
)

// ErrMissingIndexColumn is fatal: without the index column no row
// mapping is possible and the run aborts before any image work.
var ErrMissingIndexColumn = errors.New("template: index number column not found")

// Index is the read-only lookup built from the uploaded template.
// Rows and columns are 1-based. Index is never mutated after
// ParseIndex returns.
type Index struct {
	sheet    string
	indexCol int
	nameCol  int
	meanCol  int
	columns  map[string]int // canonical subject code -> column
	rows     map[string]int // normalized index number -> row
	suffixes map[string]int // last 9/10 digits -> row, fallback only
	warnings []string
}

// ParseIndex reads the template bytes, locates the header columns,
// and scans every data row for index numbers. Duplicate index
// numbers keep the first row and record a warning per later
// duplicate, so each index always has a single deterministic
// destination.
func ParseIndex(data []byte, rs *rules.Rules, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("template has no sheets")
	}
	sheet := sheets[0]

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read template rows: %w", err)
	}
	if len(cells) == 0 {
		return nil, ErrMissingIndexColumn
	}

	ix := &Index{
		sheet:    sheet,
		columns:  make(map[string]int),
		rows:     make(map[string]int),
		suffixes: make(map[string]int),
	}
	codes := constants.SubjectCodeSet()

	for i, h := range cells[0] {
		header := strings.TrimSpace(h)
		if header == "" {
			continue
		}
		col := i + 1
		upper := strings.ToUpper(header)
		switch {
		case ix.indexCol == 0 && matchesHeader(header, rs.IndexHeaders):
			ix.indexCol = col
		case ix.meanCol == 0 && matchesHeader(header, rs.MeanHeaders):
			ix.meanCol = col
		case ix.nameCol == 0 && matchesHeader(header, rs.NameHeaders):
			ix.nameCol = col
		default:
			if _, ok := codes[upper]; ok {
				if _, dup := ix.columns[upper]; !dup {
					ix.columns[upper] = col
				}
			}
		}
	}
	if ix.indexCol == 0 {
		return nil, ErrMissingIndexColumn
	}

	for r := 1; r < len(cells); r++ {
		row := cells[r]
		if ix.indexCol > len(row) {
			continue
		}
		key := constants.NormalizeIndexNumber(row[ix.indexCol-1])
		if key == "" {
			continue
		}
		if first, dup := ix.rows[key]; dup {
			ix.warnings = append(ix.warnings, fmt.Sprintf(
				"TemplateDuplicateIndex: %s at row %d duplicates row %d; first row kept", key, r+1, first))
			continue
		}
		ix.rows[key] = r + 1
		ix.addSuffixKeys(key, r+1)
	}

	logger.Debug("template.index.built",
		"sheet", sheet,
		"students", len(ix.rows),
		"subject_columns", len(ix.columns),
		"mean_column", ix.meanCol,
		"duplicates", len(ix.warnings),
	)
	return ix, nil
}

// addSuffixKeys registers the last 9 and 10 digits as fallback row
// keys; OCR frequently drops the leading digits of long index
// numbers. Suffix keys never displace an existing entry.
func (ix *Index) addSuffixKeys(key string, row int) {
	for _, n := range []int{9, 10} {
		if len(key) > n {
			suffix := key[len(key)-n:]
			if _, exists := ix.suffixes[suffix]; !exists {
				ix.suffixes[suffix] = row
			}
		}
	}
}

func matchesHeader(header string, names []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, n := range names {
		if strings.Contains(h, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Row resolves an index number to its 1-based template row, exact
// key first, then the 9/10-digit suffix fallbacks in both
// directions.
func (ix *Index) Row(index string) (int, bool) {
	key := constants.NormalizeIndexNumber(index)
	if key == "" {
		return 0, false
	}
	if r, ok := ix.rows[key]; ok {
		return r, true
	}
	for _, n := range []int{9, 10} {
		if len(key) > n {
			if r, ok := ix.rows[key[len(key)-n:]]; ok {
				return r, true
			}
		}
	}
	if r, ok := ix.suffixes[key]; ok {
		return r, true
	}
	return 0, false
}

// Column resolves a canonical subject code to its 1-based column.
func (ix *Index) Column(code string) (int, bool) {
	c, ok := ix.columns[strings.ToUpper(code)]
	return c, ok
}

// MeanColumn returns the mean-grade column, if the template has one.
func (ix *Index) MeanColumn() (int, bool) {
	return ix.meanCol, ix.meanCol != 0
}

// StudentCount returns the number of distinct index numbers mapped.
func (ix *Index) StudentCount() int { return len(ix.rows) }

// Warnings returns the template data-integrity warnings (duplicate
// index numbers), in row order.
func (ix *Index) Warnings() []string { return ix.warnings }
