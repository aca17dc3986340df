// Package subjects maps free-text subject names found in OCR text to
// canonical subject codes.
package subjects

import (
	"sort"
	"strings"

	"github.com/kmuchiri/kcse-results/constants"
)

// Table is an immutable subject-name lookup. Built once at startup
// from the configured aliases and shared by reference across all
// extraction calls; never mutated after NewTable returns.
type Table struct {
	codes   map[string]struct{}
	exact   map[string]string
	aliases []aliasEntry // longest key first, for substring fallback
}

type aliasEntry struct {
	key  string
	code string
}

// NewTable builds a Table from alias->code mappings. Alias keys are
// matched case-insensitively, exact first, then as substrings of the
// slip's subject text (slips truncate and decorate subject names).
func NewTable(aliases map[string]string) *Table {
	t := &Table{
		codes: constants.SubjectCodeSet(),
		exact: make(map[string]string, len(aliases)),
	}
	for k, v := range aliases {
		key := strings.ToUpper(strings.TrimSpace(k))
		code := strings.ToUpper(strings.TrimSpace(v))
		if key == "" || code == "" {
			continue
		}
		t.exact[key] = code
		t.aliases = append(t.aliases, aliasEntry{key: key, code: code})
	}
	// Longest alias wins for substring matching, so "HISTORY AND
	// GOVERNMENT" beats "HISTORY"; ties break lexically for
	// determinism.
	sort.Slice(t.aliases, func(i, j int) bool {
		if len(t.aliases[i].key) != len(t.aliases[j].key) {
			return len(t.aliases[i].key) > len(t.aliases[j].key)
		}
		return t.aliases[i].key < t.aliases[j].key
	})
	return t
}

// Resolve maps a free-text subject name to a canonical code.
func (t *Table) Resolve(name string) (string, bool) {
	n := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	if n == "" {
		return "", false
	}
	// Already a canonical code.
	if _, ok := t.codes[n]; ok {
		return n, true
	}
	if code, ok := t.exact[n]; ok {
		return code, true
	}
	for _, a := range t.aliases {
		if strings.Contains(n, a.key) {
			return a.code, true
		}
	}
	return "", false
}

// IsCode reports whether s is a canonical subject code.
func (t *Table) IsCode(s string) bool {
	_, ok := t.codes[strings.ToUpper(strings.TrimSpace(s))]
	return ok
}
