// Package rules holds the run-time extraction rules: index-number
// patterns, subject aliases, template header names, and the OCR page
// segmentation mode. Rules are loaded once at startup (from an
// optional JSON file layered over compiled-in defaults), compiled,
// and shared read-only by every extraction call.
package rules

import (
	"fmt"
	"os"
	"regexp"

	"github.com/kmuchiri/kcse-results/constants"
)

// Rules is the raw, serializable rule set.
type Rules struct {
	// IndexPatterns are tried in order; the first pattern with a
	// match is authoritative for a page.
	IndexPatterns []string `json:"index_patterns"`

	// SubjectAliases maps slip subject-name variants to canonical
	// codes. Merged over constants.DefaultSubjectAliases.
	SubjectAliases map[string]string `json:"subject_aliases"`

	// RejectIndexes lists index-number prefixes that are never real
	// students (sample slips); matching candidates are skipped.
	RejectIndexes []string `json:"reject_indexes"`

	// Template header names, matched case-insensitively.
	IndexHeaders []string `json:"index_headers"`
	NameHeaders  []string `json:"name_headers"`
	MeanHeaders  []string `json:"mean_headers"`

	// OCRPSM is passed through to tesseract; opaque to the core.
	OCRPSM int `json:"ocr_psm"`
}

// Default returns the compiled-in rule set, matching the patterns
// KNEC result slips actually carry.
func Default() *Rules {
	return &Rules{
		IndexPatterns: []string{
			`(\d{10,11}[/\-]\d{2,4})`, // 44748019001/2019
			`(\d{10,11})`,             // bare 10-11 digit numbers
			`(\d{6,10}[/\-]\d{2,4})`,  // 123456/2024
			`(\d{6,10})`,              // bare shorter numbers
		},
		SubjectAliases: cloneAliases(constants.DefaultSubjectAliases),
		RejectIndexes:  nil,
		IndexHeaders:   []string{"index number", "index no", "indexno", "index_number", "index"},
		NameHeaders:    []string{"name"},
		MeanHeaders:    []string{"mean_grade", "mean grade", "mean"},
		OCRPSM:         6,
	}
}

// Load reads a rules file, validates it against the schema, and
// layers it over the defaults. An empty path returns the defaults.
func Load(path string) (*Rules, error) {
	base := Default()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	loaded, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	// File entries override defaults field-by-field; aliases merge.
	if len(loaded.IndexPatterns) > 0 {
		base.IndexPatterns = loaded.IndexPatterns
	}
	for k, v := range loaded.SubjectAliases {
		base.SubjectAliases[k] = v
	}
	if len(loaded.RejectIndexes) > 0 {
		base.RejectIndexes = loaded.RejectIndexes
	}
	if len(loaded.IndexHeaders) > 0 {
		base.IndexHeaders = loaded.IndexHeaders
	}
	if len(loaded.NameHeaders) > 0 {
		base.NameHeaders = loaded.NameHeaders
	}
	if len(loaded.MeanHeaders) > 0 {
		base.MeanHeaders = loaded.MeanHeaders
	}
	if loaded.OCRPSM > 0 {
		base.OCRPSM = loaded.OCRPSM
	}
	return base, nil
}

// Compiled is a Rules with its regular expressions compiled. Built
// once at startup; safe for concurrent use.
type Compiled struct {
	*Rules
	IndexRes []*regexp.Regexp
}

// Compile compiles the index patterns. Invalid patterns are a startup
// error, not a per-page condition.
func (r *Rules) Compile() (*Compiled, error) {
	c := &Compiled{Rules: r}
	for _, p := range r.IndexPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("index pattern %q: %w", p, err)
		}
		c.IndexRes = append(c.IndexRes, re)
	}
	if len(c.IndexRes) == 0 {
		return nil, fmt.Errorf("no index patterns configured")
	}
	return c, nil
}

func cloneAliases(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
