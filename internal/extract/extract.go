// Package extract turns normalized OCR lines into candidate student
// records. Extraction is a pure function over the line sequence plus
// the shared rule set; it never errors to the caller — every failure
// mode becomes either "no candidate" plus a warning, or a candidate
// carrying warnings. One bad image can therefore never abort a batch.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kmuchiri/kcse-results/constants"
	"github.com/kmuchiri/kcse-results/internal/rules"
	"github.com/kmuchiri/kcse-results/internal/subjects"
)

// CandidateRecord is the extracted-but-unreconciled result of one
// image. IndexNumber is stored normalized (no year suffix, no
// whitespace). A page yields at most one candidate.
type CandidateRecord struct {
	IndexNumber string
	Subjects    map[string]string // canonical code -> grade token
	MeanGrade   string            // empty when the slip has none
	SourceFile  string
	Warnings    []string
}

var (
	// Tabular KNEC shape: "1 101 ENGLISH A (PLAIN)". The grade class
	// is deliberately broad; tokens are validated afterwards so
	// out-of-alphabet grades surface as warnings instead of
	// vanishing.
	reTabularLine = regexp.MustCompile(`^(\d+)\s+(\d+)\s+(.+?)\s+([A-Z][+-]?)(?:\s*\([^)]*\))?$`)

	// Plain shape: "ENGLISH A", "MATH B+".
	reSimpleLine = regexp.MustCompile(`^([A-Z][A-Z ./&]{1,40}?)\s+([A-Z][+-]?)$`)

	// Loose fallback over the whole page when line anchoring failed
	// (tesseract sometimes folds the table into one paragraph).
	reLooseTabular = regexp.MustCompile(`(\d+)\s+(\d+)\s+([A-Z][A-Z ]+?)\s+([A-E][+-]?|X)(?:\s*\([^)]*\))?`)

	reMeanGrade = regexp.MustCompile(`MEAN\s*GRADE\s*[:\-]?\s*([A-E][+-]?)\b`)
	reMeanBare  = regexp.MustCompile(`^MEAN\s*[:\-]?\s*([A-E][+-]?)\b`)

	// Index number followed by a dash and the student's printed
	// name; the strongest signal a digit run is the index.
	reNameAfterIndex = regexp.MustCompile(`(\d{10,11})\s*-\s*[A-Z][A-Z ]+`)
)

// Extract scans normalized lines for one student's record. A nil
// record means extraction failed for the page; the returned warnings
// then explain why. When a record is returned its Warnings field
// holds the same slice.
func Extract(sourceFile string, lines []string, rs *rules.Compiled, tbl *subjects.Table) (*CandidateRecord, []string) {
	warnings := []string{}
	text := strings.Join(lines, "\n")

	idx := findIndexNumber(text, rs)
	if idx == "" {
		warnings = append(warnings, fmt.Sprintf("NoIndexNumberFound: %s", sourceFile))
		return nil, warnings
	}

	pairs, mean, w := scanGradeLines(lines)
	warnings = append(warnings, w...)

	// Fall back to the loose whole-page scan only when the line scan
	// found too little to be a plausible slip.
	if len(pairs) < 3 {
		if loose := looseScan(text); len(loose) >= 3 {
			pairs = loose
		}
	}

	grades := make(map[string]string, len(pairs))
	for _, p := range pairs {
		code, ok := tbl.Resolve(p.name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("UnmappedSubject: %s", p.name))
			continue
		}
		if constants.IsMissingGrade(p.grade) {
			// Registered but not sat; never written to the template.
			warnings = append(warnings, fmt.Sprintf("SubjectNotSat: %s", code))
			continue
		}
		grades[code] = p.grade
	}

	if len(grades) == 0 {
		warnings = append(warnings, fmt.Sprintf("%s: index %s found but no subject grades extracted", sourceFile, idx))
	}

	rec := &CandidateRecord{
		IndexNumber: idx,
		Subjects:    grades,
		MeanGrade:   mean,
		SourceFile:  sourceFile,
		Warnings:    warnings,
	}
	return rec, warnings
}

type gradePair struct {
	name  string
	grade string
}

// scanGradeLines walks the page line by line collecting subject/grade
// pairs and the mean grade. Out-of-alphabet grade tokens produce a
// warning and skip the line rather than aborting the page.
func scanGradeLines(lines []string) ([]gradePair, string, []string) {
	var pairs []gradePair
	var mean string
	var warnings []string

	for _, line := range lines {
		if m := reMeanGrade.FindStringSubmatch(line); m != nil {
			if g, ok := constants.NormalizeGrade(m[1]); ok && mean == "" {
				mean = g
			}
			continue
		}
		if m := reMeanBare.FindStringSubmatch(line); m != nil {
			if g, ok := constants.NormalizeGrade(m[1]); ok && mean == "" {
				mean = g
			}
			continue
		}

		var name, tok string
		if m := reTabularLine.FindStringSubmatch(line); m != nil {
			name, tok = m[3], m[4]
		} else if m := reSimpleLine.FindStringSubmatch(line); m != nil {
			name, tok = m[1], m[2]
		} else {
			continue
		}

		name = strings.Join(strings.Fields(name), " ")
		if constants.IsMissingGrade(tok) {
			pairs = append(pairs, gradePair{name: name, grade: constants.GradeMissing})
			continue
		}
		g, ok := constants.NormalizeGrade(tok)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("InvalidGradeToken: %q in line %q", tok, line))
			continue
		}
		pairs = append(pairs, gradePair{name: name, grade: g})
	}
	return pairs, mean, warnings
}

func looseScan(text string) []gradePair {
	var pairs []gradePair
	for _, m := range reLooseTabular.FindAllStringSubmatch(text, -1) {
		name := strings.Join(strings.Fields(m[3]), " ")
		grade := m[4]
		// OCR sometimes glues the grade onto the subject name; a
		// name ending in the grade letter is that artifact.
		if strings.HasSuffix(name, " "+grade[:1]) {
			continue
		}
		pairs = append(pairs, gradePair{name: name, grade: grade})
	}
	return pairs
}

// findIndexNumber picks the page's authoritative index number: the
// name-after-index shape first, then the configured patterns in
// priority order, longest match within a pattern. Reject-listed
// prefixes (sample slips) never match. Returns the normalized key,
// or "" when nothing usable was found.
func findIndexNumber(text string, rs *rules.Compiled) string {
	if m := reNameAfterIndex.FindStringSubmatch(text); m != nil {
		if idx := acceptIndex(m[1], rs); idx != "" {
			return idx
		}
	}
	for _, re := range rs.IndexRes {
		best := ""
		for _, m := range re.FindAllString(text, -1) {
			idx := acceptIndex(m, rs)
			if len(idx) > len(best) {
				best = idx
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

func acceptIndex(raw string, rs *rules.Compiled) string {
	idx := constants.NormalizeIndexNumber(raw)
	if idx == "" {
		return ""
	}
	for _, reject := range rs.RejectIndexes {
		if strings.HasPrefix(idx, reject) {
			return ""
		}
	}
	return idx
}
