package constants

import "strings"

// GradeAlphabet is the canonical KCSE grade scale, best to worst.
// These exact strings are written into template cells.
var GradeAlphabet = []string{
	"A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D+", "D", "D-", "E",
}

// GradeMissing marks a subject the candidate registered for but did
// not sit. It appears on result slips but is never written to a
// template cell.
const GradeMissing = "X"

var gradeSet = buildGradeSet()

func buildGradeSet() map[string]struct{} {
	m := make(map[string]struct{}, len(GradeAlphabet))
	for _, g := range GradeAlphabet {
		m[g] = struct{}{}
	}
	return m
}

// NormalizeGrade trims and upper-cases a grade token and reports
// whether it belongs to the canonical alphabet. GradeMissing is not
// a writable grade and reports false.
func NormalizeGrade(tok string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(tok))
	_, ok := gradeSet[t]
	return t, ok
}

// IsMissingGrade reports whether the token is the "did not sit" mark.
func IsMissingGrade(tok string) bool {
	return strings.ToUpper(strings.TrimSpace(tok)) == GradeMissing
}
