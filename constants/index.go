package constants

import (
	"regexp"
	"strings"
)

var (
	reIndexYearSuffix = regexp.MustCompile(`/\d{4}$`)
	reIndexSpace      = regexp.MustCompile(`\s+`)
)

// NormalizeIndexNumber canonicalizes an index number for use as a
// join key: strips a trailing "/<year>" suffix, all whitespace, and
// the ".0" tail that spreadsheets add to numeric cells. Returns ""
// when nothing usable remains.
func NormalizeIndexNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	s = reIndexYearSuffix.ReplaceAllString(s, "")
	s = reIndexSpace.ReplaceAllString(s, "")
	return s
}
