package extract

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)

	// Runs long enough to be index numbers or marks, built from
	// digits plus the letters tesseract trades them for. Short runs
	// like "BIO" stay out of reach so subject names are untouched.
	reConfusableRun = regexp.MustCompile(`[0-9OIlSB][0-9OIlSB/\-]{4,}`)
)

var confusables = map[rune]rune{
	'O': '0',
	'I': '1',
	'l': '1',
	'S': '5',
	'B': '8',
}

// NormalizeLines cleans raw OCR output into an ordered sequence of
// trimmed, upper-cased lines with empty lines removed. Confusable
// characters are corrected only inside digit-dominated runs. Total:
// always returns a slice, possibly empty.
func NormalizeLines(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	s := reCRLF.ReplaceAllString(raw, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = fixConfusables(line)
		out = append(out, strings.ToUpper(line))
	}
	return out
}

// fixConfusables rewrites O/I/l/S/B to digits inside runs where
// genuine digits dominate. Applied before upper-casing so lowercase
// "l" is still visible.
func fixConfusables(line string) string {
	return reConfusableRun.ReplaceAllStringFunc(line, func(run string) string {
		digits := 0
		for _, r := range run {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		// A run that is mostly letters is a word, not a number.
		if digits*2 < len(run) {
			return run
		}
		var b strings.Builder
		b.Grow(len(run))
		for _, r := range run {
			if d, ok := confusables[r]; ok {
				r = d
			}
			b.WriteRune(r)
		}
		return b.String()
	})
}
