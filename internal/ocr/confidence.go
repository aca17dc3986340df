package ocr

import (
	"regexp"
	"strings"
)

var (
	reIndexShape = regexp.MustCompile(`\b\d{8,11}\b`)
	reGradeShape = regexp.MustCompile(`(?i)\b[A-E][+-]?\b`)
	reMeanShape  = regexp.MustCompile(`(?i)mean\s*grade`)
)

// heuristicConfidence scores decoded text by result-slip artifacts:
// an index-number-shaped digit run, several grade tokens, and a mean
// grade label. Low scores flag pages the report should call out.
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reIndexShape.MatchString(txt) {
		score += 0.3
	}
	if len(reGradeShape.FindAllString(txt, 4)) >= 3 {
		score += 0.25
	}
	if reMeanShape.MatchString(txt) {
		score += 0.15
	}
	if len(strings.TrimSpace(txt)) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
