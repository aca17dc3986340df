package extract

import (
	"reflect"
	"testing"
)

func TestNormalizeLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "empty input",
			in:   "",
			want: []string{},
		},
		{
			name: "whitespace only",
			in:   " \n\t \r\n  ",
			want: []string{},
		},
		{
			name: "crlf and blank lines collapse",
			in:   "INDEX NO: 12345678\r\n\r\nEnglish  A\r\nMath\tB+\n",
			want: []string{"INDEX NO: 12345678", "ENGLISH A", "MATH B+"},
		},
		{
			name: "confusables fixed inside digit runs",
			in:   "447480I900l/2019 - JOHN DOE",
			want: []string{"44748019001/2019 - JOHN DOE"},
		},
		{
			name: "subject names untouched",
			in:   "Biology B-\nBusiness Studies C+",
			want: []string{"BIOLOGY B-", "BUSINESS STUDIES C+"},
		},
		{
			name: "letter O in short runs kept",
			in:   "MEAN GRADE B (GOOD)",
			want: []string{"MEAN GRADE B (GOOD)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLines(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeLines(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFixConfusablesMixedRun(t *testing.T) {
	// A run that is mostly letters must stay a word even when it is
	// long enough to match the run pattern.
	in := "BISSSOB EXAM CENTRE"
	got := NormalizeLines(in)
	if len(got) != 1 || got[0] != in {
		t.Errorf("letter-dominated run was rewritten: %v", got)
	}
}
