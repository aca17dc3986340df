package ocr

import (
	"context"
	"errors"
	"slices"
	"testing"
)

type fakeRunner struct {
	name   string
	args   []string
	stdout []byte
	stderr []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return f.stdout, f.stderr, f.err
}

func TestExtractTextBuildsTesseractArgs(t *testing.T) {
	fr := &fakeRunner{stdout: []byte("INDEX NO: 12345678\nENGLISH A\n")}
	e := NewExtractor(Config{Lang: "eng", PSM: 6, OEM: 1, TessdataDir: "/opt/tessdata"}, nil)
	e.runner = fr

	res, err := e.ExtractText(context.Background(), "slip.png")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if fr.name != "tesseract" {
		t.Errorf("command = %q, want tesseract", fr.name)
	}
	want := []string{"slip.png", "stdout", "-l", "eng", "--psm", "6", "--oem", "1", "--tessdata-dir", "/opt/tessdata"}
	if !slices.Equal(fr.args, want) {
		t.Errorf("args = %v, want %v", fr.args, want)
	}
	if res.Text != "INDEX NO: 12345678\nENGLISH A\n" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Language != "eng" {
		t.Errorf("Language = %q", res.Language)
	}
}

func TestExtractTextDefaults(t *testing.T) {
	fr := &fakeRunner{stdout: []byte("x")}
	e := NewExtractor(Config{}, nil)
	e.runner = fr

	if _, err := e.ExtractText(context.Background(), "a.png"); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := []string{"a.png", "stdout", "-l", "eng", "--psm", "6"}
	if !slices.Equal(fr.args, want) {
		t.Errorf("args = %v, want defaults %v", fr.args, want)
	}
}

func TestExtractTextStripsBoxNoise(t *testing.T) {
	fr := &fakeRunner{stdout: []byte("ENGLISH A\n------\nMATH B\n")}
	e := NewExtractor(Config{}, nil)
	e.runner = fr

	res, err := e.ExtractText(context.Background(), "a.png")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if res.Text != "ENGLISH A\n\nMATH B\n" {
		t.Errorf("Text = %q, want separator line removed", res.Text)
	}
}

func TestExtractTextCommandFailure(t *testing.T) {
	fr := &fakeRunner{stderr: []byte("Error opening data file"), err: errors.New("exit status 1")}
	e := NewExtractor(Config{}, nil)
	e.runner = fr

	res, err := e.ExtractText(context.Background(), "a.png")
	if err == nil {
		t.Fatal("want error when tesseract fails")
	}
	if len(res.Warnings) == 0 || res.Warnings[0] != "Error opening data file" {
		t.Errorf("Warnings = %v, want stderr carried over", res.Warnings)
	}
}

func TestHeuristicConfidence(t *testing.T) {
	tests := []struct {
		name string
		txt  string
		min  float32
		max  float32
	}{
		{"empty", "", 0.15, 0.25},
		{"garbage", "~~~ ###", 0.15, 0.25},
		{"full slip", "INDEX NO: 44748019001\nENGLISH A\nKISWAHILI B+\nMATHEMATICS A-\nBIOLOGY C\nMEAN GRADE B (PLAIN) overall standing", 0.85, 1.0},
		{"index only", "here is 12345678 and nothing else", 0.45, 0.55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heuristicConfidence(tt.txt)
			if got < tt.min || got > tt.max {
				t.Errorf("heuristicConfidence = %v, want in [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}
