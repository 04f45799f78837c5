package extract

import (
	"context"
	"testing"

	"github.com/abhisek/examgen/internal/errs"
)

func TestExtract_Text(t *testing.T) {
	tests := []struct {
		filename string
		data     string
	}{
		{"notes.txt", "Cells are the basic unit of life."},
		{"Chapter1.MD", "# Cells\n\nCells are the basic unit of life."},
		{"readme.markdown", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := Extract(context.Background(), tt.filename, []byte(tt.data))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tt.data {
				t.Fatalf("got %q, want %q", got, tt.data)
			}
		})
	}
}

func TestExtract_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported extension", "slides.pptx", []byte("x")},
		{"no extension", "notes", []byte("x")},
		{"empty text", "notes.txt", nil},
		{"corrupt pdf", "book.pdf", []byte("this is not a pdf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(context.Background(), tt.filename, tt.data)
			e, ok := errs.As(err)
			if !ok || e.Kind != errs.KindInput || e.Stage != errs.StageExtract {
				t.Fatalf("err = %v, want InputError at extract", err)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	got := Supported()
	want := []string{".markdown", ".md", ".pdf", ".txt"}
	if len(got) != len(want) {
		t.Fatalf("Supported() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Supported() = %v, want %v", got, want)
		}
	}
}
