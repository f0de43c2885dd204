package localpdf

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph.\n\n\n\nSecond one\nwith a wrapped line.\n\n   \n\nThird."
	got := splitParagraphs(text)
	want := []string{"First paragraph.", "Second one\nwith a wrapped line.", "Third."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestClassifyParagraph(t *testing.T) {
	headings := []string{
		"1 Introduction",
		"3.2 Experimental Setup",
		"4.1.1. Ablations",
	}
	for _, h := range headings {
		if classifyParagraph(h) != domain.ElementHeading {
			t.Fatalf("%q should classify as heading", h)
		}
	}

	bodies := []string{
		"The model achieves 92.4 accuracy on the benchmark suite.",
		"1 Introduction to the topic follows in a much longer sentence that keeps going past heading length",
		"plain prose without numbering",
	}
	for _, b := range bodies {
		if classifyParagraph(b) != domain.ElementText {
			t.Fatalf("%q should classify as text", b)
		}
	}
}

func TestNormalizeRenderedNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"raw-01.png", "raw-02.png", "raw-12.png", "unrelated.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := normalizeRenderedNames(dir); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	want := []string{"page_001.png", "page_002.png", "page_012.png", "unrelated.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestParseMissingPDF(t *testing.T) {
	parser := New(t.TempDir(), t.TempDir(), 150)
	if _, err := parser.Parse(context.Background(), "absent"); err == nil {
		t.Fatalf("expected error for missing pdf")
	}
}
