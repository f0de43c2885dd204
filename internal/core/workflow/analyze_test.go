package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

type scriptedVision struct {
	finding   string
	err       error
	gotImages int
}

func (s *scriptedVision) CompleteVision(_ context.Context, req domain.VisionRequest) (string, error) {
	s.gotImages = len(req.Images)
	return s.finding, s.err
}

func localChunkOnPage(page int) domain.EvidenceChunk {
	return domain.EvidenceChunk{
		Content:    fmt.Sprintf("chunk on page %d", page),
		Source:     domain.SourceLocalRAG,
		PageNumber: page,
	}
}

func TestSelectPagesExpandsDeduplicatesAndSorts(t *testing.T) {
	evidence := []domain.EvidenceChunk{
		localChunkOnPage(3),
		localChunkOnPage(7),
	}

	pages := selectPages(evidence, 1, 5)
	want := []int{2, 3, 4, 6, 7}
	if !reflect.DeepEqual(pages, want) {
		t.Fatalf("expected %v, got %v", want, pages)
	}
}

func TestSelectPagesClipsBelowFirstPage(t *testing.T) {
	pages := selectPages([]domain.EvidenceChunk{localChunkOnPage(1)}, 1, 5)
	want := []int{1, 2}
	if !reflect.DeepEqual(pages, want) {
		t.Fatalf("expected %v, got %v", want, pages)
	}
}

func TestSelectPagesCapsToMaxPages(t *testing.T) {
	evidence := []domain.EvidenceChunk{
		localChunkOnPage(2),
		localChunkOnPage(5),
		localChunkOnPage(9),
	}

	pages := selectPages(evidence, 1, 3)
	want := []int{1, 2, 3}
	if !reflect.DeepEqual(pages, want) {
		t.Fatalf("expected %v, got %v", want, pages)
	}
}

func TestSelectPagesIgnoresWebAndPagelessChunks(t *testing.T) {
	evidence := []domain.EvidenceChunk{
		{Content: "web", Source: domain.SourceWebSearch, PageNumber: 4},
		{Content: "pageless", Source: domain.SourceLocalRAG},
	}

	if pages := selectPages(evidence, 1, 5); pages != nil {
		t.Fatalf("expected no pages, got %v", pages)
	}
}

func newAnalysisWorkflow(vision *scriptedVision, cfg Config) *Workflow {
	return New(nil, nil, nil, nil, vision, nil, cfg, testLogger(), nil)
}

func writePageImage(t *testing.T, dir string, page int) {
	t.Helper()
	name := fmt.Sprintf(pageImagePattern, page)
	if err := os.WriteFile(filepath.Join(dir, name), []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write page image: %v", err)
	}
}

func TestAnalyzePagesUsesCitedPages(t *testing.T) {
	dir := t.TempDir()
	for page := 1; page <= 4; page++ {
		writePageImage(t, dir, page)
	}

	vision := &scriptedVision{finding: "Table 2 on page 3 shows the ablation."}
	w := newAnalysisWorkflow(vision, Config{VisionPageRadius: 1, VisionMaxPages: 5})

	state := &State{
		Question: "Explain table 2",
		ImageDir: dir,
		Evidence: []domain.EvidenceChunk{localChunkOnPage(3)},
	}

	finding := w.analyzePages(context.Background(), state)
	if finding != vision.finding {
		t.Fatalf("expected model finding, got %q", finding)
	}
	// page 3 ± 1, all present
	if vision.gotImages != 3 {
		t.Fatalf("expected 3 images, got %d", vision.gotImages)
	}
}

func TestAnalyzePagesSkipsMissingImages(t *testing.T) {
	dir := t.TempDir()
	writePageImage(t, dir, 2)

	vision := &scriptedVision{finding: "ok"}
	w := newAnalysisWorkflow(vision, Config{VisionPageRadius: 1, VisionMaxPages: 5})

	state := &State{
		ImageDir: dir,
		Evidence: []domain.EvidenceChunk{localChunkOnPage(2)},
	}

	if finding := w.analyzePages(context.Background(), state); finding != "ok" {
		t.Fatalf("expected finding, got %q", finding)
	}
	if vision.gotImages != 1 {
		t.Fatalf("expected only the existing image, got %d", vision.gotImages)
	}
}

func TestAnalyzePagesFallsBackToDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	writePageImage(t, dir, 1)
	writePageImage(t, dir, 2)

	vision := &scriptedVision{finding: "fallback analysis"}
	w := newAnalysisWorkflow(vision, Config{VisionPageRadius: 1, VisionMaxPages: 1})

	state := &State{ImageDir: dir}
	if finding := w.analyzePages(context.Background(), state); finding != "fallback analysis" {
		t.Fatalf("expected finding, got %q", finding)
	}
	if vision.gotImages != 1 {
		t.Fatalf("expected listing capped to 1 image, got %d", vision.gotImages)
	}
}

func TestAnalyzePagesNoImagesDegrades(t *testing.T) {
	vision := &scriptedVision{finding: "should not be called"}
	w := newAnalysisWorkflow(vision, Config{})

	state := &State{ImageDir: t.TempDir()}
	if finding := w.analyzePages(context.Background(), state); finding != findingNoImages {
		t.Fatalf("expected degraded no-images finding, got %q", finding)
	}
	if vision.gotImages != 0 {
		t.Fatalf("vision model must not run without images")
	}
}

func TestAnalyzePagesModelErrorDegrades(t *testing.T) {
	dir := t.TempDir()
	writePageImage(t, dir, 1)

	vision := &scriptedVision{err: errors.New("model unavailable")}
	w := newAnalysisWorkflow(vision, Config{VisionPageRadius: 0, VisionMaxPages: 5})

	state := &State{
		ImageDir: dir,
		Evidence: []domain.EvidenceChunk{localChunkOnPage(1)},
	}

	if finding := w.analyzePages(context.Background(), state); finding != findingAnalysisError {
		t.Fatalf("expected degraded error finding, got %q", finding)
	}
}
