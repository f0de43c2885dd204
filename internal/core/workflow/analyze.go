package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// Rendered pages follow a fixed naming convention inside the paper's
// image directory.
const pageImagePattern = "page_%03d.png"

// Degraded findings. These are normal outcomes, not errors to propagate.
const (
	findingNoImages      = "No page images were available for visual analysis."
	findingAnalysisError = "Visual analysis could not be completed due to a model error."
)

const visionSystemPrompt = "You are a research paper visual analyst. " +
	"Analyze the provided page images and explain tables, figures, equations, " +
	"and diagrams in detail. Always reference the page number in your analysis."

// analyzePages runs the vision analyst over a small set of candidate page
// images and returns the finding text. Every failure mode folds into a
// degraded human-readable finding.
func (w *Workflow) analyzePages(ctx context.Context, state *State) string {
	paths := w.candidateImagePaths(state)
	if len(paths) == 0 {
		w.log.Warn("vision_no_images", "image_dir", state.ImageDir)
		w.metrics.RecordDegraded(NodeVisionAnalyst)
		return findingNoImages
	}

	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			w.log.Warn("vision_image_read_failed", "path", path, "error", err)
			continue
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		w.metrics.RecordDegraded(NodeVisionAnalyst)
		return findingNoImages
	}

	prompt := fmt.Sprintf(
		"Analyze the attached paper page images and answer the question.\n\n"+
			"Question: %s\n\n"+
			"Focus on tables, equations, graphs and other visual elements, "+
			"and cite the page numbers you refer to.",
		state.Question,
	)

	finding, err := w.visionModel.CompleteVision(ctx, domain.VisionRequest{
		System:    visionSystemPrompt,
		Prompt:    prompt,
		Images:    images,
		MaxTokens: 2000,
	})
	if err != nil {
		w.log.Warn("vision_analysis_failed", "error", err)
		w.metrics.RecordDegraded(NodeVisionAnalyst)
		return findingAnalysisError
	}
	w.log.Info("vision_analysis_done", "images", len(images))
	return finding
}

// candidateImagePaths resolves which page images to send to the vision
// model. Pages cited by local evidence are expanded by the configured
// radius (figures and tables sit next to the text that cites them),
// deduplicated, sorted and capped. Without reference pages the first
// images in the directory are used instead. Missing files are skipped.
func (w *Workflow) candidateImagePaths(state *State) []string {
	pages := selectPages(state.Evidence, w.cfg.VisionPageRadius, w.cfg.VisionMaxPages)
	if len(pages) == 0 {
		return firstImagesInDir(state.ImageDir, w.cfg.VisionMaxPages)
	}

	paths := make([]string, 0, len(pages))
	for _, page := range pages {
		path := filepath.Join(state.ImageDir, fmt.Sprintf(pageImagePattern, page))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// selectPages expands each referenced page to page±radius, deduplicates,
// sorts ascending and caps the result to maxPages.
func selectPages(evidence []domain.EvidenceChunk, radius, maxPages int) []int {
	seen := make(map[int]struct{})
	for _, chunk := range evidence {
		if chunk.Source != domain.SourceLocalRAG || chunk.PageNumber <= 0 {
			continue
		}
		for p := chunk.PageNumber - radius; p <= chunk.PageNumber+radius; p++ {
			if p >= 1 {
				seen[p] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}
	return pages
}

func firstImagesInDir(dir string, max int) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".png") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if len(names) > max {
		names = names[:max]
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths
}
