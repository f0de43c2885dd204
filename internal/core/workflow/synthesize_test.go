package workflow

import (
	"strings"
	"testing"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

func TestBuildSynthesisPromptKeepsEvidenceOrder(t *testing.T) {
	evidence := []domain.EvidenceChunk{
		{Content: "first local chunk", Source: domain.SourceLocalRAG, PageNumber: 2},
		{Content: "second local chunk", Source: domain.SourceLocalRAG},
		{Content: "a web snippet", Source: domain.SourceWebSearch, URL: "https://example.org/paper"},
	}

	prompt := buildSynthesisPrompt("What is the result?", evidence, "")

	lastIdx := -1
	for _, chunk := range evidence {
		idx := strings.Index(prompt, chunk.Content)
		if idx < 0 {
			t.Fatalf("prompt is missing chunk %q", chunk.Content)
		}
		if strings.Count(prompt, chunk.Content) != 1 {
			t.Fatalf("chunk %q must appear exactly once", chunk.Content)
		}
		if idx < lastIdx {
			t.Fatalf("chunk %q out of input order", chunk.Content)
		}
		lastIdx = idx
	}

	if !strings.Contains(prompt, "[paper, p.2]") {
		t.Fatalf("expected page-cited header, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[paper]\nsecond local chunk") {
		t.Fatalf("expected pageless header, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[web: https://example.org/paper]") {
		t.Fatalf("expected web header, got:\n%s", prompt)
	}
}

func TestBuildSynthesisPromptEmptyEvidence(t *testing.T) {
	prompt := buildSynthesisPrompt("Anything?", nil, "")
	if !strings.Contains(prompt, noContextFallback) {
		t.Fatalf("expected fallback placeholder, got:\n%s", prompt)
	}
}

func TestBuildSynthesisPromptFiltersRoutingMarkers(t *testing.T) {
	for _, marker := range []string{"NEED_VISION", "NO_VISION"} {
		prompt := buildSynthesisPrompt("Anything?", nil, marker)
		if strings.Contains(prompt, "## Visual analysis") {
			t.Fatalf("marker %q must not produce a visual analysis section", marker)
		}
		if strings.Contains(prompt, marker) {
			t.Fatalf("marker %q leaked into prompt:\n%s", marker, prompt)
		}
	}
}

func TestBuildSynthesisPromptIncludesRealFinding(t *testing.T) {
	finding := "Table 2 on page 5 reports a 3.1 point gain."
	prompt := buildSynthesisPrompt("Anything?", nil, finding)
	if !strings.Contains(prompt, "## Visual analysis") || !strings.Contains(prompt, finding) {
		t.Fatalf("expected finding in prompt, got:\n%s", prompt)
	}
}
