package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

const (
	contextSeparator   = "\n\n---\n\n"
	noContextFallback  = "No retrieved context was available."
	synthesisErrorText = "An error occurred while generating the answer. Please try again."
)

const synthesisSystemPrompt = "You are a research paper analysis assistant. " +
	"Synthesize the provided contexts and visual analysis into a comprehensive answer. " +
	"Always cite page numbers when referencing specific content. " +
	"Answer in the same language as the question."

// synthesize merges the accumulated evidence and the optional vision
// finding into the final answer. This is the terminal node: it always
// produces some answer string, degrading on model failure.
func (w *Workflow) synthesize(ctx context.Context, state *State) string {
	prompt := buildSynthesisPrompt(state.Question, state.Evidence, state.VisionFinding)

	answer, err := w.textModel.Complete(ctx, domain.CompletionRequest{
		System:    synthesisSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 3000,
	})
	if err != nil {
		w.log.Error("synthesis_failed", "error", err)
		w.metrics.RecordDegraded(NodeSynthesis)
		return synthesisErrorText
	}
	return answer
}

// buildSynthesisPrompt renders evidence in input order, no re-ranking and
// no deduplication. A vision finding is appended only when it is real
// analysis text; raw routing markers must never leak into the prompt.
func buildSynthesisPrompt(question string, evidence []domain.EvidenceChunk, visionFinding string) string {
	var b strings.Builder
	b.WriteString("## Question\n")
	b.WriteString(question)
	b.WriteString("\n\n## Retrieved context\n")
	b.WriteString(renderContext(evidence))

	if visionFinding != "" && !IsDecisionMarker(visionFinding) {
		b.WriteString("\n\n## Visual analysis\n")
		b.WriteString(visionFinding)
	}
	return b.String()
}

func renderContext(evidence []domain.EvidenceChunk) string {
	if len(evidence) == 0 {
		return noContextFallback
	}

	parts := make([]string, 0, len(evidence))
	for _, chunk := range evidence {
		parts = append(parts, chunkHeader(chunk)+"\n"+chunk.Content)
	}
	return strings.Join(parts, contextSeparator)
}

func chunkHeader(chunk domain.EvidenceChunk) string {
	switch chunk.Source {
	case domain.SourceWebSearch:
		return fmt.Sprintf("[web: %s]", chunk.URL)
	default:
		if chunk.PageNumber > 0 {
			return fmt.Sprintf("[paper, p.%d]", chunk.PageNumber)
		}
		return "[paper]"
	}
}
