package workflow

import (
	"time"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// Node names, stable identifiers used in lifecycle events and metrics.
const (
	NodeIngest         = "ingest"
	NodeLocalRetriever = "local_retriever"
	NodeWebSearcher    = "web_searcher"
	NodeVisionRouter   = "vision_router"
	NodeVisionAnalyst  = "vision_analyst"
	NodeSynthesis      = "synthesis"
)

// State is the mutable record threaded through a single query run.
// Question, PaperID and ImageDir are set once at the start and read-only
// afterwards. Evidence is append-only and filled exactly once, at the
// fan-in barrier. VisionFinding transiently holds the routing marker and
// is overwritten with analysis text when the vision analyst runs.
// FinalAnswer is set exactly once, by synthesis.
type State struct {
	Question string
	PaperID  string
	ImageDir string

	Evidence      []domain.EvidenceChunk
	VisionFinding string
	FinalAnswer   string
}

// MergeEvidence concatenates branch fragments into one evidence list.
// The merge is commutative and associative for correctness purposes:
// arrival order only affects display order, and duplicates are kept.
func MergeEvidence(fragments ...[]domain.EvidenceChunk) []domain.EvidenceChunk {
	total := 0
	for _, f := range fragments {
		total += len(f)
	}
	merged := make([]domain.EvidenceChunk, 0, total)
	for _, f := range fragments {
		merged = append(merged, f...)
	}
	return merged
}

// Metrics is the workflow-side observation contract. The prometheus
// implementation lives in internal/observability/metrics.
type Metrics interface {
	ObserveNode(node string, duration time.Duration)
	ObserveEvidence(count int)
	RecordVisionDecision(tier, decision string)
	RecordDegraded(component string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveNode(string, time.Duration)   {}
func (nopMetrics) ObserveEvidence(int)                 {}
func (nopMetrics) RecordVisionDecision(string, string) {}
func (nopMetrics) RecordDegraded(string)               {}
