package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/core/ports"
)

// Decision is the two-variant outcome of the vision routing policy.
type Decision int

const (
	DecisionNoVision Decision = iota
	DecisionNeedVision
)

func (d Decision) String() string {
	if d == DecisionNeedVision {
		return "need_vision"
	}
	return "no_vision"
}

// Routing markers are the model-facing wire representation of Decision.
// They never leave this package except through State.VisionFinding, and
// synthesis filters them back out before prompting.
const (
	markerNeedVision = "NEED_VISION"
	markerNoVision   = "NO_VISION"
)

// IsDecisionMarker reports whether s is one of the raw routing markers.
func IsDecisionMarker(s string) bool {
	switch strings.TrimSpace(s) {
	case markerNeedVision, markerNoVision:
		return true
	default:
		return false
	}
}

// Tier names for decision observability.
const (
	TierKeyword  = "keyword"
	TierMetadata = "metadata"
	TierModel    = "model"
)

// defaultVisionKeywords covers terms for tables, figures, graphs, charts,
// diagrams, equations and images in English, Korean and Russian. Matching
// is case-insensitive substring over the question.
var defaultVisionKeywords = []string{
	"table", "figure", "graph", "chart", "diagram", "equation", "image", "plot", "formula",
	"표", "그림", "그래프", "차트", "도표", "수식", "이미지",
	"таблиц", "график", "диаграмм", "рисун", "формул", "уравнени",
}

const routingSystemPrompt = "You are a routing assistant. Determine if the user's question " +
	"about a research paper requires visual analysis of tables, figures, charts, " +
	"equations, or diagrams. Reply with exactly '" + markerNeedVision + "' or '" + markerNoVision + "'."

// VisionPolicy decides whether a question needs visual analysis using
// three cost-ascending tiers: keyword scan, evidence metadata scan, and
// only then a model call. The first two tiers settle clear-cut cases for
// free; the paid tier handles genuine ambiguity.
type VisionPolicy struct {
	model    ports.TextCompleter
	keywords []string
	log      *slog.Logger
}

// NewVisionPolicy builds a policy. extraKeywords extends the built-in
// multilingual set (loaded from the optional keyword file).
func NewVisionPolicy(model ports.TextCompleter, extraKeywords []string, log *slog.Logger) *VisionPolicy {
	keywords := make([]string, 0, len(defaultVisionKeywords)+len(extraKeywords))
	keywords = append(keywords, defaultVisionKeywords...)
	for _, kw := range extraKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &VisionPolicy{model: model, keywords: keywords, log: log}
}

// Decide returns the routing decision and the tier that produced it.
// The evidence passed in must be the complete merged list from both
// retrieval branches.
func (p *VisionPolicy) Decide(ctx context.Context, question string, evidence []domain.EvidenceChunk) (Decision, string) {
	if p.matchKeyword(question) {
		return DecisionNeedVision, TierKeyword
	}
	if matchVisualEvidence(evidence) {
		return DecisionNeedVision, TierMetadata
	}
	return p.askModel(ctx, question), TierModel
}

func (p *VisionPolicy) matchKeyword(question string) bool {
	lowered := strings.ToLower(question)
	for _, kw := range p.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func matchVisualEvidence(evidence []domain.EvidenceChunk) bool {
	for _, chunk := range evidence {
		if chunk.IsVisual() {
			return true
		}
	}
	return false
}

// askModel is the paid tier. Any invocation failure defaults to the
// cheaper NO_VISION path; that is a recovered error, not a fatal one.
func (p *VisionPolicy) askModel(ctx context.Context, question string) Decision {
	resp, err := p.model.Complete(ctx, domain.CompletionRequest{
		System:        routingSystemPrompt,
		Prompt:        question,
		Deterministic: true,
		MaxTokens:     20,
	})
	if err != nil {
		p.log.Warn("vision_routing_model_failed", "error", err)
		return DecisionNoVision
	}
	if strings.Contains(resp, markerNeedVision) {
		return DecisionNeedVision
	}
	return DecisionNoVision
}

// marker returns the wire representation stored in State.VisionFinding
// between routing and analysis.
func (d Decision) marker() string {
	if d == DecisionNeedVision {
		return markerNeedVision
	}
	return markerNoVision
}
