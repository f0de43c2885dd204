package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/core/ports"
)

// Config carries the query-graph tunables. Zero values fall back to the
// defaults used by the original product behavior.
type Config struct {
	WebMaxResults    int
	WebSearchDepth   string
	VisionMaxPages   int
	VisionPageRadius int
}

func (c Config) withDefaults() Config {
	out := c
	if out.WebMaxResults <= 0 {
		out.WebMaxResults = 5
	}
	if out.WebSearchDepth == "" {
		out.WebSearchDepth = "advanced"
	}
	if out.VisionMaxPages <= 0 {
		out.VisionMaxPages = 5
	}
	if out.VisionPageRadius < 0 {
		out.VisionPageRadius = 1
	}
	return out
}

// Workflow owns the two graphs of the system: the single-step ingestion
// graph and the query graph
//
//	START → (local_retriever ∥ web_searcher) → vision_router
//	      → (conditional) vision_analyst → synthesis → DONE
//
// The retrieval fan-out joins at a full barrier, so the vision router
// always observes the complete merged evidence. No orchestrator-level
// retries: each node owns its own recovery and the run always terminates
// with some final answer.
type Workflow struct {
	parser      ports.PaperParser
	index       ports.PaperIndex
	search      ports.WebSearcher
	textModel   ports.TextCompleter
	visionModel ports.VisionCompleter
	policy      *VisionPolicy

	cfg     Config
	log     *slog.Logger
	metrics Metrics
}

func New(
	parser ports.PaperParser,
	index ports.PaperIndex,
	search ports.WebSearcher,
	textModel ports.TextCompleter,
	visionModel ports.VisionCompleter,
	policy *VisionPolicy,
	cfg Config,
	log *slog.Logger,
	metrics Metrics,
) *Workflow {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Workflow{
		parser:      parser,
		index:       index,
		search:      search,
		textModel:   textModel,
		visionModel: visionModel,
		policy:      policy,
		cfg:         cfg.withDefaults(),
		log:         log,
		metrics:     metrics,
	}
}

// RunIngestion executes the ingestion graph for one stored paper: parse
// the PDF into layout elements plus rendered page images, then index the
// elements into the paper-scoped vector partition. Duplicate detection is
// the caller's job; this step is invoked once per new content hash.
func (w *Workflow) RunIngestion(ctx context.Context, paperID string) (*domain.IngestResult, error) {
	start := time.Now()
	w.log.Info("ingestion_started", "paper_id", paperID)

	parsed, err := w.parser.Parse(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("parse paper: %w", err)
	}

	if err := w.index.IndexElements(ctx, paperID, parsed.Elements); err != nil {
		return nil, fmt.Errorf("index elements: %w", err)
	}

	w.metrics.ObserveNode(NodeIngest, time.Since(start))
	w.log.Info("ingestion_done",
		"paper_id", paperID,
		"elements", len(parsed.Elements),
		"pages", parsed.PageCount,
	)
	return &domain.IngestResult{
		PaperID:   paperID,
		ImageDir:  parsed.ImageDir,
		PageCount: parsed.PageCount,
	}, nil
}

// RunQuery executes the query graph without event streaming.
func (w *Workflow) RunQuery(ctx context.Context, question string, paper *domain.Paper) (*domain.QueryResult, error) {
	return w.StreamQuery(ctx, question, paper, nil)
}

// StreamQuery executes the query graph, emitting node lifecycle events in
// order, followed by the terminal final-answer event. The returned error
// is reserved for invalid input; collaborator failures degrade instead.
func (w *Workflow) StreamQuery(
	ctx context.Context,
	question string,
	paper *domain.Paper,
	emit func(domain.WorkflowEvent),
) (*domain.QueryResult, error) {
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run query", fmt.Errorf("question is empty"))
	}
	if paper == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run query", fmt.Errorf("paper is nil"))
	}

	emitter := newEventEmitter(emit)
	state := &State{
		Question: question,
		PaperID:  paper.ID,
		ImageDir: paper.ImageDir,
	}

	// RETRIEVING: both branches run concurrently; the barrier below waits
	// for both regardless of which finishes first. Branch failures are
	// already folded into empty fragments inside the node functions.
	var localFragment, webFragment []domain.EvidenceChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		localFragment = w.runRetrievalNode(gctx, emitter, NodeLocalRetriever, func(ctx context.Context) []domain.EvidenceChunk {
			return w.localRetrieve(ctx, state.Question, state.PaperID)
		})
		return nil
	})
	g.Go(func() error {
		webFragment = w.runRetrievalNode(gctx, emitter, NodeWebSearcher, func(ctx context.Context) []domain.EvidenceChunk {
			return w.webSearch(ctx, state.Question)
		})
		return nil
	})
	_ = g.Wait()

	state.Evidence = MergeEvidence(localFragment, webFragment)
	w.metrics.ObserveEvidence(len(state.Evidence))

	// ROUTING: the policy sees the complete merged evidence, never a
	// partial view.
	emitter.nodeStarted(NodeVisionRouter)
	routeStart := time.Now()
	decision, tier := w.policy.Decide(ctx, state.Question, state.Evidence)
	state.VisionFinding = decision.marker()
	w.metrics.ObserveNode(NodeVisionRouter, time.Since(routeStart))
	w.metrics.RecordVisionDecision(tier, decision.String())
	w.log.Info("vision_routing_done", "decision", decision.String(), "tier", tier)
	emitter.nodeFinished(NodeVisionRouter)

	// ANALYZING: conditional edge, taken only on a need-vision decision.
	if decision == DecisionNeedVision {
		emitter.nodeStarted(NodeVisionAnalyst)
		analyzeStart := time.Now()
		state.VisionFinding = w.analyzePages(ctx, state)
		w.metrics.ObserveNode(NodeVisionAnalyst, time.Since(analyzeStart))
		emitter.nodeFinished(NodeVisionAnalyst)
	}

	// SYNTHESIZING: terminal node, always runs, always yields an answer.
	emitter.nodeStarted(NodeSynthesis)
	synthStart := time.Now()
	state.FinalAnswer = w.synthesize(ctx, state)
	w.metrics.ObserveNode(NodeSynthesis, time.Since(synthStart))
	emitter.nodeFinished(NodeSynthesis)

	emitter.finalAnswer(state.FinalAnswer)

	result := &domain.QueryResult{FinalAnswer: state.FinalAnswer}
	if state.VisionFinding != "" && !IsDecisionMarker(state.VisionFinding) {
		result.VisionFinding = state.VisionFinding
	}
	return result, nil
}

func (w *Workflow) runRetrievalNode(
	ctx context.Context,
	emitter *eventEmitter,
	node string,
	fn func(ctx context.Context) []domain.EvidenceChunk,
) []domain.EvidenceChunk {
	emitter.nodeStarted(node)
	start := time.Now()
	fragment := fn(ctx)
	w.metrics.ObserveNode(node, time.Since(start))
	emitter.nodeFinished(node)
	return fragment
}

// eventEmitter serializes event delivery from concurrent branches and is
// safe to build from a nil callback.
type eventEmitter struct {
	mu   sync.Mutex
	emit func(domain.WorkflowEvent)
}

func newEventEmitter(emit func(domain.WorkflowEvent)) *eventEmitter {
	return &eventEmitter{emit: emit}
}

func (e *eventEmitter) send(event domain.WorkflowEvent) {
	if e.emit == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emit(event)
}

func (e *eventEmitter) nodeStarted(node string) {
	e.send(domain.WorkflowEvent{Type: domain.EventNodeStarted, Node: node})
}

func (e *eventEmitter) nodeFinished(node string) {
	e.send(domain.WorkflowEvent{Type: domain.EventNodeFinished, Node: node})
}

func (e *eventEmitter) finalAnswer(answer string) {
	e.send(domain.WorkflowEvent{Type: domain.EventFinalAnswer, Answer: answer})
}
