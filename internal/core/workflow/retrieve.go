package workflow

import (
	"context"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// localRetrieve queries the paper-scoped vector index. A failing index is
// recovered to an empty fragment so the other branch still contributes.
func (w *Workflow) localRetrieve(ctx context.Context, question, paperID string) []domain.EvidenceChunk {
	chunks, err := w.index.Query(ctx, paperID, question)
	if err != nil {
		w.log.Warn("local_retrieval_failed", "paper_id", paperID, "error", err)
		w.metrics.RecordDegraded(NodeLocalRetriever)
		return nil
	}
	w.log.Info("local_retrieval_done", "paper_id", paperID, "chunks", len(chunks))
	return chunks
}

// webSearch queries the external search provider. Provider failures
// (timeouts, auth, malformed responses) degrade to an empty fragment and
// must never abort the run.
func (w *Workflow) webSearch(ctx context.Context, question string) []domain.EvidenceChunk {
	results, err := w.search.Search(ctx, question, w.cfg.WebMaxResults, w.cfg.WebSearchDepth)
	if err != nil {
		w.log.Warn("web_search_failed", "error", err)
		w.metrics.RecordDegraded(NodeWebSearcher)
		return nil
	}

	chunks := make([]domain.EvidenceChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, domain.EvidenceChunk{
			Content: r.Content,
			Source:  domain.SourceWebSearch,
			URL:     r.URL,
		})
	}
	w.log.Info("web_search_done", "chunks", len(chunks))
	return chunks
}
