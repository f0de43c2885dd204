package ports

import (
	"context"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// IngestionRunner is the inbound contract for the ingestion workflow.
type IngestionRunner interface {
	RunIngestion(ctx context.Context, paperID string) (*domain.IngestResult, error)
}

// QueryRunner is the inbound contract for the query workflow.
// StreamQuery emits ordered lifecycle events while the run progresses.
type QueryRunner interface {
	RunQuery(ctx context.Context, question string, paper *domain.Paper) (*domain.QueryResult, error)
	StreamQuery(ctx context.Context, question string, paper *domain.Paper, emit func(domain.WorkflowEvent)) (*domain.QueryResult, error)
}
