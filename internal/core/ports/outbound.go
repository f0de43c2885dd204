package ports

import (
	"context"
	"io"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// PaperParser runs the external parsing/indexing pipeline for one stored
// PDF: layout elements with page numbers plus a directory of rendered
// page images.
type PaperParser interface {
	Parse(ctx context.Context, paperID string) (*domain.ParseResult, error)
}

// PaperIndex is the document-scoped vector index. Query results must
// belong to the given paper only; cross-paper leakage is a correctness bug.
type PaperIndex interface {
	IndexElements(ctx context.Context, paperID string, elements []domain.ParsedElement) error
	Query(ctx context.Context, paperID, question string) ([]domain.EvidenceChunk, error)
}

// WebSearcher queries an external web search provider.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int, depth string) ([]domain.WebResult, error)
}

// TextCompleter is the text language model contract.
type TextCompleter interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// VisionCompleter is the vision-capable language model contract.
type VisionCompleter interface {
	CompleteVision(ctx context.Context, req domain.VisionRequest) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PaperRegistry persists ingested-paper metadata. Add overwrites an
// existing entry with the same ID.
type PaperRegistry interface {
	Add(ctx context.Context, paper *domain.Paper) error
	Get(ctx context.Context, id string) (*domain.Paper, error)
	GetLatest(ctx context.Context) (*domain.Paper, error)
	ListAll(ctx context.Context) ([]domain.Paper, error)
}

// ObjectStorage stores uploaded source PDFs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events. Events carry the
// original filename so the worker can register the paper without a
// second lookup.
type MessageQueue interface {
	PublishPaperIngested(ctx context.Context, paperID, filename string) error
	SubscribePaperIngested(ctx context.Context, handler func(ctx context.Context, paperID, filename string) error) error
}

// Chunker splits element text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
