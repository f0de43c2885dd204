package domain

type EvidenceSource string

const (
	SourceLocalRAG  EvidenceSource = "local_rag"
	SourceWebSearch EvidenceSource = "web_search"
)

type ElementType string

const (
	ElementText    ElementType = "text"
	ElementTable   ElementType = "table"
	ElementImage   ElementType = "image"
	ElementFigure  ElementType = "figure"
	ElementHeading ElementType = "heading"
)

// EvidenceChunk is one retrieved unit of evidence with provenance.
// PageNumber and ElementType are meaningful only for local chunks,
// URL only for web chunks. PageNumber 0 means "unknown page".
// Chunks are created by a retrieval branch and never mutated afterwards.
type EvidenceChunk struct {
	Content     string         `json:"content"`
	Source      EvidenceSource `json:"source"`
	PageNumber  int            `json:"page_number,omitempty"`
	URL         string         `json:"url,omitempty"`
	ElementType ElementType    `json:"element_type,omitempty"`
}

// IsVisual reports whether the chunk refers to a table, image or figure
// element. Used by the metadata tier of the vision decision policy.
func (c EvidenceChunk) IsVisual() bool {
	switch c.ElementType {
	case ElementTable, ElementImage, ElementFigure:
		return true
	default:
		return false
	}
}

// WebResult is one raw result from a web search provider.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
