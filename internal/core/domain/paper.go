package domain

import "time"

// Paper is one registry entry for an ingested paper. ID is the SHA-256
// of the uploaded file content, so re-uploading identical bytes maps to
// the same entry and overwrites it rather than duplicating it.
type Paper struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	PageCount  int       `json:"page_count"`
	ImageDir   string    `json:"image_dir"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ParsedElement is one layout element produced by the parsing pipeline.
type ParsedElement struct {
	PageNumber  int         `json:"page_number"`
	Text        string      `json:"text"`
	ElementType ElementType `json:"element_type"`
}

// ParseResult is the parse contract output for a single paper.
type ParseResult struct {
	Elements  []ParsedElement `json:"elements"`
	ImageDir  string          `json:"image_dir"`
	PageCount int             `json:"page_count"`
}

// IngestResult is what the ingestion workflow reports back.
type IngestResult struct {
	PaperID   string `json:"paper_id"`
	ImageDir  string `json:"image_dir"`
	PageCount int    `json:"page_count"`
}

// QueryResult is the terminal output of one query workflow run.
// VisionFinding is empty when visual analysis did not run.
type QueryResult struct {
	FinalAnswer   string `json:"final_answer"`
	VisionFinding string `json:"vision_finding,omitempty"`
}
