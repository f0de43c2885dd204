package domain

// CompletionRequest is a single text completion call. Deterministic
// requests bias the model toward literal token output (used by the
// vision routing tier).
type CompletionRequest struct {
	System        string
	Prompt        string
	Deterministic bool
	MaxTokens     int
}

// VisionRequest is a single vision completion call. Images are raw
// encoded image bytes (PNG) sent alongside one text prompt.
type VisionRequest struct {
	System    string
	Prompt    string
	Images    [][]byte
	MaxTokens int
}
