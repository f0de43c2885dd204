package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/core/ports"
	"github.com/kirillkom/paperstand/internal/infrastructure/resilience"
)

// Client indexes parsed paper elements and serves paper-scoped semantic
// search. Every query carries a paper_id filter; results from another
// paper would be a correctness bug, not a ranking issue.
type Client struct {
	baseURL    string
	collection string
	topK       int
	httpClient *http.Client
	embedder   ports.Embedder
	chunker    ports.Chunker
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder, chunker ports.Chunker, topK int, executor *resilience.Executor) *Client {
	if topK <= 0 {
		topK = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		topK:       topK,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
		chunker:    chunker,
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// IndexElements splits element text into chunks, embeds them and upserts
// the points under the given paper ID. Visual elements without text get a
// placeholder chunk so the index keeps a trace of them; the vision
// routing metadata tier depends on that trace.
func (c *Client) IndexElements(ctx context.Context, paperID string, elements []domain.ParsedElement) error {
	type pendingChunk struct {
		text        string
		pageNumber  int
		elementType domain.ElementType
		chunkIndex  int
	}

	var pending []pendingChunk
	for _, elem := range elements {
		text := strings.TrimSpace(elem.Text)
		if text == "" {
			text = placeholderText(elem)
			if text == "" {
				continue
			}
		}
		for i, chunk := range c.chunker.Split(text) {
			pending = append(pending, pendingChunk{
				text:        chunk,
				pageNumber:  elem.PageNumber,
				elementType: elem.ElementType,
				chunkIndex:  i,
			})
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, 0, len(pending))
	for _, p := range pending {
		texts = append(texts, p.text)
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("chunks/vectors mismatch: %d != %d", len(pending), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(pending))
	for i, p := range pending {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"paper_id":     paperID,
				"page_number":  p.pageNumber,
				"element_type": string(p.elementType),
				"chunk_index":  p.chunkIndex,
				"text":         p.text,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.execute(ctx, "upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
	})
}

// Query embeds the question and searches the collection restricted to
// the given paper.
func (c *Client) Query(ctx context.Context, paperID, question string) ([]domain.EvidenceChunk, error) {
	queryVector, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        c.topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key": "paper_id",
					"match": map[string]any{
						"value": paperID,
					},
				},
			},
		},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err = c.execute(ctx, "search", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, url, reqBody, &searchResp, "search")
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.EvidenceChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.EvidenceChunk{
			Content:     payloadString(r.Payload, "text"),
			Source:      domain.SourceLocalRAG,
			PageNumber:  payloadInt(r.Payload, "page_number"),
			ElementType: domain.ElementType(payloadString(r.Payload, "element_type")),
		})
	}
	return out, nil
}

// placeholderText keeps empty visual elements represented in the index.
func placeholderText(elem domain.ParsedElement) string {
	switch elem.ElementType {
	case domain.ElementTable:
		return fmt.Sprintf("[table on page %d]", elem.PageNumber)
	case domain.ElementImage, domain.ElementFigure:
		return fmt.Sprintf("[figure on page %d]", elem.PageNumber)
	default:
		return ""
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.doJSON(ctx, http.MethodPut, url, reqBody, nil, "create_collection")

	// 409 means the collection already exists, which is fine.
	var statusErr *resilience.HTTPStatusError
	if err != nil {
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
			return err
		}
	}

	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &resilience.HTTPStatusError{
			Service:    "qdrant",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, fn, resilience.ClassifyHTTPError)
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
