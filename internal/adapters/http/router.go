package httpadapter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/core/ports"
)

// maxUploadBytes caps a single PDF upload at 64 MiB.
const maxUploadBytes = 64 << 20

type Config struct {
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	BackpressureMax time.Duration
}

type Router struct {
	registry ports.PaperRegistry
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	query    ports.QueryRunner
	cfg      Config
	log      *slog.Logger
}

func NewRouter(
	registry ports.PaperRegistry,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	query ports.QueryRunner,
	cfg Config,
	log *slog.Logger,
) *Router {
	return &Router{
		registry: registry,
		storage:  storage,
		queue:    queue,
		query:    query,
		cfg:      cfg,
		log:      log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/papers", rt.papers)
	mux.HandleFunc("/v1/papers/", rt.getPaperByID)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/ask/stream", rt.askStream)

	maxWait := rt.cfg.BackpressureMax
	if maxWait <= 0 {
		maxWait = 100 * time.Millisecond
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, maxWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) papers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadPaper(w, r)
	case http.MethodGet:
		rt.listPapers(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

type uploadResponse struct {
	PaperID  string `json:"paper_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// uploadPaper accepts a PDF, derives the paper ID from the content hash
// and queues ingestion. Re-uploading an already ingested file is
// answered without re-queuing.
func (rt *Router) uploadPaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	filename := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only PDF uploads are supported"})
		return
	}

	paperID, err := hashContent(file)
	if err != nil {
		rt.log.Error("upload_hash_failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
		return
	}

	if existing, err := rt.registry.Get(r.Context(), paperID); err == nil {
		writeJSON(w, http.StatusOK, uploadResponse{
			PaperID:  existing.ID,
			Filename: existing.Filename,
			Status:   "already_exists",
		})
		return
	} else if !domain.IsKind(err, domain.ErrPaperNotFound) {
		rt.log.Error("upload_registry_lookup_failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registry lookup failed"})
		return
	}

	if err := rt.storage.Save(r.Context(), paperID+".pdf", file); err != nil {
		rt.log.Error("upload_store_failed",
			slog.String("paper_id", paperID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	if err := rt.queue.PublishPaperIngested(r.Context(), paperID, filename); err != nil {
		rt.log.Error("upload_publish_failed",
			slog.String("paper_id", paperID),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingestion queue unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		PaperID:  paperID,
		Filename: filename,
		Status:   "queued",
	})
}

func (rt *Router) listPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := rt.registry.ListAll(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "failed to list papers"})
		return
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (rt *Router) getPaperByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/papers/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paper id is required"})
		return
	}

	paper, err := rt.registry.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "paper not found"})
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

type askRequest struct {
	Question string `json:"question"`
	PaperID  string `json:"paper_id"`
}

type askResponse struct {
	PaperID       string `json:"paper_id"`
	Answer        string `json:"answer"`
	VisionFinding string `json:"vision_finding,omitempty"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, paper, ok := rt.resolveAsk(w, r)
	if !ok {
		return
	}

	result, err := rt.query.RunQuery(r.Context(), req.Question, paper)
	if err != nil {
		rt.log.Error("ask_failed",
			slog.String("paper_id", paper.ID),
			slog.String("error", err.Error()))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "failed to answer question"})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		PaperID:       paper.ID,
		Answer:        result.FinalAnswer,
		VisionFinding: result.VisionFinding,
	})
}

// resolveAsk parses the request body and resolves the target paper,
// falling back to the most recently ingested one.
func (rt *Router) resolveAsk(w http.ResponseWriter, r *http.Request) (askRequest, *domain.Paper, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return req, nil, false
	}

	var (
		paper *domain.Paper
		err   error
	)
	if req.PaperID != "" {
		paper, err = rt.registry.Get(r.Context(), req.PaperID)
	} else {
		paper, err = rt.registry.GetLatest(r.Context())
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrPaperNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no matching paper; upload one first"})
		} else {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": "failed to resolve paper"})
		}
		return req, nil, false
	}
	return req, paper, true
}

func hashContent(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		slog.Debug("write_response_failed", slog.String("error", err.Error()))
	}
}
