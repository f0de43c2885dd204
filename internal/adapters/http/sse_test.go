package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

func TestAskStreamEmitsEventsAndSentinel(t *testing.T) {
	reg := &fakeRegistry{latest: &domain.Paper{ID: "p1"}}
	query := &fakeQuery{
		result: &domain.QueryResult{FinalAnswer: "streamed answer"},
		events: []domain.WorkflowEvent{
			{Type: domain.EventNodeStarted, Node: "local_retriever"},
			{Type: domain.EventNodeFinished, Node: "local_retriever"},
			{Type: domain.EventFinalAnswer, Answer: "streamed answer"},
		},
	}
	handler := newTestRouter(reg, nil, nil, query)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask/stream", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", got)
	}

	body := res.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) != 4 {
		t.Fatalf("expected 3 event frames plus sentinel, got %d:\n%s", len(frames), body)
	}
	if !strings.Contains(frames[0], `"node_start"`) || !strings.Contains(frames[0], "local_retriever") {
		t.Fatalf("unexpected first frame: %q", frames[0])
	}
	if !strings.Contains(frames[2], "streamed answer") {
		t.Fatalf("final answer missing: %q", frames[2])
	}
	if frames[3] != "data: [DONE]" {
		t.Fatalf("expected [DONE] sentinel, got %q", frames[3])
	}
}

func TestAskStreamResolutionErrorsStayJSON(t *testing.T) {
	handler := newTestRouter(&fakeRegistry{papers: map[string]*domain.Paper{}}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask/stream", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before streaming starts, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json error, got %q", got)
	}
}

func TestAskStreamMethodNotAllowed(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ask/stream", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
