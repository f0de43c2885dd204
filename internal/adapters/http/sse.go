package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// askStream answers a question over Server-Sent Events: one data frame
// per workflow event, then a [DONE] sentinel. The final answer arrives
// as a final_answer event before the sentinel.
func (rt *Router) askStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, paper, ok := rt.resolveAsk(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(event domain.WorkflowEvent) {
		writeSSEEvent(w, flusher, event)
	}

	if _, err := rt.query.StreamQuery(r.Context(), req.Question, paper, emit); err != nil {
		rt.log.Error("ask_stream_failed",
			slog.String("paper_id", paper.ID),
			slog.String("error", err.Error()))
		writeSSEEvent(w, flusher, domain.WorkflowEvent{
			Type:   domain.EventFinalAnswer,
			Answer: "An error occurred while generating the answer. Please try again.",
		})
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event domain.WorkflowEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
