package domain

type WorkflowEventType string

const (
	EventNodeStarted  WorkflowEventType = "node_start"
	EventNodeFinished WorkflowEventType = "node_end"
	EventFinalAnswer  WorkflowEventType = "final_answer"
)

// WorkflowEvent is one lifecycle event of a streaming query run.
// Node is set for node events, Answer only for the terminal event.
type WorkflowEvent struct {
	Type   WorkflowEventType `json:"event"`
	Node   string            `json:"node,omitempty"`
	Answer string            `json:"answer,omitempty"`
}
