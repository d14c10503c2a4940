package events

import (
	"time"

	"dealflow/internal/impute"
)

// Event types published while a pipeline run progresses.
const (
	TypeRunStarted   = "run.started"
	TypeStepFinished = "step.finished"
	TypeRunFinished  = "run.finished"
	TypeRunFailed    = "run.failed"
)

type RunEvent struct {
	Type    string          `json:"type"`
	RunID   string          `json:"run_id,omitempty"`
	Step    string          `json:"step,omitempty"`
	Reports []impute.Report `json:"reports,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

// Publisher receives run events. *Hub implements it.
type Publisher interface {
	Publish(ev RunEvent)
}
