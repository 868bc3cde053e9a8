package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/offer"
	"github.com/nidhogg/holiday-agent/internal/report"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrShuttingDown = errors.New("task manager is shutting down")
)

// Status is the lifecycle state of a search task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusDone, StatusFailed},
}

// Transition returns nil if from→to is a legal transition.
func Transition(from, to Status) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q → %q", from, to)
}

// CallerRef identifies where a completion should be pushed, e.g. a
// Telegram chat. The zero value means nobody is waiting for a push.
type CallerRef struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

func (c CallerRef) IsZero() bool { return c.Platform == "" && c.ChannelID == "" }

// Task is one search. Report and Offers are set only when done; Error only
// when failed.
type Task struct {
	ID         string                `json:"task_id"`
	Status     Status                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Caller     CallerRef             `json:"-"`
	Config     *criteria.AgentConfig `json:"config,omitempty"`
	Report     *report.Report        `json:"report,omitempty"`
	Offers     []offer.RankedOffer   `json:"offers,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Duration is how long the task ran, or zero if it has not finished.
func (t Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}
