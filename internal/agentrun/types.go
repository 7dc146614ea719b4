// Package agentrun tracks a single backend agent run for the selected mail:
// it starts the run, polls its status and projects the backend steps into an
// ordered, display-ready timeline.
package agentrun

import (
	"time"

	"github.com/agusx1211/mailflow/internal/mail"
)

// Status is the backend-owned lifecycle state of a run.
type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no further change is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StepStatus is the display status of one timeline entry.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// ViewMode selects what the assistant panel shows.
type ViewMode string

const (
	ViewIdle           ViewMode = "idle"
	ViewRunning        ViewMode = "running"
	ViewTemplateReview ViewMode = "templateReview"
)

// Step is one projected timeline entry.
type Step struct {
	ID        string
	Type      StepType
	Name      string
	Icon      string
	Message   string
	Text      string
	Status    StepStatus
	CreatedAt time.Time
	Synthetic bool
}

// Timeline is the ordered projection of a run's steps.
type Timeline struct {
	Steps []Step
	// Dropped counts backend steps whose type is not in the catalogue.
	Dropped int
}

// Template is the editable reply draft.
type Template struct {
	Subject string
	Body    string
}

// State is an immutable snapshot of the controller.
type State struct {
	Mail          *mail.Mail
	RunID         string
	Status        Status
	StatusMessage string
	Timeline      Timeline
	ViewMode      ViewMode
	// Draft is what the backend produced; Template is the local working copy.
	Draft    Template
	Template Template
	LastErr  error
	// Starting is set while the start request is in flight.
	Starting bool
	Polling  bool
}

// TemplateReady reports whether template review may be entered.
func (s State) TemplateReady() bool {
	return s.Status == StatusCompleted && s.Draft.Body != ""
}

func (s State) clone() State {
	out := s
	if s.Mail != nil {
		m := *s.Mail
		out.Mail = &m
	}
	out.Timeline.Steps = append([]Step(nil), s.Timeline.Steps...)
	return out
}
