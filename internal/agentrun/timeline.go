package agentrun

import (
	"sort"
	"time"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

// Project turns a polled status document into the display timeline.
//
// Backend steps are ordered by creation time, ties keeping backend order.
// Types outside the catalogue are dropped and counted. A synthetic start
// entry is always first; a synthetic complete entry is appended once the
// run has completed. startedAt stamps the start entry when the backend has
// not reported any timed step yet.
func Project(doc protocol.AgentStatusResponse, startedAt time.Time) Timeline {
	tl, _ := project(doc, startedAt)
	return tl
}

func project(doc protocol.AgentStatusResponse, startedAt time.Time) (Timeline, []string) {
	var (
		steps   = make([]Step, 0, len(doc.Steps)+2)
		dropped []string
	)
	for _, raw := range doc.Steps {
		t := StepType(raw.Type)
		info, ok := Lookup(t)
		if !ok || t == StepStart || t == StepComplete {
			dropped = append(dropped, raw.ID)
			continue
		}
		created, _ := ParseBackendTime(raw.CreatedAt)
		steps = append(steps, Step{
			ID:        raw.ID,
			Type:      t,
			Name:      info.Name,
			Icon:      info.Icon,
			Message:   info.Message,
			Text:      raw.Text,
			Status:    stepStatus(raw.Status),
			CreatedAt: created,
		})
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].CreatedAt.Before(steps[j].CreatedAt)
	})

	first := startedAt
	for _, s := range steps {
		if !s.CreatedAt.IsZero() {
			if first.IsZero() || s.CreatedAt.Before(first) {
				first = s.CreatedAt
			}
			break
		}
	}

	out := make([]Step, 0, len(steps)+2)
	out = append(out, synthetic(StepStart, first))
	out = append(out, steps...)

	if Status(doc.Status) == StatusCompleted {
		last := first
		if n := len(steps); n > 0 && steps[n-1].CreatedAt.After(last) {
			last = steps[n-1].CreatedAt
		}
		out = append(out, synthetic(StepComplete, last))
	}
	return Timeline{Steps: out, Dropped: len(dropped)}, dropped
}

func synthetic(t StepType, at time.Time) Step {
	info, _ := Lookup(t)
	return Step{
		ID:        string(t),
		Type:      t,
		Name:      info.Name,
		Icon:      info.Icon,
		Message:   info.Message,
		Status:    StepCompleted,
		CreatedAt: at,
		Synthetic: true,
	}
}
