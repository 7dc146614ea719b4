package agentrun

import (
	"testing"
	"time"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

func TestParseBackendTime(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2024-01-01T10:00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2024-01-01T10:00:00.5", time.Date(2024, 1, 1, 10, 0, 0, 5e8, time.UTC), true},
		{"2024-01-01 10:00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2024-01-01T10:00:00Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2024-01-01T12:00:00+02:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"2024-01-01T05:00:00-05:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseBackendTime(tt.raw)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("ParseBackendTime(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProjectOrdersAndDecorates(t *testing.T) {
	doc := protocol.AgentStatusResponse{
		Status: "completed",
		Steps: []protocol.AgentStep{
			{ID: "c", Type: "email_drafter", Status: "completed", CreatedAt: "2024-01-01T10:00:03"},
			{ID: "a", Type: "master_agent", Status: "completed", CreatedAt: "2024-01-01T10:00:01"},
			{ID: "b", Type: "expert_widerspruch", Status: "running", CreatedAt: "2024-01-01T10:00:02"},
		},
	}
	tl := Project(doc, time.Time{})

	wantIDs := []string{"start", "a", "b", "c", "complete"}
	if len(tl.Steps) != len(wantIDs) {
		t.Fatalf("got %d steps, want %d", len(tl.Steps), len(wantIDs))
	}
	for i, id := range wantIDs {
		if tl.Steps[i].ID != id {
			t.Fatalf("step %d = %q, want %q", i, tl.Steps[i].ID, id)
		}
	}
	if tl.Steps[0].Status != StepCompleted || !tl.Steps[0].Synthetic {
		t.Fatalf("start step = %+v", tl.Steps[0])
	}
	if tl.Steps[2].Status != StepActive {
		t.Fatalf("running step mapped to %q, want active", tl.Steps[2].Status)
	}
	if tl.Steps[2].Name != "Widerspruch Experte" {
		t.Fatalf("expert name = %q", tl.Steps[2].Name)
	}
	if !tl.Steps[0].CreatedAt.Equal(tl.Steps[1].CreatedAt) {
		t.Fatalf("start stamped %v, want first step time %v", tl.Steps[0].CreatedAt, tl.Steps[1].CreatedAt)
	}
}

func TestProjectStableTies(t *testing.T) {
	same := "2024-01-01T10:00:00"
	doc := protocol.AgentStatusResponse{
		Status: "running",
		Steps: []protocol.AgentStep{
			{ID: "1", Type: "master_agent", CreatedAt: same},
			{ID: "2", Type: "expert_agent", CreatedAt: same},
			{ID: "3", Type: "email_drafter", CreatedAt: same},
		},
	}
	tl := Project(doc, time.Time{})
	for i, want := range []string{"start", "1", "2", "3"} {
		if tl.Steps[i].ID != want {
			t.Fatalf("step %d = %q, want %q", i, tl.Steps[i].ID, want)
		}
	}
	if last := tl.Steps[len(tl.Steps)-1]; last.Type == StepComplete {
		t.Fatal("complete step appended for running run")
	}
}

func TestProjectDropsUnknownTypes(t *testing.T) {
	doc := protocol.AgentStatusResponse{
		Status: "running",
		Steps: []protocol.AgentStep{
			{ID: "1", Type: "master_agent", CreatedAt: "2024-01-01T10:00:00"},
			{ID: "2", Type: "quality_gate", CreatedAt: "2024-01-01T10:00:01"},
			{ID: "3", Type: "expert_astrology", CreatedAt: "2024-01-01T10:00:02"},
		},
	}
	tl, dropped := project(doc, time.Time{})
	if tl.Dropped != 2 || len(dropped) != 2 {
		t.Fatalf("dropped = %d (%v), want 2", tl.Dropped, dropped)
	}
	if len(tl.Steps) != 2 {
		t.Fatalf("steps = %d, want start plus one", len(tl.Steps))
	}
}

func TestProjectEmptyRunHasStartOnly(t *testing.T) {
	started := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tl := Project(protocol.AgentStatusResponse{Status: "pending"}, started)
	if len(tl.Steps) != 1 || tl.Steps[0].Type != StepStart {
		t.Fatalf("steps = %+v", tl.Steps)
	}
	if !tl.Steps[0].CreatedAt.Equal(started) {
		t.Fatalf("start time = %v, want %v", tl.Steps[0].CreatedAt, started)
	}
}

func TestCatalogueCoversExperts(t *testing.T) {
	for _, topic := range ExpertTopics {
		if !Known(ExpertStep(topic)) || !IsExpert(ExpertStep(topic)) {
			t.Errorf("expert %s missing from catalogue", topic)
		}
	}
	if IsExpert(StepMasterAgent) {
		t.Error("master agent classified as expert")
	}
	if Known("expert_unknown") {
		t.Error("unknown expert recognised")
	}
}
