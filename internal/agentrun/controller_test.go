package agentrun

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agusx1211/mailflow/internal/mail"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

type pollResult struct {
	doc protocol.AgentStatusResponse
	err error
}

// fakeAPI hands out run ids in order and answers each GetAgentRun with the
// next value pushed on the run's channel, so tests decide exactly when a
// poll resolves.
type fakeAPI struct {
	mu       sync.Mutex
	startErr error
	runIDs   []string
	started  []string
	polls    map[string]chan pollResult
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func newFakeAPI(runIDs ...string) *fakeAPI {
	f := &fakeAPI{runIDs: runIDs, polls: make(map[string]chan pollResult)}
	for _, id := range runIDs {
		f.polls[id] = make(chan pollResult)
	}
	return f
}

func (f *fakeAPI) StartAgentRun(ctx context.Context, subject, body, sender string) (protocol.AgentRunResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return protocol.AgentRunResponse{}, f.startErr
	}
	id := f.runIDs[len(f.started)]
	f.started = append(f.started, subject)
	return protocol.AgentRunResponse{RunID: id, Message: "started"}, nil
}

func (f *fakeAPI) GetAgentRun(ctx context.Context, runID string) (protocol.AgentStatusResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if n <= prev || f.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	f.calls.Add(1)

	f.mu.Lock()
	ch := f.polls[runID]
	f.mu.Unlock()
	select {
	case r := <-ch:
		return r.doc, r.err
	case <-ctx.Done():
		return protocol.AgentStatusResponse{}, ctx.Err()
	}
}

// respond delivers one poll answer for runID, failing the test if nobody is
// polling within a second.
func (f *fakeAPI) respond(t *testing.T, runID string, doc protocol.AgentStatusResponse, err error) {
	t.Helper()
	f.mu.Lock()
	ch := f.polls[runID]
	f.mu.Unlock()
	select {
	case ch <- pollResult{doc: doc, err: err}:
	case <-time.After(time.Second):
		t.Fatalf("no poll in flight for run %s", runID)
	}
}

func fastOptions() Options {
	return Options{PollInterval: time.Millisecond, MaxPollDuration: time.Minute, MaxPollFailures: 3}
}

func testMail(id string) mail.Mail {
	return mail.Mail{ID: id, Subject: "Betreff " + id, Body: "Text " + id, SenderEmail: id + "@example.de"}
}

// waitFor polls Snapshot until cond holds.
func waitFor(t *testing.T, c *Controller, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := c.Snapshot()
		if cond(s) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	s := c.Snapshot()
	t.Fatalf("condition not reached; last state: %+v", s)
	return s
}

func completedDoc() protocol.AgentStatusResponse {
	return protocol.AgentStatusResponse{
		Status: "completed",
		Steps: []protocol.AgentStep{
			{ID: "s1", Type: "master_agent", Status: "completed", CreatedAt: "2024-01-01T10:00:00"},
			{ID: "s2", Type: "email_drafter", Status: "completed", CreatedAt: "2024-01-01T10:00:05"},
		},
		DraftSubject: "Re: Betreff",
		DraftBody:    "Sehr geehrte Frau Müller",
	}
}

func TestStartRunPollsUntilCompleted(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())
	defer c.Close()

	m := testMail("1")
	c.SelectMail(m)
	if err := c.StartRun(context.Background(), m); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := c.Snapshot()
	if s.RunID != "run-1" || s.ViewMode != ViewRunning || !s.Polling {
		t.Fatalf("after start: %+v", s)
	}
	if len(s.Timeline.Steps) != 1 || s.Timeline.Steps[0].Type != StepStart {
		t.Fatalf("timeline after start = %+v", s.Timeline.Steps)
	}

	api.respond(t, "run-1", protocol.AgentStatusResponse{
		Status: "running",
		Steps:  []protocol.AgentStep{{ID: "s1", Type: "master_agent", Status: "running", CreatedAt: "2024-01-01T10:00:00"}},
	}, nil)
	waitFor(t, c, func(s State) bool { return s.Status == StatusRunning })

	api.respond(t, "run-1", completedDoc(), nil)
	s = waitFor(t, c, func(s State) bool { return s.Status == StatusCompleted && !s.Polling })
	if got := s.Timeline.Steps[len(s.Timeline.Steps)-1].Type; got != StepComplete {
		t.Fatalf("last step = %s, want complete", got)
	}
	if s.Draft.Subject != "Re: Betreff" {
		t.Fatalf("draft = %+v", s.Draft)
	}

	// No further polls after a terminal status.
	calls := api.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if api.calls.Load() != calls {
		t.Fatal("controller kept polling after completion")
	}
	if api.maxSeen.Load() > 1 {
		t.Fatalf("saw %d concurrent polls, want at most 1", api.maxSeen.Load())
	}
}

func TestSelectMailDiscardsStaleResponse(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())
	defer c.Close()

	first := testMail("1")
	if err := c.StartRun(context.Background(), first); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	// Wait until a poll for run-1 is blocked in the fake.
	deadline := time.Now().Add(time.Second)
	for api.inFlight.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	c.SelectMail(testMail("2"))
	s := c.Snapshot()
	if s.RunID != "" || s.ViewMode != ViewIdle || s.Polling || s.Mail.ID != "2" {
		t.Fatalf("after reselect: %+v", s)
	}

	// The poll was cancelled; nothing can be delivered and the state must
	// be untouched.
	select {
	case api.polls["run-1"] <- pollResult{doc: completedDoc()}:
		t.Fatal("stale poll still waiting for a response")
	case <-time.After(20 * time.Millisecond):
	}
	if s := c.Snapshot(); s.Status != StatusNone || len(s.Timeline.Steps) != 0 {
		t.Fatalf("stale response leaked into state: %+v", s)
	}
}

func TestApplyPollIgnoresOldGeneration(t *testing.T) {
	c := NewController(newFakeAPI(), fastOptions())
	defer c.Close()

	c.SelectMail(testMail("1"))
	old := c.gen
	c.SelectMail(testMail("2"))

	if stop := c.applyPoll(old, "run-old", completedDoc(), nil, 0); !stop {
		t.Fatal("stale poll did not stop its loop")
	}
	if s := c.Snapshot(); s.Status != StatusNone || s.Mail.ID != "2" {
		t.Fatalf("stale poll mutated state: %+v", s)
	}
}

func TestStartErrorRecorded(t *testing.T) {
	api := newFakeAPI("run-1")
	api.startErr = errors.New("boom")
	c := NewController(api, fastOptions())
	defer c.Close()

	err := c.StartRun(context.Background(), testMail("1"))
	if err == nil {
		t.Fatal("expected error")
	}
	s := c.Snapshot()
	if s.LastErr == nil || s.RunID != "" || s.Polling || s.ViewMode != ViewIdle {
		t.Fatalf("state after failed start: %+v", s)
	}
}

func TestPollFailuresStopAfterLimit(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())
	defer c.Close()

	if err := c.StartRun(context.Background(), testMail("1")); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	api.respond(t, "run-1", protocol.AgentStatusResponse{}, errors.New("network down"))
	s := waitFor(t, c, func(s State) bool { return s.LastErr != nil })
	if !s.Polling {
		t.Fatal("single failure stopped polling")
	}
	api.respond(t, "run-1", protocol.AgentStatusResponse{}, errors.New("network down"))
	api.respond(t, "run-1", protocol.AgentStatusResponse{}, errors.New("network down"))
	s = waitFor(t, c, func(s State) bool { return !s.Polling })
	if !errors.Is(s.LastErr, ErrPollFailed) {
		t.Fatalf("LastErr = %v, want ErrPollFailed", s.LastErr)
	}
}

func TestPollTimeout(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, Options{PollInterval: 5 * time.Millisecond, MaxPollDuration: time.Nanosecond, MaxPollFailures: -1})
	defer c.Close()

	if err := c.StartRun(context.Background(), testMail("1")); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := waitFor(t, c, func(s State) bool { return !s.Polling })
	if !errors.Is(s.LastErr, ErrPollTimeout) {
		t.Fatalf("LastErr = %v, want ErrPollTimeout", s.LastErr)
	}
}

func TestTemplateReviewFlow(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())
	defer c.Close()

	if err := c.RequestTemplateReview(); !errors.Is(err, ErrTemplateNotReady) {
		t.Fatalf("RequestTemplateReview before run = %v", err)
	}
	if err := c.CommitTemplateEdits("x", "y"); !errors.Is(err, ErrNotInTemplateReview) {
		t.Fatalf("CommitTemplateEdits outside review = %v", err)
	}

	if err := c.StartRun(context.Background(), testMail("1")); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	api.respond(t, "run-1", completedDoc(), nil)
	waitFor(t, c, func(s State) bool { return s.Status == StatusCompleted })

	if err := c.RequestTemplateReview(); err != nil {
		t.Fatalf("RequestTemplateReview: %v", err)
	}
	s := c.Snapshot()
	if s.ViewMode != ViewTemplateReview || s.Template.Body != "Sehr geehrte Frau Müller" {
		t.Fatalf("review state: %+v", s)
	}

	c.BackToWorkflow()
	if s := c.Snapshot(); s.ViewMode != ViewRunning {
		t.Fatalf("BackToWorkflow view = %s", s.ViewMode)
	}

	if err := c.RequestTemplateReview(); err != nil {
		t.Fatalf("RequestTemplateReview: %v", err)
	}
	if err := c.CommitTemplateEdits("Re: Neu", "Neuer Text"); err != nil {
		t.Fatalf("CommitTemplateEdits: %v", err)
	}
	s = c.Snapshot()
	if s.ViewMode != ViewRunning || s.Template.Body != "Neuer Text" || s.Draft.Body != "Sehr geehrte Frau Müller" {
		t.Fatalf("after commit: %+v", s)
	}
}

func TestCompletedWithoutDraftIsNotReviewable(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())
	defer c.Close()

	if err := c.StartRun(context.Background(), testMail("1")); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	doc := completedDoc()
	doc.DraftBody = ""
	api.respond(t, "run-1", doc, nil)
	waitFor(t, c, func(s State) bool { return s.Status == StatusCompleted })
	if err := c.RequestTemplateReview(); !errors.Is(err, ErrTemplateNotReady) {
		t.Fatalf("RequestTemplateReview = %v, want ErrTemplateNotReady", err)
	}
}

func TestCloseStopsPollingAndClosesUpdates(t *testing.T) {
	api := newFakeAPI("run-1")
	c := NewController(api, fastOptions())

	if err := c.StartRun(context.Background(), testMail("1")); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	c.Close()
	c.Close()

	for range c.Updates() {
	}
	if err := c.StartRun(context.Background(), testMail("1")); !errors.Is(err, ErrClosed) {
		t.Fatalf("StartRun after Close = %v", err)
	}
}

func TestUpdatesCarryLatestSnapshot(t *testing.T) {
	c := NewController(newFakeAPI(), fastOptions())
	defer c.Close()

	c.SelectMail(testMail("1"))
	c.SelectMail(testMail("2"))
	c.SelectMail(testMail("3"))

	select {
	case s := <-c.Updates():
		if s.Mail == nil || s.Mail.ID != "3" {
			t.Fatalf("update mail = %+v, want 3", s.Mail)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
}
