package agentrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/internal/eventq"
	"github.com/agusx1211/mailflow/internal/mail"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

var (
	ErrTemplateNotReady    = errors.New("agentrun: no completed draft to review")
	ErrNotInTemplateReview = errors.New("agentrun: not in template review")
	ErrPollTimeout         = errors.New("agentrun: run did not finish in time")
	ErrPollFailed          = errors.New("agentrun: polling gave up after repeated failures")
	ErrNoMail              = errors.New("agentrun: no mail selected")
	ErrClosed              = errors.New("agentrun: controller closed")
)

// Defaults for Options fields left zero.
const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollDuration = 10 * time.Minute
	DefaultMaxPollFailures = 5
)

// RunAPI is the slice of the backend the controller drives.
type RunAPI interface {
	StartAgentRun(ctx context.Context, subject, body, sender string) (protocol.AgentRunResponse, error)
	GetAgentRun(ctx context.Context, runID string) (protocol.AgentStatusResponse, error)
}

// Options tunes polling. A negative MaxPollDuration or MaxPollFailures
// disables that limit.
type Options struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration
	MaxPollFailures int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPollDuration == 0 {
		o.MaxPollDuration = DefaultMaxPollDuration
	}
	if o.MaxPollFailures == 0 {
		o.MaxPollFailures = DefaultMaxPollFailures
	}
	return o
}

// Controller owns the agent run of the currently selected mail.
//
// Every selection or start bumps a generation counter. The poll goroutine
// carries the generation it was started for and its results are applied only
// while that generation is still current, so a late response for a run the
// user has moved away from never touches the state.
type Controller struct {
	api  RunAPI
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	gen        uint64
	pollCancel context.CancelFunc
	startedAt  time.Time
	logged     map[string]struct{}
	closed     bool

	updates chan State
	wg      sync.WaitGroup
}

// NewController returns an idle controller.
func NewController(api RunAPI, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:     api,
		opts:    opts.withDefaults(),
		ctx:     ctx,
		cancel:  cancel,
		state:   State{ViewMode: ViewIdle},
		logged:  make(map[string]struct{}),
		updates: make(chan State, 1),
	}
}

// Updates delivers the newest snapshot after each state change. Only the
// latest snapshot is buffered. The channel is closed by Close.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SelectMail makes m the subject, abandoning any run of the previous mail.
func (c *Controller) SelectMail(m mail.Mail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.resetLocked(&m)
	debug.LogKV("agentrun", "mail selected", "mail", m.ID, "gen", c.gen)
	c.publishLocked()
}

// StartRun asks the backend to process m and begins polling the new run.
// m becomes the selection when it is not already. If the selection changes
// while the start request is in flight its result is discarded.
func (c *Controller) StartRun(ctx context.Context, m mail.Mail) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if m.ID == "" {
		c.mu.Unlock()
		return ErrNoMail
	}
	c.resetLocked(&m)
	gen := c.gen
	c.state.Starting = true
	c.publishLocked()
	c.mu.Unlock()

	debug.LogKV("agentrun", "starting run", "mail", m.ID, "gen", gen)
	resp, err := c.api.StartAgentRun(ctx, m.Subject, m.Body, m.SenderEmail)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		debug.LogKV("agentrun", "discarding stale start", "mail", m.ID, "gen", gen, "current_gen", c.gen)
		return nil
	}
	c.state.Starting = false
	if err != nil {
		c.state.LastErr = fmt.Errorf("start agent run: %w", err)
		c.publishLocked()
		return c.state.LastErr
	}
	if resp.RunID == "" {
		c.state.LastErr = errors.New("start agent run: backend returned no run id")
		c.publishLocked()
		return c.state.LastErr
	}

	c.startedAt = time.Now().UTC()
	c.state.RunID = resp.RunID
	c.state.Status = StatusPending
	c.state.ViewMode = ViewRunning
	c.state.Timeline = Project(protocol.AgentStatusResponse{Status: string(StatusPending)}, c.startedAt)
	c.state.Polling = true

	pollCtx, cancel := context.WithCancel(c.ctx)
	c.pollCancel = cancel
	c.wg.Add(1)
	go c.pollLoop(pollCtx, gen, resp.RunID)

	debug.LogKV("agentrun", "run started", "run", resp.RunID, "gen", gen)
	c.publishLocked()
	return nil
}

// RequestTemplateReview copies the completed draft into the editable
// template and switches to template review.
func (c *Controller) RequestTemplateReview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.TemplateReady() {
		return ErrTemplateNotReady
	}
	c.state.Template = c.state.Draft
	c.state.ViewMode = ViewTemplateReview
	c.publishLocked()
	return nil
}

// CommitTemplateEdits stores the edited template locally and returns to the
// workflow view. Nothing is sent to the backend.
func (c *Controller) CommitTemplateEdits(subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ViewMode != ViewTemplateReview {
		return ErrNotInTemplateReview
	}
	c.state.Template = Template{Subject: subject, Body: body}
	c.state.ViewMode = ViewRunning
	c.publishLocked()
	return nil
}

// BackToWorkflow leaves template review without keeping edits.
func (c *Controller) BackToWorkflow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ViewMode != ViewTemplateReview {
		return
	}
	c.state.ViewMode = ViewRunning
	c.publishLocked()
}

// Close stops polling and releases the controller. It waits for the poll
// goroutine to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	close(c.updates)
	c.mu.Unlock()
}

// resetLocked abandons the current run and selects m.
func (c *Controller) resetLocked(m *mail.Mail) {
	c.gen++
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.startedAt = time.Time{}
	c.logged = make(map[string]struct{})
	c.state = State{Mail: m, ViewMode: ViewIdle}
}

func (c *Controller) publishLocked() {
	if c.closed {
		return
	}
	eventq.Replace(c.updates, c.state.clone())
}

func (c *Controller) pollLoop(ctx context.Context, gen uint64, runID string) {
	defer c.wg.Done()

	var deadline time.Time
	if c.opts.MaxPollDuration > 0 {
		deadline = time.Now().Add(c.opts.MaxPollDuration)
	}
	failures := 0
	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			c.stopPolling(gen, ErrPollTimeout)
			return
		}

		doc, err := c.api.GetAgentRun(ctx, runID)
		if ctx.Err() != nil {
			// Cancelled while in flight: the result belongs to an abandoned run.
			return
		}
		if err != nil {
			failures++
		} else {
			failures = 0
		}
		if done := c.applyPoll(gen, runID, doc, err, failures); done {
			return
		}
		timer.Reset(c.opts.PollInterval)
	}
}

// applyPoll folds one poll result into the state. It returns true when the
// loop should stop.
func (c *Controller) applyPoll(gen uint64, runID string, doc protocol.AgentStatusResponse, err error, failures int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		debug.LogKV("agentrun", "discarding stale poll", "run", runID, "gen", gen, "current_gen", c.gen)
		return true
	}

	if err != nil {
		debug.LogKV("agentrun", "poll failed", "run", runID, "failures", failures, "error", err)
		if c.opts.MaxPollFailures > 0 && failures >= c.opts.MaxPollFailures {
			c.state.LastErr = fmt.Errorf("%w (%d consecutive): %v", ErrPollFailed, failures, err)
			c.state.Polling = false
			c.publishLocked()
			return true
		}
		c.state.LastErr = fmt.Errorf("poll run %s: %w", runID, err)
		c.publishLocked()
		return false
	}

	tl, dropped := project(doc, c.startedAt)
	for _, id := range dropped {
		if _, seen := c.logged[id]; seen {
			continue
		}
		c.logged[id] = struct{}{}
		debug.LogKV("agentrun", "dropping unknown step", "run", runID, "step", id)
	}

	prev := c.state.Status
	c.state.LastErr = nil
	c.state.Status = Status(doc.Status)
	c.state.StatusMessage = doc.StatusMessage
	c.state.Timeline = tl
	if c.state.Status == StatusCompleted {
		c.state.Draft = Template{Subject: doc.DraftSubject, Body: doc.DraftBody}
	}
	if prev != c.state.Status {
		debug.LogKV("agentrun", "status changed", "run", runID, "from", prev, "to", c.state.Status)
	}

	done := c.state.Status.Terminal()
	if done {
		c.state.Polling = false
		if c.pollCancel != nil {
			c.pollCancel()
			c.pollCancel = nil
		}
	}
	c.publishLocked()
	return done
}

func (c *Controller) stopPolling(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	debug.LogKV("agentrun", "polling stopped", "run", c.state.RunID, "error", err)
	c.state.Polling = false
	c.state.LastErr = err
	c.publishLocked()
}
