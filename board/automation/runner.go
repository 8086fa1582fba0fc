// ABOUTME: Runner connects a workspace actor's event stream to the evaluator and dispatcher.
// ABOUTME: Each committed card event is matched against the board's automations and queued for delivery.
package automation

import (
	"context"

	"github.com/2389-research/funnel/board/core"
	"go.uber.org/zap"
)

// EventSource is the part of a workspace actor the runner needs.
type EventSource interface {
	Subscribe() chan core.Event
	Unsubscribe(ch chan core.Event)
	Snapshot() *core.Workspace
}

// Enqueuer accepts webhook jobs without blocking.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// Runner feeds one workspace's events into a dispatcher.
type Runner struct {
	source EventSource
	queue  Enqueuer
	log    *zap.Logger
}

// NewRunner creates a runner for source.
func NewRunner(source EventSource, queue Enqueuer) *Runner {
	return &Runner{
		source: source,
		queue:  queue,
		log:    zap.L().With(zap.String("component", "board.automation")),
	}
}

// Run consumes events until ctx is cancelled or the source closes its
// channel. It always returns nil; dispatch failures are not its concern.
func (r *Runner) Run(ctx context.Context) error {
	return r.Consume(ctx, r.source.Subscribe())
}

// Consume is Run on a channel the caller already subscribed, so no event
// committed after the subscription is missed. The channel is unsubscribed
// on return.
func (r *Runner) Consume(ctx context.Context, ch chan core.Event) error {
	defer r.source.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.HandleEvent(ev)
		}
	}
}

// HandleEvent evaluates one event against the automations as of its commit
// and enqueues a job per match. It returns the number of jobs accepted.
func (r *Runner) HandleEvent(ev core.Event) int {
	if ev.BoardID == nil {
		return 0
	}
	ws := ev.State
	if ws == nil {
		ws = r.source.Snapshot()
	}
	b, ok := ws.Board(*ev.BoardID)
	if !ok {
		return 0
	}
	accepted := 0
	for _, m := range Evaluate(b, ev) {
		job := Job{
			WorkspaceID: ev.WorkspaceID,
			BoardID:     b.ID,
			Automation:  m.Automation,
			Payload:     m.Payload,
		}
		if id := m.Automation.IntegrationID; id != nil {
			if h, ok := ws.Integration(*id); ok {
				job.Integration = &h
			}
		}
		r.log.Debug("automation matched",
			zap.String("action", "evaluate"),
			zap.Stringer("automation", m.Automation.ID),
			zap.String("trigger", string(m.Automation.Trigger)),
			zap.Stringer("card", m.Payload.CardID))
		if r.queue.Enqueue(job) {
			accepted++
		}
	}
	return accepted
}
