// ABOUTME: Webhook dispatcher: a bounded queue drained by errgroup-managed workers, one attempt per job.
// ABOUTME: Failures become DispatchErrors that are logged, recorded, and notified but never returned to mutations.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2389-research/funnel/board/core"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeliveryHeader carries the unique id of each webhook attempt.
const DeliveryHeader = "X-Funnel-Delivery"

// Job is one webhook call waiting to be made.
type Job struct {
	WorkspaceID ulid.ULID
	BoardID     ulid.ULID
	Automation  core.Automation
	Integration *core.HttpIntegration
	Payload     Payload
}

// Config tunes the dispatcher.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256, Timeout: 10 * time.Second}
}

// Dispatcher sends webhook jobs in the background.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	queue    chan Job
	notifier Notifier
	recorder Recorder
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher. notifier and recorder may be nil.
// Jobs are only sent once Run is called.
func NewDispatcher(cfg Config, notifier Notifier, recorder Recorder) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Dispatcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		queue:    make(chan Job, cfg.QueueSize),
		notifier: notifier,
		recorder: recorder,
		log:      zap.L().With(zap.String("component", "board.automation")),
	}
}

// Enqueue schedules a job without blocking. When the queue is full the job
// is dropped, reported as an error notification, and false is returned.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.queue <- job:
		return true
	default:
	}
	d.log.Warn("webhook queue full, dropping job",
		zap.String("action", "enqueue"),
		zap.Stringer("workspace", job.WorkspaceID),
		zap.Stringer("automation", job.Automation.ID))
	d.notifier.Notify(context.Background(), Notification{
		WorkspaceID: job.WorkspaceID,
		Role:        RoleError,
		Message:     fmt.Sprintf("automation %s skipped: webhook queue is full", job.Automation.Trigger),
		Time:        time.Now().UTC(),
	})
	return false
}

// Run starts the workers and blocks until ctx is cancelled. Jobs still
// queued at that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for worker := range d.cfg.Workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case job := <-d.queue:
					d.handle(gctx, worker, job)
				}
			}
		})
	}
	d.log.Info("webhook dispatcher started",
		zap.String("action", "start"),
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue", d.cfg.QueueSize),
		zap.Duration("timeout", d.cfg.Timeout))
	return g.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, worker int, job Job) {
	rec, err := d.Deliver(ctx, job)
	if d.recorder != nil {
		if rerr := d.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
			d.log.Error("record delivery failed", zap.String("action", "record"), zap.Error(rerr))
		}
	}

	n := Notification{WorkspaceID: job.WorkspaceID, Time: time.Now().UTC()}
	if err != nil {
		d.log.Warn("webhook dispatch failed",
			zap.String("action", "dispatch"),
			zap.Int("worker", worker),
			zap.String("delivery", rec.ID),
			zap.String("url", rec.URL),
			zap.Int("status", rec.Status),
			zap.Error(err))
		n.Role = RoleError
		n.Message = fmt.Sprintf("automation %s failed: %v", job.Automation.Trigger, err)
	} else {
		d.log.Debug("webhook delivered",
			zap.String("action", "dispatch"),
			zap.Int("worker", worker),
			zap.String("delivery", rec.ID),
			zap.Int("status", rec.Status))
		n.Role = RoleSuccess
		n.Message = fmt.Sprintf("automation %s delivered", job.Automation.Trigger)
	}
	d.notifier.Notify(ctx, n)
}

// Deliver makes a single webhook POST and returns its record. An attached
// integration contributes query and headers only. A network failure or
// non-2xx response yields a *core.DispatchError.
func (d *Dispatcher) Deliver(ctx context.Context, job Job) (Delivery, error) {
	const method = http.MethodPost
	rec := Delivery{
		ID:           uuid.NewString(),
		WorkspaceID:  job.WorkspaceID.String(),
		BoardID:      job.BoardID.String(),
		AutomationID: job.Automation.ID.String(),
		CardID:       job.Payload.CardID.String(),
		Trigger:      string(job.Automation.Trigger),
		Method:       method,
		URL:          job.Automation.WebhookURL,
		CreatedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(job.Payload)
	if err != nil {
		return d.fail(rec, 0, fmt.Errorf("encode payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, method, job.Automation.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return d.fail(rec, 0, err)
	}
	if job.Integration != nil {
		job.Integration.Apply(req)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, rec.ID)
	rec.URL = req.URL.String()

	start := time.Now()
	resp, err := d.client.Do(req)
	rec.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		return d.fail(rec, 0, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	rec.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return d.fail(rec, resp.StatusCode, errors.New(resp.Status))
	}
	return rec, nil
}

func (d *Dispatcher) fail(rec Delivery, status int, cause error) (Delivery, error) {
	err := &core.DispatchError{URL: rec.URL, Status: status, Err: cause}
	rec.Status = status
	rec.Error = err.Error()
	return rec, err
}

// Ping sends an empty JSON object to an integration's own URL with its
// method, query, and headers, returning the response status.
func (d *Dispatcher) Ping(ctx context.Context, h core.HttpIntegration) (int, error) {
	var body io.Reader
	if h.Method != http.MethodGet && h.Method != http.MethodDelete {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, body)
	if err != nil {
		return 0, &core.DispatchError{URL: h.URL, Err: err}
	}
	h.Apply(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(DeliveryHeader, uuid.NewString())
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &core.DispatchError{URL: h.URL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &core.DispatchError{URL: h.URL, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return resp.StatusCode, nil
}
