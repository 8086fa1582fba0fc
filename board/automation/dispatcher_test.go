// ABOUTME: Tests for webhook delivery: request shape, integration settings, failures, and the worker queue.
package automation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/core"
	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"
	"go.uber.org/goleak"
)

type captured struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// hook starts a server that records every request and answers with status.
func hook(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func movedJob(url string) automation.Job {
	from, to := core.NewULID(), core.NewULID()
	return automation.Job{
		WorkspaceID: core.NewULID(),
		BoardID:     core.NewULID(),
		Automation: core.Automation{
			ID: core.NewULID(), Trigger: core.TriggerCardMoved,
			SourceListID: &from, TargetListID: &to, WebhookURL: url, Active: true,
		},
		Payload: automation.Payload{
			Trigger:      core.TriggerCardMoved,
			CardID:       core.NewULID(),
			SourceListID: &from,
			TargetListID: &to,
			Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestDeliverPostsPayload(t *testing.T) {
	srv, requests := hook(t, http.StatusOK)
	d := automation.NewDispatcher(automation.Config{}, nil, nil)
	job := movedJob(srv.URL + "/hook")

	rec, err := d.Deliver(context.Background(), job)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !rec.Succeeded() || rec.Status != http.StatusOK || rec.Method != http.MethodPost {
		t.Errorf("record: %+v", rec)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("requests: got %d, want 1", len(reqs))
	}
	got := reqs[0]
	if got.Method != http.MethodPost || got.Path != "/hook" {
		t.Errorf("request line: %s %s", got.Method, got.Path)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type: %q", got.Header.Get("Content-Type"))
	}
	if got.Header.Get(automation.DeliveryHeader) != rec.ID {
		t.Errorf("delivery header %q, record id %q", got.Header.Get(automation.DeliveryHeader), rec.ID)
	}

	var body map[string]any
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := map[string]any{
		"trigger":      "card_moved",
		"cardId":       job.Payload.CardID.String(),
		"sourceListId": job.Payload.SourceListID.String(),
		"targetListId": job.Payload.TargetListID.String(),
		"timestamp":    "2026-03-01T12:00:00Z",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestDeliverAppliesIntegration(t *testing.T) {
	srv, requests := hook(t, http.StatusAccepted)
	d := automation.NewDispatcher(automation.Config{}, nil, nil)
	h, err := core.ParseHttpIntegration(core.IntegrationInput{
		Name:        "CRM",
		Method:      "put",
		URL:         "https://crm.example.com/api",
		QueryJSON:   `{"source":"funnel"}`,
		HeadersJSON: `{"Authorization":"Bearer abc"}`,
	})
	if err != nil {
		t.Fatalf("ParseHttpIntegration: %v", err)
	}
	job := movedJob(srv.URL + "/hook?keep=1")
	job.Integration = &h

	rec, err := d.Deliver(context.Background(), job)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if rec.Method != http.MethodPost {
		t.Errorf("record method: %q", rec.Method)
	}
	got := requests()[0]
	if got.Method != http.MethodPost {
		t.Errorf("method: got %q, want POST", got.Method)
	}
	if got.Query != "keep=1&source=funnel" {
		t.Errorf("query: got %q", got.Query)
	}
	if got.Header.Get("Authorization") != "Bearer abc" {
		t.Errorf("authorization: got %q", got.Header.Get("Authorization"))
	}
}

func TestDeliverAlwaysPosts(t *testing.T) {
	d := automation.NewDispatcher(automation.Config{}, nil, nil)
	for _, method := range []string{"get", "delete", "patch"} {
		srv, requests := hook(t, http.StatusOK)
		h, err := core.ParseHttpIntegration(core.IntegrationInput{Name: "CRM", Method: method, URL: "https://crm.example.com/api"})
		if err != nil {
			t.Fatalf("ParseHttpIntegration(%s): %v", method, err)
		}
		job := movedJob(srv.URL + "/hook")
		job.Integration = &h
		if _, err := d.Deliver(context.Background(), job); err != nil {
			t.Fatalf("Deliver with %s integration: %v", method, err)
		}
		got := requests()[0]
		if got.Method != http.MethodPost {
			t.Errorf("%s integration: method got %q, want POST", method, got.Method)
		}
		if len(got.Body) == 0 {
			t.Errorf("%s integration: empty body", method)
		}
	}
}

func TestDeliverFailures(t *testing.T) {
	srv, _ := hook(t, http.StatusBadGateway)
	d := automation.NewDispatcher(automation.Config{Timeout: time.Second}, nil, nil)

	rec, err := d.Deliver(context.Background(), movedJob(srv.URL))
	var de *core.DispatchError
	if !errors.As(err, &de) || de.Status != http.StatusBadGateway {
		t.Fatalf("non-2xx: got %v, want DispatchError with 502", err)
	}
	if !errors.Is(err, core.ErrDispatch) {
		t.Error("non-2xx error should match ErrDispatch")
	}
	if rec.Succeeded() || rec.Status != http.StatusBadGateway || rec.Error == "" {
		t.Errorf("record: %+v", rec)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	rec, err = d.Deliver(context.Background(), movedJob(url))
	if !errors.As(err, &de) || de.Status != 0 {
		t.Fatalf("unreachable: got %v, want DispatchError without status", err)
	}
	if rec.Status != 0 || rec.Error == "" {
		t.Errorf("unreachable record: %+v", rec)
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []automation.Delivery
}

func (m *memRecorder) Record(_ context.Context, d automation.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, d)
	return nil
}

func (m *memRecorder) all() []automation.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]automation.Delivery(nil), m.recs...)
}

type memNotifier struct {
	mu    sync.Mutex
	notes []automation.Notification
}

func (m *memNotifier) Notify(_ context.Context, n automation.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
}

func (m *memNotifier) all() []automation.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]automation.Notification(nil), m.notes...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherRunDeliversAndNotifies(t *testing.T) {
	ok, _ := hook(t, http.StatusOK)
	bad, _ := hook(t, http.StatusInternalServerError)
	rec := &memRecorder{}
	notes := &memNotifier{}
	d := automation.NewDispatcher(automation.Config{Workers: 2, QueueSize: 4}, notes, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	okJob, badJob := movedJob(ok.URL), movedJob(bad.URL)
	if !d.Enqueue(okJob) || !d.Enqueue(badJob) {
		t.Fatal("Enqueue rejected a job on an empty queue")
	}
	waitFor(t, "two notifications", func() bool { return len(notes.all()) == 2 })

	roles := map[ulid.ULID]automation.Role{}
	for _, n := range notes.all() {
		roles[n.WorkspaceID] = n.Role
	}
	if roles[okJob.WorkspaceID] != automation.RoleSuccess || roles[badJob.WorkspaceID] != automation.RoleError {
		t.Errorf("roles: %v", roles)
	}
	if got := len(rec.all()); got != 2 {
		t.Errorf("recorded deliveries: got %d, want 2", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestDispatcherRunStopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	d := automation.NewDispatcher(automation.Config{Workers: 3}, &memNotifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	notes := &memNotifier{}
	d := automation.NewDispatcher(automation.Config{QueueSize: 1}, notes, nil)
	if !d.Enqueue(movedJob("https://x.test")) {
		t.Fatal("first Enqueue should fit")
	}
	if d.Enqueue(movedJob("https://x.test")) {
		t.Fatal("second Enqueue should be dropped")
	}
	got := notes.all()
	if len(got) != 1 || got[0].Role != automation.RoleError {
		t.Errorf("notifications: %+v", got)
	}
}

func TestPingUsesIntegrationURL(t *testing.T) {
	srv, requests := hook(t, http.StatusNoContent)
	d := automation.NewDispatcher(automation.Config{}, nil, nil)
	h, err := core.ParseHttpIntegration(core.IntegrationInput{
		Name: "Probe", Method: "GET", URL: srv.URL + "/ping", HeadersJSON: `{"X-Key":"k"}`,
	})
	if err != nil {
		t.Fatalf("ParseHttpIntegration: %v", err)
	}
	status, err := d.Ping(context.Background(), h)
	if err != nil || status != http.StatusNoContent {
		t.Fatalf("Ping: status %d err %v", status, err)
	}
	got := requests()[0]
	if got.Method != http.MethodGet || got.Path != "/ping" || got.Header.Get("X-Key") != "k" || len(got.Body) != 0 {
		t.Errorf("ping request: %+v", got)
	}
}
