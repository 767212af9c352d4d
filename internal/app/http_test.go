package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"messageai/api/internal/detector"
	"messageai/api/internal/outbox"
)

type fakeRunner struct {
	stats detector.Stats
	runs  int
}

func (f *fakeRunner) RunPass(context.Context) detector.Stats {
	f.runs++
	return f.stats
}

type fakePinger struct {
	pingFn func(context.Context) error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func newTestServer(runner *fakeRunner, repo OutboxReader, pinger *fakePinger) *HTTPServer {
	if runner == nil {
		runner = &fakeRunner{}
	}
	if repo == nil {
		repo = outbox.NewMemoryRepo()
	}
	if pinger == nil {
		pinger = &fakePinger{}
	}
	return NewHTTPServer(NewService(runner, repo, pinger), "*")
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	pinger := &fakePinger{pingFn: func(context.Context) error {
		return errors.New("connection refused")
	}}
	server := newTestServer(nil, nil, pinger)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestRunDetectionEndpoint(t *testing.T) {
	runner := &fakeRunner{stats: detector.Stats{Candidates: 4, Claimed: 2, Enqueued: 2, Skipped: 2}}
	server := newTestServer(runner, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/detect/run", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if runner.runs != 1 {
		t.Errorf("expected exactly one pass, got %d", runner.runs)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["enqueued"] != float64(2) {
		t.Errorf("expected enqueued=2, got %v", response["enqueued"])
	}
}

func seedEntry(t *testing.T, repo *outbox.MemoryRepo, id string) {
	t.Helper()
	err := repo.Enqueue(context.Background(), outbox.Entry{
		ID:              id,
		CompositeKey:    "event_evt1_u1_24h_before",
		RecipientID:     "u1",
		RenderedMessage: "Reminder: Algebra is tomorrow at 3:00 PM.",
		CreatedAt:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestListAndGetOutbox(t *testing.T) {
	repo := outbox.NewMemoryRepo()
	seedEntry(t, repo, "e1")
	server := newTestServer(nil, repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/outbox", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var listResponse struct {
		Entries []OutboxEntryView `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResponse); err != nil {
		t.Fatalf("parse list response: %v", err)
	}
	if len(listResponse.Entries) != 1 || listResponse.Entries[0].Status != "pending" {
		t.Errorf("unexpected list response: %+v", listResponse)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/outbox/e1", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/outbox/missing", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get missing: expected 404, got %d", rr.Code)
	}
}

func TestRetryEndpointStates(t *testing.T) {
	repo := outbox.NewMemoryRepo()
	seedEntry(t, repo, "e1")
	server := newTestServer(nil, repo, nil)
	ctx := context.Background()

	// pending: rejected as not retryable
	req := httptest.NewRequest(http.MethodPost, "/api/outbox/e1/retry", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("retry on pending: expected 409, got %d", rr.Code)
	}

	// Exhaust the entry to failed.
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < outbox.MaxAttempts; i++ {
		claimed, err := repo.ClaimDue(ctx, now, 1)
		if err != nil || len(claimed) != 1 {
			t.Fatalf("claim for failure %d: %v (%d)", i, err, len(claimed))
		}
		if _, err := repo.RecordFailure(ctx, "e1", "boom", now, now.Add(time.Second)); err != nil {
			t.Fatalf("record failure: %v", err)
		}
		now = now.Add(5 * time.Second)
	}

	// failed: retry succeeds
	req = httptest.NewRequest(http.MethodPost, "/api/outbox/e1/retry", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("retry on failed: expected 200, got %d", rr.Code)
	}
	entry, _ := repo.Get(ctx, "e1")
	if entry.Status != outbox.StatusPending {
		t.Errorf("entry should be pending after retry, got %s", entry.Status)
	}

	// Deliver it, then verify retry on sent is rejected.
	claimed, err := repo.ClaimDue(ctx, now, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim for delivery: %v (%d)", err, len(claimed))
	}
	if err := repo.MarkSent(ctx, "e1", now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/outbox/e1/retry", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("retry on sent: expected 409, got %d", rr.Code)
	}
	entry, _ = repo.Get(ctx, "e1")
	if entry.Status != outbox.StatusSent {
		t.Errorf("sent entry must remain sent, got %s", entry.Status)
	}

	// Unknown id: 404
	req = httptest.NewRequest(http.MethodPost, "/api/outbox/missing/retry", nil)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("retry on missing: expected 404, got %d", rr.Code)
	}
}

func TestBadLimitRejected(t *testing.T) {
	server := newTestServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/outbox?limit=abc", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
