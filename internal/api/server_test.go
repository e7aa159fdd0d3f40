package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atendai/atendai/internal/pipeline"
	"github.com/atendai/atendai/internal/testutil"
)

type scriptedIngestor struct {
	result pipeline.IngestResult
	err    error
	raw    []byte
}

func (s *scriptedIngestor) Ingest(_ context.Context, raw []byte) (pipeline.IngestResult, error) {
	s.raw = raw
	return s.result, s.err
}

type recordingProcessor struct {
	mu      sync.Mutex
	batches []uuid.UUID
	done    chan struct{}
}

func (p *recordingProcessor) ProcessBatch(_ context.Context, batchID uuid.UUID) {
	p.mu.Lock()
	p.batches = append(p.batches, batchID)
	p.mu.Unlock()
	if p.done != nil {
		close(p.done)
	}
}

// inlineRegistry runs tasks synchronously so tests need no
// synchronization with real goroutines.
type inlineRegistry struct {
	started int
	refuse  bool
}

func (r *inlineRegistry) Go(_ string, fn func(ctx context.Context)) bool {
	if r.refuse {
		return false
	}
	r.started++
	fn(context.Background())
	return true
}

func newTestServer(ing ingestor, proc batchProcessor, reg taskRegistry) *Server {
	return NewServer(ing, proc, reg, nil, Config{}, testutil.DiscardLogger())
}

func postWebhook(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestWebhook_AcceptedSpawnsBatchRun(t *testing.T) {
	batchID := uuid.New()
	ing := &scriptedIngestor{result: pipeline.IngestResult{
		Status:       pipeline.StatusAccepted,
		BatchID:      batchID,
		LockAcquired: true,
	}}
	proc := &recordingProcessor{}
	reg := &inlineRegistry{}
	srv := newTestServer(ing, proc, reg)

	rec := postWebhook(t, srv, `{"direction":"inbound","conversationId":"c1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "accepted" {
		t.Fatalf("body = %v", body)
	}
	if reg.started != 1 {
		t.Fatalf("tasks started = %d, want 1", reg.started)
	}
	if len(proc.batches) != 1 || proc.batches[0] != batchID {
		t.Fatalf("processed batches = %v", proc.batches)
	}
	if string(ing.raw) != `{"direction":"inbound","conversationId":"c1"}` {
		t.Fatalf("ingestor saw %q", ing.raw)
	}
}

func TestWebhook_NoLockNoBatchRun(t *testing.T) {
	ing := &scriptedIngestor{result: pipeline.IngestResult{
		Status:  pipeline.StatusAccepted,
		BatchID: uuid.New(),
	}}
	proc := &recordingProcessor{}
	reg := &inlineRegistry{}
	srv := newTestServer(ing, proc, reg)

	rec := postWebhook(t, srv, `{}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reg.started != 0 || len(proc.batches) != 0 {
		t.Fatal("no task should run without the lock")
	}
}

func TestWebhook_StatusMapping(t *testing.T) {
	for _, status := range []pipeline.IngestStatus{
		pipeline.StatusIgnored, pipeline.StatusDuplicate, pipeline.StatusDisabled,
	} {
		t.Run(string(status), func(t *testing.T) {
			ing := &scriptedIngestor{result: pipeline.IngestResult{Status: status}}
			srv := newTestServer(ing, &recordingProcessor{}, &inlineRegistry{})

			rec := postWebhook(t, srv, `{}`)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), string(status)) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestWebhook_BadRequest(t *testing.T) {
	ing := &scriptedIngestor{result: pipeline.IngestResult{Status: pipeline.StatusBadRequest}}
	srv := newTestServer(ing, &recordingProcessor{}, &inlineRegistry{})

	rec := postWebhook(t, srv, `{"direction":"inbound"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_IngestErrorIs500(t *testing.T) {
	ing := &scriptedIngestor{err: context.DeadlineExceeded}
	srv := newTestServer(ing, &recordingProcessor{}, &inlineRegistry{})

	rec := postWebhook(t, srv, `{}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestWebhook_RegistryRefusalStillAccepts(t *testing.T) {
	ing := &scriptedIngestor{result: pipeline.IngestResult{
		Status:       pipeline.StatusAccepted,
		BatchID:      uuid.New(),
		LockAcquired: true,
	}}
	srv := newTestServer(ing, &recordingProcessor{}, &inlineRegistry{refuse: true})

	rec := postWebhook(t, srv, `{}`)

	// Shutdown refusal is invisible to the provider; the stale-lock
	// reclaim picks the batch up later.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(&scriptedIngestor{}, &recordingProcessor{}, &inlineRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/webhook/messages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestWebhook_OptionsPreflight(t *testing.T) {
	srv := newTestServer(&scriptedIngestor{}, &recordingProcessor{}, &inlineRegistry{})

	req := httptest.NewRequest(http.MethodOptions, "/webhook/messages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS headers on preflight")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&scriptedIngestor{}, &recordingProcessor{}, &inlineRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestReady_NilPool(t *testing.T) {
	srv := newTestServer(&scriptedIngestor{}, &recordingProcessor{}, &inlineRegistry{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRun_GracefulShutdown(t *testing.T) {
	srv := newTestServer(&scriptedIngestor{}, &recordingProcessor{}, &inlineRegistry{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run(): %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
