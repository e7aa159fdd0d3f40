package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atendai/atendai/internal/testutil"
)

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(testutil.DiscardLogger())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRecoveryMiddleware_HeadersAlreadySent(t *testing.T) {
	handler := recoveryMiddleware(testutil.DiscardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("late boom")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	// The original status stands; no second WriteHeader.
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestLoggingWriter_CapturesStatusAndBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	lw.WriteHeader(http.StatusTeapot)
	if _, err := lw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write(): %v", err)
	}

	if lw.statusCode != http.StatusTeapot {
		t.Fatalf("statusCode = %d", lw.statusCode)
	}
	if lw.bytesWritten != 5 {
		t.Fatalf("bytesWritten = %d", lw.bytesWritten)
	}
}

func TestLoggingWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	if _, err := lw.Write([]byte("x")); err != nil {
		t.Fatalf("Write(): %v", err)
	}
	if lw.statusCode != http.StatusOK {
		t.Fatalf("statusCode = %d, want implicit 200", lw.statusCode)
	}
}
