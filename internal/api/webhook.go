package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atendai/atendai/internal/pipeline"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// ingestor turns a raw webhook delivery into a batched job.
type ingestor interface {
	Ingest(ctx context.Context, raw []byte) (pipeline.IngestResult, error)
}

// batchProcessor runs a locked batch to completion.
type batchProcessor interface {
	ProcessBatch(ctx context.Context, batchID uuid.UUID)
}

// taskRegistry spawns supervised background tasks.
type taskRegistry interface {
	Go(name string, fn func(ctx context.Context)) bool
}

type webhookHandler struct {
	ingestor  ingestor
	processor batchProcessor
	tasks     taskRegistry
	logger    *slog.Logger
}

// receive handles one CRM webhook delivery. Every recognized outcome is
// a 2xx so the provider does not retry; only a missing required id is a
// client error.
func (h *webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only POST is accepted", h.logger)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "body_unreadable", "could not read request body", h.logger)
		return
	}

	res, err := h.ingestor.Ingest(r.Context(), raw)
	if err != nil {
		switch res.Status {
		case pipeline.StatusBadRequest:
			writeError(w, http.StatusBadRequest, "bad_request", "invalid webhook payload", h.logger)
		default:
			h.logger.Error("webhook ingestion failed", "error", err)
			writeError(w, http.StatusInternalServerError, "ingest_failed", "failed to process webhook", h.logger)
		}
		return
	}

	if res.Status == pipeline.StatusBadRequest {
		writeError(w, http.StatusBadRequest, "bad_request", "missing conversation, location or contact id", h.logger)
		return
	}

	if res.LockAcquired {
		batchID := res.BatchID
		started := h.tasks.Go("batch:"+batchID.String(), func(ctx context.Context) {
			h.processor.ProcessBatch(ctx, batchID)
		})
		if !started {
			h.logger.Warn("shutdown in progress, batch left for stale-lock reclaim", "batch_id", batchID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(res.Status)}, h.logger)
}
