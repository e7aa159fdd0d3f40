package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atendai/atendai/internal/store"
)

// searcher is the subset of the store the retriever needs.
type searcher interface {
	SearchItemsByVector(ctx context.Context, embedding []float32, kbIDs []uuid.UUID, threshold float64, limit int) ([]store.KnowledgeItem, error)
	SearchItemsByText(ctx context.Context, query string, kbIDs []uuid.UUID, limit int) ([]store.KnowledgeItem, error)
	ListItems(ctx context.Context, kbIDs []uuid.UUID, limit int) ([]store.KnowledgeItem, error)
}

// Result is a retrieval outcome: the items found and which mode found them.
type Result struct {
	Items []store.KnowledgeItem
	Mode  string
}

// Retriever walks the fallback chain vector, text, simple until one mode
// produces items. A failing mode logs and falls through rather than
// aborting the batch.
type Retriever struct {
	store    searcher
	embedder Embedder
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. embedder may be nil, which disables
// vector search entirely.
func NewRetriever(s searcher, embedder Embedder, logger *slog.Logger) (*Retriever, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: s, embedder: embedder, logger: logger}, nil
}

// Retrieve finds knowledge relevant to query across the given knowledge
// bases. No knowledge bases means no retrieval (ModeNone).
func (r *Retriever) Retrieve(ctx context.Context, query string, kbIDs []uuid.UUID) (Result, error) {
	if len(kbIDs) == 0 {
		return Result{Mode: ModeNone}, nil
	}

	if r.embedder != nil {
		embedding, err := r.embedder.Embed(ctx, query)
		switch {
		case err != nil:
			r.logger.Warn("query embedding failed, falling back to text search", "error", err)
		case embedding != nil:
			items, err := r.store.SearchItemsByVector(ctx, embedding, kbIDs, SimilarityThreshold, TopK)
			if err != nil {
				r.logger.Warn("vector search failed, falling back to text search", "error", err)
			} else if len(items) > 0 {
				return Result{Items: items, Mode: ModeVector}, nil
			}
		}
	}

	items, err := r.store.SearchItemsByText(ctx, NormalizeQuery(query), kbIDs, TopK)
	if err != nil {
		r.logger.Warn("text search failed, falling back to listing", "error", err)
	} else if len(items) > 0 {
		return Result{Items: items, Mode: ModeText}, nil
	}

	items, err = r.store.ListItems(ctx, kbIDs, TopK)
	if err != nil {
		return Result{Mode: ModeNone}, fmt.Errorf("listing knowledge items: %w", err)
	}
	return Result{Items: items, Mode: ModeSimple}, nil
}

// FormatContext renders up to ContextMax items as prompt context. FAQ items
// become Q/A pairs; items carrying a source URL append it as a reference
// line; everything else is raw content.
func FormatContext(items []store.KnowledgeItem) string {
	if len(items) > ContextMax {
		items = items[:ContextMax]
	}
	var parts []string
	for _, it := range items {
		var s string
		switch {
		case it.ContentType == store.ContentTypeFAQ:
			q := it.Content
			if it.Title != nil && *it.Title != "" {
				q = *it.Title
			}
			s = fmt.Sprintf("Q: %s\nA: %s", q, it.Content)
		case it.URL != nil && *it.URL != "":
			s = fmt.Sprintf("%s\n\nURL de referência: %s", it.Content, *it.URL)
		default:
			s = it.Content
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}
