package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeItem is one retrievable unit of agent knowledge: an FAQ pair or
// a document chunk. Similarity is populated only by vector search.
type KnowledgeItem struct {
	ID              uuid.UUID
	KnowledgeBaseID uuid.UUID
	Content         string
	ContentType     string
	Title           *string
	URL             *string
	Similarity      float64
}

const searchItemsByVectorSQL = `SELECT id, knowledge_base_id, content, content_type, title, url,
	1 - (embedding <=> $1) AS similarity
	FROM knowledge_items
	WHERE knowledge_base_id = ANY($2)
	  AND embedding IS NOT NULL
	  AND 1 - (embedding <=> $1) >= $3
	ORDER BY embedding <=> $1
	LIMIT $4`

// SearchItemsByVector returns the items most similar to the query
// embedding, best first, filtered by a cosine similarity floor.
func (s *Store) SearchItemsByVector(ctx context.Context, embedding []float32,
	kbIDs []uuid.UUID, threshold float64, limit int) ([]KnowledgeItem, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, searchItemsByVectorSQL,
		pgvector.NewVector(embedding), kbIDs, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeItem
	for rows.Next() {
		var it KnowledgeItem
		if err := rows.Scan(&it.ID, &it.KnowledgeBaseID, &it.Content,
			&it.ContentType, &it.Title, &it.URL, &it.Similarity); err != nil {
			return nil, fmt.Errorf("scanning knowledge item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge items: %w", err)
	}
	return out, nil
}

const searchItemsByTextSQL = `SELECT id, knowledge_base_id, content, content_type, title, url
	FROM knowledge_items
	WHERE knowledge_base_id = ANY($1)
	  AND to_tsvector('simple', coalesce(title, '') || ' ' || content)
	      @@ plainto_tsquery('simple', $2)
	ORDER BY ts_rank(to_tsvector('simple', coalesce(title, '') || ' ' || content),
	                 plainto_tsquery('simple', $2)) DESC
	LIMIT $3`

// SearchItemsByText runs a full-text search over titles and content,
// ranked by relevance.
func (s *Store) SearchItemsByText(ctx context.Context, query string,
	kbIDs []uuid.UUID, limit int) ([]KnowledgeItem, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, searchItemsByTextSQL, kbIDs, query, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()
	return scanPlainItems(rows)
}

const listItemsSQL = `SELECT id, knowledge_base_id, content, content_type, title, url
	FROM knowledge_items
	WHERE knowledge_base_id = ANY($1)
	ORDER BY created_at ASC
	LIMIT $2`

// ListItems returns items in insertion order without any relevance
// filtering. Last resort when both search modes come back empty.
func (s *Store) ListItems(ctx context.Context, kbIDs []uuid.UUID, limit int) ([]KnowledgeItem, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, listItemsSQL, kbIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge items: %w", err)
	}
	defer rows.Close()
	return scanPlainItems(rows)
}

func scanPlainItems(rows pgx.Rows) ([]KnowledgeItem, error) {
	var out []KnowledgeItem
	for rows.Next() {
		var it KnowledgeItem
		if err := rows.Scan(&it.ID, &it.KnowledgeBaseID, &it.Content,
			&it.ContentType, &it.Title, &it.URL); err != nil {
			return nil, fmt.Errorf("scanning knowledge item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge items: %w", err)
	}
	return out, nil
}
