// Package testutil provides shared testing infrastructure: a disposable
// PostgreSQL container with pgvector, a scripted LLM generator, and a fake
// CRM API server.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/atendai/atendai/db"
)

// TestDB wraps a PostgreSQL test container with a ready connection pool.
// The schema is fully migrated before it is handed to tests.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a pgvector-enabled PostgreSQL container and runs all
// migrations. Use SetupTestDBForMain when the container is shared across a
// package's tests via TestMain.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()
	tdb, cleanup, err := SetupTestDBForMain()
	if err != nil {
		t.Fatalf("starting test database: %v", err)
	}
	return tdb, cleanup
}

// SetupTestDBForMain is the TestMain-friendly variant of SetupTestDB: it
// returns errors instead of calling t.Fatal.
func SetupTestDBForMain() (*TestDB, func(), error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("atendai_test"),
		postgres.WithUsername("atendai_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, nil, fmt.Errorf("getting connection string: %w", err)
	}

	if err := db.Migrate(connStr); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	tdb := &TestDB{Container: pgContainer, Pool: pool, ConnStr: connStr}
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(context.Background())
	}
	return tdb, cleanup, nil
}

// CleanTables truncates all mutable tables for test isolation.
func CleanTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE
		inbound_jobs, conversation_batches, inbound_messages, conversations,
		knowledge_items, agent_knowledge_bases, knowledge_bases, agents,
		locations, location_token, agency_token
		CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
