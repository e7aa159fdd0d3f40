package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/atendai/atendai/db"
	"github.com/atendai/atendai/internal/config"
	"github.com/atendai/atendai/internal/crm"
	"github.com/atendai/atendai/internal/knowledge"
	"github.com/atendai/atendai/internal/llm"
	"github.com/atendai/atendai/internal/pipeline"
	"github.com/atendai/atendai/internal/store"
	"github.com/atendai/atendai/internal/tasks"
)

// crmHTTPTimeout bounds each outbound CRM request.
const crmHTTPTimeout = 30 * time.Second

// Setup creates and initializes the application. On error everything
// already initialized is released.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	st, err := store.New(pool, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}
	a.Store = st

	gemini, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	embedder, err := knowledge.NewGeminiEmbedder(gemini, cfg.EmbedderModel)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	retriever, err := knowledge.NewRetriever(st, embedder, logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	engine, err := llm.NewEngine(gemini, cfg.GeminiModel, logger.With("component", "llm"))
	if err != nil {
		return nil, fmt.Errorf("creating llm engine: %w", err)
	}

	crmClient := crm.NewClient(cfg.CRMAPIBase,
		&http.Client{Timeout: crmHTTPTimeout},
		logger.With("component", "crm"))
	broker, err := crm.NewTokenBroker(st, crmClient, crm.Credentials{
		ClientID:     cfg.CRMClientID,
		ClientSecret: cfg.CRMClientSecret,
		CompanyID:    cfg.CRMCompanyID,
		RedirectURI:  cfg.CRMRedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token broker: %w", err)
	}

	ing, err := pipeline.NewIngestor(st, logger.With("component", "ingest"))
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}
	a.Ingestor = ing

	orch, err := pipeline.NewOrchestrator(st, retriever, broker, crmClient, engine,
		logger.With("component", "orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orch

	a.Tasks = tasks.NewRegistry(ctx, logger.With("component", "tasks"))

	return a, nil
}

// provideDBPool runs migrations and opens a tuned connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
