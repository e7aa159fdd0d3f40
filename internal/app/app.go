// Package app wires the application components together: database pool
// and migrations, Gemini client, CRM client and token broker, knowledge
// retriever, pipeline, and the background task registry.
package app

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atendai/atendai/internal/config"
	"github.com/atendai/atendai/internal/pipeline"
	"github.com/atendai/atendai/internal/store"
	"github.com/atendai/atendai/internal/tasks"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Store  *store.Store

	Ingestor     *pipeline.Ingestor
	Orchestrator *pipeline.Orchestrator
	Tasks        *tasks.Registry

	logger *slog.Logger
}

// Close drains background tasks and releases resources. Safe to call on
// a partially constructed App after a Setup failure.
func (a *App) Close() error {
	var errs []error

	if a.Tasks != nil {
		if err := a.Tasks.Drain(tasks.DefaultDrainTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.logger != nil {
		a.logger.Info("application shut down")
	}
	return errors.Join(errs...)
}
