// Package app provides application initialization and dependency injection.
//
// App is the container that wires every pipeline component: the database
// pool, the Genkit model handles, the retrieval and case stores, the session
// store, and the chat orchestrator the HTTP layer serves.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chat"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/config"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit       *genkit.Genkit
	DBPool       *pgxpool.Pool
	Orchestrator *chat.Orchestrator

	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
