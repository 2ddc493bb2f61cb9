package runs

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/lineagebench/internal/ui/notifier"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// SetupRoutes registers the chart page and the runs API.
func SetupRoutes(
	router chi.Router,
	store core.Store,
	notify *notifier.Notifier,
	isDev bool,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(store, notify, isDev, logger)

	// Page routes
	router.Get("/", handlers.ChartPage)

	router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", handlers.ListRuns)
		r.Get("/{id}/results", handlers.RunResults)
		r.Get("/{id}/updates", handlers.ChartUpdates)
	})

	return nil
}
