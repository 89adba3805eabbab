package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lecternhq/lectern-api/internal/api"
	apiMiddleware "github.com/lecternhq/lectern-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	webhookHandler := api.NewWebhookHandler(
		app.jobStore,
		app.queue,
		app.config.Webhook.Secret,
		app.config.Job.MaxAttempts,
		app.logger,
	)
	jobHandler := api.NewJobHandler(app.jobStore, app.queue, app.logger)
	dashboardHandler := api.NewDashboardHandler(
		app.statsStore, app.runStore, app.artifactStore, app.queue, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhook", webhookHandler.HandleWebhook)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Post("/jobs/{id}/retry", jobHandler.RetryJob)
		r.Get("/dashboard", dashboardHandler.GetDashboard)
		r.Get("/dashboard/versions/{pageID}", dashboardHandler.GetVersions)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
