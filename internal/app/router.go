package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	costhttp "github.com/odyssey-erp/sitecost/internal/costs/http"
	"github.com/odyssey-erp/sitecost/internal/observability"
	"github.com/odyssey-erp/sitecost/internal/rbac"
	"github.com/odyssey-erp/sitecost/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Sessions       SessionLoader
	RBACMiddleware rbac.Middleware
	CostHandler    *costhttp.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CostHandler != nil {
		params.CostHandler.MountRoutes(r, params.RBACMiddleware.RequireRole)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
