// Package costhttp serves the cost aggregation endpoints.
package costhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/sitecost/internal/costs"
	"github.com/odyssey-erp/sitecost/internal/platform/httpx"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

// CostService is the aggregation contract used by the handler.
type CostService interface {
	AdminAggregate(ctx context.Context, caller shared.Caller, req costs.Request) (costs.Result, error)
	ManagerAggregate(ctx context.Context, caller shared.Caller, req costs.Request) (costs.Result, error)
	Partitions(ctx context.Context, caller shared.Caller, tenant shared.Tenant) ([]costs.PartitionStatus, error)
}

// RoleGuard builds middleware admitting only the given roles.
type RoleGuard func(roles ...string) func(http.Handler) http.Handler

// Handler serves aggregation requests.
type Handler struct {
	logger    *slog.Logger
	service   CostService
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service CostService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the aggregation endpoints. Aggregations are rate
// limited per actor.
func (h *Handler) MountRoutes(r chi.Router, guard RoleGuard) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "aggregation rate limit reached")
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.With(guard(shared.RoleAdmin)).Get("/api/admin/aggregate", h.handleAdminAggregate)
		gr.With(guard(shared.RoleManager, shared.RoleAdmin)).Get("/api/manager/aggregate", h.handleManagerAggregate)
	})
	r.With(guard(shared.RoleAdmin)).Get("/api/admin/partitions", h.handlePartitions)
}

type aggregateQuery struct {
	Site      string `validate:"required,max=200"`
	Company   string `validate:"required,max=200"`
	StartDate string `validate:"required"`
	EndDate   string `validate:"required"`
}

type tenantQuery struct {
	Site    string `validate:"required,max=200"`
	Company string `validate:"required,max=200"`
}

var queryNames = map[string]string{
	"Site":      "tenant",
	"Company":   "org",
	"StartDate": "startDate",
	"EndDate":   "endDate",
}

func (h *Handler) handleAdminAggregate(w http.ResponseWriter, r *http.Request) {
	h.aggregate(w, r, h.service.AdminAggregate)
}

func (h *Handler) handleManagerAggregate(w http.ResponseWriter, r *http.Request) {
	h.aggregate(w, r, h.service.ManagerAggregate)
}

type aggregateFunc func(context.Context, shared.Caller, costs.Request) (costs.Result, error)

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request, run aggregateFunc) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	req, err := h.parseAggregate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := run(r.Context(), caller, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAggregateVM(res))
}

func (h *Handler) handlePartitions(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	form := tenantQuery{Site: q.Get("tenant"), Company: q.Get("org")}
	if err := h.validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant := shared.NewTenant(form.Site, form.Company)
	statuses, err := h.service.Partitions(r.Context(), caller, tenant)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []costs.PartitionStatus{}
	}
	httpx.JSON(w, http.StatusOK, partitionsVM{
		Success:    true,
		Tenant:     tenantVM{Site: tenant.Site, Company: tenant.Company},
		Partitions: statuses,
	})
}

// parseAggregate validates the query before anything touches a partition.
func (h *Handler) parseAggregate(r *http.Request) (costs.Request, error) {
	q := r.URL.Query()
	form := aggregateQuery{
		Site:      q.Get("tenant"),
		Company:   q.Get("org"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}
	if err := h.validate(form); err != nil {
		return costs.Request{}, err
	}
	rng, err := shared.ParseDateRange(form.StartDate, form.EndDate)
	if err != nil {
		return costs.Request{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return costs.Request{Tenant: shared.NewTenant(form.Site, form.Company), Range: rng}, nil
}

func (h *Handler) validate(form any) error {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := queryNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		fields = append(fields, fmt.Sprintf("%s %s", name, fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, ", "))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, costs.ErrDiscovery), errors.Is(err, costs.ErrCatalog):
		h.logger.Error("aggregation unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn("aggregation cancelled", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func rateLimitKey(r *http.Request) (string, error) {
	if caller, ok := shared.CallerFromContext(r.Context()); ok {
		return "actor:" + caller.Tenant.String() + "/" + caller.Username, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
