package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCostWarmup precomputes month-to-date aggregations into the cache.
	TaskCostWarmup = "costs:warm"
)

// CostWarmupPayload selects the tenants to warm. Empty site and company
// warm every tenant known to the actor directory.
type CostWarmupPayload struct {
	Site    string `json:"site,omitempty"`
	Company string `json:"company,omitempty"`
}

// Tenant returns the single tenant requested, if any.
func (p CostWarmupPayload) Tenant() (shared.Tenant, bool) {
	t := shared.NewTenant(p.Site, p.Company)
	return t, t.Valid()
}

// NewCostWarmupTask constructs an Asynq task for the warm-up job.
func NewCostWarmupTask(payload CostWarmupPayload) (*asynq.Task, error) {
	payload.Site = strings.TrimSpace(payload.Site)
	payload.Company = strings.TrimSpace(payload.Company)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostWarmup, data), nil
}
