// Package cli implements the operator subcommands of the sitecost binary.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/sitecost/jobs"
)

// WarmupEnqueuer submits cost warm-up tasks.
type WarmupEnqueuer interface {
	EnqueueCostWarmup(ctx context.Context, payload jobs.CostWarmupPayload) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	enqueuer  WarmupEnqueuer
	inspector QueueInspector
}

// NewJobsCLI builds the helpers over the given client and inspector.
func NewJobsCLI(enqueuer WarmupEnqueuer, inspector QueueInspector) *JobsCLI {
	return &JobsCLI{enqueuer: enqueuer, inspector: inspector}
}

// WarmOptions defines the flags of the jobs warm command.
type WarmOptions struct {
	Site       string
	Company    string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// WarmSummary is the JSON output of jobs warm.
type WarmSummary struct {
	TaskID   string `json:"task_id"`
	Queue    string `json:"queue"`
	Tenant   string `json:"tenant"`
	Enqueued bool   `json:"enqueued"`
}

// WarmCommand enqueues a cost warm-up for one tenant, or all tenants when
// neither site nor company is given.
func (c *JobsCLI) WarmCommand(ctx context.Context, opts WarmOptions) int {
	opts.Stdout, opts.Stderr = defaultWriters(opts.Stdout, opts.Stderr)
	if c == nil || c.enqueuer == nil {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs warm: client not configured")
		return 1
	}
	payload := jobs.CostWarmupPayload{Site: strings.TrimSpace(opts.Site), Company: strings.TrimSpace(opts.Company)}
	if (payload.Site == "") != (payload.Company == "") {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs warm: --site and --company must be given together")
		return 1
	}
	info, err := c.enqueuer.EnqueueCostWarmup(ctx, payload)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs warm: %v\n", err)
		return 1
	}
	tenant := "all"
	if t, ok := payload.Tenant(); ok {
		tenant = t.String()
	}
	summary := WarmSummary{Queue: jobs.QueueDefault, Tenant: tenant, Enqueued: true}
	if info != nil {
		summary.TaskID = info.ID
		summary.Queue = info.Queue
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs warm: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s for %s (task %s on %s)\n", jobs.TaskCostWarmup, summary.Tenant, summary.TaskID, summary.Queue)
	return 0
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// QueueCommand prints InspectQueue in human or JSON form.
func (c *JobsCLI) QueueCommand(ctx context.Context, jsonOutput bool, stdout, stderr io.Writer) int {
	stdout, stderr = defaultWriters(stdout, stderr)
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs queue: %v\n", err)
		return 1
	}
	if jsonOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs queue: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "%s: pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}

func defaultWriters(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
