package api

import (
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
)

// healthResponse is the GET /api/health body.
type healthResponse struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo"`
}

// metricsResponse is the GET /api/metrics body: process-local counters
// plus per-type queue depths.
type metricsResponse struct {
	Counters    metrics.Snapshot         `json:"counters"`
	QueueDepths map[models.TaskType]int64 `json:"queue_depths"`
}

// dashboardStatsResponse mirrors metricsResponse — a polling fallback for
// clients that skip the WebSocket feed, per SPEC_FULL.md §4.6.
type dashboardStatsResponse = metricsResponse

// listTasksResponse wraps a task page with its pagination parameters.
type listTasksResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Limit int            `json:"limit"`
	Skip  int            `json:"skip"`
}
