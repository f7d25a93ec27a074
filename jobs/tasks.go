package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventoryLowStockScan reports inventory lines needing replenishment.
	TaskInventoryLowStockScan = "inventory:low-stock-scan"
	// TaskWorkflowPendingDigest logs each role's pending counters.
	TaskWorkflowPendingDigest = "workflow:pending-digest"
)

// LowStockScanPayload tunes the scan. Lines with a smaller shortfall are counted but not logged.
type LowStockScanPayload struct {
	MinShortfall int `json:"min_shortfall"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask(minShortfall int) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{MinShortfall: minShortfall})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, data, asynq.Queue(QueueDefault)), nil
}

// PendingDigestPayload selects the roles to report; empty means every role.
type PendingDigestPayload struct {
	Roles []string `json:"roles"`
}

// NewPendingDigestTask constructs the digest task.
func NewPendingDigestTask(roles ...string) (*asynq.Task, error) {
	data, err := json.Marshal(PendingDigestPayload{Roles: roles})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkflowPendingDigest, data, asynq.Queue(QueueDefault)), nil
}
