package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	jobmetrics "github.com/toolroom-erp/toolroom/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReorderSuggester lists inventory lines needing replenishment.
type ReorderSuggester interface {
	ReorderSuggestions(ctx context.Context) ([]inventory.ReorderSuggestion, error)
}

// LowStockScanJob is read-only: it logs reorder suggestions and never raises PRs.
type LowStockScanJob struct {
	Inventory ReorderSuggester
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(inv ReorderSuggester, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskInventoryLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	suggestions, err := j.Inventory.ReorderSuggestions(ctx)
	if err != nil {
		resultErr = err
		logger.Error("load reorder suggestions", slog.Any("error", err))
		return resultErr
	}
	metrics.SetBacklog("reorder", len(suggestions))
	if len(suggestions) == 0 {
		logger.Info("inventory healthy, nothing to reorder")
		return resultErr
	}
	for _, s := range suggestions {
		if s.Shortfall < payload.MinShortfall {
			continue
		}
		logger.Warn("inventory needs replenishment",
			slog.String("item_id", s.Item.ID),
			slog.String("part_number", s.Item.PartNumber),
			slog.String("tool_number", s.Item.ToolNumber),
			slog.String("name", s.Item.Name),
			slog.String("status", string(s.Item.Status())),
			slog.Int("stock_level", s.Item.StockLevel),
			slog.Int("shortfall", s.Shortfall))
	}
	logger.Info("completed low stock scan", slog.Int("lines", len(suggestions)))
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}
