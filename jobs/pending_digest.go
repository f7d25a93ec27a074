package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/toolroom-erp/toolroom/internal/jobs"
	"github.com/toolroom-erp/toolroom/internal/rbac"
)

// PendingCounter computes role-scoped dashboard counters.
type PendingCounter interface {
	PendingCounts(ctx context.Context, role rbac.Role) (map[rbac.Counter]int, error)
}

// PendingDigestJob logs what each role still has to act on.
type PendingDigestJob struct {
	Counter PendingCounter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPendingDigestJob wires dependencies for the digest handler.
func NewPendingDigestJob(counter PendingCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) *PendingDigestJob {
	return &PendingDigestJob{Counter: counter, Logger: logger, Metrics: metrics}
}

// Handle processes pending digest tasks.
func (j *PendingDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Counter == nil {
		return errors.New("pending digest: handler not configured")
	}
	var payload PendingDigestPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	roles := rbac.Roles()
	if len(payload.Roles) > 0 {
		roles = roles[:0:0]
		for _, raw := range payload.Roles {
			role, ok := rbac.ParseRole(raw)
			if !ok {
				return asynq.SkipRetry
			}
			roles = append(roles, role)
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskWorkflowPendingDigest)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskWorkflowPendingDigest))
	for _, role := range roles {
		counts, err := j.Counter.PendingCounts(ctx, role)
		if err != nil {
			resultErr = err
			logger.Error("pending counts", slog.String("role", string(role)), slog.Any("error", err))
			return resultErr
		}
		attrs := []any{slog.String("role", string(role))}
		total := 0
		for counter, n := range counts {
			attrs = append(attrs, slog.Int(string(counter), n))
			total += n
		}
		metrics.SetBacklog("role:"+string(role), total)
		logger.Info("pending work", attrs...)
	}
	return resultErr
}
