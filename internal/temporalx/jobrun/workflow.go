package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/classroom-backend/internal/domain"
)

// Workflow drives one job_run row to a terminal status. The workflow id is
// the job id. Failed runs are ticked again after a backoff unless the run
// opted out of retry or maxAttempts is reached.
func Workflow(ctx workflow.Context, maxAttempts int) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		// Job-level retries happen here in the workflow; the activity
		// itself retries only on infrastructure errors.
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	for attempt := 1; ; attempt++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(out.Status)) {
		case types.JobStatusSucceeded, types.JobStatusCanceled:
			return nil
		case types.JobStatusFailed:
			if out.NoRetry || attempt >= maxAttempts {
				return temporal.NewNonRetryableApplicationError(
					fmt.Sprintf("job failed (stage=%s)", out.Stage), "JobFailed", nil)
			}
			if err := workflow.Sleep(ctx, retryDelay(attempt)); err != nil {
				return err
			}
		default:
			if err := workflow.Sleep(ctx, 2*time.Second); err != nil {
				return err
			}
		}
	}
}

func retryDelay(attempt int) time.Duration {
	d := 15 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}
