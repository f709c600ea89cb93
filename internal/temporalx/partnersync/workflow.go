package partnersync

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Retry envelope for all sync activities: three attempts starting at a
// minute apart, doubling in between. Terminal failures are not retried.
func withSyncActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        60 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{TerminalError},
		},
	})
}

func ContactSyncWorkflow(ctx workflow.Context, partnerID string) (SyncResult, error) {
	ctx = withSyncActivityOptions(ctx)
	var out SyncResult
	err := workflow.ExecuteActivity(ctx, ActivitySyncContact, partnerID).Get(ctx, &out)
	return out, err
}

func CompanySyncWorkflow(ctx workflow.Context, partnerID string) (SyncResult, error) {
	ctx = withSyncActivityOptions(ctx)
	var out SyncResult
	err := workflow.ExecuteActivity(ctx, ActivitySyncCompany, partnerID).Get(ctx, &out)
	return out, err
}

func FullSyncWorkflow(ctx workflow.Context, partnerID string) (SyncResult, error) {
	ctx = withSyncActivityOptions(ctx)
	var out SyncResult
	err := workflow.ExecuteActivity(ctx, ActivitySyncFull, partnerID).Get(ctx, &out)
	return out, err
}
