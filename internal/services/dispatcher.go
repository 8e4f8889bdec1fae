package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/teacherevaluation/internal/gcp"
	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// WorkflowStarter starts one orchestration run and returns its execution name.
type WorkflowStarter interface {
	Start(ctx context.Context, argument any) (string, error)
}

// ExecutionsStarter starts Cloud Workflows executions.
type ExecutionsStarter struct {
	client *executions.Client
	parent string
}

// NewExecutionsStarter targets projects/<project>/locations/<location>/workflows/<id>.
func NewExecutionsStarter(client *executions.Client, projectID, location, workflowID string) *ExecutionsStarter {
	return &ExecutionsStarter{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}
}

func (s *ExecutionsStarter) Start(ctx context.Context, argument any) (string, error) {
	payload, err := json.Marshal(argument)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	exec, err := s.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    s.parent,
		Execution: &executionspb.Execution{Argument: string(payload)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

// DispatcherFunction moves a submitted evaluation request into the
// orchestration workflow.
type DispatcherFunction struct {
	store   SubmissionStore
	starter WorkflowStarter
}

// NewDispatcher creates a DispatcherFunction from environment configuration.
func NewDispatcher(ctx context.Context) (*DispatcherFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID, gcp.GetEnv("FIRESTORE_DATABASE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	workflowID := gcp.GetEnv("WORKFLOW_ID", "teacher-evaluation-orchestrator")
	store := NewFirestoreStore(firestoreClient,
		gcp.GetEnv("SUBMISSIONS_COLLECTION", "submissions"),
		gcp.GetEnv("EVALUATIONS_COLLECTION", "evaluations"))
	starter := NewExecutionsStarter(executionsClient, projectID, gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"), workflowID)

	slog.Info("Submission dispatcher initialized.", "workflowId", workflowID)
	return NewDispatcherFunction(store, starter), nil
}

// NewDispatcherFunction wires a dispatcher from parts.
func NewDispatcherFunction(store SubmissionStore, starter WorkflowStarter) *DispatcherFunction {
	return &DispatcherFunction{store: store, starter: starter}
}

// Process handles one SubmissionEvent. Permanent problems (unknown
// submission, bad link) are recorded and swallowed so the event is not
// redelivered; infrastructure failures are returned.
func (f *DispatcherFunction) Process(ctx context.Context, ev models.SubmissionEvent) error {
	if ev.SubmissionID == "" {
		slog.Warn("Ignoring submission event without an id.")
		return nil
	}
	logCtx := slog.With("submissionId", ev.SubmissionID)

	sub, err := f.store.GetSubmission(ctx, ev.SubmissionID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			logCtx.Warn("Submission no longer exists, dropping event.")
			return nil
		}
		return fmt.Errorf("failed to load submission: %w", err)
	}
	if sub.Status == models.StatusPending && (sub.Progress == nil || sub.Progress.State != models.StateFailed) {
		logCtx.Info("Submission already pending, skipping duplicate event.")
		return nil
	}

	if _, err := ResolveFolderID(sub.FolderLink); err != nil {
		logCtx.Warn("Submission has an unusable folder link.", "error", err)
		f.recordFailure(ctx, logCtx, sub.ID, AsEvaluationError(err).Message)
		return nil
	}

	if err := f.store.UpdateStatus(ctx, sub.ID, models.StatusPending); err != nil {
		return fmt.Errorf("failed to mark submission pending: %w", err)
	}

	mode := ev.Mode
	if mode == "" {
		mode = models.ModePartial
	}
	execName, err := f.starter.Start(ctx, map[string]any{
		"submissionId": sub.ID,
		"mode":         mode,
	})
	if err != nil {
		logCtx.Error("Failed to start evaluation workflow.", "error", err)
		if revertErr := f.store.UpdateStatus(ctx, sub.ID, models.StatusDraft); revertErr != nil {
			logCtx.Error("CRITICAL: Failed to revert submission status.", "error", revertErr)
		}
		return err
	}
	logCtx.Info("Evaluation workflow started.", "execution", execName)
	return nil
}

func (f *DispatcherFunction) recordFailure(ctx context.Context, logCtx *slog.Logger, id, message string) {
	err := f.store.UpdateProgress(ctx, id, models.Progress{State: models.StateFailed, Message: message})
	if err != nil {
		logCtx.Error("Failed to record dispatch failure.", "error", err)
	}
}
