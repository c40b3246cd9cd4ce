package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowNotifier starts a Cloud Workflows execution for every export written
// to the bucket, handing the object over to downstream processing.
type WorkflowNotifier struct {
	client *executions.Client
	parent string
}

var _ DeliveryNotifier = (*WorkflowNotifier)(nil)

func NewWorkflowNotifier(client *executions.Client, projectID, location, workflowID string) *WorkflowNotifier {
	return &WorkflowNotifier{
		client: client,
		parent: WorkflowParent(projectID, location, workflowID),
	}
}

func WorkflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

// WorkflowArgument is the JSON argument passed to the workflow.
func WorkflowArgument(gcsURI, name string, size int) (string, error) {
	payload := map[string]interface{}{
		"gcsUri":   gcsURI,
		"filename": name,
		"size":     size,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	return string(b), nil
}

func (w *WorkflowNotifier) Delivered(ctx context.Context, gcsURI, name string, size int) error {
	arg, err := WorkflowArgument(gcsURI, name, size)
	if err != nil {
		return err
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: w.parent,
		Execution: &executionspb.Execution{
			Argument: arg,
		},
	}
	exec, err := w.client.CreateExecution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Workflow triggered.", "execution", exec.GetName(), "gcsUri", gcsURI)
	return nil
}
