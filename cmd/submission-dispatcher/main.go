package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

var (
	dispatcherInstance *services.DispatcherFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("DispatchSubmission", dispatchSubmission)
}

// main is required by the Go Functions Framework.
func main() {}

// dispatchSubmission receives a submission event (Pub/Sub or Eventarc) and
// hands the submission to the evaluation workflow.
func dispatchSubmission(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		dispatcherInstance, initErr = services.NewDispatcher(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	ev, err := decodeSubmissionEvent(e)
	if err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return err
	}
	return dispatcherInstance.Process(ctx, ev)
}

// decodeSubmissionEvent accepts either a bare SubmissionEvent or a Pub/Sub
// push envelope whose message data carries one.
func decodeSubmissionEvent(e cloudevents.Event) (models.SubmissionEvent, error) {
	var ev models.SubmissionEvent
	var envelope struct {
		Message struct {
			Data []byte `json:"data"`
		} `json:"message"`
	}
	if err := json.Unmarshal(e.Data(), &envelope); err == nil && len(envelope.Message.Data) > 0 {
		if err := json.Unmarshal(envelope.Message.Data, &ev); err != nil {
			return ev, fmt.Errorf("json.Unmarshal pubsub message: %w", err)
		}
		return ev, nil
	}
	if err := json.Unmarshal(e.Data(), &ev); err != nil {
		return ev, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return ev, nil
}
