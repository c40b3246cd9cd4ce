package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pagereorganizer/internal/logging"
	"github.com/Lllllllleong/pagereorganizer/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	organizerInstance *services.OrganizerFunction
	once              sync.Once
	initErr           error
)

func init() {
	logging.Setup(os.Getenv("LOG_LEVEL"))

	functions.HTTP("HandlePageOrganizer", handlePageOrganizer)
	functions.CloudEvent("LoadFromBucket", loadFromBucket)
}

// main is required by the Go Functions Framework.
func main() {}

func instance() (*services.OrganizerFunction, error) {
	once.Do(func() {
		organizerInstance, initErr = services.NewOrganizerFunction(context.Background())
	})
	return organizerInstance, initErr
}

// handlePageOrganizer serves the HTTP API.
func handlePageOrganizer(w http.ResponseWriter, r *http.Request) {
	f, err := instance()
	if err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	f.Handler().ServeHTTP(w, r)
}

// loadFromBucket loads a PDF as soon as it is finalized in Cloud Storage.
func loadFromBucket(ctx context.Context, e cloudevents.Event) error {
	f, err := instance()
	if err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return f.LoadFromBucket(ctx, gcsEvent)
}
