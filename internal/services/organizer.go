package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/Lllllllleong/pagereorganizer/internal/delivery"
	"github.com/Lllllllleong/pagereorganizer/internal/gcp"
	"github.com/Lllllllleong/pagereorganizer/internal/handler"
	"github.com/Lllllllleong/pagereorganizer/internal/pdfengine"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

// OrganizerConfig holds all configuration for the page organizer service.
type OrganizerConfig struct {
	Port                 string
	LogLevel             string
	MaxFileSize          int64
	ThumbnailScale       float64
	ThumbnailConcurrency int
	ExportFilename       string
	DownloadTTL          time.Duration
	PrintTimeout         time.Duration
	PrintCommand         string
	ExportBucket         string
	ProjectID            string
	CollectionName       string
	WorkflowID           string
	WorkflowLocation     string
	AllowedOrigins       []string
}

// LoadConfig loads and validates all environment variables for this service.
func LoadConfig() (*OrganizerConfig, error) {
	defaults := reorganizer.DefaultConfig()
	config := &OrganizerConfig{
		Port:                 gcp.GetEnv("PORT", "8080"),
		LogLevel:             gcp.GetEnv("LOG_LEVEL", "info"),
		MaxFileSize:          gcp.GetEnvInt64("MAX_FILE_SIZE", handler.DefaultMaxFileSize),
		ThumbnailScale:       gcp.GetEnvFloat("THUMBNAIL_SCALE", defaults.ThumbnailScale),
		ThumbnailConcurrency: gcp.GetEnvInt("THUMBNAIL_CONCURRENCY", defaults.Concurrency),
		ExportFilename:       gcp.GetEnv("EXPORT_FILENAME", reorganizer.DefaultExportFilename),
		DownloadTTL:          gcp.GetEnvDuration("DOWNLOAD_TTL", delivery.DefaultTTL),
		PrintTimeout:         gcp.GetEnvDuration("PRINT_TIMEOUT", reorganizer.DefaultPrintTimeout),
		PrintCommand:         gcp.GetEnv("PRINT_COMMAND", ""),
		ExportBucket:         gcp.GetEnv("EXPORT_BUCKET", ""),
		ProjectID:            gcp.GetEnv("PROJECT_ID", ""),
		CollectionName:       gcp.GetEnv("FIRESTORE_COLLECTION", "sessions"),
		WorkflowID:           gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation:     gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		AllowedOrigins:       splitList(gcp.GetEnv("CORS_ALLOWED_ORIGINS", "")),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the organizer cannot run with.
func (c *OrganizerConfig) Validate() error {
	var errs []error
	if c.ThumbnailConcurrency < 1 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_CONCURRENCY must be at least 1, got %d", c.ThumbnailConcurrency))
	}
	if c.ThumbnailScale <= 0 || c.ThumbnailScale > 4 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_SCALE must be in (0, 4], got %v", c.ThumbnailScale))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize))
	}
	if !strings.HasSuffix(strings.ToLower(c.ExportFilename), ".pdf") {
		errs = append(errs, fmt.Errorf("EXPORT_FILENAME must end in .pdf, got %q", c.ExportFilename))
	}
	if c.WorkflowID != "" && (c.ExportBucket == "" || c.ProjectID == "") {
		errs = append(errs, fmt.Errorf("WORKFLOW_ID requires EXPORT_BUCKET and PROJECT_ID to be set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GCSEvent is the payload of a Cloud Storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// OrganizerFunction holds the organizer and the clients it was wired with.
type OrganizerFunction struct {
	org     *reorganizer.Organizer
	handler http.Handler

	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	gcsSink          *gcp.GCSSink
	config           OrganizerConfig
}

// NewOrganizerFunction creates the service from environment configuration,
// rendering thumbnails with MuPDF.
func NewOrganizerFunction(ctx context.Context) (*OrganizerFunction, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewOrganizer(ctx, *config, pdfengine.NewRasterizer())
}

// NewOrganizer wires an organizer. Cloud clients are only created for the
// features the configuration enables: EXPORT_BUCKET moves exports to Cloud
// Storage, PROJECT_ID mirrors status into Firestore, WORKFLOW_ID hands every
// export to a workflow. Without them everything stays in memory.
func NewOrganizer(ctx context.Context, config OrganizerConfig, renderer reorganizer.Renderer) (*OrganizerFunction, error) {
	f := &OrganizerFunction{config: config}
	logger := slog.Default()

	events := reorganizer.NewEventLog(0)
	last := &reorganizer.LastStatus{}
	statuses := reorganizer.MultiStatus{reorganizer.LogStatus{Logger: logger}, last}

	if config.ProjectID != "" {
		client, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		f.firestoreClient = client
		statuses = append(statuses, gcp.NewFirestoreStatus(client, config.CollectionName))
	}

	downloads := delivery.NewStore(config.DownloadTTL)
	var sink reorganizer.Sink = delivery.NewMemorySink(downloads, "/api/v1/downloads")
	if config.ExportBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		f.storageClient = storageClient

		var notifier gcp.DeliveryNotifier
		if config.WorkflowID != "" {
			executionsClient, err := executions.NewClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
			}
			f.executionsClient = executionsClient
			notifier = gcp.NewWorkflowNotifier(executionsClient, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
		}
		f.gcsSink = gcp.NewGCSSink(storageClient, gcp.GCSSinkConfig{
			Bucket:      config.ExportBucket,
			TTL:         config.DownloadTTL,
			KeepObjects: notifier != nil,
		}, notifier)
		sink = f.gcsSink
	}

	var desk *delivery.PrintDesk
	var surfaces reorganizer.SurfaceFactory
	if config.PrintCommand != "" {
		cmd := delivery.ParseCommand(config.PrintCommand)
		cmd.Logger = logger
		surfaces = cmd
	} else {
		desk = delivery.NewPrintDesk(delivery.NewStore(config.PrintTimeout))
		surfaces = desk
	}

	exporter := reorganizer.NewExportController(pdfengine.NewRebuilder(), sink, surfaces, reorganizer.ExportConfig{
		Filename:     config.ExportFilename,
		PrintTimeout: config.PrintTimeout,
	}, logger)
	f.org = reorganizer.New(renderer, exporter, reorganizer.Config{
		ThumbnailScale: config.ThumbnailScale,
		Concurrency:    config.ThumbnailConcurrency,
	}, reorganizer.WithView(events), reorganizer.WithStatus(statuses), reorganizer.WithLogger(logger))

	f.handler = handler.NewRouter(handler.NewHandler(handler.Deps{
		Organizer:   f.org,
		Events:      events,
		Status:      last,
		Downloads:   downloads,
		Desk:        desk,
		MaxFileSize: config.MaxFileSize,
		Logger:      logger,
	}), config.AllowedOrigins)

	slog.Info("Page organizer initialized.",
		"exportBucket", config.ExportBucket,
		"statusCollection", config.CollectionName,
		"workflowId", config.WorkflowID,
		"thumbnailConcurrency", config.ThumbnailConcurrency,
	)
	return f, nil
}

// Handler is the HTTP API.
func (f *OrganizerFunction) Handler() http.Handler {
	return f.handler
}

func (f *OrganizerFunction) Organizer() *reorganizer.Organizer {
	return f.org
}

// LoadFromBucket loads a PDF that was just written to a bucket. Objects that
// are not PDFs are skipped.
func (f *OrganizerFunction) LoadFromBucket(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.HasSuffix(strings.ToLower(e.Name), ".pdf") {
		logCtx.Info("Object is not a PDF. Skipping.")
		return nil
	}
	if f.storageClient == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create Storage client: %w", err)
		}
		f.storageClient = client
	}

	data, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name, f.config.MaxFileSize)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}
	state, err := f.org.StartLoad(ctx, data)
	if err != nil {
		if errors.Is(err, reorganizer.ErrNotPDF) || errors.Is(err, reorganizer.ErrSuperseded) {
			logCtx.Warn("Object was not loaded.", "error", err)
			return nil
		}
		return err
	}
	logCtx.Info("Document loaded from bucket.", "sessionId", state.SessionID, "pageCount", state.PageCount)
	return nil
}

// Close stops background work and closes the cloud clients.
func (f *OrganizerFunction) Close() error {
	f.org.Close()
	if f.gcsSink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		f.gcsSink.Close(ctx)
		cancel()
	}
	var errs []error
	if f.storageClient != nil {
		errs = append(errs, f.storageClient.Close())
	}
	if f.firestoreClient != nil {
		errs = append(errs, f.firestoreClient.Close())
	}
	if f.executionsClient != nil {
		errs = append(errs, f.executionsClient.Close())
	}
	return errors.Join(errs...)
}
