package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// ErrObjectTooLarge is returned by ReadObject when an object exceeds the limit.
var ErrObjectTooLarge = errors.New("object exceeds size limit")

// SaveObjectAtomically writes data to a GCS object only if it doesn't already exist.
// An existing object is not a failure: export objects are keyed by a fresh id.
func SaveObjectAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, data []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists; skipping write.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// ReadObject reads a whole object, refusing objects larger than limit bytes.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string, limit int64) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	if limit > 0 && reader.Attrs.Size > limit {
		return nil, fmt.Errorf("gs://%s/%s is %d bytes: %w", bucket, object, reader.Attrs.Size, ErrObjectTooLarge)
	}
	var r io.Reader = reader
	if limit > 0 {
		r = io.LimitReader(reader, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("gs://%s/%s: %w", bucket, object, ErrObjectTooLarge)
	}
	return data, nil
}

// DeliveryNotifier is told about every export that lands in the bucket.
type DeliveryNotifier interface {
	Delivered(ctx context.Context, gcsURI, name string, size int) error
}

// GCSSinkConfig configures exports to Cloud Storage.
type GCSSinkConfig struct {
	Bucket string
	Prefix string
	// TTL is the lifetime of the signed download URL. The object is deleted
	// when the URL expires unless KeepObjects is set.
	TTL          time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	// KeepObjects leaves exports in the bucket, for when a downstream
	// workflow takes ownership of them.
	KeepObjects bool
}

// GCSSink delivers exports as objects and hands out V4 signed URLs.
type GCSSink struct {
	client   *storage.Client
	config   GCSSinkConfig
	retrier  retry.Retry[string]
	notifier DeliveryNotifier
	reaper   *objectReaper
}

var _ reorganizer.Sink = (*GCSSink)(nil)

func NewGCSSink(client *storage.Client, config GCSSinkConfig, notifier DeliveryNotifier) *GCSSink {
	if config.Prefix == "" {
		config.Prefix = "exports"
	}
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 4
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	sink := &GCSSink{
		client: client,
		config: config,
		retrier: retry.New[string](retry.Config{
			MaxAttempts:   config.MaxAttempts,
			InitialDelay:  config.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		notifier: notifier,
	}
	if !config.KeepObjects {
		sink.reaper = newObjectReaper(sink.deleteObject)
	}
	return sink
}

func (s *GCSSink) deleteObject(ctx context.Context, objectName string) error {
	err := s.client.Bucket(s.config.Bucket).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// Close deletes every export whose URL has not expired yet.
func (s *GCSSink) Close(ctx context.Context) {
	if s.reaper != nil {
		s.reaper.flush(ctx)
	}
}

// ObjectName returns the object an export is written to. Each delivery gets
// its own id so repeated exports never collide.
func ObjectName(prefix, id, name string) string {
	return path.Join(prefix, id, name)
}

func (s *GCSSink) Deliver(ctx context.Context, name string, data []byte) (reorganizer.Download, error) {
	objectName := ObjectName(s.config.Prefix, uuid.NewString(), name)
	logCtx := slog.With("gcsBucket", s.config.Bucket, "gcsObject", objectName)
	bucket := s.client.Bucket(s.config.Bucket)

	attempt := 0
	_, err := s.retrier.Do(ctx, func(ctx context.Context) (string, error) {
		attempt++
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		defer cancel()
		if err := SaveObjectAtomically(writeCtx, bucket, objectName, "application/pdf", data); err != nil {
			logCtx.Warn("Upload failed, will retry.", "attempt", attempt, "maxAttempts", s.config.MaxAttempts, "error", err)
			return "", err
		}
		return objectName, nil
	})
	if err != nil {
		logCtx.Error("Upload failed after all retries.", "error", err)
		return reorganizer.Download{}, fmt.Errorf("upload for %s failed after all retries: %w", objectName, err)
	}

	expires := time.Now().Add(s.config.TTL)
	url, err := bucket.SignedURL(objectName, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
	if err != nil {
		return reorganizer.Download{}, fmt.Errorf("failed to sign download URL: %w", err)
	}
	logCtx.Info("Export uploaded.", "size", len(data), "expires", expires)
	if s.reaper != nil {
		s.reaper.schedule(objectName, s.config.TTL)
	}

	if s.notifier != nil {
		gcsURI := fmt.Sprintf("gs://%s/%s", s.config.Bucket, objectName)
		if err := s.notifier.Delivered(ctx, gcsURI, name, len(data)); err != nil {
			// The download stands even when the hand-off fails.
			logCtx.Error("Failed to notify downstream workflow.", "error", err)
		}
	}
	return reorganizer.Download{Name: name, URL: url, Size: len(data), Expires: expires}, nil
}

// objectReaper deletes exported objects once their download URL has expired.
type objectReaper struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delete func(ctx context.Context, objectName string) error
}

func newObjectReaper(del func(ctx context.Context, objectName string) error) *objectReaper {
	return &objectReaper{timers: make(map[string]*time.Timer), delete: del}
}

func (r *objectReaper) schedule(objectName string, after time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers[objectName] = time.AfterFunc(after, func() {
		r.mu.Lock()
		_, ok := r.timers[objectName]
		delete(r.timers, objectName)
		r.mu.Unlock()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.remove(ctx, objectName)
	})
}

// flush deletes every scheduled object now.
func (r *objectReaper) flush(ctx context.Context) {
	r.mu.Lock()
	names := make([]string, 0, len(r.timers))
	for name, timer := range r.timers {
		timer.Stop()
		names = append(names, name)
	}
	r.timers = make(map[string]*time.Timer)
	r.mu.Unlock()

	for _, name := range names {
		r.remove(ctx, name)
	}
}

func (r *objectReaper) remove(ctx context.Context, objectName string) {
	if err := r.delete(ctx, objectName); err != nil {
		slog.Warn("Failed to delete expired export.", "gcsObject", objectName, "error", err)
		return
	}
	slog.Info("Expired export deleted.", "gcsObject", objectName)
}

func (r *objectReaper) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
