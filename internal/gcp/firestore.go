package gcp

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/pagereorganizer/internal/models"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreStatus mirrors status changes into one document per session.
type FirestoreStatus struct {
	client     *firestore.Client
	collection string
}

var _ reorganizer.StatusReporter = (*FirestoreStatus)(nil)

func NewFirestoreStatus(client *firestore.Client, collection string) *FirestoreStatus {
	if collection == "" {
		collection = "sessions"
	}
	return &FirestoreStatus{client: client, collection: collection}
}

// Report creates the session document when loading starts and updates it for
// every later phase. Failures are logged; the status surface is informational.
func (f *FirestoreStatus) Report(ctx context.Context, s reorganizer.Status) {
	logCtx := slog.With("sessionId", s.SessionID, "generation", s.Generation, "phase", s.Phase)
	docRef := f.client.Collection(f.collection).Doc(s.SessionID)

	if s.Phase == reorganizer.StatusLoading {
		if _, err := docRef.Set(ctx, NewSessionRecord(s)); err != nil {
			logCtx.Error("Failed to create session status document.", "error", err)
		}
		return
	}
	if _, err := docRef.Update(ctx, StatusUpdates(s)); err != nil {
		logCtx.Error("Failed to update session status document.", "error", err)
	}
}

func NewSessionRecord(s reorganizer.Status) models.SessionRecord {
	return models.SessionRecord{
		SessionID:  s.SessionID,
		Generation: int64(s.Generation),
		Status:     string(s.Phase),
		Message:    s.Message,
		CreatedAt:  s.At,
		UpdatedAt:  s.At,
	}
}

// StatusUpdates lists the fields a status change touches.
func StatusUpdates(s reorganizer.Status) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: string(s.Phase)},
		{Path: "message", Value: s.Message},
		{Path: "updatedAt", Value: s.At},
	}
	switch s.Phase {
	case reorganizer.StatusLoaded:
		updates = append(updates, firestore.Update{Path: "pageCount", Value: s.PageCount})
	case reorganizer.StatusExported:
		updates = append(updates, firestore.Update{Path: "exportCount", Value: firestore.Increment(1)})
	case reorganizer.StatusFailed:
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: s.Message})
	}
	return updates
}
