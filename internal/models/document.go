package models

import "time"

// SessionRecord represents the status record of one load session in Firestore.
// It tracks the latest status surface message and the page count.
type SessionRecord struct {
	SessionID    string    `firestore:"sessionId,omitempty"`
	Generation   int64     `firestore:"generation,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	Message      string    `firestore:"message,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	PageCount    int       `firestore:"pageCount,omitempty"`
	ExportCount  int       `firestore:"exportCount,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}
