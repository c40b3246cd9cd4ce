package reorganizer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusPhase is the user-visible phase shown on the status surface.
type StatusPhase string

const (
	StatusLoading     StatusPhase = "loading"
	StatusLoaded      StatusPhase = "loaded"
	StatusBuilding    StatusPhase = "building"
	StatusExported    StatusPhase = "exported"
	StatusPrintOpened StatusPhase = "print-opened"
	StatusFailed      StatusPhase = "failed"
)

// Status is an informational message about the session. It carries no
// correctness guarantees.
type Status struct {
	SessionID  string
	Generation Generation
	Phase      StatusPhase
	Message    string
	PageCount  int
	At         time.Time
}

// StatusReporter publishes status messages.
type StatusReporter interface {
	Report(ctx context.Context, s Status)
}

// LogStatus writes status changes to a structured logger.
type LogStatus struct {
	Logger *slog.Logger
}

func (l LogStatus) Report(_ context.Context, s Status) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Status changed.",
		"sessionId", s.SessionID,
		"generation", s.Generation,
		"phase", s.Phase,
		"message", s.Message,
	)
}

// LastStatus keeps the most recent status for polling clients.
type LastStatus struct {
	mu     sync.Mutex
	status Status
}

func (l *LastStatus) Report(_ context.Context, s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Reports from older generations can arrive late; never step backwards.
	if s.Generation < l.status.Generation {
		return
	}
	l.status = s
}

// Current returns the latest status and whether one was recorded.
func (l *LastStatus) Current() (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status, !l.status.At.IsZero()
}

// MultiStatus fans a status out to several reporters.
type MultiStatus []StatusReporter

func (m MultiStatus) Report(ctx context.Context, s Status) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, s)
		}
	}
}
