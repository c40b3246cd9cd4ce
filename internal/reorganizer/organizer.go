// Package reorganizer implements the page reorganizer: load sessions with an
// asynchronous thumbnail pipeline, the ordered-page model, and the
// order-preserving export and print paths.
//
// All session state lives behind one lock in Organizer. Work that suspends
// (opening a document, rendering a page, rebuilding output) runs outside the
// lock and carries the generation it started under; when it resumes it checks
// that generation again before touching shared state. Loading a new file bumps
// the generation, which is how outstanding work of the previous load is
// invalidated.
package reorganizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config tunes the thumbnail pipeline.
type Config struct {
	// ThumbnailScale is the render scale relative to 72 dpi.
	ThumbnailScale float64
	// Concurrency bounds renders in flight. 1 renders strictly in page order.
	Concurrency int
	// SkipPreviews marks every page ThumbnailSkipped and finishes the load as
	// soon as the page count is known. Headless callers use it.
	SkipPreviews bool
}

// DefaultConfig mirrors the browser tool: 0.35x thumbnails, a few renders at a time.
func DefaultConfig() Config {
	return Config{
		ThumbnailScale: 0.35,
		Concurrency:    4,
	}
}

// Option customizes an Organizer.
type Option func(*Organizer)

func WithView(v View) Option {
	return func(o *Organizer) {
		if v != nil {
			o.view = v
		}
	}
}

func WithStatus(r StatusReporter) Option {
	return func(o *Organizer) {
		if r != nil {
			o.status = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Organizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// Organizer owns the generation counter and the active session.
type Organizer struct {
	renderer Renderer
	exporter *ExportController
	cfg      Config
	view     View
	status   StatusReporter
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	generation Generation
	session    *session
}

// New creates an Organizer with no document loaded.
func New(renderer Renderer, exporter *ExportController, cfg Config, opts ...Option) *Organizer {
	if cfg.ThumbnailScale <= 0 {
		cfg.ThumbnailScale = DefaultConfig().ThumbnailScale
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Organizer{
		renderer: renderer,
		exporter: exporter,
		cfg:      cfg,
		view:     nopView{},
		status:   LogStatus{},
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartLoad accepts a new document and supersedes the current session. It
// returns once the page count is known; thumbnails keep rendering in the
// background. A non-PDF input is rejected without touching the current session.
func (o *Organizer) StartLoad(ctx context.Context, data []byte) (SessionState, error) {
	if !IsPDF(data) {
		return SessionState{}, ErrNotPDF
	}

	o.mu.Lock()
	o.generation++
	s := &session{
		id:         uuid.NewString(),
		generation: o.generation,
		source:     append([]byte(nil), data...),
		phase:      PhaseLoading,
		createdAt:  time.Now(),
	}
	o.session = s
	o.view.Reset(s.id, s.generation, nil)
	o.mu.Unlock()

	logCtx := o.logger.With("sessionId", s.id, "generation", s.generation)
	logCtx.Info("Loading document.", "bytes", len(data))
	o.report(ctx, s, StatusLoading, "Loading PDF...", 0)

	doc, err := o.renderer.Open(ctx, s.source)
	if err == nil && doc.PageCount() <= 0 {
		_ = doc.Close()
		err = errors.New("document has no pages")
	}
	if err != nil {
		return SessionState{}, o.failLoad(ctx, logCtx, s, err)
	}

	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		_ = doc.Close()
		logCtx.Info("Load superseded before the page count was applied.")
		return SessionState{}, ErrSuperseded
	}
	n := doc.PageCount()
	s.pageCount = n
	s.order = newOrderModel(s.generation, n)
	s.pending = n
	if o.cfg.SkipPreviews {
		for pos := 0; pos < n; pos++ {
			s.order.At(pos).State = ThumbnailSkipped
		}
		s.pending = 0
		s.phase = PhaseReady
	}
	o.view.Reset(s.id, s.generation, s.order.Snapshot())
	state := s.state()
	if o.cfg.SkipPreviews {
		o.mu.Unlock()
		if err := doc.Close(); err != nil {
			logCtx.Warn("Failed to close render document.", "error", err)
		}
		logCtx.Info("Document opened; previews skipped.", "pageCount", n)
		o.report(ctx, s, StatusLoaded, fmt.Sprintf("Loaded %d pages. Drag to reorder.", n), n)
		return state, nil
	}
	o.wg.Add(1)
	o.mu.Unlock()

	logCtx.Info("Document opened; rendering thumbnails.", "pageCount", n, "concurrency", o.cfg.Concurrency)
	go func() {
		defer o.wg.Done()
		o.renderThumbnails(s, doc)
	}()
	return state, nil
}

func (o *Organizer) failLoad(ctx context.Context, logCtx *slog.Logger, s *session, cause error) error {
	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		logCtx.Info("Discarding load failure of a superseded session.", "error", cause)
		return ErrSuperseded
	}
	s.phase = PhaseFailed
	s.err = cause
	o.mu.Unlock()

	logCtx.Error("Failed to load document.", "error", cause)
	o.report(ctx, s, StatusFailed, fmt.Sprintf("Failed to load PDF: %v", cause), 0)
	return &LoadError{Generation: s.generation, Cause: cause}
}

// State returns a copy of the active session, if any.
func (o *Organizer) State() (SessionState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return SessionState{}, false
	}
	return o.session.state(), true
}

// Page returns the page with the given source index in the active session.
func (o *Organizer) Page(sourceIndex int) (PageView, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.session.usable() {
		return PageView{}, ErrNoDocument
	}
	pos := o.session.order.Position(sourceIndex)
	if pos < 0 {
		return PageView{}, fmt.Errorf("%w: source index %d", ErrUnknownPage, sourceIndex)
	}
	return viewOf(pos, o.session.order.At(pos)), nil
}

// Snapshot takes an atomic copy of the current order.
func (o *Organizer) Snapshot() (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.session.usable() {
		return Snapshot{}, ErrNoDocument
	}
	return o.session.snapshot(), nil
}

// Reorder returns the controller that turns gestures into order mutations.
func (o *Organizer) Reorder() *ReorderController {
	return &ReorderController{o: o}
}

// Export rebuilds the current order and delivers it as a download.
func (o *Organizer) Export(ctx context.Context) (Download, error) {
	snap, s, err := o.snapshotForOutput()
	if err != nil {
		o.logger.Warn("Export requested with no document loaded.")
		return Download{}, err
	}
	logCtx := o.logger.With("sessionId", snap.SessionID, "generation", snap.Generation)
	o.report(ctx, s, StatusBuilding, "Building reordered PDF...", len(snap.Order))

	dl, err := o.exporter.Export(ctx, snap, o.isCurrent)
	if err != nil {
		return Download{}, o.handleOutputError(ctx, logCtx, s, "export", err)
	}
	logCtx.Info("Export delivered.", "name", dl.Name, "size", dl.Size, "expires", dl.Expires)
	o.report(ctx, s, StatusExported, "Exported "+dl.Name, len(snap.Order))
	return dl, nil
}

// Print rebuilds the current order and opens it on a fresh print surface.
func (o *Organizer) Print(ctx context.Context) (PrintJob, error) {
	snap, s, err := o.snapshotForOutput()
	if err != nil {
		o.logger.Warn("Print requested with no document loaded.")
		return PrintJob{}, err
	}
	logCtx := o.logger.With("sessionId", snap.SessionID, "generation", snap.Generation)
	o.report(ctx, s, StatusBuilding, "Preparing print PDF...", len(snap.Order))

	job, err := o.exporter.Print(ctx, snap, o.isCurrent)
	if err != nil {
		return PrintJob{}, o.handleOutputError(ctx, logCtx, s, "print", err)
	}
	logCtx.Info("Print dialog opened.", "handle", job.Handle, "deadline", job.Deadline)
	o.report(ctx, s, StatusPrintOpened, "Print dialog opened.", len(snap.Order))
	return job, nil
}

func (o *Organizer) snapshotForOutput() (Snapshot, *session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.session.usable() {
		return Snapshot{}, nil, ErrNoDocument
	}
	return o.session.snapshot(), o.session, nil
}

func (o *Organizer) handleOutputError(ctx context.Context, logCtx *slog.Logger, s *session, action string, err error) error {
	if errors.Is(err, ErrSuperseded) {
		logCtx.Info("Discarding output of a superseded session.", "action", action)
		return err
	}
	logCtx.Error("Failed to produce output.", "action", action, "error", err)
	o.report(ctx, s, StatusFailed, fmt.Sprintf("Failed to %s reordered PDF: %v", action, err), 0)
	return err
}

func (o *Organizer) isCurrent(gen Generation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session != nil && o.session.generation == gen
}

func (o *Organizer) report(ctx context.Context, s *session, phase StatusPhase, message string, pageCount int) {
	if !o.isCurrent(s.generation) {
		return
	}
	o.status.Report(ctx, Status{
		SessionID:  s.id,
		Generation: s.generation,
		Phase:      phase,
		Message:    message,
		PageCount:  pageCount,
		At:         time.Now(),
	})
}

// Wait blocks until every thumbnail pipeline started so far has settled.
func (o *Organizer) Wait() {
	o.wg.Wait()
}

// Close stops background work and waits for it to finish.
func (o *Organizer) Close() {
	o.cancel()
	o.wg.Wait()
}
