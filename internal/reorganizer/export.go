package reorganizer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultExportFilename = "reordered.pdf"
	DefaultPrintTimeout   = 30 * time.Second
)

// ExportConfig configures delivery.
type ExportConfig struct {
	Filename string
	// PrintTimeout bounds how long a print surface is kept when the dialog
	// never reports dismissal.
	PrintTimeout time.Duration
}

// ExportController rebuilds snapshots and delivers them as downloads or to a
// print surface. The last build is memoized per generation and order, so
// repeating an export without reordering yields identical bytes.
type ExportController struct {
	rebuilder Rebuilder
	sink      Sink
	surfaces  SurfaceFactory
	cfg       ExportConfig
	logger    *slog.Logger

	mu       sync.Mutex
	lastKey  string
	lastDoc  []byte
	releases sync.WaitGroup
}

func NewExportController(rebuilder Rebuilder, sink Sink, surfaces SurfaceFactory, cfg ExportConfig, logger *slog.Logger) *ExportController {
	if cfg.Filename == "" {
		cfg.Filename = DefaultExportFilename
	}
	if cfg.PrintTimeout <= 0 {
		cfg.PrintTimeout = DefaultPrintTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportController{
		rebuilder: rebuilder,
		sink:      sink,
		surfaces:  surfaces,
		cfg:       cfg,
		logger:    logger,
	}
}

// Filename is the fixed name given to exported documents.
func (c *ExportController) Filename() string {
	return c.cfg.Filename
}

// BuildOutput rebuilds snap into new document bytes.
func (c *ExportController) BuildOutput(ctx context.Context, snap Snapshot) ([]byte, error) {
	if len(snap.Order) == 0 {
		return nil, ErrNoDocument
	}
	key := buildKey(snap)
	c.mu.Lock()
	if key == c.lastKey {
		doc := c.lastDoc
		c.mu.Unlock()
		return doc, nil
	}
	c.mu.Unlock()

	doc, err := c.rebuilder.Rebuild(ctx, snap.Source, snap.Order)
	if err != nil {
		return nil, &RebuildError{Generation: snap.Generation, Cause: err}
	}

	c.mu.Lock()
	c.lastKey, c.lastDoc = key, doc
	c.mu.Unlock()
	return doc, nil
}

// Export builds snap and hands the bytes to the sink. Output of a superseded
// generation is discarded before delivery.
func (c *ExportController) Export(ctx context.Context, snap Snapshot, current func(Generation) bool) (Download, error) {
	doc, err := c.BuildOutput(ctx, snap)
	if err != nil {
		return Download{}, err
	}
	if current != nil && !current(snap.Generation) {
		return Download{}, ErrSuperseded
	}
	if c.sink == nil {
		return Download{}, fmt.Errorf("no download sink configured")
	}
	dl, err := c.sink.Deliver(ctx, c.cfg.Filename, doc)
	if err != nil {
		return Download{}, fmt.Errorf("failed to deliver %s: %w", c.cfg.Filename, err)
	}
	return dl, nil
}

// Print builds snap, loads it into a new surface and opens the print dialog
// once the surface has the whole document. The surface is released after the
// dialog is dismissed or PrintTimeout passes, whichever comes first.
func (c *ExportController) Print(ctx context.Context, snap Snapshot, current func(Generation) bool) (PrintJob, error) {
	doc, err := c.BuildOutput(ctx, snap)
	if err != nil {
		return PrintJob{}, err
	}
	if current != nil && !current(snap.Generation) {
		return PrintJob{}, ErrSuperseded
	}
	if c.surfaces == nil {
		return PrintJob{}, fmt.Errorf("no print surface configured")
	}

	surface, err := c.surfaces.NewSurface(ctx)
	if err != nil {
		return PrintJob{}, fmt.Errorf("failed to create print surface: %w", err)
	}
	if err := surface.Load(ctx, c.cfg.Filename, doc); err != nil {
		c.release(surface)
		return PrintJob{}, fmt.Errorf("failed to load print surface: %w", err)
	}
	dismissed, err := surface.Print(ctx)
	if err != nil {
		c.release(surface)
		return PrintJob{}, fmt.Errorf("failed to open print dialog: %w", err)
	}

	job := PrintJob{
		Name:     c.cfg.Filename,
		Handle:   surface.Handle(),
		Deadline: time.Now().Add(c.cfg.PrintTimeout),
	}
	c.releases.Add(1)
	go func() {
		defer c.releases.Done()
		timer := time.NewTimer(c.cfg.PrintTimeout)
		defer timer.Stop()
		select {
		case <-dismissed:
		case <-timer.C:
			c.logger.Info("Print surface timed out; releasing.", "handle", job.Handle)
		}
		c.release(surface)
	}()
	return job, nil
}

// WaitReleases blocks until every print surface handed out so far is released.
func (c *ExportController) WaitReleases() {
	c.releases.Wait()
}

func (c *ExportController) release(s Surface) {
	if err := s.Release(); err != nil {
		c.logger.Warn("Failed to release print surface.", "handle", s.Handle(), "error", err)
	}
}

func buildKey(snap Snapshot) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(snap.Generation), 10))
	b.WriteByte(':')
	for i, idx := range snap.Order {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(idx))
	}
	return b.String()
}
