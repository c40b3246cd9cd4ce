package reorganizer

import (
	"context"
	"image"
	"time"
)

// Renderer opens documents for thumbnail rasterization.
type Renderer interface {
	Open(ctx context.Context, data []byte) (RenderDocument, error)
}

// RenderDocument is an opened document. RenderPage may be called from several
// goroutines; implementations serialize internally if they have to.
type RenderDocument interface {
	PageCount() int
	RenderPage(ctx context.Context, index int, scale float64) (image.Image, error)
	Close() error
}

// Rebuilder produces a new document whose page i is source page order[i].
// Page objects are recomposed, never rasterized.
type Rebuilder interface {
	Rebuild(ctx context.Context, src []byte, order []int) ([]byte, error)
}

// Download is a delivered export. URL stops working after Expires.
type Download struct {
	Name    string
	URL     string
	Size    int
	Expires time.Time
}

// Sink delivers exported bytes as a downloadable file.
type Sink interface {
	Deliver(ctx context.Context, name string, data []byte) (Download, error)
}

// Surface is an off-screen print target. Print must only be called after Load
// returned successfully; the returned channel closes when the dialog is dismissed.
type Surface interface {
	Load(ctx context.Context, name string, data []byte) error
	Print(ctx context.Context) (<-chan struct{}, error)
	// Handle is the reference a client uses to reach the surface, empty for host printers.
	Handle() string
	Release() error
}

// SurfaceFactory creates a fresh surface for every print request.
type SurfaceFactory interface {
	NewSurface(ctx context.Context) (Surface, error)
}

// PrintJob describes an opened print dialog.
type PrintJob struct {
	Name     string
	Handle   string
	Deadline time.Time
}

// View is the visual layer. The organizer reflects state into it and never reads
// it back. Calls are made with the organizer lock held, in mutation order, so
// implementations must not call back into the organizer.
type View interface {
	Reset(sessionID string, gen Generation, order []int)
	ThumbnailReady(sessionID string, gen Generation, position int, page PageView)
	ThumbnailFailed(sessionID string, gen Generation, position int, page PageView)
	Reordered(sessionID string, gen Generation, order []int)
}

type nopView struct{}

func (nopView) Reset(string, Generation, []int)                   {}
func (nopView) ThumbnailReady(string, Generation, int, PageView)  {}
func (nopView) ThumbnailFailed(string, Generation, int, PageView) {}
func (nopView) Reordered(string, Generation, []int)               {}
