package reorganizer

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/sync/errgroup"
)

// renderThumbnails issues one render per page in page order, at most
// cfg.Concurrency at a time. Completions land in any order. Requests that have
// not started when the session is superseded are skipped.
func (o *Organizer) renderThumbnails(s *session, doc RenderDocument) {
	logCtx := o.logger.With("sessionId", s.id, "generation", s.generation)
	defer func() {
		if err := doc.Close(); err != nil {
			logCtx.Warn("Failed to close render document.", "error", err)
		}
	}()

	var eg errgroup.Group
	eg.SetLimit(o.cfg.Concurrency)

	for i := 0; i < s.pageCount; i++ {
		sourceIndex := i
		if !o.isCurrent(s.generation) {
			logCtx.Info("Session superseded; skipping remaining thumbnails.", "nextPage", sourceIndex)
			break
		}
		eg.Go(func() error {
			if !o.isCurrent(s.generation) {
				return nil
			}
			img, err := doc.RenderPage(o.ctx, sourceIndex, o.cfg.ThumbnailScale)
			var thumb []byte
			if err == nil {
				thumb, err = encodeThumbnail(img)
			}
			o.completeThumbnail(s, sourceIndex, thumb, err)
			// Page failures stay with their entry and never stop the group.
			return nil
		})
	}
	_ = eg.Wait()
}

// completeThumbnail applies one render result if its session is still current.
// The update lands at the entry's current display position, which may differ
// from its source index if the user reordered before the render finished.
func (o *Organizer) completeThumbnail(s *session, sourceIndex int, thumb []byte, renderErr error) {
	o.mu.Lock()
	if o.session == nil || o.session.generation != s.generation {
		o.mu.Unlock()
		o.logger.Debug("Discarding stale thumbnail.", "generation", s.generation, "sourceIndex", sourceIndex)
		return
	}

	pos := s.order.Position(sourceIndex)
	entry := s.order.At(pos)
	if renderErr != nil {
		entry.State = ThumbnailFailed
		entry.Err = renderErr
		s.failed++
		o.view.ThumbnailFailed(s.id, s.generation, pos, viewOf(pos, entry))
	} else {
		entry.State = ThumbnailRendered
		entry.Thumbnail = thumb
		o.view.ThumbnailReady(s.id, s.generation, pos, viewOf(pos, entry))
	}
	s.pending--
	ready := s.pending == 0
	if ready {
		s.phase = PhaseReady
	}
	failed, n := s.failed, s.pageCount
	o.mu.Unlock()

	if renderErr != nil {
		o.logger.Warn("Failed to render thumbnail.",
			"sessionId", s.id, "generation", s.generation, "sourceIndex", sourceIndex, "error", renderErr)
	}
	if ready {
		msg := fmt.Sprintf("Loaded %d pages. Drag to reorder.", n)
		if failed > 0 {
			msg = fmt.Sprintf("Loaded %d pages (%d previews unavailable). Drag to reorder.", n, failed)
		}
		o.report(o.ctx, s, StatusLoaded, msg, n)
	}
}

func encodeThumbnail(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("renderer returned no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
