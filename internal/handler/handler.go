// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lllllllleong/pagereorganizer/internal/delivery"
	"github.com/Lllllllleong/pagereorganizer/internal/models"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/gorilla/mux"
)

// DefaultMaxFileSize caps uploads at 50MB.
const DefaultMaxFileSize int64 = 50 << 20

// Deps are the collaborators of a Handler. Desk is nil when prints go to a
// system command instead of the browser.
type Deps struct {
	Organizer   *reorganizer.Organizer
	Events      *reorganizer.EventLog
	Status      *reorganizer.LastStatus
	Downloads   *delivery.Store
	Desk        *delivery.PrintDesk
	MaxFileSize int64
	Logger      *slog.Logger
}

// Handler handles page organizer HTTP requests
type Handler struct {
	org         *reorganizer.Organizer
	events      *reorganizer.EventLog
	status      *reorganizer.LastStatus
	downloads   *delivery.Store
	desk        *delivery.PrintDesk
	maxFileSize int64
	logger      *slog.Logger
}

func NewHandler(d Deps) *Handler {
	if d.MaxFileSize <= 0 {
		d.MaxFileSize = DefaultMaxFileSize
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{
		org:         d.Organizer,
		events:      d.Events,
		status:      d.Status,
		downloads:   d.Downloads,
		desk:        d.Desk,
		maxFileSize: d.MaxFileSize,
		logger:      d.Logger,
	}
}

// UploadDocument accepts a PDF either as the multipart field "file" or as the
// raw request body, and starts a new load session.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	data, err := h.readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Maximum size is %d bytes.", h.maxFileSize))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}

	state, err := h.org.StartLoad(r.Context(), data)
	if err != nil {
		if errors.Is(err, reorganizer.ErrNotPDF) {
			writeError(w, http.StatusUnsupportedMediaType, "Please choose a PDF file.")
			return
		}
		if !errors.Is(err, reorganizer.ErrSuperseded) {
			h.logger.Error("Failed to load uploaded document.", "error", err)
		}
		writeOrganizerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(state))
}

func (h *Handler) readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("file is required")
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	state, ok := h.org.State()
	if !ok {
		writeError(w, http.StatusNotFound, "No document loaded")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(state))
}

// GetThumbnail serves the PNG preview of a page. A preview still rendering
// answers 202; a failed or skipped one answers 404 so the UI keeps its placeholder.
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	source, err := strconv.Atoi(mux.Vars(r)["source"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page index")
		return
	}
	page, err := h.org.Page(source)
	if err != nil {
		writeOrganizerError(w, err)
		return
	}
	switch page.State {
	case reorganizer.ThumbnailPending:
		writeJSON(w, http.StatusAccepted, map[string]string{"state": page.State.String()})
	case reorganizer.ThumbnailFailed, reorganizer.ThumbnailSkipped:
		writeError(w, http.StatusNotFound, "Preview unavailable")
	default:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page.Thumbnail)
	}
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.To == nil {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	ctrl := h.org.Reorder()
	var pos *int
	switch {
	case req.SourceIndex != nil:
		at, err := ctrl.MoveEntry(*req.SourceIndex, *req.To)
		if err != nil {
			writeOrganizerError(w, err)
			return
		}
		pos = &at
	case req.From != nil:
		if err := ctrl.OnMove(*req.From, *req.To); err != nil {
			writeOrganizerError(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Either from or sourceIndex is required")
		return
	}
	h.writeOrder(w, pos)
}

func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	var req models.DropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SourceIndex == nil || req.Slot == nil {
		writeError(w, http.StatusBadRequest, "sourceIndex and slot are required")
		return
	}
	at, err := h.org.Reorder().Drop(*req.SourceIndex, *req.Slot)
	if err != nil {
		writeOrganizerError(w, err)
		return
	}
	h.writeOrder(w, &at)
}

func (h *Handler) Arrange(w http.ResponseWriter, r *http.Request) {
	var req models.ArrangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.org.Reorder().Arrange(req.Order); err != nil {
		writeOrganizerError(w, err)
		return
	}
	h.writeOrder(w, nil)
}

func (h *Handler) writeOrder(w http.ResponseWriter, pos *int) {
	snap, err := h.org.Snapshot()
	if err != nil {
		writeOrganizerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OrderResponse{
		Generation: uint64(snap.Generation),
		Order:      snap.Order,
		Position:   pos,
	})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	dl, err := h.org.Export(r.Context())
	if err != nil {
		writeOrganizerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ExportResponse{
		Name:    dl.Name,
		URL:     dl.URL,
		Size:    dl.Size,
		Expires: dl.Expires,
	})
}

// Download serves an export until its token is revoked.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if h.downloads == nil {
		writeError(w, http.StatusNotFound, "Download not found")
		return
	}
	a, ok := h.downloads.Get(mux.Vars(r)["token"])
	if !ok {
		writeError(w, http.StatusNotFound, "Download not found or expired")
		return
	}
	writeArtifact(w, a, "attachment")
}

func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	job, err := h.org.Print(r.Context())
	if err != nil {
		writeOrganizerError(w, err)
		return
	}
	res := models.PrintResponse{
		Name:     job.Name,
		Token:    job.Handle,
		Deadline: job.Deadline,
	}
	if h.desk != nil {
		res.URL = "/api/v1/prints/" + job.Handle
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetPrintDocument serves the document of an open browser print job inline.
func (h *Handler) GetPrintDocument(w http.ResponseWriter, r *http.Request) {
	if h.desk == nil {
		writeError(w, http.StatusNotFound, "Print job not found")
		return
	}
	a, ok := h.desk.Get(mux.Vars(r)["token"])
	if !ok {
		writeError(w, http.StatusNotFound, "Print job not found or released")
		return
	}
	writeArtifact(w, a, "inline")
}

func (h *Handler) PrintDone(w http.ResponseWriter, r *http.Request) {
	if h.desk == nil {
		writeError(w, http.StatusNotFound, "Print job not found")
		return
	}
	if err := h.desk.Done(mux.Vars(r)["token"]); err != nil {
		writeError(w, http.StatusNotFound, "Print job not found or released")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.status.Current()
	if !ok {
		writeJSON(w, http.StatusOK, models.StatusResponse{Phase: "idle", Message: "Choose a PDF to begin."})
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{
		SessionID:  s.SessionID,
		Generation: uint64(s.Generation),
		Phase:      string(s.Phase),
		Message:    s.Message,
		PageCount:  s.PageCount,
		At:         s.At,
	})
}

// GetEvents returns changes after ?since=N for polling clients.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}
	events := h.events.Since(since)
	res := models.EventsResponse{Events: make([]models.EventResponse, 0, len(events)), Next: since}
	for _, e := range events {
		res.Events = append(res.Events, models.EventResponse{
			Seq:         e.Seq,
			Kind:        string(e.Kind),
			SessionID:   e.SessionID,
			Generation:  uint64(e.Generation),
			Position:    e.Position,
			SourceIndex: e.SourceIndex,
			Order:       e.Order,
		})
		res.Next = e.Seq
	}
	writeJSON(w, http.StatusOK, res)
}

func writeArtifact(w http.ResponseWriter, a delivery.Artifact, disposition string) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": a.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

func sessionResponse(s reorganizer.SessionState) models.SessionResponse {
	res := models.SessionResponse{
		SessionID:  s.SessionID,
		Generation: uint64(s.Generation),
		Phase:      string(s.Phase),
		PageCount:  s.PageCount,
		Pending:    s.Pending,
		Failed:     s.Failed,
		Pages:      make([]models.PageResponse, 0, len(s.Pages)),
	}
	if s.Err != nil {
		res.Error = s.Err.Error()
	}
	for _, p := range s.Pages {
		page := models.PageResponse{
			Position:    p.Position,
			SourceIndex: p.SourceIndex,
			Label:       p.Label,
			State:       p.State.String(),
		}
		if p.State == reorganizer.ThumbnailRendered {
			page.ThumbnailURL = fmt.Sprintf("/api/v1/pages/%d/thumbnail", p.SourceIndex)
		}
		if p.Err != nil {
			page.Error = strings.TrimSpace(p.Err.Error())
		}
		res.Pages = append(res.Pages, page)
	}
	return res
}
