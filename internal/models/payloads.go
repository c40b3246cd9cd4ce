package models

import "time"

// These structs define the JSON payloads of the HTTP API consumed by the
// browser UI and other clients.

// SessionResponse describes the active load session.
type SessionResponse struct {
	SessionID  string         `json:"sessionId"`
	Generation uint64         `json:"generation"`
	Phase      string         `json:"phase"`
	PageCount  int            `json:"pageCount"`
	Pending    int            `json:"pending"`
	Failed     int            `json:"failed"`
	Error      string         `json:"error,omitempty"`
	Pages      []PageResponse `json:"pages"`
}

// PageResponse is one entry of the arrangement, in display order.
type PageResponse struct {
	Position     int    `json:"position"`
	SourceIndex  int    `json:"sourceIndex"`
	Label        string `json:"label"`
	State        string `json:"state"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

// MoveRequest moves either the entry at position From, or the page with
// SourceIndex, to position To. To is required.
type MoveRequest struct {
	From        *int `json:"from,omitempty"`
	SourceIndex *int `json:"sourceIndex,omitempty"`
	To          *int `json:"to"`
}

// DropRequest is a drop computed from pixel geometry. Slot is the insertion
// slot in [0, pageCount]. Both fields are required.
type DropRequest struct {
	SourceIndex *int     `json:"sourceIndex"`
	Slot        *float64 `json:"slot"`
}

// ArrangeRequest replaces the whole order.
type ArrangeRequest struct {
	Order []int `json:"order"`
}

// OrderResponse is the arrangement after a move.
type OrderResponse struct {
	Generation uint64 `json:"generation"`
	Order      []int  `json:"order"`
	Position   *int   `json:"position,omitempty"`
}

// ExportResponse points at a downloadable export.
type ExportResponse struct {
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Size    int       `json:"size"`
	Expires time.Time `json:"expires"`
}

// PrintResponse describes an open print job. URL is set when the browser is
// the print surface.
type PrintResponse struct {
	Name     string    `json:"name"`
	Token    string    `json:"token"`
	URL      string    `json:"url,omitempty"`
	Deadline time.Time `json:"deadline"`
}

// StatusResponse is the current status surface message.
type StatusResponse struct {
	SessionID  string    `json:"sessionId,omitempty"`
	Generation uint64    `json:"generation"`
	Phase      string    `json:"phase"`
	Message    string    `json:"message"`
	PageCount  int       `json:"pageCount,omitempty"`
	At         time.Time `json:"at"`
}

// EventResponse is one change the UI should apply.
type EventResponse struct {
	Seq         uint64 `json:"seq"`
	Kind        string `json:"kind"`
	SessionID   string `json:"sessionId,omitempty"`
	Generation  uint64 `json:"generation"`
	Position    int    `json:"position"`
	SourceIndex int    `json:"sourceIndex"`
	Order       []int  `json:"order,omitempty"`
}

// EventsResponse carries events after the requested sequence number. Next is
// the value to pass as since on the following poll.
type EventsResponse struct {
	Events []EventResponse `json:"events"`
	Next   uint64          `json:"next"`
}
