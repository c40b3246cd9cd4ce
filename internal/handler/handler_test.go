package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/pagereorganizer/internal/delivery"
	"github.com/Lllllllleong/pagereorganizer/internal/models"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

var testPDF = []byte("%PDF-1.7\n% handler test\n")

type stubDoc struct {
	pages int
	fail  map[int]bool
}

func (d stubDoc) PageCount() int { return d.pages }

func (d stubDoc) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if d.fail[index] {
		return nil, errors.New("broken page")
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func (d stubDoc) Close() error { return nil }

type stubRenderer struct {
	doc stubDoc
}

func (r stubRenderer) Open(ctx context.Context, data []byte) (reorganizer.RenderDocument, error) {
	return r.doc, nil
}

type orderRebuilder struct{}

func (orderRebuilder) Rebuild(ctx context.Context, src []byte, order []int) ([]byte, error) {
	return []byte(fmt.Sprint(order)), nil
}

type testServer struct {
	org    *reorganizer.Organizer
	router http.Handler
	desk   *delivery.PrintDesk
}

func newTestServer(t *testing.T, doc stubDoc) *testServer {
	t.Helper()
	downloads := delivery.NewStore(time.Minute)
	desk := delivery.NewPrintDesk(delivery.NewStore(time.Minute))
	events := reorganizer.NewEventLog(0)
	status := &reorganizer.LastStatus{}
	exporter := reorganizer.NewExportController(orderRebuilder{}, delivery.NewMemorySink(downloads, "/api/v1/downloads"), desk,
		reorganizer.ExportConfig{PrintTimeout: time.Minute}, nil)
	org := reorganizer.New(stubRenderer{doc: doc}, exporter, reorganizer.Config{Concurrency: 2},
		reorganizer.WithView(events), reorganizer.WithStatus(status))
	t.Cleanup(org.Close)

	h := NewHandler(Deps{
		Organizer:   org,
		Events:      events,
		Status:      status,
		Downloads:   downloads,
		Desk:        desk,
		MaxFileSize: 1 << 20,
	})
	return &testServer{org: org, router: NewRouter(h, nil), desk: desk}
}

func (s *testServer) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) upload(t *testing.T) models.SessionResponse {
	t.Helper()
	rr := s.do(http.MethodPost, "/api/v1/documents", testPDF, "application/pdf")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var res models.SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	s.org.Wait()
	return res
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 1})
	rr := s.do(http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUploadDocument_Raw(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 3})
	res := s.upload(t)
	if res.PageCount != 3 || len(res.Pages) != 3 || res.Pages[2].Label != "Page 3" {
		t.Fatalf("unexpected session %+v", res)
	}

	rr := s.do(http.MethodGet, "/api/v1/session", nil, "")
	var state models.SessionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &state)
	if state.Phase != "ready" || state.Pages[0].ThumbnailURL != "/api/v1/pages/0/thumbnail" {
		t.Fatalf("unexpected session after rendering %+v", state)
	}
}

func TestUploadDocument_Multipart(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "scan.pdf")
	_, _ = fw.Write(testPDF)
	_ = mw.Close()

	rr := s.do(http.MethodPost, "/api/v1/documents", body.Bytes(), mw.FormDataContentType())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	s.org.Wait()
}

func TestUploadDocument_RejectsNonPDF(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	rr := s.do(http.MethodPost, "/api/v1/documents", []byte("\x89PNG\r\n"), "image/png")
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, rr.Code)
	}
	if rr := s.do(http.MethodGet, "/api/v1/session", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected no session, got %d", rr.Code)
	}
}

func TestUploadDocument_TooLarge(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	big := append(append([]byte(nil), testPDF...), make([]byte, 2<<20)...)
	rr := s.do(http.MethodPost, "/api/v1/documents", big, "application/pdf")
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}

func TestExportWithoutDocument(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	rr := s.do(http.MethodPost, "/api/v1/exports", nil, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
}

func TestMoveExportAndDownload(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 5})
	s.upload(t)

	rr := s.do(http.MethodPost, "/api/v1/moves", []byte(`{"sourceIndex":4,"to":0}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var order models.OrderResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &order)
	if fmt.Sprint(order.Order) != "[4 0 1 2 3]" || order.Position == nil || *order.Position != 0 {
		t.Fatalf("unexpected order %+v", order)
	}

	rr = s.do(http.MethodPost, "/api/v1/exports", nil, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var exp models.ExportResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &exp)
	if exp.Name != "reordered.pdf" {
		t.Fatalf("expected reordered.pdf, got %s", exp.Name)
	}

	rr = s.do(http.MethodGet, exp.URL, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected download, got %d", rr.Code)
	}
	if rr.Body.String() != "[4 0 1 2 3]" {
		t.Fatalf("unexpected document %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "reordered.pdf") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	rr = s.do(http.MethodGet, "/api/v1/status", nil, "")
	var status models.StatusResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &status)
	if status.Phase != "exported" || status.Message != "Exported reordered.pdf" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestMove_ByPosition(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 3})
	s.upload(t)
	rr := s.do(http.MethodPost, "/api/v1/moves", []byte(`{"from":0,"to":2}`), "application/json")
	var order models.OrderResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &order)
	if rr.Code != http.StatusOK || fmt.Sprint(order.Order) != "[1 2 0]" {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
	if rr := s.do(http.MethodPost, "/api/v1/moves", []byte(`{"to":2}`), "application/json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rr.Code)
	}
}

func TestDrop_RejectsFractionalSlot(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 3})
	s.upload(t)
	rr := s.do(http.MethodPost, "/api/v1/drops", []byte(`{"sourceIndex":0,"slot":1.5}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	rr = s.do(http.MethodPost, "/api/v1/drops", []byte(`{"sourceIndex":0,"slot":3}`), "application/json")
	var order models.OrderResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &order)
	if rr.Code != http.StatusOK || fmt.Sprint(order.Order) != "[1 2 0]" {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMoveAndDrop_MissingFieldsLeaveOrder(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 4})
	s.upload(t)

	for _, tc := range []struct {
		path string
		body string
	}{
		{"/api/v1/moves", `{"sourceIndex":3}`},
		{"/api/v1/moves", `{"from":2}`},
		{"/api/v1/drops", `{"slot":4}`},
		{"/api/v1/drops", `{"sourceIndex":1}`},
		{"/api/v1/drops", `{}`},
	} {
		if rr := s.do(http.MethodPost, tc.path, []byte(tc.body), "application/json"); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected status %d, got %d", tc.path, tc.body, http.StatusBadRequest, rr.Code)
		}
	}

	rr := s.do(http.MethodGet, "/api/v1/session", nil, "")
	var session models.SessionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &session)
	var order []int
	for _, p := range session.Pages {
		order = append(order, p.SourceIndex)
	}
	if fmt.Sprint(order) != "[0 1 2 3]" {
		t.Fatalf("expected order to stay [0 1 2 3], got %v", order)
	}
}

func TestArrange(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 3})
	s.upload(t)
	if rr := s.do(http.MethodPut, "/api/v1/order", []byte(`{"order":[0,0,1]}`), "application/json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rr.Code)
	}
	rr := s.do(http.MethodPut, "/api/v1/order", []byte(`{"order":[2,1,0]}`), "application/json")
	var order models.OrderResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &order)
	if rr.Code != http.StatusOK || fmt.Sprint(order.Order) != "[2 1 0]" {
		t.Fatalf("unexpected response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestThumbnail(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2, fail: map[int]bool{1: true}})
	s.upload(t)

	rr := s.do(http.MethodGet, "/api/v1/pages/0/thumbnail", nil, "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected PNG thumbnail, got %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr := s.do(http.MethodGet, "/api/v1/pages/1/thumbnail", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected failed preview to be 404, got %d", rr.Code)
	}
	if rr := s.do(http.MethodGet, "/api/v1/pages/7/thumbnail", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected unknown page to be 404, got %d", rr.Code)
	}
}

func TestPrintHandoff(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	s.upload(t)

	rr := s.do(http.MethodPost, "/api/v1/prints", nil, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var job models.PrintResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &job)
	if job.URL == "" || job.Token == "" {
		t.Fatalf("unexpected print job %+v", job)
	}

	rr = s.do(http.MethodGet, job.URL, nil, "")
	if rr.Code != http.StatusOK || rr.Body.String() != "[0 1]" {
		t.Fatalf("expected print document, got %d %q", rr.Code, rr.Body.String())
	}
	if rr := s.do(http.MethodPost, job.URL+"/done", nil, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected done to succeed, got %d", rr.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.desk.Open() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rr := s.do(http.MethodGet, job.URL, nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected released print job to be gone, got %d", rr.Code)
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, stubDoc{pages: 2})
	s.upload(t)

	rr := s.do(http.MethodGet, "/api/v1/events?since=0", nil, "")
	var res models.EventsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode events: %v", err)
	}
	if len(res.Events) == 0 || res.Events[0].Kind != "reset" {
		t.Fatalf("expected events starting with a reset, got %+v", res.Events)
	}

	rr = s.do(http.MethodGet, fmt.Sprintf("/api/v1/events?since=%d", res.Next), nil, "")
	var empty models.EventsResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &empty)
	if len(empty.Events) != 0 || empty.Next != res.Next {
		t.Fatalf("expected no new events, got %+v", empty)
	}
	if rr := s.do(http.MethodGet, "/api/v1/events?since=-1", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{reorganizer.ErrNoDocument, http.StatusConflict},
		{reorganizer.ErrSuperseded, http.StatusConflict},
		{fmt.Errorf("wrap: %w", reorganizer.ErrInvalidDropTarget), http.StatusBadRequest},
		{&reorganizer.LoadError{Cause: errors.New("x")}, http.StatusUnprocessableEntity},
		{&reorganizer.RebuildError{Cause: errors.New("x")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}
