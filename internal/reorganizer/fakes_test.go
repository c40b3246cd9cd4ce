package reorganizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"
)

var samplePDF = []byte("%PDF-1.7\n% test document\n")

// fakeDoc renders solid 2x2 images. Pages listed in fail return an error; pages
// with a gate block until the gate is closed.
type fakeDoc struct {
	pages  int
	fail   map[int]bool
	gates  map[int]chan struct{}
	mu     sync.Mutex
	closed bool
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if gate, ok := d.gates[index]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.fail[index] {
		return nil, fmt.Errorf("page %d: broken content stream", index)
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: uint8(index), A: 255})
	return img, nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDoc) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeRenderer hands out queued documents, one per Open.
type fakeRenderer struct {
	mu      sync.Mutex
	docs    []*fakeDoc
	openErr error
}

func (r *fakeRenderer) Open(ctx context.Context, data []byte) (RenderDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	if len(r.docs) == 0 {
		return nil, errors.New("no document queued")
	}
	d := r.docs[0]
	r.docs = r.docs[1:]
	return d, nil
}

func newGates(indices ...int) map[int]chan struct{} {
	gates := make(map[int]chan struct{}, len(indices))
	for _, i := range indices {
		gates[i] = make(chan struct{})
	}
	return gates
}

func openGates(gates map[int]chan struct{}) {
	for _, g := range gates {
		close(g)
	}
}

// fakeRebuilder encodes the requested order into the output bytes.
type fakeRebuilder struct {
	mu     sync.Mutex
	calls  [][]int
	err    error
	gate   chan struct{}
	called chan struct{}
}

func (r *fakeRebuilder) Rebuild(ctx context.Context, src []byte, order []int) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]int(nil), order...))
	err, gate, called := r.err, r.gate, r.called
	r.mu.Unlock()
	if called != nil {
		called <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(order))
	for i, idx := range order {
		parts[i] = fmt.Sprint(idx)
	}
	return []byte("pages:" + strings.Join(parts, ",")), nil
}

func (r *fakeRebuilder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRebuilder) lastOrder() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

type memSink struct {
	mu        sync.Mutex
	delivered [][]byte
	names     []string
}

func (s *memSink) Deliver(ctx context.Context, name string, data []byte) (Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, data)
	s.names = append(s.names, name)
	return Download{Name: name, URL: "mem://" + name, Size: len(data), Expires: time.Now().Add(time.Minute)}, nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

// fakeSurface records the order of calls made against it.
type fakeSurface struct {
	mu        sync.Mutex
	calls     []string
	data      []byte
	loadErr   error
	dismissed chan struct{}
	released  chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{dismissed: make(chan struct{}), released: make(chan struct{})}
}

func (s *fakeSurface) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSurface) Load(ctx context.Context, name string, data []byte) error {
	s.record("load")
	if s.loadErr != nil {
		return s.loadErr
	}
	s.data = data
	return nil
}

func (s *fakeSurface) Print(ctx context.Context) (<-chan struct{}, error) {
	s.record("print")
	return s.dismissed, nil
}

func (s *fakeSurface) Handle() string { return "surface-1" }

func (s *fakeSurface) Release() error {
	s.record("release")
	close(s.released)
	return nil
}

func (s *fakeSurface) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeSurfaces struct {
	surface *fakeSurface
}

func (f *fakeSurfaces) NewSurface(ctx context.Context) (Surface, error) {
	return f.surface, nil
}

type testRig struct {
	org       *Organizer
	renderer  *fakeRenderer
	rebuilder *fakeRebuilder
	sink      *memSink
	surface   *fakeSurface
	exporter  *ExportController
	events    *EventLog
	status    *LastStatus
}

func newTestRig(concurrency int, docs ...*fakeDoc) *testRig {
	rig := &testRig{
		renderer:  &fakeRenderer{docs: docs},
		rebuilder: &fakeRebuilder{},
		sink:      &memSink{},
		surface:   newFakeSurface(),
		events:    NewEventLog(0),
		status:    &LastStatus{},
	}
	rig.exporter = NewExportController(rig.rebuilder, rig.sink, &fakeSurfaces{surface: rig.surface},
		ExportConfig{PrintTimeout: 50 * time.Millisecond}, nil)
	rig.org = New(rig.renderer, rig.exporter, Config{ThumbnailScale: 0.35, Concurrency: concurrency},
		WithView(rig.events), WithStatus(rig.status))
	return rig
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
