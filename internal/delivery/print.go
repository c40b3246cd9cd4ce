package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

var ErrUnknownPrintJob = errors.New("unknown print job")

// PrintDesk hands print documents to a browser. A surface is loaded into the
// store, the browser fetches it by token, prints it, and reports back through
// Done once its dialog is dismissed.
type PrintDesk struct {
	store *Store

	mu   sync.Mutex
	jobs map[string]*handoffSurface
}

var _ reorganizer.SurfaceFactory = (*PrintDesk)(nil)

func NewPrintDesk(store *Store) *PrintDesk {
	return &PrintDesk{store: store, jobs: make(map[string]*handoffSurface)}
}

func (d *PrintDesk) NewSurface(ctx context.Context) (reorganizer.Surface, error) {
	return &handoffSurface{desk: d}, nil
}

// Get returns the document of an open print job.
func (d *PrintDesk) Get(token string) (Artifact, bool) {
	d.mu.Lock()
	_, ok := d.jobs[token]
	d.mu.Unlock()
	if !ok {
		return Artifact{}, false
	}
	return d.store.Get(token)
}

// Done records that the browser's print dialog for token was dismissed.
func (d *PrintDesk) Done(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.jobs[token]
	if !ok {
		return ErrUnknownPrintJob
	}
	s.dismiss()
	return nil
}

// Open reports how many print jobs are waiting for dismissal.
func (d *PrintDesk) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type handoffSurface struct {
	desk      *PrintDesk
	token     string
	dismissed chan struct{}
	once      sync.Once
}

func (s *handoffSurface) Load(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty print document")
	}
	s.token, _ = s.desk.store.Put(name, "application/pdf", data)
	return nil
}

func (s *handoffSurface) Print(ctx context.Context) (<-chan struct{}, error) {
	if s.token == "" {
		return nil, fmt.Errorf("print surface has no document")
	}
	s.dismissed = make(chan struct{})
	s.desk.mu.Lock()
	s.desk.jobs[s.token] = s
	s.desk.mu.Unlock()
	return s.dismissed, nil
}

func (s *handoffSurface) dismiss() {
	s.once.Do(func() { close(s.dismissed) })
}

func (s *handoffSurface) Handle() string {
	return s.token
}

func (s *handoffSurface) Release() error {
	if s.token == "" {
		return nil
	}
	s.desk.mu.Lock()
	delete(s.desk.jobs, s.token)
	s.desk.mu.Unlock()
	s.desk.store.Revoke(s.token)
	return nil
}
