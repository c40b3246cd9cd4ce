// Package delivery hands rebuilt documents to the outside world: short-lived
// download tokens, browser print handoff and the system print spooler.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/google/uuid"
)

// DefaultTTL is how long a download token stays valid.
const DefaultTTL = 30 * time.Second

// Artifact is a stored document.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	Expires     time.Time
}

type storeEntry struct {
	artifact Artifact
	timer    *time.Timer
}

// Store keeps artifacts behind random tokens and revokes each one when its TTL
// elapses.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]*storeEntry
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, items: make(map[string]*storeEntry)}
}

// Put stores data and returns its token.
func (s *Store) Put(name, contentType string, data []byte) (string, Artifact) {
	token := uuid.NewString()
	a := Artifact{
		Name:        name,
		ContentType: contentType,
		Data:        data,
		Expires:     time.Now().Add(s.ttl),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[token] = &storeEntry{
		artifact: a,
		timer:    time.AfterFunc(s.ttl, func() { s.Revoke(token) }),
	}
	return token, a
}

func (s *Store) Get(token string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[token]
	if !ok {
		return Artifact{}, false
	}
	return e.artifact, true
}

// Revoke drops the artifact. It reports whether the token was still live.
func (s *Store) Revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[token]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.items, token)
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MemorySink serves exports from a Store under baseURL/{token}.
type MemorySink struct {
	store   *Store
	baseURL string
}

var _ reorganizer.Sink = (*MemorySink)(nil)

func NewMemorySink(store *Store, baseURL string) *MemorySink {
	return &MemorySink{store: store, baseURL: baseURL}
}

func (m *MemorySink) Deliver(ctx context.Context, name string, data []byte) (reorganizer.Download, error) {
	if err := ctx.Err(); err != nil {
		return reorganizer.Download{}, err
	}
	token, a := m.store.Put(name, "application/pdf", data)
	return reorganizer.Download{
		Name:    name,
		URL:     m.baseURL + "/" + token,
		Size:    len(data),
		Expires: a.Expires,
	}, nil
}
