package delivery

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestStore_RevokesAfterTTL(t *testing.T) {
	s := NewStore(30 * time.Millisecond)
	token, a := s.Put("reordered.pdf", "application/pdf", []byte("%PDF-1.7"))
	if got, ok := s.Get(token); !ok || got.Name != "reordered.pdf" {
		t.Fatalf("expected artifact to be available, got %+v", got)
	}
	if a.Expires.IsZero() {
		t.Fatalf("expected an expiry time")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := s.Get(token); ok {
		t.Fatalf("expected token to be revoked after the TTL")
	}
}

func TestStore_Revoke(t *testing.T) {
	s := NewStore(time.Minute)
	token, _ := s.Put("a.pdf", "application/pdf", []byte("x"))
	if !s.Revoke(token) {
		t.Fatalf("expected first revoke to report a live token")
	}
	if s.Revoke(token) {
		t.Fatalf("expected second revoke to report nothing")
	}
}

func TestMemorySink_Deliver(t *testing.T) {
	s := NewStore(time.Minute)
	sink := NewMemorySink(s, "/api/v1/downloads")
	dl, err := sink.Deliver(context.Background(), "reordered.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("expected delivery, got %v", err)
	}
	if dl.Name != "reordered.pdf" || dl.Size != 9 {
		t.Fatalf("unexpected download %+v", dl)
	}
	token := strings.TrimPrefix(dl.URL, "/api/v1/downloads/")
	if a, ok := s.Get(token); !ok || string(a.Data) != "pdf bytes" {
		t.Fatalf("expected the artifact behind %s", dl.URL)
	}
}

func TestPrintDesk_Handoff(t *testing.T) {
	desk := NewPrintDesk(NewStore(time.Minute))
	ctx := context.Background()

	surface, err := desk.NewSurface(ctx)
	if err != nil {
		t.Fatalf("expected surface, got %v", err)
	}
	if _, err := surface.Print(ctx); err == nil {
		t.Fatalf("expected print before load to fail")
	}
	if err := surface.Load(ctx, "reordered.pdf", []byte("doc")); err != nil {
		t.Fatalf("expected load, got %v", err)
	}
	dismissed, err := surface.Print(ctx)
	if err != nil {
		t.Fatalf("expected print, got %v", err)
	}
	token := surface.Handle()
	if a, ok := desk.Get(token); !ok || string(a.Data) != "doc" {
		t.Fatalf("expected print document to be served")
	}

	if err := desk.Done(token); err != nil {
		t.Fatalf("expected done, got %v", err)
	}
	select {
	case <-dismissed:
	default:
		t.Fatalf("expected dismissal to be signalled")
	}
	if err := desk.Done(token); err != nil {
		t.Fatalf("expected repeated done to be harmless, got %v", err)
	}

	if err := surface.Release(); err != nil {
		t.Fatalf("expected release, got %v", err)
	}
	if _, ok := desk.Get(token); ok {
		t.Fatalf("expected print document to be gone after release")
	}
	if err := desk.Done(token); !errors.Is(err, ErrUnknownPrintJob) {
		t.Fatalf("expected ErrUnknownPrintJob, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	c := ParseCommand("lp -d office")
	if c.Command != "lp" || len(c.Args) != 2 || c.Args[1] != "office" {
		t.Fatalf("unexpected command %+v", c)
	}
	if c := ParseCommand("  "); c.Command != DefaultPrintCommand {
		t.Fatalf("expected default command, got %s", c.Command)
	}
}

func TestCommandSurface_SpoolsAndCleansUp(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	ctx := context.Background()
	surface, err := (&CommandSurfaces{Command: "true"}).NewSurface(ctx)
	if err != nil {
		t.Fatalf("expected surface, got %v", err)
	}
	if err := surface.Load(ctx, "reordered.pdf", []byte("doc")); err != nil {
		t.Fatalf("expected load, got %v", err)
	}
	path := surface.Handle()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected document on disk, got %v", err)
	}
	done, err := surface.Print(ctx)
	if err != nil {
		t.Fatalf("expected print, got %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected print command to finish")
	}
	if err := surface.Release(); err != nil {
		t.Fatalf("expected release, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected document to be removed, got %v", err)
	}
}

func TestCommandSurfaces_MissingCommand(t *testing.T) {
	if _, err := (&CommandSurfaces{Command: "definitely-not-a-print-command"}).NewSurface(context.Background()); err == nil {
		t.Fatalf("expected missing command to fail")
	}
}
