package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

// DefaultPrintCommand is the CUPS client used to spool print jobs.
const DefaultPrintCommand = "lp"

// CommandSurfaces prints through a system command that takes the document path
// as its last argument. The dialog counts as dismissed once the command exits.
type CommandSurfaces struct {
	Command string
	Args    []string
	Logger  *slog.Logger
}

var _ reorganizer.SurfaceFactory = (*CommandSurfaces)(nil)

// ParseCommand splits a PRINT_COMMAND value such as "lp -d office".
func ParseCommand(line string) *CommandSurfaces {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return &CommandSurfaces{Command: DefaultPrintCommand}
	}
	return &CommandSurfaces{Command: fields[0], Args: fields[1:]}
}

func (c *CommandSurfaces) NewSurface(ctx context.Context) (reorganizer.Surface, error) {
	if _, err := exec.LookPath(c.Command); err != nil {
		return nil, fmt.Errorf("print command %q not available: %w", c.Command, err)
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &commandSurface{command: c.Command, args: c.Args, logger: logger}, nil
}

type commandSurface struct {
	command string
	args    []string
	logger  *slog.Logger
	dir     string
	path    string
}

func (s *commandSurface) Load(ctx context.Context, name string, data []byte) error {
	dir, err := os.MkdirTemp("", "pdforg-print-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	s.dir = dir
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write print document: %w", err)
	}
	s.path = path
	return nil
}

func (s *commandSurface) Print(ctx context.Context) (<-chan struct{}, error) {
	if s.path == "" {
		return nil, fmt.Errorf("print surface has no document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	args := append(append([]string(nil), s.args...), s.path)
	cmd := exec.Command(s.command, args...) // #nosec G204 -- command comes from configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.command, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := cmd.Wait(); err != nil {
			s.logger.Error("Print command failed.", "command", s.command, "error", err, "stderr", strings.TrimSpace(stderr.String()))
			return
		}
		s.logger.Info("Print job spooled.", "command", s.command, "document", s.path)
	}()
	return done, nil
}

func (s *commandSurface) Handle() string {
	return s.path
}

func (s *commandSurface) Release() error {
	if s.dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove print document: %w", err)
	}
	return nil
}
