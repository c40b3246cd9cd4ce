package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
)

// parsePageList turns a 1-based page list such as "5,1-4" into zero-based
// source indices.
func parsePageList(list string, pageCount int) ([]int, error) {
	var order []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parsePage(lo, pageCount)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parsePage(hi, pageCount); err != nil {
				return nil, err
			}
		}
		step := 1
		if last < first {
			step = -1
		}
		for p := first; ; p += step {
			order = append(order, p-1)
			if p == last {
				break
			}
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("empty page list")
	}
	return order, nil
}

func parsePage(s string, pageCount int) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	if p < 1 || p > pageCount {
		return 0, fmt.Errorf("page %d outside 1-%d", p, pageCount)
	}
	return p, nil
}

// parseMove parses "from:to" with 1-based positions.
func parseMove(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("move %q must look like from:to", s)
	}
	from, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid move source %q", a)
	}
	to, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid move target %q", b)
	}
	return from - 1, to - 1, nil
}

// applyArrangement applies either a full page list or a sequence of moves.
func applyArrangement(ctrl *reorganizer.ReorderController, pageCount int, order string, moves []string) error {
	if order != "" {
		target, err := parsePageList(order, pageCount)
		if err != nil {
			return err
		}
		return ctrl.Arrange(target)
	}
	for _, m := range moves {
		from, to, err := parseMove(m)
		if err != nil {
			return err
		}
		if err := ctrl.OnMove(from, to); err != nil {
			return fmt.Errorf("move %s: %w", m, err)
		}
	}
	return nil
}

// fileSink writes exports to a fixed path.
type fileSink struct {
	path string
}

func (s fileSink) Deliver(ctx context.Context, name string, data []byte) (reorganizer.Download, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return reorganizer.Download{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return reorganizer.Download{}, fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return reorganizer.Download{Name: name, URL: "file://" + s.path, Size: len(data)}, nil
}

// headlessConfig loads documents for their page count only.
func headlessConfig() reorganizer.Config {
	cfg := reorganizer.DefaultConfig()
	cfg.SkipPreviews = true
	return cfg
}
