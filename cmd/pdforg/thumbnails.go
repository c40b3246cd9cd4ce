package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pagereorganizer/internal/pdfengine"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/spf13/cobra"
)

func thumbnailsCmd() *cobra.Command {
	var out string
	var scale float64
	var concurrency int

	cmd := &cobra.Command{
		Use:   "thumbnails <pdf>",
		Short: "Render a PNG preview of every page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("failed to create output dir: %w", err)
			}

			org := reorganizer.New(pdfengine.NewRasterizer(), nil, reorganizer.Config{
				ThumbnailScale: scale,
				Concurrency:    concurrency,
			})
			defer org.Close()
			if _, err := org.StartLoad(cmd.Context(), data); err != nil {
				return err
			}
			org.Wait()

			state, _ := org.State()
			var written []string
			var failed []string
			for _, p := range state.Pages {
				if p.State != reorganizer.ThumbnailRendered {
					failed = append(failed, p.Label)
					continue
				}
				path := filepath.Join(out, fmt.Sprintf("page-%03d.png", p.SourceIndex+1))
				if err := os.WriteFile(path, p.Thumbnail, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				written = append(written, path)
			}
			b, _ := json.MarshalIndent(map[string]interface{}{
				"pageCount": state.PageCount,
				"written":   written,
				"failed":    failed,
			}, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	defaults := reorganizer.DefaultConfig()
	cmd.Flags().StringVarP(&out, "out", "o", "thumbnails", "output directory")
	cmd.Flags().Float64Var(&scale, "scale", defaults.ThumbnailScale, "render scale relative to 72 dpi")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaults.Concurrency, "pages rendered at a time")
	return cmd
}
