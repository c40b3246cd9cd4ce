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

func reorderCmd() *cobra.Command {
	var out string
	var order string
	var moves []string

	cmd := &cobra.Command{
		Use:   "reorder <pdf>",
		Short: "Write a copy of a PDF with its pages rearranged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if order != "" && len(moves) > 0 {
				return fmt.Errorf("use either --order or --move, not both")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(args[0]), reorganizer.DefaultExportFilename)
			}

			exporter := reorganizer.NewExportController(pdfengine.NewRebuilder(), fileSink{path: out}, nil, reorganizer.ExportConfig{
				Filename: filepath.Base(out),
			}, nil)
			org := reorganizer.New(pdfengine.PageCounter{}, exporter, headlessConfig())
			defer org.Close()

			state, err := org.StartLoad(cmd.Context(), data)
			if err != nil {
				return err
			}
			if err := applyArrangement(org.Reorder(), state.PageCount, order, moves); err != nil {
				return err
			}
			dl, err := org.Export(cmd.Context())
			if err != nil {
				return err
			}
			snap, _ := org.Snapshot()
			res := map[string]interface{}{
				"output": out,
				"size":   dl.Size,
				"order":  oneBased(snap.Order),
			}
			b, _ := json.MarshalIndent(res, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: reordered.pdf next to the input)")
	cmd.Flags().StringVar(&order, "order", "", "new page order as a 1-based list, e.g. 5,1-4")
	cmd.Flags().StringArrayVar(&moves, "move", nil, "move the page at one position to another, e.g. 5:1 (repeatable)")
	return cmd
}

func oneBased(order []int) []int {
	out := make([]int, len(order))
	for i, idx := range order {
		out[i] = idx + 1
	}
	return out
}
