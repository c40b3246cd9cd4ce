package main

import (
	"fmt"
	"os"

	"github.com/Lllllllleong/pagereorganizer/internal/delivery"
	"github.com/Lllllllleong/pagereorganizer/internal/pdfengine"
	"github.com/Lllllllleong/pagereorganizer/internal/reorganizer"
	"github.com/spf13/cobra"
)

func printCmd() *cobra.Command {
	var order string
	var moves []string
	var command string

	cmd := &cobra.Command{
		Use:   "print <pdf>",
		Short: "Send a rearranged copy of a PDF to the printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if order != "" && len(moves) > 0 {
				return fmt.Errorf("use either --order or --move, not both")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			exporter := reorganizer.NewExportController(pdfengine.NewRebuilder(), nil, delivery.ParseCommand(command), reorganizer.ExportConfig{}, nil)
			org := reorganizer.New(pdfengine.PageCounter{}, exporter, headlessConfig())
			defer org.Close()

			state, err := org.StartLoad(cmd.Context(), data)
			if err != nil {
				return err
			}
			if err := applyArrangement(org.Reorder(), state.PageCount, order, moves); err != nil {
				return err
			}
			if _, err := org.Print(cmd.Context()); err != nil {
				return err
			}
			exporter.WaitReleases()
			fmt.Fprintln(cmd.OutOrStdout(), "Print job sent.")
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "new page order as a 1-based list, e.g. 5,1-4")
	cmd.Flags().StringArrayVar(&moves, "move", nil, "move the page at one position to another, e.g. 5:1 (repeatable)")
	cmd.Flags().StringVar(&command, "command", delivery.DefaultPrintCommand, "print command; the document path is appended")
	return cmd
}
