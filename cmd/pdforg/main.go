package main

import (
	"fmt"
	"os"

	"github.com/Lllllllleong/pagereorganizer/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "pdforg",
		Short: "Reorder the pages of a PDF",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupTo(cmd.ErrOrStderr(), logLevel)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(reorderCmd(), thumbnailsCmd(), printCmd(), serveCmd())
	return root
}
