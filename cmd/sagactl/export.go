package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ambientsaga/internal/ingest"
)

func exportCmd() *cobra.Command {
	var sagaRef string
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <avatar>",
		Short: "Write an avatar's saga logs as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], sagaRef, outPath)
		},
	}
	cmd.Flags().StringVar(&sagaRef, "saga", "", "Only export this saga")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func runExport(avatarID, sagaRef, outPath string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		w = f
	}

	result, err := ingest.Export(ctx, a.store, w, avatarID, ingest.ExportOptions{SagaRef: sagaRef})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d instances, %d transactions.\n", result.Instances, result.Transactions)
	return nil
}
