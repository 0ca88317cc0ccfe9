package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"dbmlviewer/internal/config"
	"dbmlviewer/internal/server"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dbmlviewer",
		Short:         "Parse, lay out and export DBML schemas",
		Long:          `dbmlviewer turns DBML into laid-out ER diagrams. It formats and renders schema files, converts to and from SQL DDL, reads schemas from live databases and serves the diagram API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newFmtCmd(),
		newRenderCmd(),
		newExportCmd(),
		newImportCmd(),
		newIntrospectCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return server.Run(cmd.Context(), cfg)
		},
	}
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// writeOutput writes to a file, or stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}
