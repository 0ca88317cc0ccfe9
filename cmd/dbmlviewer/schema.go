package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/editor"
	"dbmlviewer/internal/export"
	"dbmlviewer/internal/layout"
	"dbmlviewer/internal/services"
	"dbmlviewer/internal/sqlddl"
)

func newFmtCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file.dbml>",
		Short: "Print a schema file in canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			s, err := dbml.Parse(text)
			if err != nil {
				return err
			}
			out := []byte(dbml.Generate(s))
			if write && args[0] != "-" {
				return writeOutput(cmd, args[0], out)
			}
			return writeOutput(cmd, "", out)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the file in place")
	return cmd
}

type renderFlags struct {
	format    string
	out       string
	scale     float64
	direction string
	canvas    string
}

func newRenderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render <file.dbml>",
		Short: "Lay out a schema and draw it as PNG or SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch f.format {
			case string(export.KindPNG), string(export.KindSVG):
			default:
				return fmt.Errorf("unsupported format %q: use png or svg", f.format)
			}
			return runExport(cmd, args[0], f, services.ExportOptions{Kind: f.format, PixelRatio: f.scale})
		},
	}
	cmd.Flags().StringVarP(&f.format, "format", "f", "png", "Image format: png or svg")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (default: diagram.<format>)")
	cmd.Flags().Float64Var(&f.scale, "scale", export.DefaultPixelRatio, "PNG pixel ratio")
	cmd.Flags().StringVar(&f.direction, "direction", "", "Layout direction: TB, BT, LR or RL")
	cmd.Flags().StringVar(&f.canvas, "canvas", "", "Saved canvas state JSON holding node positions")
	return cmd
}

func newExportCmd() *cobra.Command {
	var f renderFlags
	var dialect string
	cmd := &cobra.Command{
		Use:   "export <file.dbml>",
		Short: "Convert a schema to SQL DDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], f, services.ExportOptions{Kind: string(export.KindSQL), Dialect: dialect})
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", string(sqlddl.Postgres), "SQL dialect: postgres, mysql or mssql")
	cmd.Flags().StringVarP(&f.out, "out", "o", "-", "Output file")
	return cmd
}

func runExport(cmd *cobra.Command, path string, f renderFlags, opts services.ExportOptions) error {
	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	edOpts := editor.DefaultOptions()
	if f.direction != "" {
		d, err := layout.ParseDirection(f.direction)
		if err != nil {
			return err
		}
		edOpts.Layout.Direction = d
	}

	var canvas *diagram.CanvasState
	if f.canvas != "" {
		data, err := os.ReadFile(f.canvas)
		if err != nil {
			return fmt.Errorf("failed to read canvas state: %w", err)
		}
		if canvas, err = diagram.ParseCanvasState(data); err != nil {
			return err
		}
	}

	svc := services.NewSchemaService(services.NewPipeline(edOpts))
	a, err := svc.Export(text, canvas, opts)
	if err != nil {
		return err
	}
	out := f.out
	if out == "" {
		out = a.Filename
	}
	return writeOutput(cmd, out, a.Data)
}

func newImportCmd() *cobra.Command {
	var dialect, out string
	cmd := &cobra.Command{
		Use:   "import <file.sql>",
		Short: "Convert SQL DDL to DBML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := sqlddl.ParseDialect(dialect)
			if err != nil {
				return err
			}
			ddl, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			text, err := sqlddl.ImportToDBML(ddl, d)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, []byte(text))
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", string(sqlddl.Postgres), "SQL dialect: postgres, mysql or mssql")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file")
	return cmd
}
