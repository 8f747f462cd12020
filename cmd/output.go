package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/export"
)

// nopCloser keeps os.Stdout open when the command finishes.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns the destination for command output: the file at path,
// or stdout when path is empty. Spreadsheets always need a file.
func openOutput(path string, f export.Format) (io.WriteCloser, error) {
	if path == "" {
		if f == export.FormatXLSX {
			return nil, eris.New("--format xlsx requires --out")
		}
		return nopCloser{os.Stdout}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	return file, nil
}

// formatFlag reads and validates the --format flag.
func formatFlag(cmd *cobra.Command) (export.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	return export.ParseFormat(s)
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", "table", "output format (table, json, yaml)")
}
