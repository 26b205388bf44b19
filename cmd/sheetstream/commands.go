package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/locvowork/sheetstream/internal/bootstrap"
	"github.com/locvowork/sheetstream/internal/service"
	"github.com/locvowork/sheetstream/pkg/sheetreader"
)

func newSplitCmd(app *bootstrap.App) *cobra.Command {
	var (
		out string
		req service.SplitRequest
	)
	cmd := &cobra.Command{
		Use:   "split <input>",
		Short: "Split a csv, xls or xlsx file into a zip of xlsx chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Input = args[0]
			if out == "" {
				out = strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input)) + ".zip"
			}
			if req.Name == "" {
				req.Name = strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
			}

			res, err := service.NewSplitService(app.Settings).Split(cmd.Context(), req)
			if err != nil {
				return err
			}
			rows, skipped := res.Rows, res.Skipped
			if err := deliver(res, out); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d rows, %d skipped\n", out, rows, skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output zip path (default: <input>.zip)")
	cmd.Flags().IntVar(&req.Capacity, "capacity", 0, "Rows per output file including title rows (0: one file)")
	cmd.Flags().IntVar(&req.TitleRows, "title-rows", 1, "Leading rows repeated at the top of every file")
	cmd.Flags().BoolVar(&req.AllSheets, "all-sheets", false, "Read every sheet instead of the first")
	cmd.Flags().StringSliceVar(&req.Sheets, "sheet", nil, "Sheet names to read")
	cmd.Flags().StringVar(&req.Charset, "charset", "", "Charset of csv input (default utf-8)")
	cmd.Flags().BoolVar(&req.KeepText, "keep-text", false, "Do not convert numeric text to numbers")
	cmd.Flags().StringVar(&req.Name, "name", "", "Base name of the archive entries")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var (
		sheets    []string
		allSheets bool
		limit     int
		charset   string
	)
	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Print the detected format, sheets and first rows of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := sheetreader.SniffFile(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "format:\t%s\n", format)

			reader := sheetreader.Of[[]string]().Charset(charset)
			switch {
			case allSheets:
				reader.AllSheets()
			case len(sheets) > 0:
				reader.SheetNames(sheets...)
			}
			return inspect(w, reader, args[0], limit)
		},
	}
	cmd.Flags().StringSliceVar(&sheets, "sheet", nil, "Sheet names to inspect")
	cmd.Flags().BoolVar(&allSheets, "all-sheets", false, "Inspect every sheet")
	cmd.Flags().IntVar(&limit, "limit", 5, "Rows printed per sheet")
	cmd.Flags().StringVar(&charset, "charset", "", "Charset of csv input")
	return cmd
}

type sheetStats struct {
	name string
	rows int
}

func inspect(w *tabwriter.Writer, reader *sheetreader.Reader[[]string], path string, limit int) error {
	var stats []*sheetStats
	reader.OnStartSheet(func(name string, index int) {
		stats = append(stats, &sheetStats{name: name})
		fmt.Fprintf(w, "\nsheet %d:\t%s\n", index, name)
	})
	err := reader.ReadFileThen(path, sheetreader.EachContext(func(cells []string, rc sheetreader.RowContext) {
		current := stats[len(stats)-1]
		current.rows++
		if rc.RowIndex < limit {
			fmt.Fprintf(w, "%d\t%s\n", rc.RowIndex+1, strings.Join(cells, "\t"))
		}
	}))
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, s := range stats {
		fmt.Fprintf(w, "%s:\t%d rows\n", s.name, s.rows)
	}
	return w.Flush()
}

func newSeedCmd(app *bootstrap.App) *cobra.Command {
	var (
		preset   string
		out      string
		capacity int
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a sample product workbook archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = "sample-" + preset + ".zip"
			}
			res, err := service.NewSampleService(app.Settings, seed).Generate(cmd.Context(), service.SamplePreset(preset), capacity)
			if err != nil {
				return err
			}
			rows := res.Rows
			if err := deliver(res, out); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d rows\n", out, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "small", "Data preset: small, medium, large, xlarge")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output zip path")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "Rows per output file (0: EXPORT_CHUNK_CAPACITY)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	return cmd
}
