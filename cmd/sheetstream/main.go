// Command sheetstream splits, inspects and generates chunked spreadsheets
// from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/locvowork/sheetstream/internal/bootstrap"
	"github.com/locvowork/sheetstream/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := bootstrap.NewApp()
	rootCmd := &cobra.Command{
		Use:           "sheetstream",
		Short:         "Stream large spreadsheets into chunked xlsx archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Initialize(cmd.Context())
		},
	}
	rootCmd.AddCommand(newSplitCmd(app), newInspectCmd(), newSeedCmd(app))

	err := rootCmd.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// deliver moves a finished archive to out and releases the export.
func deliver(res *service.ExportResult, out string) error {
	defer res.Release()

	if err := os.Rename(res.Path, out); err == nil {
		return nil
	}
	// rename fails across filesystems
	src, err := os.Open(res.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
