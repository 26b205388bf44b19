package service

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/dataflow"
	"github.com/locvowork/sheetstream/pkg/excelstream"
)

// ExportSettings is the writer configuration shared by every export the
// services start.
type ExportSettings struct {
	QueueCapacity int
	ChunkCapacity int
	FixedTitles   bool
	TempDir       string
	Timeout       time.Duration

	// Pool runs chunk exports asynchronously when set. It is shared, not owned.
	Pool *dataflow.Pool
	// Upload is called for every sealed chunk file.
	Upload excelstream.ChunkCallback

	styleSheet []byte
	Logger     zerolog.Logger
}

// LoadStyleFile reads a YAML style sheet used by every writer. Each writer
// decodes its own copy since style resolvers are not shared between goroutines.
func (s *ExportSettings) LoadStyleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading style file: %w", err)
	}
	if _, err := excelstream.LoadStyleSheet(bytes.NewReader(data)); err != nil {
		return err
	}
	s.styleSheet = data
	return nil
}

func (s ExportSettings) styles() excelstream.StyleResolver {
	if s.styleSheet == nil {
		return excelstream.DefaultStyles()
	}
	st, err := excelstream.LoadStyleSheet(bytes.NewReader(s.styleSheet))
	if err != nil {
		// validated in LoadStyleFile
		return excelstream.DefaultStyles()
	}
	return st
}

// newWriter builds a writer from the settings. capacity overrides
// ChunkCapacity when positive.
func (s ExportSettings) newWriter(sheetName string, capacity int) *excelstream.Writer {
	if capacity <= 0 {
		capacity = s.ChunkCapacity
	}
	opts := []excelstream.Option{
		excelstream.WithCapacity(capacity),
		excelstream.WithFixedTitles(s.FixedTitles),
		excelstream.WithStyleResolver(s.styles()),
		excelstream.WithLogger(s.Logger),
	}
	if sheetName != "" {
		opts = append(opts, excelstream.WithSheetName(sheetName))
	}
	if s.QueueCapacity > 0 {
		opts = append(opts, excelstream.WithQueueCapacity(s.QueueCapacity))
	}
	if s.TempDir != "" {
		opts = append(opts, excelstream.WithTempDir(s.TempDir))
	}
	if s.Timeout > 0 {
		opts = append(opts, excelstream.WithTimeout(s.Timeout))
	}
	if s.Pool != nil {
		opts = append(opts, excelstream.WithPool(s.Pool))
	}
	if s.Upload != nil {
		opts = append(opts, excelstream.WithChunkCallback(s.Upload))
	}
	return excelstream.NewWriter(opts...)
}

// ExportResult is a finished archive. Release deletes it together with any
// other file the export left behind.
type ExportResult struct {
	Path    string
	Rows    int
	Skipped int

	release func()
}

// Release removes the archive. It is safe to call more than once.
func (r *ExportResult) Release() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}
