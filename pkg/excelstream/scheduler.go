package excelstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/dataflow"
)

// ChunkCallback is invoked with the path of every chunk once it is on disk.
type ChunkCallback func(ctx context.Context, path string) error

// chunk is a sealed document handed over to the scheduler. The builder does
// not touch any of its fields after the hand-off.
type chunk struct {
	seq    int
	doc    Document
	sheet  Sheet
	widths map[int]int
}

// ExportScheduler serializes sealed chunks to temp files, either inline or on
// a caller supplied pool, and keeps track of every file it created.
type ExportScheduler struct {
	ctx      context.Context
	kind     Kind
	tempDir  string
	pool     *dataflow.Pool
	callback ChunkCallback
	logger   zerolog.Logger

	mu      sync.Mutex
	paths   []string
	futures []*dataflow.Future
}

// NewExportScheduler creates a scheduler. pool and callback may be nil.
func NewExportScheduler(ctx context.Context, kind Kind, tempDir string, pool *dataflow.Pool, callback ChunkCallback, logger zerolog.Logger) *ExportScheduler {
	return &ExportScheduler{
		ctx:      ctx,
		kind:     kind,
		tempDir:  tempDir,
		pool:     pool,
		callback: callback,
		logger:   logger,
	}
}

// Export persists c. Without a pool the call blocks until the file is written
// and the callback returned; with a pool it only schedules the work.
func (s *ExportScheduler) Export(c chunk) error {
	f, err := os.CreateTemp(s.tempDir, "sheetstream-*"+s.kind.Ext())
	if err != nil {
		c.doc.Close()
		return fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	f.Close()

	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()

	if s.pool == nil {
		return s.export(s.ctx, c, path)
	}

	// the document is closed after one attempt, so retries would hit a closed file
	future := s.pool.Submit(func(ctx context.Context) error {
		return dataflow.Permanent(s.export(ctx, c, path))
	})
	s.mu.Lock()
	s.futures = append(s.futures, future)
	s.mu.Unlock()
	return nil
}

func (s *ExportScheduler) export(ctx context.Context, c chunk, path string) (err error) {
	defer func() {
		if cerr := c.doc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing chunk %d: %w", c.seq, cerr)
		}
	}()

	if err := c.sheet.Finish(c.widths); err != nil {
		return fmt.Errorf("chunk %d: %w", c.seq, err)
	}
	if err := c.doc.SaveAs(path); err != nil {
		return fmt.Errorf("chunk %d: %w", c.seq, err)
	}
	s.logger.Debug().Int("chunk", c.seq).Str("path", path).Msg("chunk exported")

	if s.callback != nil {
		if err := s.callback(ctx, path); err != nil {
			return fmt.Errorf("chunk %d callback: %w", c.seq, err)
		}
	}
	return nil
}

// Join waits for every scheduled export and returns their joined errors.
func (s *ExportScheduler) Join() error {
	s.mu.Lock()
	futures := s.futures
	s.futures = nil
	s.mu.Unlock()

	if err := dataflow.WaitAll(futures...); err != nil {
		return err
	}
	return nil
}

// Paths returns the tracked files that still exist, in creation order.
func (s *ExportScheduler) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Replace swaps the tracked set, e.g. after the chunks were archived.
func (s *ExportScheduler) Replace(paths ...string) {
	s.mu.Lock()
	s.paths = append([]string(nil), paths...)
	s.mu.Unlock()
}

// Remove deletes every tracked file and forgets them.
func (s *ExportScheduler) Remove() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
