package excelstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/pipeline"
)

// message is what travels through the queue: a data row, a batch of title
// rows, or the end marker. The end marker is ordered behind every row pushed
// before it.
type message struct {
	row    *Row
	titles []*Row
	end    bool
}

// Writer streams rows from any number of producers into chunked spreadsheet
// documents. One consumer goroutine owns the documents; producers only ever
// touch the queue.
type Writer struct {
	cfg    *config
	logger zerolog.Logger
	queue  chan message

	block     *pipeline.Block
	builder   *chunkBuilder
	scheduler *ExportScheduler

	started   atomic.Bool
	cancelled atomic.Bool
	titlesSet atomic.Bool
	startTime time.Time

	mu      sync.RWMutex
	stopped bool
}

// NewWriter creates a Writer. Call Start before appending rows.
func NewWriter(opts ...Option) *Writer {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.rowLimit == 0 {
		cfg.rowLimit = cfg.kind.RowLimit()
	}
	return &Writer{
		cfg:    cfg,
		logger: cfg.logger,
		queue:  make(chan message, cfg.queueCapacity),
	}
}

// Start opens the first document and spawns the consumer. ctx bounds the
// consumer and the exports it schedules.
func (w *Writer) Start(ctx context.Context) error {
	if w.started.Load() {
		return fmt.Errorf("excelstream: writer already started")
	}
	w.scheduler = NewExportScheduler(ctx, w.cfg.kind, w.cfg.tempDir, w.cfg.pool, w.cfg.callback, w.logger)
	w.builder = &chunkBuilder{
		kind:        w.cfg.kind,
		sheetName:   w.cfg.sheetName,
		rowLimit:    w.cfg.rowLimit,
		capacity:    w.cfg.capacity,
		fixedTitles: w.cfg.fixedTitles,
		resolver:    w.cfg.resolver,
		factory:     w.cfg.factory,
		scheduler:   w.scheduler,
		logger:      w.logger,
	}
	if err := w.builder.open(); err != nil {
		return &BuildError{Op: "start", Err: err}
	}

	w.block = pipeline.NewBlock(ctx)
	w.startTime = time.Now()
	w.started.Store(true)
	w.block.Go(w.consume)

	w.logger.Info().
		Str("kind", w.cfg.kind.String()).
		Int("capacity", w.cfg.capacity).
		Int("queue", w.cfg.queueCapacity).
		Bool("async", w.cfg.pool != nil).
		Msg("stream writer started")
	return nil
}

// Append queues a row. It blocks while the queue is full, for at most the
// configured timeout. A nil row is dropped.
func (w *Writer) Append(r *Row) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	if err := w.rejected("append"); err != nil {
		return err
	}
	if r == nil {
		w.logger.Warn().Msg("nil row discarded")
		return nil
	}
	return w.push(message{row: r}, "append")
}

// AppendTitles caches the title rows and queues them. It may be called once.
func (w *Writer) AppendTitles(rows ...*Row) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	if err := w.rejected("append"); err != nil {
		return err
	}
	if !w.titlesSet.CompareAndSwap(false, true) {
		return ErrTitlesAlreadySet
	}
	titles := make([]*Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			titles = append(titles, r.clone())
		}
	}
	return w.push(message{titles: titles}, "append")
}

// rejected reports whether new rows must be refused. Callers hold w.mu.
func (w *Writer) rejected(op string) error {
	if cause := w.block.Err(); cause != nil {
		return &BuildError{Op: op, Err: fmt.Errorf("%w: %w", ErrRejected, cause)}
	}
	if w.stopped {
		return ErrRejected
	}
	return nil
}

func (w *Writer) push(msg message, op string) error {
	timer := time.NewTimer(w.cfg.timeout)
	defer timer.Stop()

	select {
	case w.queue <- msg:
		return nil
	case <-w.block.Completion():
		if cause := w.block.Err(); cause != nil {
			return &BuildError{Op: op, Err: fmt.Errorf("%w: %w", ErrRejected, cause)}
		}
		return ErrRejected
	case <-timer.C:
		cause := fmt.Errorf("%w: push blocked for %s", ErrTimeout, w.cfg.timeout)
		w.block.Fault(cause)
		return &BuildError{Op: op, Err: cause}
	}
}

// consume is the only goroutine that mutates the builder until it returns.
func (w *Writer) consume(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panicked: %v", r)
		}
		if err != nil || w.block.Err() != nil {
			w.logger.Error().Err(err).Msg("stream writer failed, releasing resources")
			w.release()
		}
	}()

	timer := time.NewTimer(w.cfg.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if w.cancelled.Load() {
				return nil
			}
			return context.Cause(ctx)
		case <-timer.C:
			return fmt.Errorf("%w: no row received for %s", ErrTimeout, w.cfg.timeout)
		case msg := <-w.queue:
			switch {
			case msg.end:
				w.logger.Info().Int("rows", w.builder.total).Msg("stream drained")
				return nil
			case msg.titles != nil:
				if err := w.builder.setTitles(msg.titles); err != nil {
					return err
				}
			default:
				if err := w.builder.add(msg.row); err != nil {
					return err
				}
			}
		}
		timer.Reset(w.cfg.timeout)
	}
}

// terminate queues the end marker and waits until the consumer has consumed
// everything queued before it.
func (w *Writer) terminate(op string) error {
	if !w.started.Load() {
		return ErrNotStarted
	}
	w.mu.Lock()
	if err := w.rejected(op); err != nil {
		w.mu.Unlock()
		return err
	}
	w.stopped = true
	err := w.push(message{end: true}, op)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.block.Wait(); err != nil {
		return &BuildError{Op: op, Err: err}
	}
	return nil
}

// fail records a failure found after the consumer exited and releases everything.
func (w *Writer) fail(op string, err error) error {
	w.block.Fault(err)
	w.release()
	return &BuildError{Op: op, Err: err}
}

// Build drains the queue and returns the open document without writing it
// to disk. The caller owns the returned document and must Close it. Chunks
// sealed earlier stay on disk and are listed by Paths.
func (w *Writer) Build() (Document, error) {
	if err := w.terminate("build"); err != nil {
		return nil, err
	}
	if err := w.scheduler.Join(); err != nil {
		return nil, w.fail("export", err)
	}
	doc, err := w.builder.finish()
	if err != nil {
		return nil, w.fail("build", err)
	}
	w.logger.Info().Dur("took", time.Since(w.startTime)).Msg("build finished")
	return doc, nil
}

// BuildAsPaths drains the queue, flushes the last chunk, waits for every
// export and returns the chunk files that exist on disk.
func (w *Writer) BuildAsPaths() ([]string, error) {
	if err := w.terminate("build"); err != nil {
		return nil, err
	}
	if err := w.builder.seal(); err != nil {
		return nil, w.fail("export", err)
	}
	if err := w.scheduler.Join(); err != nil {
		return nil, w.fail("export", err)
	}
	paths := w.scheduler.Paths()
	w.logger.Info().
		Int("files", len(paths)).
		Dur("took", time.Since(w.startTime)).
		Msg("build finished")
	return paths, nil
}

// BuildAsZip packs every chunk file into one archive named after name and
// removes the chunk files. The archive is the only artifact tracked afterwards.
func (w *Writer) BuildAsZip(name string) (string, error) {
	paths, err := w.BuildAsPaths()
	if err != nil {
		return "", err
	}
	zipPath, err := archiveChunks(w.cfg.tempDir, name, w.cfg.kind.Ext(), paths)
	if err != nil {
		return "", w.fail("zip", err)
	}
	if err := w.scheduler.Remove(); err != nil {
		w.logger.Warn().Err(err).Msg("removing chunk files")
	}
	w.scheduler.Replace(zipPath)
	return zipPath, nil
}

// Cancel stops the writer without producing anything and deletes every
// temp file it created. It is safe to call after a build or a failure.
func (w *Writer) Cancel() {
	if !w.started.Load() {
		return
	}
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.cancelled.Store(true)
	w.block.Cancel()
	w.block.Wait()
	w.release()
	w.logger.Info().Msg("stream writer cancelled")
}

// Paths lists the tracked files that exist on disk.
func (w *Writer) Paths() []string {
	if !w.started.Load() {
		return nil
	}
	return w.scheduler.Paths()
}

// Err returns the fault that broke the writer, if any.
func (w *Writer) Err() error {
	if !w.started.Load() {
		return nil
	}
	return w.block.Err()
}

func (w *Writer) release() {
	if err := w.scheduler.Join(); err != nil {
		w.logger.Warn().Err(err).Msg("export failed during release")
	}
	w.builder.close()
	if err := w.scheduler.Remove(); err != nil {
		w.logger.Warn().Err(err).Msg("removing temp files")
	}
}
