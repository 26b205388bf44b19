package excelstream

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/dataflow"
)

const (
	DefaultQueueCapacity = 1024
	DefaultTimeout       = time.Hour
	DefaultSheetName     = "Sheet"
)

// Option configures a Writer.
type Option func(*config)

type config struct {
	queueCapacity int
	pool          *dataflow.Pool
	callback      ChunkCallback
	capacity      int
	fixedTitles   bool
	resolver      StyleResolver
	kind          Kind
	sheetName     string
	rowLimit      int
	factory       DocumentFactory
	tempDir       string
	timeout       time.Duration
	logger        zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		queueCapacity: DefaultQueueCapacity,
		resolver:      DefaultStyles(),
		kind:          KindXLSX,
		sheetName:     DefaultSheetName,
		factory:       NewExcelizeDocument,
		timeout:       DefaultTimeout,
		logger:        zerolog.Nop(),
	}
}

// WithQueueCapacity bounds the number of rows waiting for the consumer.
func WithQueueCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueCapacity = n
		}
	}
}

// WithPool exports sealed chunks on pool instead of the consumer goroutine.
func WithPool(p *dataflow.Pool) Option {
	return func(c *config) {
		c.pool = p
	}
}

// WithChunkCallback registers fn to run after each chunk file is written.
func WithChunkCallback(fn ChunkCallback) Option {
	return func(c *config) {
		c.callback = fn
	}
}

// WithCapacity sets the number of rows per output document. 0 keeps a single document.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.capacity = n
		}
	}
}

// WithFixedTitles repeats the title rows on every sheet and freezes them.
func WithFixedTitles(fixed bool) Option {
	return func(c *config) {
		c.fixedTitles = fixed
	}
}

// WithStyleResolver replaces the default banded styles. nil disables styling.
func WithStyleResolver(r StyleResolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithKind selects the output format.
func WithKind(k Kind) Option {
	return func(c *config) {
		c.kind = k
	}
}

// WithSheetName sets the base sheet name; rolled sheets get a " (n)" suffix.
func WithSheetName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.sheetName = name
		}
	}
}

// WithSheetRowLimit overrides the per-sheet row limit of the selected kind.
func WithSheetRowLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.rowLimit = n
		}
	}
}

// WithDocumentFactory replaces the excelize backed documents.
func WithDocumentFactory(f DocumentFactory) Option {
	return func(c *config) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithTempDir sets the directory for chunk files and archives.
func WithTempDir(dir string) Option {
	return func(c *config) {
		c.tempDir = dir
	}
}

// WithTimeout bounds how long a push or a pull on the queue may block.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
