package sheetreader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// StreamSource names the single sheet of CSV input handed over as an io.Reader.
const StreamSource = "stream"

// Handler receives each mapped row. Returning false stops the whole read.
// The context is only valid for the duration of the call.
type Handler[T any] func(T, *RowContext) bool

// Each delivers every row.
func Each[T any](fn func(T)) Handler[T] {
	return func(v T, _ *RowContext) bool {
		fn(v)
		return true
	}
}

// EachContext delivers every row together with its position.
func EachContext[T any](fn func(T, RowContext)) Handler[T] {
	return func(v T, rc *RowContext) bool {
		fn(v, *rc)
		return true
	}
}

// While delivers rows until fn returns false.
func While[T any](fn func(T) bool) Handler[T] {
	return func(v T, _ *RowContext) bool {
		return fn(v)
	}
}

// WhileContext delivers rows with their position until fn returns false.
func WhileContext[T any](fn func(T, RowContext) bool) Handler[T] {
	return func(v T, rc *RowContext) bool {
		return fn(v, *rc)
	}
}

type readConfig[T any] struct {
	sel           selection
	rowFilter     func(RowView) bool
	beanFilter    func(T) bool
	charset       string
	xmlSizeLimit  int64
	trim          bool
	exceptionally func(error, RowContext) bool
	onStartSheet  func(name string, index int)
	mapper        Mapper[T]
	validate      *validator.Validate
	logger        zerolog.Logger
}

// Reader reads rows of CSV, xlsx or xls input into T. Configure it with the
// builder methods, then call one of the Read methods. The configuration is
// copied when a read starts, so changing it mid-read has no effect.
type Reader[T any] struct {
	cfg readConfig[T]
}

// Of returns a Reader that reads the first sheet, trims cells and maps rows
// with DefaultMapper.
func Of[T any]() *Reader[T] {
	return &Reader[T]{cfg: readConfig[T]{
		sel:    selection{indices: map[int]bool{0: true}},
		trim:   true,
		logger: zerolog.Nop(),
	}}
}

// Sheets selects sheets by 0-based index.
func (r *Reader[T]) Sheets(indices ...int) *Reader[T] {
	r.cfg.sel.indices = make(map[int]bool, len(indices))
	for _, i := range indices {
		r.cfg.sel.indices[i] = true
	}
	return r
}

// SheetNames selects sheets by name. It takes precedence over Sheets.
func (r *Reader[T]) SheetNames(names ...string) *Reader[T] {
	r.cfg.sel.names = make(map[string]bool, len(names))
	for _, n := range names {
		r.cfg.sel.names[n] = true
	}
	return r
}

// AllSheets reads every sheet in workbook order.
func (r *Reader[T]) AllSheets() *Reader[T] {
	r.cfg.sel.all = true
	return r
}

// RowFilter drops rows before they are mapped.
func (r *Reader[T]) RowFilter(fn func(RowView) bool) *Reader[T] {
	r.cfg.rowFilter = fn
	return r
}

// BeanFilter drops mapped values before they reach the handler.
func (r *Reader[T]) BeanFilter(fn func(T) bool) *Reader[T] {
	r.cfg.beanFilter = fn
	return r
}

// Charset sets the encoding of CSV input. A byte order mark wins over it.
func (r *Reader[T]) Charset(name string) *Reader[T] {
	r.cfg.charset = name
	return r
}

// XMLSizeLimit spills xlsx worksheets larger than n bytes of XML to temp
// files while decoding. Zero keeps excelize's default.
func (r *Reader[T]) XMLSizeLimit(n int64) *Reader[T] {
	r.cfg.xmlSizeLimit = n
	return r
}

// NoTrim keeps leading and trailing whitespace in cells.
func (r *Reader[T]) NoTrim() *Reader[T] {
	r.cfg.trim = false
	return r
}

// Exceptionally sets the handler for row failures. Returning true aborts the
// read without an error; false skips the row.
func (r *Reader[T]) Exceptionally(fn func(error, RowContext) bool) *Reader[T] {
	r.cfg.exceptionally = fn
	return r
}

// OnStartSheet is called before the first row of every visited sheet.
func (r *Reader[T]) OnStartSheet(fn func(name string, index int)) *Reader[T] {
	r.cfg.onStartSheet = fn
	return r
}

// Mapper replaces DefaultMapper.
func (r *Reader[T]) Mapper(m Mapper[T]) *Reader[T] {
	r.cfg.mapper = m
	return r
}

// Validate runs v.Struct on every mapped struct value. Failures are row failures.
func (r *Reader[T]) Validate(v *validator.Validate) *Reader[T] {
	r.cfg.validate = v
	return r
}

// Logger sets the logger used for sheet starts and skipped rows.
func (r *Reader[T]) Logger(l zerolog.Logger) *Reader[T] {
	r.cfg.logger = l
	return r
}

// ReadFile collects every delivered row of the file at path.
func (r *Reader[T]) ReadFile(path string) ([]T, error) {
	var out []T
	err := r.ReadFileThen(path, Each(func(v T) { out = append(out, v) }))
	return out, err
}

// Read collects every delivered row of src.
func (r *Reader[T]) Read(src io.Reader) ([]T, error) {
	var out []T
	err := r.ReadThen(src, Each(func(v T) { out = append(out, v) }))
	return out, err
}

// ReadThen spools src to a temporary file and streams it to h.
func (r *Reader[T]) ReadThen(src io.Reader, h Handler[T]) error {
	tmp, err := os.CreateTemp("", "sheetreader-*")
	if err != nil {
		return fmt.Errorf("sheetreader: spooling input: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("sheetreader: spooling input: %w", err)
	}
	return r.read(tmp.Name(), StreamSource, h)
}

// ReadFileThen streams the file at path to h.
func (r *Reader[T]) ReadFileThen(path string, h Handler[T]) error {
	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return r.read(path, source, h)
}

func (r *Reader[T]) read(path, source string, h Handler[T]) error {
	cfg := r.snapshot()
	if cfg.mapper == nil {
		m, err := DefaultMapper[T]()
		if err != nil {
			return err
		}
		cfg.mapper = m
	}
	if cfg.exceptionally == nil {
		cfg.exceptionally = logAndContinue(cfg.logger)
	}

	format, err := SniffFile(path)
	if err != nil {
		return &ReadError{Source: source, Format: format, Err: err}
	}

	d := &dispatcher[T]{cfg: cfg, handler: h, validateStruct: isStruct[T]()}
	start := time.Now()
	err = decoderFor(format)(path, cfg.sel, decodeOptions{
		source:       source,
		charset:      cfg.charset,
		xmlSizeLimit: cfg.xmlSizeLimit,
	}, d)
	if err != nil && !errors.Is(err, errStopRead) {
		return &ReadError{Source: source, Format: format, Err: err}
	}
	cfg.logger.Debug().
		Str("source", source).
		Stringer("format", format).
		Int("rows", d.delivered).
		Dur("elapsed", time.Since(start)).
		Msg("read finished")
	return nil
}

func (r *Reader[T]) snapshot() readConfig[T] {
	cfg := r.cfg
	cfg.sel.names = copySet(r.cfg.sel.names)
	cfg.sel.indices = copySet(r.cfg.sel.indices)
	return cfg
}

func copySet[K comparable](m map[K]bool) map[K]bool {
	if m == nil {
		return nil
	}
	out := make(map[K]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func logAndContinue(l zerolog.Logger) func(error, RowContext) bool {
	return func(err error, rc RowContext) bool {
		l.Warn().Err(err).
			Str("sheet", rc.SheetName).
			Int("row", rc.RowIndex).
			Msg("skipping row")
		return false
	}
}

func isStruct[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// dispatcher runs the per row steps and turns handler decisions into errStopRead.
type dispatcher[T any] struct {
	cfg            readConfig[T]
	handler        Handler[T]
	validateStruct bool
	current        RowContext
	delivered      int
}

func (d *dispatcher[T]) startSheet(name string, index int) {
	d.current = RowContext{SheetName: name, SheetIndex: index}
	d.cfg.logger.Debug().Str("sheet", name).Int("index", index).Msg("start sheet")
	if d.cfg.onStartSheet != nil {
		d.cfg.onStartSheet(name, index)
	}
}

func (d *dispatcher[T]) row(rowIndex int, cells []string, cellErr error) error {
	d.current.RowIndex = rowIndex
	stop, err := d.process(cells, cellErr)
	if err != nil {
		if d.cfg.exceptionally(err, d.current) {
			return errStopRead
		}
		return nil
	}
	if stop {
		return errStopRead
	}
	return nil
}

func (d *dispatcher[T]) process(cells []string, cellErr error) (stop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sheetreader: row callback panicked: %v", r)
		}
	}()
	if cellErr != nil {
		return false, cellErr
	}
	if d.cfg.trim {
		for i, c := range cells {
			cells[i] = strings.TrimSpace(c)
		}
	}

	view := RowView{RowContext: d.current, Cells: cells}
	if d.cfg.rowFilter != nil && !d.cfg.rowFilter(view) {
		return false, nil
	}
	v, err := d.cfg.mapper(view)
	if err != nil {
		return false, err
	}
	if d.cfg.validate != nil && d.validateStruct {
		if err := d.cfg.validate.Struct(v); err != nil {
			return false, err
		}
	}
	if d.cfg.beanFilter != nil && !d.cfg.beanFilter(v) {
		return false, nil
	}

	rc := d.current
	d.delivered++
	return !d.handler(v, &rc), nil
}
