package excelstream

import (
	"fmt"

	"github.com/rs/zerolog"
)

// chunkBuilder owns the document being filled. Only the consumer goroutine
// calls it, so none of its fields are guarded.
type chunkBuilder struct {
	kind        Kind
	sheetName   string
	rowLimit    int
	capacity    int
	fixedTitles bool
	resolver    StyleResolver
	factory     DocumentFactory
	scheduler   *ExportScheduler
	logger      zerolog.Logger

	titles []*Row

	doc      Document
	sheet    Sheet
	rowNum   int
	count    int
	sheetNum int
	widths   map[int]int
	band     Band
	chunks   int
	total    int
}

// open starts a fresh document with its first sheet and re-emits the titles.
func (b *chunkBuilder) open() error {
	doc, err := b.factory(b.kind)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	sheet, err := doc.NewSheet(b.sheetName)
	if err != nil {
		doc.Close()
		return err
	}
	if err := doc.FreezeRows(b.freezeRows()); err != nil {
		doc.Close()
		return err
	}
	b.doc, b.sheet = doc, sheet
	b.rowNum, b.count, b.sheetNum = 0, 0, 0
	b.widths = make(map[int]int)
	return b.emitTitles()
}

func (b *chunkBuilder) emitTitles() error {
	for _, t := range b.titles {
		if err := b.appendRow(t.clone()); err != nil {
			return err
		}
	}
	return nil
}

// setTitles styles and appends the title rows, then caches the styled copies.
func (b *chunkBuilder) setTitles(rows []*Row) error {
	if b.capacity > 0 && len(rows) >= b.capacity {
		return fmt.Errorf("%d title rows leave no room in chunks of %d rows", len(rows), b.capacity)
	}
	if b.fixedTitles && len(rows) >= b.rowLimit {
		return fmt.Errorf("%d title rows leave no room in sheets of %d rows", len(rows), b.rowLimit)
	}
	for _, r := range rows {
		if err := b.place(r); err != nil {
			return err
		}
	}
	b.titles = rows
	if b.fixedTitles {
		return b.doc.FreezeRows(len(rows))
	}
	return nil
}

// add places one data row.
func (b *chunkBuilder) add(r *Row) error {
	if err := b.place(r); err != nil {
		return err
	}
	b.total++
	return nil
}

// place appends r, rolling to a new document or sheet first when a limit was
// reached. A sheet roll that would re-emit fixed titles past the chunk
// capacity starts a new document instead.
func (b *chunkBuilder) place(r *Row) error {
	need := 1
	if b.rowNum >= b.rowLimit && b.fixedTitles {
		need += len(b.titles)
	}
	if b.capacity > 0 && b.count+need > b.capacity {
		if err := b.seal(); err != nil {
			return err
		}
		if err := b.open(); err != nil {
			return err
		}
	}
	if b.rowNum >= b.rowLimit {
		if err := b.nextSheet(); err != nil {
			return err
		}
	}
	b.style(r)
	return b.appendRow(r)
}

func (b *chunkBuilder) style(r *Row) {
	if r.FromTemplate || b.resolver == nil {
		return
	}
	b.band = b.band.Next()
	for _, c := range r.Cells {
		c.Style = b.resolver.Resolve(b.band, c)
	}
}

func (b *chunkBuilder) appendRow(r *Row) error {
	r.Index = b.rowNum
	for _, c := range r.Cells {
		c.Row = b.rowNum
	}
	if err := b.sheet.AppendRow(r); err != nil {
		return fmt.Errorf("appending row %d to %s: %w", b.rowNum, b.sheet.Name(), err)
	}
	b.rowNum++
	b.count++
	for col, w := range r.ColWidths {
		if w > b.widths[col] {
			b.widths[col] = w
		}
	}
	return nil
}

func (b *chunkBuilder) nextSheet() error {
	if err := b.sheet.Finish(b.widths); err != nil {
		return err
	}
	b.sheetNum++
	name := fmt.Sprintf("%s (%d)", b.sheetName, b.sheetNum)
	sheet, err := b.doc.NewSheet(name)
	if err != nil {
		return err
	}
	b.logger.Debug().Str("sheet", name).Int("chunk", b.chunks+1).Msg("sheet limit reached")
	b.sheet = sheet
	b.rowNum = 0
	b.widths = make(map[int]int)
	if b.fixedTitles {
		return b.emitTitles()
	}
	return nil
}

func (b *chunkBuilder) freezeRows() int {
	if b.fixedTitles {
		return len(b.titles)
	}
	return 0
}

// seal hands the current document to the scheduler. The builder holds no
// reference to it afterwards.
func (b *chunkBuilder) seal() error {
	if b.doc == nil {
		return nil
	}
	b.chunks++
	c := chunk{
		seq:    b.chunks,
		doc:    b.doc,
		sheet:  b.sheet,
		widths: b.widths,
	}
	b.doc, b.sheet, b.widths = nil, nil, nil
	b.logger.Debug().Int("chunk", c.seq).Int("rows", b.count).Msg("chunk sealed")
	return b.scheduler.Export(c)
}

// finish completes the open sheet and returns the document.
func (b *chunkBuilder) finish() (Document, error) {
	if b.doc == nil {
		return nil, ErrNotStarted
	}
	if err := b.sheet.Finish(b.widths); err != nil {
		return nil, err
	}
	doc := b.doc
	b.doc, b.sheet = nil, nil
	return doc, nil
}

// close releases the open document, if any.
func (b *chunkBuilder) close() {
	if b.doc != nil {
		b.doc.Close()
		b.doc, b.sheet = nil, nil
	}
}
