package excelstream

import (
	"errors"
	"os"
	"sync"
)

type fakeSheet struct {
	name   string
	rows   []*Row
	widths map[int]int
	block  chan struct{}
}

func (s *fakeSheet) Name() string { return s.name }

func (s *fakeSheet) AppendRow(r *Row) error {
	if s.block != nil {
		<-s.block
	}
	s.rows = append(s.rows, r)
	return nil
}

func (s *fakeSheet) Finish(widths map[int]int) error {
	s.widths = make(map[int]int, len(widths))
	for k, v := range widths {
		s.widths[k] = v
	}
	return nil
}

type fakeDoc struct {
	factory *fakeFactory
	sheets  []*fakeSheet
	frozen  int
	saved   string
	closed  bool
}

func (d *fakeDoc) Kind() Kind { return KindXLSX }

func (d *fakeDoc) NewSheet(name string) (Sheet, error) {
	s := &fakeSheet{name: name, block: d.factory.block}
	if d.factory.failOnRow > 0 {
		return &failingSheet{fakeSheet: s, factory: d.factory}, d.add(s)
	}
	return s, d.add(s)
}

func (d *fakeDoc) add(s *fakeSheet) error {
	d.sheets = append(d.sheets, s)
	return nil
}

func (d *fakeDoc) FreezeRows(n int) error {
	d.frozen = n
	return nil
}

func (d *fakeDoc) SaveAs(path string) error {
	d.factory.mu.Lock()
	d.factory.saves++
	d.factory.mu.Unlock()
	if d.closed {
		return errors.New("save after close")
	}
	if d.factory.saveErr != nil {
		return d.factory.saveErr
	}
	d.saved = path
	return os.WriteFile(path, []byte("chunk"), 0o600)
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDoc) rowCount() int {
	n := 0
	for _, s := range d.sheets {
		n += len(s.rows)
	}
	return n
}

type failingSheet struct {
	*fakeSheet
	factory *fakeFactory
}

func (s *failingSheet) AppendRow(r *Row) error {
	s.factory.mu.Lock()
	s.factory.appended++
	n := s.factory.appended
	s.factory.mu.Unlock()
	if n >= s.factory.failOnRow {
		return errSheetBroken
	}
	return s.fakeSheet.AppendRow(r)
}

var errSheetBroken = errors.New("sheet broken")

// fakeFactory records every document it hands out.
type fakeFactory struct {
	mu        sync.Mutex
	docs      []*fakeDoc
	saveErr   error
	failOnRow int
	appended  int
	saves     int
	block     chan struct{}
}

func (f *fakeFactory) New(kind Kind) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &fakeDoc{factory: f}
	f.docs = append(f.docs, d)
	return d, nil
}

func (f *fakeFactory) all() []*fakeDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeDoc(nil), f.docs...)
}
