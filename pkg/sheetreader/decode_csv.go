package sheetreader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeCSV treats delimited text as a single sheet at index 0 that is read
// regardless of the sheet selection.
func decodeCSV(path string, _ selection, opts decodeOptions, sink rowSink) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decodeCharset(f, opts.charset)
	if err != nil {
		return err
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	sink.startSheet(opts.source, 0)
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return fmt.Errorf("reading record %d: %w", i, err)
		}
		if err := sink.row(i, rec, err); err != nil {
			return err
		}
	}
}

// decodeCharset wraps r so it yields UTF-8. A byte order mark overrides charset.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" {
		charset = "utf-8"
	}
	enc, err := htmlindex.Get(strings.ToLower(charset))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
