package sheetreader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Format is the container format detected from a file's leading bytes.
type Format int

const (
	// FormatCSV is delimited text; anything that is not a known container.
	FormatCSV Format = iota
	// FormatXLSX is a zip container (Office Open XML workbook).
	FormatXLSX
	// FormatXLS is an OLE2 compound document (legacy binary workbook).
	FormatXLS
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "csv"
	}
}

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Sniff classifies r by its first bytes. It never looks at file names.
func Sniff(r io.Reader) (Format, error) {
	head := make([]byte, len(ole2Magic))
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatCSV, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, ole2Magic):
		return FormatXLS, nil
	default:
		return FormatCSV, nil
	}
}

// SniffFile classifies the file at path.
func SniffFile(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatCSV, err
	}
	defer f.Close()

	format, err := Sniff(f)
	if err != nil {
		return FormatCSV, fmt.Errorf("reading magic bytes: %w", err)
	}
	return format, nil
}
