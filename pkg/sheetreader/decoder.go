package sheetreader

// rowSink receives decoder events. row returns errStopRead to unwind the
// decoder; any other error is fatal for the read.
type rowSink interface {
	startSheet(name string, index int)
	row(rowIndex int, cells []string, cellErr error) error
}

// selection decides which sheets are visited: all sheets, then names, then indices.
type selection struct {
	all     bool
	names   map[string]bool
	indices map[int]bool
}

func (s selection) want(name string, index int) bool {
	switch {
	case s.all:
		return true
	case len(s.names) > 0:
		return s.names[name]
	default:
		return s.indices[index]
	}
}

// decodeOptions carries decoder specific settings.
type decodeOptions struct {
	source       string
	charset      string
	xmlSizeLimit int64
}

type decodeFunc func(path string, sel selection, opts decodeOptions, sink rowSink) error

func decoderFor(f Format) decodeFunc {
	switch f {
	case FormatXLSX:
		return decodeXLSX
	case FormatXLS:
		return decodeXLS
	default:
		return decodeCSV
	}
}
