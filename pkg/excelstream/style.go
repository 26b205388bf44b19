package excelstream

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// CellStyle defines the visual style of a cell.
// A nil *CellStyle leaves the cell with the document default.
type CellStyle struct {
	FontName   string  `yaml:"font_name"`
	FontSize   float64 `yaml:"font_size"`
	FontBold   bool    `yaml:"bold"`
	FontItalic bool    `yaml:"italic"`
	FontColor  string  `yaml:"font_color"`

	FillColor   string `yaml:"fill_color"`
	FillPattern int    `yaml:"fill_pattern"`

	Alignment     string `yaml:"align"`  // "left", "center", "right"
	VerticalAlign string `yaml:"valign"` // "top", "middle", "bottom"

	BorderStyle string `yaml:"border"`
	BorderColor string `yaml:"border_color"`

	NumberFormat string `yaml:"number_format"`

	WrapText bool `yaml:"wrap_text"`
}

// StyleBuilder provides a fluent API for building cell styles
type StyleBuilder struct {
	style *CellStyle
}

// NewStyleBuilder creates a new style builder with default values
func NewStyleBuilder() *StyleBuilder {
	return &StyleBuilder{
		style: &CellStyle{
			FontName:      "Arial",
			FontSize:      10,
			Alignment:     "left",
			VerticalAlign: "middle",
		},
	}
}

// Font sets the font properties
func (b *StyleBuilder) Font(name string, size float64) *StyleBuilder {
	b.style.FontName = name
	b.style.FontSize = size
	return b
}

// Bold sets the font to bold
func (b *StyleBuilder) Bold() *StyleBuilder {
	b.style.FontBold = true
	return b
}

// Italic sets the font to italic
func (b *StyleBuilder) Italic() *StyleBuilder {
	b.style.FontItalic = true
	return b
}

// FontColor sets the font color (hex format)
func (b *StyleBuilder) FontColor(color string) *StyleBuilder {
	b.style.FontColor = color
	return b
}

// Fill sets the cell background color
func (b *StyleBuilder) Fill(color string) *StyleBuilder {
	b.style.FillColor = color
	b.style.FillPattern = 1
	return b
}

// Align sets the horizontal alignment
func (b *StyleBuilder) Align(alignment string) *StyleBuilder {
	b.style.Alignment = alignment
	return b
}

// Border sets the border style
func (b *StyleBuilder) Border(style, color string) *StyleBuilder {
	b.style.BorderStyle = style
	b.style.BorderColor = color
	return b
}

// NumberFormat sets the number format
func (b *StyleBuilder) NumberFormat(format string) *StyleBuilder {
	b.style.NumberFormat = format
	return b
}

// WrapText enables text wrapping
func (b *StyleBuilder) WrapText() *StyleBuilder {
	b.style.WrapText = true
	return b
}

// Build returns the built style
func (b *StyleBuilder) Build() *CellStyle {
	return b.style
}

// Band is the row banding state. The consumer owns it and advances it once per
// styled row.
type Band int

const (
	BandEven Band = iota
	BandOdd
)

// Next returns the opposite band.
func (b Band) Next() Band {
	if b == BandEven {
		return BandOdd
	}
	return BandEven
}

// StyleResolver maps a cell to its style for the given band.
// Implementations are only called from the consumer goroutine.
type StyleResolver interface {
	Resolve(band Band, cell *Cell) *CellStyle
}

// StyleSet is the header and body style used for one band.
type StyleSet struct {
	Header *CellStyle `yaml:"header"`
	Body   *CellStyle `yaml:"body"`
}

type styleKey struct {
	band   Band
	header bool
	col    int
	typ    ContentType
	format string
}

// BandedStyles alternates between two style sets. Body styles are derived per
// content type and format and memoized so every distinct combination maps to
// a single *CellStyle.
type BandedStyles struct {
	Even StyleSet `yaml:"even"`
	Odd  StyleSet `yaml:"odd"`

	// Columns overrides the body style of individual columns (0-based).
	Columns map[int]*CellStyle `yaml:"columns"`

	cache map[styleKey]*CellStyle
}

// DefaultStyles returns a blue header with lightly striped body rows.
func DefaultStyles() *BandedStyles {
	header := func() *CellStyle {
		return NewStyleBuilder().
			Font("Arial", 11).
			Bold().
			FontColor("#FFFFFF").
			Fill("#4472C4").
			Align("center").
			Border("thin", "#D9D9D9").
			Build()
	}
	return &BandedStyles{
		Even: StyleSet{
			Header: header(),
			Body:   NewStyleBuilder().Border("thin", "#D9D9D9").Build(),
		},
		Odd: StyleSet{
			Header: header(),
			Body:   NewStyleBuilder().Fill("#F2F2F2").Border("thin", "#D9D9D9").Build(),
		},
	}
}

// LoadStyleSheet decodes a YAML style sheet. Missing sets fall back to DefaultStyles.
func LoadStyleSheet(r io.Reader) (*BandedStyles, error) {
	s := DefaultStyles()
	if err := yaml.NewDecoder(r).Decode(s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding style sheet: %w", err)
	}
	return s, nil
}

func (s *BandedStyles) set(band Band) StyleSet {
	if band == BandOdd {
		return s.Odd
	}
	return s.Even
}

// Resolve implements StyleResolver.
func (s *BandedStyles) Resolve(band Band, cell *Cell) *CellStyle {
	if s.cache == nil {
		s.cache = make(map[styleKey]*CellStyle)
	}
	key := styleKey{band: band, header: cell.Header, col: -1, typ: cell.Type, format: cell.Format}
	if cell.Header {
		key.typ, key.format = ContentText, ""
	} else if _, ok := s.Columns[cell.Col]; ok {
		key.col = cell.Col
	}
	if st, ok := s.cache[key]; ok {
		return st
	}

	set := s.set(band)
	var st *CellStyle
	if cell.Header {
		st = set.Header
	} else {
		st = s.bodyStyle(set.Body, key)
	}
	s.cache[key] = st
	return st
}

func (s *BandedStyles) bodyStyle(base *CellStyle, key styleKey) *CellStyle {
	if key.col >= 0 {
		base = s.Columns[key.col]
	}
	var st CellStyle
	if base != nil {
		st = *base
	}
	switch {
	case key.format != "":
		st.NumberFormat = key.format
	case key.typ == ContentDate:
		st.NumberFormat = DefaultDateFormat
	}
	if key.typ == ContentNumber && st.Alignment == "left" {
		st.Alignment = "right"
	}
	return &st
}
