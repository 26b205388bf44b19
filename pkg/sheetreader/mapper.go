package sheetreader

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Mapper turns a decoded row into a T.
type Mapper[T any] func(RowView) (T, error)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01-02-06",
	"1/2/06 15:04",
	"02/01/2006",
}

var timeType = reflect.TypeOf(time.Time{})

type fieldMapping struct {
	index  []int
	col    int
	format string
}

// DefaultMapper maps rows onto T:
//   - []string receives the cells as is
//   - map[int]string receives column -> value
//   - structs (or pointers to structs) are filled field by field. A field
//     tagged `excel:"index:2,format:02/01/2006"` reads column 2; untagged
//     exported fields read the column matching their position among the
//     mapped fields. `excel:"-"` skips a field.
func DefaultMapper[T any]() (Mapper[T], error) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()

	switch {
	case t == reflect.TypeOf([]string(nil)):
		return func(v RowView) (T, error) {
			var out T
			cells := append([]string(nil), v.Cells...)
			reflect.ValueOf(&out).Elem().Set(reflect.ValueOf(cells))
			return out, nil
		}, nil
	case t == reflect.TypeOf(map[int]string(nil)):
		return func(v RowView) (T, error) {
			var out T
			m := make(map[int]string, len(v.Cells))
			for i, c := range v.Cells {
				m[i] = c
			}
			reflect.ValueOf(&out).Elem().Set(reflect.ValueOf(m))
			return out, nil
		}, nil
	}

	ptr := false
	st := t
	if st.Kind() == reflect.Ptr {
		ptr = true
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("sheetreader: cannot map rows onto %s", t)
	}

	fields, err := structFields(st)
	if err != nil {
		return nil, err
	}

	return func(v RowView) (T, error) {
		var out T
		target := reflect.New(st)
		for _, fm := range fields {
			raw := v.Get(fm.col)
			if raw == "" {
				continue
			}
			field := target.Elem().FieldByIndex(fm.index)
			if err := setField(field, raw, fm.format); err != nil {
				return out, fmt.Errorf("column %d (%s): %w", fm.col, st.FieldByIndex(fm.index).Name, err)
			}
		}
		if ptr {
			reflect.ValueOf(&out).Elem().Set(target)
		} else {
			reflect.ValueOf(&out).Elem().Set(target.Elem())
		}
		return out, nil
	}, nil
}

func structFields(st reflect.Type) ([]fieldMapping, error) {
	var fields []fieldMapping
	position := 0
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("excel")
		if tag == "-" {
			continue
		}
		fm := fieldMapping{index: f.Index, col: position}
		if err := parseExcelTag(&fm, tag); err != nil {
			return nil, fmt.Errorf("sheetreader: field %s: %w", f.Name, err)
		}
		fields = append(fields, fm)
		position++
	}
	return fields, nil
}

// parseExcelTag reads `index:N` and `format:layout`. A format may contain
// commas, so pieces without a key are glued back onto the previous value.
func parseExcelTag(fm *fieldMapping, tag string) error {
	if tag == "" {
		return nil
	}
	var key string
	values := map[string]string{}
	for _, part := range strings.Split(tag, ",") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) == 2 && (kv[0] == "index" || kv[0] == "format") {
			key = strings.TrimSpace(kv[0])
			values[key] = strings.TrimSpace(kv[1])
			continue
		}
		if key != "" {
			values[key] += "," + part
		}
	}
	if idx, ok := values["index"]; ok {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid index %q", idx)
		}
		fm.col = n
	}
	fm.format = values["format"]
	return nil
}

func setField(field reflect.Value, raw, format string) error {
	if field.Kind() == reflect.Ptr {
		v := reflect.New(field.Type().Elem())
		if err := setField(v.Elem(), raw, format); err != nil {
			return err
		}
		field.Set(v)
		return nil
	}

	if field.Type() == timeType {
		t, err := parseTime(raw, format)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, field.Type().Bits())
		if err != nil {
			// numeric cells may come back as "12.0"
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != float64(int64(f)) {
				return err
			}
			n = int64(f)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.ReplaceAll(raw, ",", ""), 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func parseTime(raw, format string) (time.Time, error) {
	if format != "" {
		return time.Parse(format, raw)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", raw)
}
