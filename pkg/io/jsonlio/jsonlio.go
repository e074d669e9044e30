// Package jsonlio reads and writes datasets as JSON Lines: one object per
// row, absent or null keys meaning missing values.
package jsonlio

import (
	"encoding/json"
	"io"
	"sort"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
	iox "github.com/wdm0006/forestfill/pkg/io/ioutils"
)

type Reader struct {
	dec  *json.Decoder
	c    io.Closer
	buf  []map[string]any
	keys []string
}

func Open(path string) (*Reader, error) {
	rc, err := iox.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{dec: json.NewDecoder(rc), c: rc}, nil
}

func (r *Reader) Close() error { return r.c.Close() }

// InferSchema samples up to sampleRows objects to fix the column set and
// kinds. Keys are sorted so the schema does not depend on map iteration.
func (r *Reader) InferSchema(sampleRows int) (ff.Schema, error) {
	if sampleRows <= 0 {
		sampleRows = 100
	}
	keysSet := map[string]struct{}{}
	for len(r.buf) < sampleRows {
		var m map[string]any
		if err := r.dec.Decode(&m); err != nil {
			if err == io.EOF {
				break
			}
			return ff.Schema{}, err
		}
		r.buf = append(r.buf, m)
		for k := range m {
			keysSet[k] = struct{}{}
		}
	}
	r.keys = make([]string, 0, len(keysSet))
	for k := range keysSet {
		r.keys = append(r.keys, k)
	}
	sort.Strings(r.keys)

	schema := ff.Schema{Columns: make([]ff.ColumnSchema, len(r.keys))}
	for i, k := range r.keys {
		schema.Columns[i] = ff.ColumnSchema{Name: k, Type: inferKind(r.buf, k)}
	}
	return schema, nil
}

func (r *Reader) ReadAll(schema ff.Schema) (*ff.Frame, error) {
	f := ff.NewFrame(schema)
	for _, m := range r.buf {
		setRow(f, schema, m)
	}
	r.buf = nil
	for {
		var m map[string]any
		if err := r.dec.Decode(&m); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		setRow(f, schema, m)
	}
	return f, nil
}

func setRow(f *ff.Frame, schema ff.Schema, m map[string]any) {
	f.AppendNullRow()
	row := f.Rows() - 1
	for _, cs := range schema.Columns {
		v, ok := m[cs.Name]
		if !ok || v == nil {
			continue
		}
		switch cs.Type {
		case ff.KindFloat:
			if x, ok := v.(float64); ok {
				_ = f.SetCell(row, cs.Name, x)
			}
		case ff.KindInt:
			if x, ok := v.(float64); ok {
				_ = f.SetCell(row, cs.Name, int64(x))
			}
		default:
			if x, ok := v.(string); ok {
				_ = f.SetCell(row, cs.Name, x)
			}
		}
	}
}

func inferKind(rows []map[string]any, key string) ff.Kind {
	num, integer, str := 0, 0, 0
	for _, m := range rows {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			num++
			if t == float64(int64(t)) {
				integer++
			}
		case string:
			str++
		}
	}
	if num > str {
		if integer == num {
			return ff.KindInt
		}
		return ff.KindFloat
	}
	return ff.KindString
}

// WriteAll writes a Frame as JSON Lines. Null cells are omitted from the row
// object.
func WriteAll(path string, f *ff.Frame) error {
	out, err := iox.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	enc := json.NewEncoder(out)
	for r := 0; r < f.Rows(); r++ {
		m := make(map[string]any, f.Cols())
		for _, cs := range f.Schema().Columns {
			col, _ := f.ColumnByName(cs.Name)
			switch cc := col.(type) {
			case *ff.FloatColumn:
				if v, ok := cc.Get(r); ok {
					m[cs.Name] = v
				}
			case *ff.IntColumn:
				if v, ok := cc.Get(r); ok {
					m[cs.Name] = v
				}
			case *ff.StringColumn:
				if v, ok := cc.Get(r); ok {
					m[cs.Name] = v
				}
			}
		}
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}
