package parquetio

import (
	"errors"
	"io"
	"os"
	"sort"

	parquet "github.com/segmentio/parquet-go"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

type Reader struct {
	file   *os.File
	reader *parquet.GenericReader[map[string]any]
	schema ff.Schema
}

// OpenReader opens a Parquet file and infers a Frame schema from up to
// sampleRows rows.
func OpenReader(path string, sampleRows int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := parquet.NewGenericReader[map[string]any](f)
	if sampleRows <= 0 {
		sampleRows = 100
	}
	rows := make([]map[string]any, sampleRows)
	n, err := r.Read(rows)
	if err != nil && !isEOF(err) {
		_ = r.Close()
		_ = f.Close()
		return nil, err
	}
	schema := inferSchema(rows[:n])
	// The reader cannot unread, so reopen from the start.
	if err := r.Close(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Reader{file: f, reader: parquet.NewGenericReader[map[string]any](f), schema: schema}, nil
}

func (r *Reader) Close() error {
	_ = r.reader.Close()
	return r.file.Close()
}

func (r *Reader) Schema() ff.Schema { return r.schema }

func (r *Reader) ReadAll() (*ff.Frame, error) {
	f := ff.NewFrame(r.schema)
	buf := make([]map[string]any, 1024)
	for {
		n, err := r.reader.Read(buf)
		for i := 0; i < n; i++ {
			setRow(f, buf[i])
		}
		if err != nil {
			if isEOF(err) {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return f, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func inferSchema(rows []map[string]any) ff.Schema {
	keysSet := map[string]struct{}{}
	for _, m := range rows {
		for k := range m {
			keysSet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keysSet))
	for k := range keysSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	schema := ff.Schema{Columns: make([]ff.ColumnSchema, len(keys))}
	for i, k := range keys {
		nNum, nInt, nStr := 0, 0, 0
		for _, m := range rows {
			switch t := m[k].(type) {
			case float64:
				nNum++
				if t == float64(int64(t)) {
					nInt++
				}
			case int, int32, int64:
				nNum++
				nInt++
			case string, []byte:
				nStr++
			}
		}
		kind := ff.KindString
		if nNum > nStr {
			if nInt == nNum {
				kind = ff.KindInt
			} else {
				kind = ff.KindFloat
			}
		}
		schema.Columns[i] = ff.ColumnSchema{Name: k, Type: kind}
	}
	return schema
}

func setRow(f *ff.Frame, m map[string]any) {
	f.AppendNullRow()
	row := f.Rows() - 1
	for _, cs := range f.Schema().Columns {
		v, ok := m[cs.Name]
		if !ok || v == nil {
			continue
		}
		switch cs.Type {
		case ff.KindFloat:
			switch t := v.(type) {
			case float64:
				_ = f.SetCell(row, cs.Name, t)
			case int64:
				_ = f.SetCell(row, cs.Name, float64(t))
			case int32:
				_ = f.SetCell(row, cs.Name, float64(t))
			}
		case ff.KindInt:
			switch t := v.(type) {
			case int64:
				_ = f.SetCell(row, cs.Name, t)
			case int32:
				_ = f.SetCell(row, cs.Name, int64(t))
			case float64:
				_ = f.SetCell(row, cs.Name, int64(t))
			}
		default:
			switch t := v.(type) {
			case string:
				_ = f.SetCell(row, cs.Name, t)
			case []byte:
				_ = f.SetCell(row, cs.Name, string(t))
			}
		}
	}
}
