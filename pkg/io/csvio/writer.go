package csvio

import (
	"encoding/csv"
	"strconv"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
	iox "github.com/wdm0006/forestfill/pkg/io/ioutils"
)

type WriterOptions struct {
	Delimiter rune // default ','
}

// WriteAll writes a Frame to a CSV file with headers. Null cells become empty
// fields.
func WriteAll(path string, f *ff.Frame, opt WriterOptions) error {
	out, err := iox.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	w := csv.NewWriter(out)
	if opt.Delimiter != 0 {
		w.Comma = opt.Delimiter
	}

	hdr := make([]string, len(f.Schema().Columns))
	for i, cs := range f.Schema().Columns {
		hdr[i] = cs.Name
	}
	if err := w.Write(hdr); err != nil {
		return err
	}

	for r := 0; r < f.Rows(); r++ {
		row := make([]string, len(hdr))
		for c, cs := range f.Schema().Columns {
			col, _ := f.ColumnByName(cs.Name)
			switch cc := col.(type) {
			case *ff.FloatColumn:
				if v, ok := cc.Get(r); ok {
					row[c] = strconv.FormatFloat(v, 'g', -1, 64)
				}
			case *ff.IntColumn:
				if v, ok := cc.Get(r); ok {
					row[c] = strconv.FormatInt(v, 10)
				}
			case *ff.StringColumn:
				if v, ok := cc.Get(r); ok {
					row[c] = v
				}
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
