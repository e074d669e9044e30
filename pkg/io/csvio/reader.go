package csvio

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
	iox "github.com/wdm0006/forestfill/pkg/io/ioutils"
)

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune // 0 means ','
	SampleRows int  // rows sampled for kind inference; default 100
}

type Reader struct {
	r     *csv.Reader
	c     io.Closer
	opt   ReaderOptions
	buf   [][]string
	names []string
}

// Open opens a CSV file (gzip-aware, "-" for stdin) and returns a Reader.
func Open(path string, opt ReaderOptions) (*Reader, error) {
	rc, err := iox.Open(path)
	if err != nil {
		return nil, err
	}
	rr := csv.NewReader(rc)
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	}
	return &Reader{r: rr, c: rc, opt: opt}, nil
}

// NewReaderFrom constructs a Reader from an arbitrary io.Reader.
func NewReaderFrom(r io.Reader, opt ReaderOptions) *Reader {
	rr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	}
	return &Reader{r: rr, opt: opt}
}

func (r *Reader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}

// InferSchema reads the header (if present) and samples rows to determine
// column kinds. Sampled rows are retained and replayed by ReadAll.
func (r *Reader) InferSchema() (ff.Schema, error) {
	rec, err := r.r.Read()
	if err != nil {
		return ff.Schema{}, err
	}
	if r.opt.HasHeader {
		r.names = make([]string, len(rec))
		for i := range rec {
			r.names[i] = strings.TrimSpace(rec[i])
		}
		r.names[0] = strings.TrimPrefix(r.names[0], "\uFEFF")
		rec, err = r.r.Read()
		if err != nil {
			return ff.Schema{}, err
		}
	} else {
		r.names = make([]string, len(rec))
		for i := range r.names {
			r.names[i] = "col_" + strconv.Itoa(i)
		}
	}

	sample := [][]string{rec}
	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	for i := 1; i < max; i++ {
		rr, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ff.Schema{}, err
		}
		cp := make([]string, len(rr))
		copy(cp, rr)
		sample = append(sample, cp)
	}

	kinds := inferKinds(sample)
	schema := ff.Schema{Columns: make([]ff.ColumnSchema, len(r.names))}
	for i := range r.names {
		schema.Columns[i] = ff.ColumnSchema{Name: r.names[i], Type: kinds[i]}
	}
	r.buf = sample
	return schema, nil
}

// ReadAll loads the remaining records into a Frame. Empty fields stay null.
func (r *Reader) ReadAll(schema ff.Schema) (*ff.Frame, error) {
	f := ff.NewFrame(schema)
	for _, rec := range r.buf {
		setRecord(f, schema, rec)
	}
	r.buf = nil
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		setRecord(f, schema, rec)
	}
	return f, nil
}

func setRecord(f *ff.Frame, schema ff.Schema, rec []string) {
	f.AppendNullRow()
	row := f.Rows() - 1
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			continue
		}
		val := strings.TrimSpace(rec[i])
		if val == "" || isNATokens(val) {
			continue
		}
		switch cs.Type {
		case ff.KindFloat:
			if x, err := strconv.ParseFloat(val, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case ff.KindInt:
			if x, err := strconv.ParseInt(val, 10, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		default:
			_ = f.SetCell(row, cs.Name, val)
		}
	}
}

// isNATokens recognizes the usual spellings of "missing" in CSV exports.
func isNATokens(v string) bool {
	switch strings.ToLower(v) {
	case "na", "n/a", "nan", "null", "none", "?":
		return true
	}
	return false
}

var numRe = regexp.MustCompile(`^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`)

func inferKinds(rows [][]string) []ff.Kind {
	if len(rows) == 0 {
		return nil
	}
	ncol := len(rows[0])
	kinds := make([]ff.Kind, ncol)
	for c := 0; c < ncol; c++ {
		num, integer, str := 0, 0, 0
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" || isNATokens(v) {
				continue
			}
			if numRe.MatchString(v) {
				num++
				if !strings.ContainsAny(v, ".eE") {
					integer++
				}
			} else {
				str++
			}
		}
		if num > str {
			if integer == num {
				kinds[c] = ff.KindInt
			} else {
				kinds[c] = ff.KindFloat
			}
		} else {
			kinds[c] = ff.KindString
		}
	}
	return kinds
}
