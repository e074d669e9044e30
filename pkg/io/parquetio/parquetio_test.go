package parquetio

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

func TestIsEOF(t *testing.T) {
	if !isEOF(io.EOF) {
		t.Fatal("io.EOF must end the read loop")
	}
	if !isEOF(fmt.Errorf("read rows: %w", io.EOF)) {
		t.Fatal("wrapped io.EOF must end the read loop")
	}
	if isEOF(errors.New("unexpected EOF marker in footer")) {
		t.Fatal("errors merely mentioning EOF must propagate")
	}
	if isEOF(nil) {
		t.Fatal("nil is not EOF")
	}
}

func TestParquetSchemaJSON(t *testing.T) {
	s := ff.Schema{Columns: []ff.ColumnSchema{
		{Name: "x", Type: ff.KindFloat},
		{Name: "n", Type: ff.KindInt},
		{Name: "tag", Type: ff.KindString},
	}}
	got := parquetSchemaJSON(s)
	for _, want := range []string{
		"name=x, repetitiontype=OPTIONAL, type=DOUBLE",
		"name=n, repetitiontype=OPTIONAL, type=INT64",
		"name=tag, repetitiontype=OPTIONAL, type=BYTE_ARRAY, convertedtype=UTF8",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("schema %s missing %q", got, want)
		}
	}
}

func TestInferSchemaFromRows(t *testing.T) {
	rows := []map[string]any{
		{"n": int64(1), "x": 1.5, "tag": "a"},
		{"n": int64(2), "x": 2.0, "tag": []byte("b")},
		{"x": 3.25},
	}
	s := inferSchema(rows)
	// sorted column order
	for i, want := range []string{"n", "tag", "x"} {
		if s.Columns[i].Name != want {
			t.Fatalf("column %d = %s, want %s", i, s.Columns[i].Name, want)
		}
	}
	kinds := map[string]ff.Kind{}
	for _, cs := range s.Columns {
		kinds[cs.Name] = cs.Type
	}
	if kinds["n"] != ff.KindInt || kinds["x"] != ff.KindFloat || kinds["tag"] != ff.KindString {
		t.Fatalf("kinds %v", kinds)
	}
}

func TestSetRowCoercions(t *testing.T) {
	s := ff.Schema{Columns: []ff.ColumnSchema{
		{Name: "x", Type: ff.KindFloat},
		{Name: "n", Type: ff.KindInt},
		{Name: "tag", Type: ff.KindString},
	}}
	f := ff.NewFrame(s)
	setRow(f, map[string]any{"x": int64(4), "n": int32(7), "tag": []byte("q")})
	setRow(f, map[string]any{"x": nil})

	x, _ := f.ColumnByName("x")
	if v, _ := x.(*ff.FloatColumn).Get(0); v != 4 {
		t.Fatalf("x[0] = %v", v)
	}
	if !x.IsNull(1) {
		t.Fatal("nil value must stay null")
	}
	n, _ := f.ColumnByName("n")
	if v, _ := n.(*ff.IntColumn).Get(0); v != 7 {
		t.Fatalf("n[0] = %v", v)
	}
	tag, _ := f.ColumnByName("tag")
	if v, _ := tag.(*ff.StringColumn).Get(0); v != "q" {
		t.Fatalf("tag[0] = %q", v)
	}
}
