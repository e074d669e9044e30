// Package encode maps categorical columns to integer codes and back. Nominal
// columns are coded in first-encountered order; ordinal columns are coded in
// lexicographic label order so the integer encoding preserves a meaningful
// order.
package encode

import (
	"sort"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// Encoding holds the label <-> code mapping for one column.
type Encoding struct {
	Column  string
	Ordinal bool
	// Labels indexed by code; Codes is the reverse lookup.
	Labels []string
	Codes  map[string]float64
}

// Fit builds an encoding from the observed values of a string column. Missing
// cells contribute nothing; a column with no observed values yields an empty
// encoding.
func Fit(col *ff.StringColumn, ordinal bool) *Encoding {
	e := &Encoding{Column: col.Name(), Ordinal: ordinal, Codes: make(map[string]float64)}
	seen := map[string]struct{}{}
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Get(i)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		e.Labels = append(e.Labels, v)
	}
	if ordinal {
		sort.Strings(e.Labels)
	}
	for i, l := range e.Labels {
		e.Codes[l] = float64(i)
	}
	return e
}

// Code returns the integer code for a label.
func (e *Encoding) Code(label string) (float64, bool) {
	c, ok := e.Codes[label]
	return c, ok
}

// Label returns the label for a code. Codes are rounded to the nearest integer
// before lookup so weighted averages that drift off-grid still decode.
func (e *Encoding) Label(code float64) (string, bool) {
	i := int(code + 0.5)
	if i < 0 || i >= len(e.Labels) {
		return "", false
	}
	return e.Labels[i], true
}

// Cardinality is the number of distinct labels observed at fit time.
func (e *Encoding) Cardinality() int { return len(e.Labels) }
