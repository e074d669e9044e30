package impute

import (
	"math"

	"github.com/wdm0006/forestfill/pkg/encode"
	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// History is the read-only view of one cell's estimate sequence. Estimates are
// in the encoded domain; use Result.Labels to decode categorical ones.
type History struct {
	Type      ff.VarType
	Status    Status
	Estimates []float64
}

// Result carries everything a session exposes once Done: the imputed dataset
// with encodings reversed, the final proximity and distance matrices, and the
// per-cell estimate histories.
type Result struct {
	Frame     *ff.Frame
	Proximity [][]float64
	Distance  [][]float64
	Converged bool
	Rounds    int
	Types     map[string]ff.VarType
	Encodings map[string]*encode.Encoding
	Histories map[Cell]History

	// Features names the columns of Encoded in order. Encoded and Target hold
	// the final working matrix in the encoded domain; nil when the session
	// never ran a round.
	Features []string
	Encoded  [][]float64
	Target   []float64
}

// Convergent returns the estimate histories of cells that stabilized.
func (r *Result) Convergent() map[Cell][]float64 { return r.byStatus(Convergent) }

// Divergent returns the estimate histories of cells that never stabilized.
func (r *Result) Divergent() map[Cell][]float64 { return r.byStatus(Divergent) }

func (r *Result) byStatus(st Status) map[Cell][]float64 {
	out := map[Cell][]float64{}
	for c, h := range r.Histories {
		if h.Status == st {
			out[c] = h.Estimates
		}
	}
	return out
}

// Labels decodes a categorical cell's estimate history back to labels. For
// numerical cells or columns without a string encoding it returns nil.
func (r *Result) Labels(c Cell) []string {
	h, ok := r.Histories[c]
	if !ok || h.Type != ff.Categorical {
		return nil
	}
	e := r.Encodings[c.Column]
	if e == nil {
		return nil
	}
	out := make([]string, len(h.Estimates))
	for i, v := range h.Estimates {
		out[i], _ = e.Label(v)
	}
	return out
}

// buildResult decodes the working matrix back into a frame and snapshots the
// histories. The original frame stays untouched.
func (s *Session) buildResult(converged bool) *Result {
	out := s.original.Clone()
	for c := range s.histories {
		var enc float64
		if c.Column == s.cfg.Target {
			enc = s.target[c.Row]
		} else {
			enc = s.matrix[c.Row][s.featIdx[c.Column]]
		}
		_ = out.SetCell(c.Row, c.Column, s.decode(c.Column, enc))
	}

	res := &Result{
		Frame:     out,
		Proximity: s.prox,
		Converged: converged,
		Rounds:    s.rounds,
		Types:     s.types,
		Encodings: s.encodings,
		Histories: make(map[Cell]History, len(s.histories)),
		Features:  s.features,
		Encoded:   s.matrix,
		Target:    s.target,
	}
	if s.prox != nil {
		res.Distance = Distance(s.prox)
	}
	for c, h := range s.histories {
		res.Histories[c] = History{Type: h.vt, Status: h.status, Estimates: h.estimates}
	}
	return res
}

func (s *Session) decode(column string, v float64) any {
	col, _ := s.original.ColumnByName(column)
	switch col.(type) {
	case *ff.FloatColumn:
		return v
	case *ff.IntColumn:
		return int64(math.Round(v))
	case *ff.StringColumn:
		if l, ok := s.encodings[column].Label(v); ok {
			return l
		}
		return nil
	}
	return nil
}
