package impute

import (
	"math"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// Status classifies a missing cell's estimate sequence.
type Status int

const (
	Divergent Status = iota
	Convergent
)

func (s Status) String() string {
	if s == Convergent {
		return "convergent"
	}
	return "divergent"
}

// Stable reports whether the estimate history has settled: it needs at least
// window entries, and over the most recent window every pair of consecutive
// estimates must differ by at most tol. Categorical estimates must be
// identical across the window. A later out-of-tolerance estimate makes the
// same history unstable again.
func Stable(estimates []float64, vt ff.VarType, window int, tol float64) bool {
	if len(estimates) < window {
		return false
	}
	last := estimates[len(estimates)-window:]
	for i := 1; i < len(last); i++ {
		if vt == ff.Categorical {
			if last[i] != last[i-1] {
				return false
			}
			continue
		}
		if math.Abs(last[i]-last[i-1]) > tol {
			return false
		}
	}
	return true
}

// history is the per-cell record grown by one estimate per round. Append-only;
// truncated only when a session is discarded.
type history struct {
	cell      Cell
	vt        ff.VarType
	estimates []float64
	status    Status
}

func (h *history) append(v float64) {
	h.estimates = append(h.estimates, v)
}

func (h *history) refresh(window int, tol float64) {
	if Stable(h.estimates, h.vt, window, tol) {
		h.status = Convergent
	} else {
		h.status = Divergent
	}
}

func (h *history) last() float64 {
	return h.estimates[len(h.estimates)-1]
}
