package forestfill

// VarType says how a column behaves during imputation: numerical columns get
// proximity-weighted averages, categorical columns get proximity-weighted
// majority votes. Assigned once per session and never changed mid-run.
type VarType int

const (
	Numerical VarType = iota
	Categorical
)

func (t VarType) String() string {
	if t == Categorical {
		return "categorical"
	}
	return "numerical"
}

// lowCardinality is the distinct-value cutoff under which an integer column is
// treated as categorical (flags, label codes).
const lowCardinality = 2

// IdentifyTypes classifies every column of the frame as numerical or
// categorical. String columns are always categorical. Float columns are always
// numerical. Integer columns with at most two distinct observed values are
// treated as categorical, everything else as numerical.
func IdentifyTypes(f *Frame) map[string]VarType {
	out := make(map[string]VarType, f.Cols())
	for _, cs := range f.Schema().Columns {
		col, _ := f.ColumnByName(cs.Name)
		switch c := col.(type) {
		case *StringColumn:
			out[cs.Name] = Categorical
		case *FloatColumn:
			out[cs.Name] = Numerical
		case *IntColumn:
			distinct := map[int64]struct{}{}
			for i := 0; i < c.Len(); i++ {
				if v, ok := c.Get(i); ok {
					distinct[v] = struct{}{}
				}
				if len(distinct) > lowCardinality {
					break
				}
			}
			if len(distinct) <= lowCardinality {
				out[cs.Name] = Categorical
			} else {
				out[cs.Name] = Numerical
			}
		}
	}
	return out
}
