package impute

import (
	"context"
	"errors"
	"testing"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// fixedForest replays a precomputed leaf assignment. Proximity applies rows in
// order, so a call counter recovers the row index.
type fixedForest struct {
	leaves [][]int
	calls  int
}

func (f *fixedForest) NumTrees() int { return len(f.leaves[0]) }
func (f *fixedForest) Apply(x []float64) []int {
	l := f.leaves[f.calls%len(f.leaves)]
	f.calls++
	return l
}
func (f *fixedForest) Predict(x []float64) float64 { return 0 }

// stubTrainer hands out a scripted forest per round.
type stubTrainer struct {
	forest   func(round int) Forest
	cancel   context.CancelFunc
	failAt   int // round whose Fit cancels and fails; 0 disables
	cancelAt int // round whose Fit cancels but still returns a forest; 0 disables
	calls    int
}

func (t *stubTrainer) Fit(ctx context.Context, vt ff.VarType, x [][]float64, y []float64, trees int) (Forest, error) {
	t.calls++
	if t.failAt > 0 && t.calls == t.failAt {
		t.cancel()
		return nil, ctx.Err()
	}
	if t.cancelAt > 0 && t.calls == t.cancelAt {
		t.cancel()
	}
	return t.forest(t.calls), nil
}

// one tree, every row in the same leaf
func clumpForest(rows int) *fixedForest {
	leaves := make([][]int, rows)
	for i := range leaves {
		leaves[i] = []int{0}
	}
	return &fixedForest{leaves: leaves}
}

// one tree over 4 rows whose partition flips with round parity, so the
// estimate for row 3 oscillates between far-apart neighbourhoods
func parityForest(round int) *fixedForest {
	leaves := make([][]int, 4)
	for r := range leaves {
		var leaf int
		if round%2 == 1 {
			if r >= 2 {
				leaf = 1
			}
		} else {
			if r != 0 && r != 3 {
				leaf = 1
			}
		}
		leaves[r] = []int{leaf}
	}
	return &fixedForest{leaves: leaves}
}

func floatFrame(t *testing.T, cols map[string][]any) *ff.Frame {
	t.Helper()
	var schema ff.Schema
	names := []string{}
	for _, n := range []string{"x", "y", "z"} {
		if _, ok := cols[n]; ok {
			schema.Columns = append(schema.Columns, ff.ColumnSchema{Name: n, Type: ff.KindFloat})
			names = append(names, n)
		}
	}
	f := ff.NewFrame(schema)
	rows := len(cols[names[0]])
	for r := 0; r < rows; r++ {
		f.AppendNullRow()
		for _, n := range names {
			if cols[n][r] == nil {
				continue
			}
			if err := f.SetCell(r, n, cols[n][r]); err != nil {
				t.Fatal(err)
			}
		}
	}
	return f
}

func TestRunNoMissing(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0, 3.0},
		"y": {4.0, 5.0, 6.0},
	})
	s, err := NewSession(f, Config{Target: "y"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Rounds != 0 {
		t.Fatalf("converged=%v rounds=%d, want true 0", res.Converged, res.Rounds)
	}
	if len(res.Histories) != 0 {
		t.Fatalf("histories for a complete frame: %d", len(res.Histories))
	}
	col, _ := res.Frame.ColumnByName("x")
	if v, _ := col.(*ff.FloatColumn).Get(1); v != 2.0 {
		t.Fatalf("complete frame must come back unchanged, got %v", v)
	}
}

func TestRunConvergesWithinWindow(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0, nil, 3.0, 4.0, 5.0, 6.0, nil, 7.0, 8.0},
		"y": {0.0, 1.0, 0.0, 1.0, 0.0, 1.0, 0.0, 1.0, 0.0, 1.0},
	})
	s, err := NewSession(f, Config{Target: "y", Window: 2, Tolerance: 0.01, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	s.Trainer = &stubTrainer{forest: func(int) Forest { return clumpForest(10) }}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Rounds != 2 {
		t.Fatalf("converged=%v rounds=%d, want true 2", res.Converged, res.Rounds)
	}
	if len(res.Divergent()) != 0 {
		t.Fatalf("divergent cells: %v", res.Divergent())
	}
	conv := res.Convergent()
	if len(conv) != 2 {
		t.Fatalf("convergent cells: %d, want 2", len(conv))
	}
	// all rows share one leaf, so each estimate is the observed mean 4.5
	for c, est := range conv {
		if len(est) != 2 {
			t.Fatalf("cell %v history %v, want 2 entries", c, est)
		}
		for _, v := range est {
			if v != 4.5 {
				t.Fatalf("cell %v estimate %v, want 4.5", c, v)
			}
		}
	}
	col, _ := res.Frame.ColumnByName("x")
	fc := col.(*ff.FloatColumn)
	for _, r := range []int{2, 7} {
		if v, ok := fc.Get(r); !ok || v != 4.5 {
			t.Fatalf("row %d imputed to %v (%v), want 4.5", r, v, ok)
		}
	}
	if len(res.Features) != 1 || res.Features[0] != "x" {
		t.Fatalf("features %v", res.Features)
	}
	if res.Encoded[2][0] != 4.5 || len(res.Target) != 10 {
		t.Fatalf("encoded matrix not exposed: %v", res.Encoded[2])
	}
	// proximity invariants
	n := len(res.Proximity)
	for i := 0; i < n; i++ {
		if res.Proximity[i][i] != 1 {
			t.Fatalf("diagonal %v", res.Proximity[i][i])
		}
		for j := 0; j < n; j++ {
			p := res.Proximity[i][j]
			if p < 0 || p > 1 || p != res.Proximity[j][i] {
				t.Fatalf("proximity[%d][%d] = %v", i, j, p)
			}
			if res.Distance[i][j] != 1-p {
				t.Fatalf("distance[%d][%d] = %v", i, j, res.Distance[i][j])
			}
		}
	}
}

func TestRunFullyMissingFeature(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {nil, nil, nil},
		"y": {1.0, 2.0, 3.0},
	})
	s, err := NewSession(f, Config{Target: "y"})
	if err != nil {
		t.Fatal(err)
	}
	tr := &stubTrainer{forest: func(int) Forest { return clumpForest(3) }}
	s.Trainer = tr

	_, err = s.Run(context.Background())
	var missErr *FeatureFullyMissingError
	if !errors.As(err, &missErr) || missErr.Column != "x" {
		t.Fatalf("err = %v, want FeatureFullyMissingError for x", err)
	}
	if tr.calls != 0 {
		t.Fatalf("trainer ran %d times before the seed check", tr.calls)
	}
}

func TestRunCanceledMidRound(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0, 9.0, nil},
		"y": {0.0, 1.0, 0.0, 1.0},
	})
	s, err := NewSession(f, Config{Target: "y", Window: 3, Resilience: 1, Tolerance: 0.5, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Trainer = &stubTrainer{forest: func(r int) Forest { return parityForest(r) }, cancel: cancel, failAt: 3}

	res, err := s.Run(ctx)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if res == nil {
		t.Fatal("cancellation must still return the last complete round")
	}
	if res.Converged || res.Rounds != 2 {
		t.Fatalf("converged=%v rounds=%d, want false 2", res.Converged, res.Rounds)
	}
	h := res.Histories[Cell{Row: 3, Column: "x"}]
	if len(h.Estimates) != 2 {
		t.Fatalf("history %v, want the two completed rounds", h.Estimates)
	}
	if h.Status != Divergent {
		t.Fatal("cells of a canceled session are reported divergent")
	}
}

func TestRunCancelKeepsLastRoundMatrices(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0, 9.0, nil},
		"y": {0.0, 1.0, 0.0, 1.0},
	})
	s, err := NewSession(f, Config{Target: "y", Window: 3, Resilience: 1, Tolerance: 0.5, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// round 3's Fit succeeds but cancels the context partway through
	s.Trainer = &stubTrainer{forest: func(r int) Forest { return parityForest(r) }, cancel: cancel, cancelAt: 3}

	res, err := s.Run(ctx)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if res.Rounds != 2 {
		t.Fatalf("rounds %d, want 2", res.Rounds)
	}
	// round 2's partition pairs rows 0 and 3; round 3's would pair 2 and 3
	if res.Proximity[0][3] != 1 || res.Proximity[2][3] != 0 {
		t.Fatalf("proximity belongs to a later round: prox[0][3]=%v prox[2][3]=%v",
			res.Proximity[0][3], res.Proximity[2][3])
	}
	if res.Distance[0][3] != 0 {
		t.Fatalf("distance out of step with proximity: %v", res.Distance[0][3])
	}
	if h := res.Histories[Cell{Row: 3, Column: "x"}]; len(h.Estimates) != 2 {
		t.Fatalf("history %v, want the two completed rounds", h.Estimates)
	}
}

func TestForbiddenColumnStaysNumerical(t *testing.T) {
	schema := ff.Schema{Columns: []ff.ColumnSchema{
		{Name: "flag", Type: ff.KindInt},
		{Name: "y", Type: ff.KindFloat},
	}}
	build := func() *ff.Frame {
		f := ff.NewFrame(schema)
		flags := []any{int64(0), int64(1), int64(1), nil, int64(1), int64(0)}
		for i := range flags {
			f.AppendNullRow()
			if flags[i] != nil {
				_ = f.SetCell(i, "flag", flags[i])
			}
			_ = f.SetCell(i, "y", float64(i))
		}
		return f
	}

	// a two-valued int column is categorical by default
	control, err := NewSession(build(), Config{Target: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if control.types["flag"] != ff.Categorical {
		t.Fatalf("control type %v, want categorical", control.types["flag"])
	}

	s, err := NewSession(build(), Config{Target: "y", Forbidden: []string{"flag"}, Window: 2, Tolerance: 0.01, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	s.Trainer = &stubTrainer{forest: func(int) Forest { return clumpForest(6) }}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Types["flag"] != ff.Numerical {
		t.Fatalf("type %v, want numerical", res.Types["flag"])
	}
	h := res.Histories[Cell{Row: 3, Column: "flag"}]
	if h.Type != ff.Numerical {
		t.Fatalf("history type %v, want numerical", h.Type)
	}
	// weighted mean of the observed flags, not a majority vote
	for _, v := range h.Estimates {
		if v != 0.6 {
			t.Fatalf("estimate %v, want 0.6", v)
		}
	}
	col, _ := res.Frame.ColumnByName("flag")
	if v, ok := col.(*ff.IntColumn).Get(3); !ok || v != 1 {
		t.Fatalf("flag[3] = %v (%v), want rounded 1", v, ok)
	}
}

func TestForbiddenStringColumnRejected(t *testing.T) {
	schema := ff.Schema{Columns: []ff.ColumnSchema{
		{Name: "label", Type: ff.KindString},
		{Name: "y", Type: ff.KindFloat},
	}}
	f := ff.NewFrame(schema)
	for i := 0; i < 3; i++ {
		f.AppendNullRow()
		_ = f.SetCell(i, "label", "a")
		_ = f.SetCell(i, "y", float64(i))
	}
	_, err := NewSession(f, Config{Target: "y", Forbidden: []string{"label"}})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestRunResilienceExhausted(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0, 9.0, nil},
		"y": {0.0, 1.0, 0.0, 1.0},
	})
	s, err := NewSession(f, Config{Target: "y", Window: 2, Resilience: 1, Tolerance: 0.5, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	s.Trainer = &stubTrainer{forest: func(r int) Forest { return parityForest(r) }}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged || res.Rounds != 3 {
		t.Fatalf("converged=%v rounds=%d, want false 3", res.Converged, res.Rounds)
	}
	cell := Cell{Row: 3, Column: "x"}
	div := res.Divergent()
	if est := div[cell]; len(est) != 3 {
		t.Fatalf("divergent history %v, want 3 oscillating entries", est)
	}
	// the estimate never settled, so the cell reverts to its seed: mean(1,2,9)
	col, _ := res.Frame.ColumnByName("x")
	if v, _ := col.(*ff.FloatColumn).Get(3); v != 4.0 {
		t.Fatalf("row 3 = %v, want seed 4.0", v)
	}
}

func TestRunEndToEndCategoricalTarget(t *testing.T) {
	schema := ff.Schema{Columns: []ff.ColumnSchema{
		{Name: "x", Type: ff.KindFloat},
		{Name: "color", Type: ff.KindString},
	}}
	f := ff.NewFrame(schema)
	xs := []float64{1, 1.2, 1.4, 1.6, 1.8, 2, 9, 9.2, 9.4, 9.6, 9.8, 10}
	for i, x := range xs {
		f.AppendNullRow()
		_ = f.SetCell(i, "x", x)
		switch {
		case i == 2 || i == 8:
			// target left missing
		case x < 5:
			_ = f.SetCell(i, "color", "red")
		default:
			_ = f.SetCell(i, "color", "blue")
		}
	}

	s, err := NewSession(f, Config{Target: "color", Window: 2, Trees: 15, TreeGrowth: 5, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	col, _ := res.Frame.ColumnByName("color")
	sc := col.(*ff.StringColumn)
	if v, ok := sc.Get(2); !ok || v != "red" {
		t.Fatalf("row 2 = %q (%v), want red", v, ok)
	}
	if v, ok := sc.Get(8); !ok || v != "blue" {
		t.Fatalf("row 8 = %q (%v), want blue", v, ok)
	}
	if res.Rounds > s.cfg.Window+s.cfg.Resilience {
		t.Fatalf("rounds %d exceeded the resilience bound", res.Rounds)
	}
	labels := res.Labels(Cell{Row: 2, Column: "color"})
	if len(labels) == 0 {
		t.Fatal("expected decoded labels for the categorical cell")
	}
	for _, l := range labels {
		if l != "red" && l != "blue" {
			t.Fatalf("unexpected label %q", l)
		}
	}
	if res.Labels(Cell{Row: 0, Column: "x"}) != nil {
		t.Fatal("numerical cells have no label history")
	}
}

func TestNewSessionConfigErrors(t *testing.T) {
	f := floatFrame(t, map[string][]any{
		"x": {1.0, 2.0},
		"y": {3.0, 4.0},
	})
	cases := []Config{
		{Target: ""},
		{Target: "nope"},
		{Target: "y", Resilience: -1},
		{Target: "y", Tolerance: -0.5},
		{Target: "y", SampleFraction: 1.5},
		{Target: "y", Ordinal: []string{"x"}},
		{Target: "y", Forbidden: []string{"missing"}},
	}
	for i, cfg := range cases {
		_, err := NewSession(f, cfg)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("case %d: err = %v, want ConfigError", i, err)
		}
	}
}
