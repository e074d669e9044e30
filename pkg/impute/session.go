package impute

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wdm0006/forestfill/pkg/encode"
	"github.com/wdm0006/forestfill/pkg/forest"
	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// Cell addresses one missing value by row index and column name.
type Cell struct {
	Row    int
	Column string
}

// Forest is what the session needs from a fitted ensemble: its size, per-tree
// leaf assignment for an input, and a point prediction.
type Forest interface {
	NumTrees() int
	Apply(x []float64) []int
	Predict(x []float64) float64
}

// Trainer fits an ensemble of the given size on a complete matrix. The session
// treats it as a black box; pkg/forest provides the default.
type Trainer interface {
	Fit(ctx context.Context, vt ff.VarType, x [][]float64, y []float64, trees int) (Forest, error)
}

type forestTrainer struct {
	cfg Config
}

func (t forestTrainer) Fit(ctx context.Context, vt ff.VarType, x [][]float64, y []float64, trees int) (Forest, error) {
	kind := forest.Regression
	if vt == ff.Categorical {
		kind = forest.Classification
	}
	return forest.Fit(ctx, kind, x, y, forest.Params{
		Trees:       trees,
		MaxDepth:    t.cfg.MaxDepth,
		MinSplit:    t.cfg.MinSplit,
		MinLeaf:     t.cfg.MinLeaf,
		MaxFeatures: t.cfg.MaxFeatures,
		Workers:     t.cfg.Workers,
		Seed:        t.cfg.Seed,
	})
}

type state int

const (
	stateSeeding state = iota
	stateTraining
	stateProximityComputed
	stateImputing
	stateConvergenceCheck
	stateDone
)

func (st state) String() string {
	switch st {
	case stateSeeding:
		return "seeding"
	case stateTraining:
		return "training"
	case stateProximityComputed:
		return "proximity"
	case stateImputing:
		return "imputing"
	case stateConvergenceCheck:
		return "convergence-check"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// Session runs one imputation from seed fill to convergence. It is not
// re-entrant: Run must finish (or be canceled) before the session's results
// can be read, and a session is used for exactly one Run.
type Session struct {
	// Log receives per-round progress events; defaults to a no-op logger.
	Log zerolog.Logger
	// Trainer may be replaced before Run, e.g. in tests.
	Trainer Trainer

	cfg       Config
	original  *ff.Frame
	types     map[string]ff.VarType
	missing   ff.MissingIndex
	encodings map[string]*encode.Encoding

	features []string
	featIdx  map[string]int

	matrix        [][]float64
	target        []float64
	targetMissing []int
	trainRows     []int
	seeds         map[string]float64

	histories map[Cell]*history
	prox      [][]float64
	state     state
	rounds    int
}

// NewSession validates the configuration against the dataset and prepares a
// session. The input frame is never mutated; the imputed copy comes out of
// Run's Result.
func NewSession(f *ff.Frame, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	types := ff.IdentifyTypes(f)
	if err := cfg.validate(f, types); err != nil {
		return nil, err
	}
	// Forbidden columns are exempt from categorical treatment regardless of
	// what type identification decided.
	for name := range types {
		if cfg.isForbidden(name) {
			types[name] = ff.Numerical
		}
	}

	s := &Session{
		Log:       zerolog.Nop(),
		Trainer:   forestTrainer{cfg: cfg},
		cfg:       cfg,
		original:  f,
		types:     types,
		missing:   ff.Locate(f),
		encodings: make(map[string]*encode.Encoding),
		featIdx:   make(map[string]int),
		seeds:     make(map[string]float64),
		histories: make(map[Cell]*history),
	}
	for _, cs := range f.Schema().Columns {
		if cs.Name == cfg.Target {
			continue
		}
		s.featIdx[cs.Name] = len(s.features)
		s.features = append(s.features, cs.Name)
	}
	for _, cs := range f.Schema().Columns {
		col, _ := f.ColumnByName(cs.Name)
		if sc, ok := col.(*ff.StringColumn); ok {
			s.encodings[cs.Name] = encode.Fit(sc, cfg.isOrdinal(cs.Name))
		}
	}
	for _, name := range s.missing.Columns() {
		for _, row := range s.missing.Rows(name) {
			c := Cell{Row: row, Column: name}
			s.histories[c] = &history{cell: c, vt: types[name]}
		}
	}
	return s, nil
}

// State reports the controller's current phase, for diagnostics and logging.
func (s *Session) State() string { return s.state.String() }

// Run executes the imputation loop: seed, then up to Window+Resilience rounds
// of train / proximity / re-impute / convergence check. On cancellation it
// returns the last fully completed round's results together with ErrCanceled.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.missing.Total() == 0 {
		s.state = stateDone
		return s.buildResult(true), nil
	}

	s.state = stateSeeding
	if err := s.seed(); err != nil {
		return nil, err
	}
	s.Log.Debug().Int("missing_cells", s.missing.Total()).
		Int("trainable_rows", len(s.trainRows)).Msg("seeded")

	maxRounds := s.cfg.Window + s.cfg.Resilience
	canceled := false
	converged := false

	for round := 1; round <= maxRounds; round++ {
		if ctx.Err() != nil {
			canceled = true
			break
		}

		s.state = stateTraining
		trees := s.cfg.Trees + (round-1)*s.cfg.TreeGrowth
		x, y := s.trainingSet(round)
		fr, err := s.Trainer.Fit(ctx, s.types[s.cfg.Target], x, y, trees)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				canceled = true
				break
			}
			return nil, err
		}

		// Checked before s.prox is replaced, so a cancel here leaves the
		// matrices of the last completed round intact.
		if ctx.Err() != nil {
			canceled = true
			break
		}
		s.state = stateProximityComputed
		s.prox = Proximity(fr, s.matrix, s.cfg.Workers)

		s.state = stateImputing
		updates := s.imputeRound()

		// Write-back: each cell written exactly once per round.
		for c, v := range updates {
			if c.Column == s.cfg.Target {
				s.target[c.Row] = v
			} else {
				s.matrix[c.Row][s.featIdx[c.Column]] = v
			}
		}

		s.state = stateConvergenceCheck
		for c, v := range updates {
			h := s.histories[c]
			h.append(v)
			h.refresh(s.cfg.Window, s.cfg.Tolerance)
		}
		s.rounds = round

		conv, div := s.statusCounts()
		s.Log.Info().Int("round", round).Int("trees", trees).
			Int("convergent", conv).Int("divergent", div).Msg("round complete")
		if div == 0 {
			converged = true
			break
		}
	}

	if canceled {
		for _, h := range s.histories {
			h.status = Divergent
		}
		res := s.buildResult(false)
		return res, ErrCanceled
	}

	if !converged {
		// Resilience exhausted: divergent cells go back to their seed value.
		reseeded := 0
		for c, h := range s.histories {
			if h.status != Divergent {
				continue
			}
			if c.Column == s.cfg.Target {
				s.target[c.Row] = s.seeds[s.cfg.Target]
			} else {
				s.matrix[c.Row][s.featIdx[c.Column]] = s.seeds[c.Column]
			}
			reseeded++
		}
		s.Log.Warn().Int("cells", reseeded).Msg("divergent cells fell back to seed values")
	}

	s.state = stateDone
	return s.buildResult(converged), nil
}

// seed builds the complete matrix: categorical columns encoded to codes,
// missing cells filled with the column mean or mode. Fails fatally when any
// column (target included) has no observed value.
func (s *Session) seed() error {
	rows := s.original.Rows()
	s.matrix = make([][]float64, rows)
	for i := range s.matrix {
		s.matrix[i] = make([]float64, len(s.features))
	}

	for _, name := range s.features {
		vals, miss := s.encodedColumn(name)
		seed, ok := SeedValue(vals, miss, s.types[name])
		if !ok {
			return &FeatureFullyMissingError{Column: name}
		}
		s.seeds[name] = seed
		ci := s.featIdx[name]
		for r := 0; r < rows; r++ {
			if miss[r] {
				s.matrix[r][ci] = seed
			} else {
				s.matrix[r][ci] = vals[r]
			}
		}
	}

	vals, miss := s.encodedColumn(s.cfg.Target)
	seed, ok := SeedValue(vals, miss, s.types[s.cfg.Target])
	if !ok {
		return &FeatureFullyMissingError{Column: s.cfg.Target}
	}
	s.seeds[s.cfg.Target] = seed
	s.target = vals
	s.targetMissing = s.targetMissing[:0]
	s.trainRows = s.trainRows[:0]
	for r := 0; r < rows; r++ {
		if miss[r] {
			s.target[r] = seed
			s.targetMissing = append(s.targetMissing, r)
		} else {
			s.trainRows = append(s.trainRows, r)
		}
	}
	return nil
}

// encodedColumn returns the column as floats plus its missing-row set. String
// columns go through their fitted encoding.
func (s *Session) encodedColumn(name string) ([]float64, map[int]bool) {
	col, _ := s.original.ColumnByName(name)
	miss := make(map[int]bool)
	for _, r := range s.missing.Rows(name) {
		miss[r] = true
	}
	vals := make([]float64, col.Len())
	switch c := col.(type) {
	case *ff.FloatColumn:
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				vals[i] = v
			}
		}
	case *ff.IntColumn:
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				vals[i] = float64(v)
			}
		}
	case *ff.StringColumn:
		e := s.encodings[name]
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				code, _ := e.Code(v)
				vals[i] = code
			}
		}
	}
	return vals, miss
}

// trainingSet selects the rows the forest is fitted on: rows with an observed
// target, optionally subsampled by SampleFraction. Rows missing only their
// target stay out of training but still receive proximity-based estimates.
func (s *Session) trainingSet(round int) ([][]float64, []float64) {
	rows := s.trainRows
	if s.cfg.SampleFraction < 1 {
		n := int(math.Ceil(s.cfg.SampleFraction * float64(len(rows))))
		if n < 2 {
			n = 2
		}
		if n < len(rows) {
			rng := rand.New(rand.NewSource(s.cfg.Seed + int64(round)))
			shuffled := make([]int, len(rows))
			copy(shuffled, rows)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			rows = shuffled[:n]
			sort.Ints(rows)
		}
	}
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = s.matrix[r]
		y[i] = s.target[r]
	}
	return x, y
}

// imputeRound produces this round's estimate for every missing cell. The
// target is imputed through the same proximity mechanism as the features.
func (s *Session) imputeRound() map[Cell]float64 {
	updates := make(map[Cell]float64, s.missing.Total())
	for _, name := range s.missing.Columns() {
		if name == s.cfg.Target {
			continue
		}
		ci := s.featIdx[name]
		missingRows := s.missing.Rows(name)
		vals := make([]float64, len(s.matrix))
		for r := range s.matrix {
			vals[r] = s.matrix[r][ci]
		}
		observed := complement(len(vals), missingRows)
		for r, v := range ImputeColumn(vals, missingRows, observed, s.prox, s.types[name]) {
			updates[Cell{Row: r, Column: name}] = v
		}
	}
	if len(s.targetMissing) > 0 {
		for r, v := range ImputeColumn(s.target, s.targetMissing, s.trainRows, s.prox, s.types[s.cfg.Target]) {
			updates[Cell{Row: r, Column: s.cfg.Target}] = v
		}
	}
	return updates
}

func (s *Session) statusCounts() (convergent, divergent int) {
	for _, h := range s.histories {
		if h.status == Convergent {
			convergent++
		} else {
			divergent++
		}
	}
	return
}

func complement(n int, missing []int) []int {
	miss := make(map[int]bool, len(missing))
	for _, r := range missing {
		miss[r] = true
	}
	out := make([]int, 0, n-len(missing))
	for r := 0; r < n; r++ {
		if !miss[r] {
			out = append(out, r)
		}
	}
	return out
}
