package impute

import (
	"fmt"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// Config holds every knob of an imputation session. A Config is built once,
// validated at session start, and never mutated mid-run. Zero values select
// the documented defaults; negative values are rejected.
type Config struct {
	// Target names the column the forest is trained to predict.
	Target string

	// Trees is the ensemble size in round one; default 30.
	Trees int
	// TreeGrowth is added to the ensemble size every later round; default 20.
	TreeGrowth int

	// Window is how many successive estimates a cell must hold steady
	// (pairwise within Tolerance) to count as convergent; default 4.
	Window int
	// Resilience is how many extra rounds beyond Window the session tolerates
	// while divergent cells remain; default 2.
	Resilience int
	// Tolerance bounds the difference between consecutive numerical estimates
	// inside the window; default 1.0. Categorical estimates must be identical.
	Tolerance float64

	// SampleFraction draws a uniform subset of trainable rows for forest
	// fitting. 0 or 1 trains on every row with an observed target.
	SampleFraction float64

	// Forbidden lists columns exempted from categorical treatment: they are
	// always handled as numerical values and never encoded, even when their
	// cardinality would otherwise classify them as categorical. String
	// columns cannot be exempted.
	Forbidden []string
	// Ordinal lists categorical columns whose integer codes should preserve
	// lexicographic label order.
	Ordinal []string

	// Forest hyperparameters, passed through to the trainer.
	MaxDepth    int
	MinSplit    int
	MinLeaf     int
	MaxFeatures int

	// Workers bounds parallelism in tree fitting and proximity accumulation;
	// default GOMAXPROCS.
	Workers int
	// Seed makes forest fitting and row sampling reproducible.
	Seed int64
}

const (
	defaultTrees      = 30
	defaultTreeGrowth = 20
	defaultWindow     = 4
	defaultResilience = 2
	defaultTolerance  = 1.0
)

func (c Config) withDefaults() Config {
	if c.Trees == 0 {
		c.Trees = defaultTrees
	}
	if c.TreeGrowth == 0 {
		c.TreeGrowth = defaultTreeGrowth
	}
	if c.Window == 0 {
		c.Window = defaultWindow
	}
	if c.Resilience == 0 {
		c.Resilience = defaultResilience
	}
	if c.Tolerance == 0 {
		c.Tolerance = defaultTolerance
	}
	if c.SampleFraction == 0 {
		c.SampleFraction = 1
	}
	return c
}

// validate checks the config against the dataset. Called once by NewSession,
// after defaults are applied.
func (c Config) validate(f *ff.Frame, types map[string]ff.VarType) error {
	if c.Target == "" {
		return &ConfigError{Reason: "no target column named"}
	}
	if _, ok := f.ColumnByName(c.Target); !ok {
		return &ConfigError{Reason: fmt.Sprintf("target column %q not in dataset", c.Target)}
	}
	if c.Trees < 0 || c.TreeGrowth < 0 {
		return &ConfigError{Reason: "tree counts must not be negative"}
	}
	if c.Window < 0 || c.Resilience < 0 {
		return &ConfigError{Reason: "window and resilience must be positive"}
	}
	if c.Tolerance < 0 {
		return &ConfigError{Reason: "tolerance must not be negative"}
	}
	if c.SampleFraction < 0 || c.SampleFraction > 1 {
		return &ConfigError{Reason: "sample fraction must be in (0, 1]"}
	}

	ordinal := map[string]bool{}
	for _, name := range c.Ordinal {
		t, ok := types[name]
		if !ok {
			return &ConfigError{Reason: fmt.Sprintf("ordinal column %q not in dataset", name)}
		}
		if t != ff.Categorical {
			return &ConfigError{Reason: fmt.Sprintf("ordinal column %q is not categorical", name)}
		}
		ordinal[name] = true
	}
	for _, name := range c.Forbidden {
		col, ok := f.ColumnByName(name)
		if !ok {
			return &ConfigError{Reason: fmt.Sprintf("forbidden column %q not in dataset", name)}
		}
		if ordinal[name] {
			return &ConfigError{Reason: fmt.Sprintf("column %q listed as both forbidden and ordinal", name)}
		}
		if col.Kind() == ff.KindString {
			return &ConfigError{Reason: fmt.Sprintf("forbidden column %q is a string column and cannot enter the matrix unencoded", name)}
		}
	}
	return nil
}

func (c Config) isOrdinal(name string) bool {
	for _, n := range c.Ordinal {
		if n == name {
			return true
		}
	}
	return false
}

func (c Config) isForbidden(name string) bool {
	for _, n := range c.Forbidden {
		if n == name {
			return true
		}
	}
	return false
}
