package impute

import (
	"errors"
	"fmt"
)

// FeatureFullyMissingError reports a column with zero observed values. Such a
// column cannot be seeded, so the session aborts before the first round.
type FeatureFullyMissingError struct {
	Column string
}

func (e *FeatureFullyMissingError) Error() string {
	return fmt.Sprintf("impute: column %q has no observed values", e.Column)
}

// ConfigError reports a configuration rejected at session start.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "impute: invalid config: " + e.Reason }

// ErrCanceled marks a session truncated by caller cancellation. The Result
// returned alongside it holds the last fully completed round, with every
// missing cell reported as divergent.
var ErrCanceled = errors.New("impute: session canceled")
