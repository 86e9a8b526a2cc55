package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/neldermead/internal/neldermead"
)

// NelderMeadAdapter runs the simplex method behind the Optimizer interface.
type NelderMeadAdapter struct {
	settings neldermead.Settings
	seed     int64

	last    *neldermead.Result
	lastErr error
}

// NewNelderMead creates a Nelder-Mead optimizer. A nil settings uses
// neldermead.DefaultSettings. Rand is replaced by a source seeded with seed on
// every run.
func NewNelderMead(settings *neldermead.Settings, seed int64) *NelderMeadAdapter {
	if settings == nil {
		settings = neldermead.DefaultSettings()
	}
	return &NelderMeadAdapter{
		settings: *settings,
		seed:     seed,
	}
}

// Run starts the simplex at the midpoint of [lower, upper]. Without bounds the
// configured start point is used. The bounds are not enforced.
func (n *NelderMeadAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	settings := n.settings
	settings.Rand = rand.New(rand.NewSource(n.seed))
	if len(lower) >= dim && len(upper) >= dim {
		settings.Start = make([]float64, dim)
		for i := range settings.Start {
			settings.Start[i] = (lower[i] + upper[i]) / 2
		}
	}

	result, err := neldermead.Minimize(eval, dim, &settings)
	if err != nil {
		slog.Error("Nelder-Mead rejected input", "dim", dim, "error", err)
		n.last = nil
		n.lastErr = err
		return make([]float64, dim), eval(make([]float64, dim))
	}

	n.last = result
	n.lastErr = nil
	return result.X, result.F
}

// LastResult returns the full report of the most recent successful Run, or
// nil.
func (n *NelderMeadAdapter) LastResult() *neldermead.Result {
	return n.last
}

// Err returns the error that rejected the most recent Run, or nil.
func (n *NelderMeadAdapter) Err() error {
	return n.lastErr
}
