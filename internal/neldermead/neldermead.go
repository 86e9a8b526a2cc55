// Package neldermead minimizes a scalar function over ℝᵈ with the
// derivative-free Nelder-Mead simplex method.
package neldermead

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
)

const (
	// DefaultTolerance is the spread below which a run counts as converged.
	DefaultTolerance = 1e-8
	// DefaultMaxIterations bounds a run that never converges.
	DefaultMaxIterations = 1_000_000
	// DefaultInitialScale scales the random offsets of the initial vertices.
	DefaultInitialScale = 0.1
)

var (
	ErrNilObjective        = errors.New("neldermead: objective is nil")
	ErrInvalidDimension    = errors.New("neldermead: dimension must be positive")
	ErrInvalidCoefficients = errors.New("neldermead: invalid coefficients")
	ErrInvalidSettings     = errors.New("neldermead: invalid settings")
)

// Objective is the function to minimize. It must be deterministic and must
// not modify x.
type Objective func(x []float64) float64

// Step identifies the transformation applied in one iteration.
type Step int

const (
	StepReflect Step = iota
	StepExpand
	StepContractInside
	StepContractOutside
	StepShrink
)

func (s Step) String() string {
	switch s {
	case StepReflect:
		return "reflect"
	case StepExpand:
		return "expand"
	case StepContractInside:
		return "contract-inside"
	case StepContractOutside:
		return "contract-outside"
	case StepShrink:
		return "shrink"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// IterationEvent describes the simplex after one completed iteration.
type IterationEvent struct {
	Iteration int // zero based
	Step      Step
	BestValue float64
	Best      []float64 // copy, safe to retain
	Spread    float64
}

// Settings control a run. The zero value is not usable; start from
// DefaultSettings.
type Settings struct {
	Coefficients Coefficients

	// Tolerance on the distance between the best and the worst vertex.
	Tolerance float64

	MaxIterations int

	// InitialScale multiplies the uniform [-1, 1] offsets of the initial
	// vertices around Start.
	InitialScale float64

	// Start is the center of the initial simplex. Nil means the origin.
	Start []float64

	// Rand is the source for the initial simplex. Nil uses the process-wide
	// source of math/rand.
	Rand *rand.Rand

	// Observer, when set, is called after every iteration.
	Observer func(IterationEvent)
}

// DefaultSettings returns the canonical configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Coefficients:  DefaultCoefficients(),
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		InitialScale:  DefaultInitialScale,
	}
}

// Validate checks the settings for a run in dim dimensions. Failures wrap
// ErrInvalidCoefficients or ErrInvalidSettings.
func (s *Settings) Validate(dim int) error {
	if err := s.Coefficients.Validate(); err != nil {
		return err
	}
	if math.IsNaN(s.Tolerance) || s.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be non-negative, got %v", ErrInvalidSettings, s.Tolerance)
	}
	if s.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidSettings, s.MaxIterations)
	}
	if !(s.InitialScale > 0) || math.IsInf(s.InitialScale, 0) {
		return fmt.Errorf("%w: initial scale must be positive and finite, got %v", ErrInvalidSettings, s.InitialScale)
	}
	if s.Start != nil && len(s.Start) != dim {
		return fmt.Errorf("%w: start has length %d, want %d", ErrInvalidSettings, len(s.Start), dim)
	}
	return nil
}

// Result is the termination report of a run.
type Result struct {
	Converged   bool
	Iterations  int
	X           []float64
	F           float64
	Evaluations int
}

// Minimize searches for a local minimum of f over ℝᵈ. A nil settings uses
// DefaultSettings. Errors are returned only for invalid input; a run that hits
// the iteration cap reports Converged == false together with the best point
// found.
func Minimize(f Objective, dim int, settings *Settings) (*Result, error) {
	if f == nil {
		return nil, ErrNilObjective
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, dim)
	}
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.Validate(dim); err != nil {
		return nil, err
	}

	m := &minimizer{f: f, settings: settings}
	s, err := m.initialSimplex(dim)
	if err != nil {
		return nil, err
	}

	result := &Result{Iterations: settings.MaxIterations}
	for iter := 0; iter < settings.MaxIterations; iter++ {
		step := m.iterate(s)
		spread := s.Spread()

		if settings.Observer != nil {
			b := s.bestIndex()
			settings.Observer(IterationEvent{
				Iteration: iter,
				Step:      step,
				BestValue: s.vertices[b].f,
				Best:      slices.Clone(s.vertices[b].x),
				Spread:    spread,
			})
		}

		if spread < settings.Tolerance {
			slog.Debug("Terminal condition met", "iteration", iter, "spread", spread, "tolerance", settings.Tolerance)
			result.Converged = true
			result.Iterations = iter + 1
			break
		}
	}
	if !result.Converged {
		slog.Warn("Iteration cap reached without convergence", "max_iterations", settings.MaxIterations)
	}

	s.Order()
	result.X, result.F = s.Best()
	result.Evaluations = m.evaluations
	return result, nil
}

type minimizer struct {
	f           Objective
	settings    *Settings
	evaluations int
}

// eval calls the objective and records NaN as +Inf so that such points always
// rank worst.
func (m *minimizer) eval(x []float64) float64 {
	m.evaluations++
	v := m.f(x)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

func (m *minimizer) initialSimplex(dim int) (*Simplex, error) {
	uniform := rand.Float64
	if m.settings.Rand != nil {
		uniform = m.settings.Rand.Float64
	}

	points := make([][]float64, dim+1)
	values := make([]float64, dim+1)
	for i := range points {
		x := make([]float64, dim)
		for j := range x {
			x[j] = m.settings.InitialScale * (2*uniform() - 1)
			if m.settings.Start != nil {
				x[j] += m.settings.Start[j]
			}
		}
		points[i] = x
		values[i] = m.eval(x)
	}
	return NewSimplex(points, values, m.settings.Coefficients)
}

// iterate runs one pass of the decision tree and returns the step taken.
func (m *minimizer) iterate(s *Simplex) Step {
	s.Order()
	d := s.Dim()
	fBest := s.vertices[0].f
	fNext := s.vertices[d-1].f
	fLast := s.vertices[d].f

	xr := s.Reflection()
	fr := m.eval(xr)

	switch {
	case fBest <= fr && fr < fNext:
		s.ReplaceWorst(xr, fr)
		return StepReflect

	case fr < fBest:
		xe := s.Expansion(xr)
		if fe := m.eval(xe); fe < fr {
			s.ReplaceWorst(xe, fe)
			return StepExpand
		}
		s.ReplaceWorst(xr, fr)
		return StepReflect

	case fr < fLast:
		xc := s.Contraction(xr, ContractInside)
		if fc := m.eval(xc); fc < fr {
			s.ReplaceWorst(xc, fc)
			return StepContractInside
		}

	default:
		xc := s.Contraction(xr, ContractOutside)
		if fc := m.eval(xc); fc < fLast {
			s.ReplaceWorst(xc, fc)
			return StepContractOutside
		}
	}

	m.shrink(s)
	return StepShrink
}

func (m *minimizer) shrink(s *Simplex) {
	s.Shrink()
	for i := 1; i < s.Len(); i++ {
		s.SetValue(i, m.eval(s.vertices[i].x))
	}
}
