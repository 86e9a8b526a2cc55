package neldermead

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Coefficients are the shape parameters of the method. They are fixed for the
// lifetime of a simplex.
type Coefficients struct {
	Alpha float64 // reflection, > 0
	Gamma float64 // expansion, > 1
	Rho   float64 // contraction, in (0, 1)
	Sigma float64 // shrink, in (0, 1)
}

// DefaultCoefficients returns the canonical values α=1, γ=2, ρ=0.5, σ=0.5.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		Alpha: 1,
		Gamma: 2,
		Rho:   0.5,
		Sigma: 0.5,
	}
}

// Validate reports whether the coefficients describe a usable simplex method.
func (c Coefficients) Validate() error {
	switch {
	case !(c.Alpha > 0) || math.IsInf(c.Alpha, 0):
		return fmt.Errorf("%w: alpha must be positive, got %v", ErrInvalidCoefficients, c.Alpha)
	case !(c.Gamma > 1) || math.IsInf(c.Gamma, 0):
		return fmt.Errorf("%w: gamma must be greater than 1, got %v", ErrInvalidCoefficients, c.Gamma)
	case !(c.Rho > 0 && c.Rho < 1):
		return fmt.Errorf("%w: rho must be in (0, 1), got %v", ErrInvalidCoefficients, c.Rho)
	case !(c.Sigma > 0 && c.Sigma < 1):
		return fmt.Errorf("%w: sigma must be in (0, 1), got %v", ErrInvalidCoefficients, c.Sigma)
	}
	return nil
}

// ContractionMode selects the pivot side of a contraction.
type ContractionMode int

const (
	// ContractInside moves from the centroid toward the reflected point:
	// x0 + ρ·(xr − x0).
	ContractInside ContractionMode = iota
	// ContractOutside moves from the centroid toward the worst vertex:
	// x0 + ρ·(worst − x0).
	ContractOutside
)

type vertex struct {
	x []float64
	f float64
}

// Simplex holds d+1 candidate points in d dimensions together with their
// cached objective values. It never evaluates the objective itself; values
// are supplied by the caller.
//
// The centroid and the geometric operations are only valid after Order and
// before the next mutation.
type Simplex struct {
	coef     Coefficients
	vertices []vertex
	centroid []float64
	ordered  bool
}

// NewSimplex builds a simplex from d+1 points of dimension d and their
// objective values. The simplex takes ownership of the point slices.
func NewSimplex(points [][]float64, values []float64, coef Coefficients) (*Simplex, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidDimension, len(points))
	}
	if len(values) != len(points) {
		return nil, fmt.Errorf("neldermead: %d values for %d points", len(values), len(points))
	}
	if err := coef.Validate(); err != nil {
		return nil, err
	}

	dim := len(points) - 1
	vertices := make([]vertex, len(points))
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has length %d, want %d", ErrInvalidDimension, i, len(p), dim)
		}
		vertices[i] = vertex{x: p, f: values[i]}
	}

	return &Simplex{
		coef:     coef,
		vertices: vertices,
		centroid: make([]float64, dim),
	}, nil
}

// Dim returns the dimension of the search space.
func (s *Simplex) Dim() int { return len(s.centroid) }

// Len returns the number of vertices, always Dim()+1.
func (s *Simplex) Len() int { return len(s.vertices) }

// Coefficients returns the shape coefficients.
func (s *Simplex) Coefficients() Coefficients { return s.coef }

// Vertex returns a copy of vertex i in the current storage order.
func (s *Simplex) Vertex(i int) []float64 {
	return slices.Clone(s.vertices[i].x)
}

// Value returns the cached objective value of vertex i. It is NaN for
// vertices moved by Shrink until SetValue is called.
func (s *Simplex) Value(i int) float64 {
	return s.vertices[i].f
}

// SetValue records the objective value of vertex i.
func (s *Simplex) SetValue(i int, f float64) {
	s.vertices[i].f = f
	s.ordered = false
}

// Order sorts the vertices ascending by value and recomputes the centroid of
// all vertices except the worst. Ties keep their previous relative order.
func (s *Simplex) Order() {
	slices.SortStableFunc(s.vertices, func(a, b vertex) int {
		return cmp.Compare(a.f, b.f)
	})

	for i := range s.centroid {
		s.centroid[i] = 0
	}
	d := s.Dim()
	for _, v := range s.vertices[:d] {
		floats.Add(s.centroid, v.x)
	}
	floats.Scale(1/float64(d), s.centroid)
	s.ordered = true
}

// Centroid returns a copy of the centroid computed by the last Order.
func (s *Simplex) Centroid() []float64 {
	s.mustBeOrdered()
	return slices.Clone(s.centroid)
}

// Best returns a copy of the best vertex and its value.
func (s *Simplex) Best() ([]float64, float64) {
	s.mustBeOrdered()
	v := s.vertices[0]
	return slices.Clone(v.x), v.f
}

// SecondWorst returns a copy of the second worst vertex and its value. For
// d = 1 it coincides with the best vertex.
func (s *Simplex) SecondWorst() ([]float64, float64) {
	s.mustBeOrdered()
	v := s.vertices[s.Dim()-1]
	return slices.Clone(v.x), v.f
}

// Worst returns a copy of the worst vertex and its value.
func (s *Simplex) Worst() ([]float64, float64) {
	s.mustBeOrdered()
	v := s.vertices[s.Dim()]
	return slices.Clone(v.x), v.f
}

// Reflection returns x0 + α·(x0 − worst).
func (s *Simplex) Reflection() []float64 {
	s.mustBeOrdered()
	dir := floats.SubTo(make([]float64, s.Dim()), s.centroid, s.worst())
	return floats.AddScaledTo(make([]float64, s.Dim()), s.centroid, s.coef.Alpha, dir)
}

// Expansion returns x0 + γ·(xr − x0).
func (s *Simplex) Expansion(xr []float64) []float64 {
	s.mustBeOrdered()
	return s.towards(xr, s.coef.Gamma)
}

// Contraction returns x0 + ρ·(xr − x0) for ContractInside and
// x0 + ρ·(worst − x0) for ContractOutside.
func (s *Simplex) Contraction(xr []float64, mode ContractionMode) []float64 {
	s.mustBeOrdered()
	if mode == ContractOutside {
		return s.towards(s.worst(), s.coef.Rho)
	}
	return s.towards(xr, s.coef.Rho)
}

// ReplaceWorst swaps the worst vertex for x with value f. The simplex takes
// ownership of x.
func (s *Simplex) ReplaceWorst(x []float64, f float64) {
	if len(x) != s.Dim() {
		panic("neldermead: replacement vertex has wrong dimension")
	}
	s.vertices[s.Dim()] = vertex{x: x, f: f}
	s.ordered = false
}

// Shrink pulls every vertex except the best toward it:
// vᵢ ← best + σ·(vᵢ − best). Moved vertices get a NaN value until the
// caller supplies a fresh one with SetValue.
func (s *Simplex) Shrink() {
	s.mustBeOrdered()
	best := s.vertices[0].x
	for i := 1; i < len(s.vertices); i++ {
		x := s.vertices[i].x
		floats.Sub(x, best)
		floats.Scale(s.coef.Sigma, x)
		floats.Add(x, best)
		s.vertices[i].f = math.NaN()
	}
	s.ordered = false
}

// Spread is the Euclidean distance between the first and the last vertex
// slot. Right after Order these are the best and the worst vertex.
func (s *Simplex) Spread() float64 {
	return floats.Distance(s.vertices[0].x, s.vertices[len(s.vertices)-1].x, 2)
}

// bestIndex scans the cached values; it does not require ordering.
func (s *Simplex) bestIndex() int {
	best := 0
	for i, v := range s.vertices {
		if v.f < s.vertices[best].f {
			best = i
		}
	}
	return best
}

func (s *Simplex) worst() []float64 {
	return s.vertices[s.Dim()].x
}

// towards returns x0 + c·(p − x0).
func (s *Simplex) towards(p []float64, c float64) []float64 {
	dir := floats.SubTo(make([]float64, s.Dim()), p, s.centroid)
	return floats.AddScaledTo(make([]float64, s.Dim()), s.centroid, c, dir)
}

func (s *Simplex) mustBeOrdered() {
	if !s.ordered {
		panic("neldermead: simplex used before Order")
	}
}
