// Package objective provides named test functions for the optimizers.
package objective

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/neldermead/internal/neldermead"
	"gonum.org/v1/gonum/optimize/functions"
)

// ErrUnknown is returned by Lookup for a name that is not registered.
var ErrUnknown = errors.New("objective: unknown function")

type entry struct {
	description string
	// fixedDim is the only dimension the function supports; 0 means any.
	fixedDim int
	build    func(dim int, center []float64) neldermead.Objective
}

var registry = map[string]entry{
	"sphere": {
		description: "sum of squares, minimum at the origin",
		build: func(int, []float64) neldermead.Objective {
			return Sphere
		},
	},
	"quadratic": {
		description: "squared distance to --center, minimum at the center",
		build: func(dim int, center []float64) neldermead.Objective {
			return Quadratic(center)
		},
	},
	"rosenbrock": {
		description: "extended Rosenbrock, minimum at (1, ..., 1)",
		build: func(int, []float64) neldermead.Objective {
			return functions.ExtendedRosenbrock{}.Func
		},
	},
	"beale": {
		description: "Beale function, minimum at (3, 0.5)",
		fixedDim:    2,
		build: func(int, []float64) neldermead.Objective {
			return functions.Beale{}.Func
		},
	},
	"constant": {
		description: "always 0",
		build: func(int, []float64) neldermead.Objective {
			return func([]float64) float64 { return 0 }
		},
	},
}

// Names returns the registered objective names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line description of the named objective.
func Describe(name string) string {
	return registry[name].description
}

// Lookup builds the named objective for the given dimension. The center is
// only used by "quadratic"; nil means the origin.
func Lookup(name string, dim int, center []float64) (neldermead.Objective, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("objective %s: dimension must be positive, got %d", name, dim)
	}
	if e.fixedDim != 0 && dim != e.fixedDim {
		return nil, fmt.Errorf("objective %s: requires dimension %d, got %d", name, e.fixedDim, dim)
	}
	if name == "rosenbrock" && dim < 2 {
		return nil, fmt.Errorf("objective %s: requires dimension >= 2, got %d", name, dim)
	}
	if center == nil {
		center = make([]float64, dim)
	}
	if len(center) != dim {
		return nil, fmt.Errorf("objective %s: center has length %d, want %d", name, len(center), dim)
	}
	return e.build(dim, center), nil
}

// Sphere is f(x) = Σ xᵢ².
func Sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Quadratic returns f(x) = ‖x − c‖².
func Quadratic(c []float64) neldermead.Objective {
	c = append([]float64(nil), c...)
	return func(x []float64) float64 {
		var sum float64
		for i, v := range x {
			d := v - c[i]
			sum += d * d
		}
		return sum
	}
}
