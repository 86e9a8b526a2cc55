package opt

// Optimizer is a minimizer over a box-shaped region of interest.
type Optimizer interface {
	// Run minimizes eval over dim parameters.
	// lower, upper: region of interest; local methods use it only to place
	// their starting point and may leave it.
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
