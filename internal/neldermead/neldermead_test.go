package neldermead

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"gonum.org/v1/gonum/optimize"
)

func seeded(seed int64) *Settings {
	s := DefaultSettings()
	s.Rand = rand.New(rand.NewSource(seed))
	return s
}

func quadratic(c []float64) Objective {
	return func(x []float64) float64 {
		var sum float64
		for i := range x {
			d := x[i] - c[i]
			sum += d * d
		}
		return sum
	}
}

func TestMinimizeOneDimension(t *testing.T) {
	f := func(x []float64) float64 { return (x[0] - 3) * (x[0] - 3) }

	result, err := Minimize(f, 1, seeded(1))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if !result.Converged {
		t.Fatalf("Expected convergence, stopped after %d iterations", result.Iterations)
	}
	if len(result.X) != 1 {
		t.Fatalf("Expected 1 coordinate, got %d", len(result.X))
	}
	if math.Abs(result.X[0]-3) > 1e-6 {
		t.Errorf("Expected x near 3, got %v", result.X[0])
	}
	if result.Iterations >= DefaultMaxIterations {
		t.Errorf("Expected convergence well under the cap, took %d iterations", result.Iterations)
	}
}

func TestMinimizeTwoDimensions(t *testing.T) {
	f := func(x []float64) float64 {
		return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2)
	}

	result, err := Minimize(f, 2, seeded(7))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if !result.Converged {
		t.Fatalf("Expected convergence, stopped after %d iterations", result.Iterations)
	}
	want := []float64{1, -2}
	for i := range want {
		if math.Abs(result.X[i]-want[i]) > 1e-6 {
			t.Errorf("Coordinate %d: expected %v, got %v", i, want[i], result.X[i])
		}
	}
	if result.F > 1e-10 {
		t.Errorf("Expected value near 0, got %v", result.F)
	}
}

func TestMinimizeQuadraticCenters(t *testing.T) {
	centers := [][]float64{
		{0.05},
		{-4, 2.5},
		{1, 2, 3},
		{0.3, -0.7, 1.1, -1.9},
	}

	for _, c := range centers {
		result, err := Minimize(quadratic(c), len(c), seeded(42))
		if err != nil {
			t.Fatalf("Minimize failed for center %v: %v", c, err)
		}
		if !result.Converged {
			t.Errorf("Center %v: expected convergence", c)
			continue
		}
		for i := range c {
			if math.Abs(result.X[i]-c[i]) > 1e-5 {
				t.Errorf("Center %v: coordinate %d = %v", c, i, result.X[i])
			}
		}
	}
}

func TestMinimizeConstantTerminates(t *testing.T) {
	f := func(x []float64) float64 { return 0 }

	settings := seeded(3)
	result, err := Minimize(f, 2, settings)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if len(result.X) != 2 {
		t.Fatalf("Expected 2 coordinates, got %d", len(result.X))
	}
	if result.Iterations > settings.MaxIterations {
		t.Errorf("Expected at most %d iterations, got %d", settings.MaxIterations, result.Iterations)
	}
	if result.F != 0 {
		t.Errorf("Expected value 0, got %v", result.F)
	}
}

func TestMinimizeIterationCap(t *testing.T) {
	settings := seeded(5)
	settings.MaxIterations = 10

	result, err := Minimize(quadratic([]float64{100, -100}), 2, settings)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if result.Converged {
		t.Error("Expected no convergence within 10 iterations")
	}
	if result.Iterations != 10 {
		t.Errorf("Expected 10 iterations, got %d", result.Iterations)
	}
	if len(result.X) != 2 {
		t.Fatalf("Expected best-so-far point of length 2, got %d", len(result.X))
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		t.Errorf("Expected finite best-so-far value, got %v", result.F)
	}
}

func TestMinimizeWarnsOnIterationCap(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer slog.SetDefault(prev)

	settings := seeded(5)
	settings.MaxIterations = 3
	if _, err := Minimize(quadratic([]float64{100, -100}), 2, settings); err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "without convergence") {
		t.Errorf("Expected a warning about the iteration cap, got:\n%s", out)
	}
}

func TestMinimizeDeterministic(t *testing.T) {
	f := quadratic([]float64{0.5, -1.5, 2})

	r1, err := Minimize(f, 3, seeded(99))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	r2, err := Minimize(f, 3, seeded(99))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if r1.Iterations != r2.Iterations || r1.Evaluations != r2.Evaluations {
		t.Errorf("Non-deterministic: iterations %d/%d, evaluations %d/%d",
			r1.Iterations, r2.Iterations, r1.Evaluations, r2.Evaluations)
	}
	for i := range r1.X {
		if r1.X[i] != r2.X[i] {
			t.Errorf("Non-deterministic coordinate %d: %v vs %v", i, r1.X[i], r2.X[i])
		}
	}
}

func TestMinimizeStart(t *testing.T) {
	settings := seeded(11)
	settings.Start = []float64{50, 50}

	result, err := Minimize(quadratic([]float64{51, 49}), 2, settings)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if math.Abs(result.X[0]-51) > 1e-5 || math.Abs(result.X[1]-49) > 1e-5 {
		t.Errorf("Expected (51, 49), got %v", result.X)
	}
}

func TestMinimizeNaNRanksWorst(t *testing.T) {
	// NaN everywhere outside the unit box.
	f := func(x []float64) float64 {
		for _, v := range x {
			if math.Abs(v) > 1 {
				return math.NaN()
			}
		}
		return (x[0]-0.5)*(x[0]-0.5) + x[1]*x[1]
	}

	result, err := Minimize(f, 2, seeded(13))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		t.Fatalf("Expected finite best value, got %v", result.F)
	}
	if math.Abs(result.X[0]-0.5) > 1e-5 || math.Abs(result.X[1]) > 1e-5 {
		t.Errorf("Expected (0.5, 0), got %v", result.X)
	}
}

func TestMinimizeObserver(t *testing.T) {
	var events []IterationEvent
	settings := seeded(17)
	settings.Observer = func(ev IterationEvent) {
		events = append(events, ev)
	}

	result, err := Minimize(quadratic([]float64{1, 1}), 2, settings)
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	if len(events) != result.Iterations {
		t.Fatalf("Expected %d events, got %d", result.Iterations, len(events))
	}
	for i, ev := range events {
		if ev.Iteration != i {
			t.Fatalf("Event %d has iteration %d", i, ev.Iteration)
		}
		if i > 0 && ev.BestValue > events[i-1].BestValue {
			t.Errorf("Best value increased at iteration %d: %v -> %v", i, events[i-1].BestValue, ev.BestValue)
		}
	}
	last := events[len(events)-1]
	if last.Spread >= settings.Tolerance {
		t.Errorf("Expected final spread below tolerance, got %v", last.Spread)
	}

	seen := map[Step]bool{}
	for _, ev := range events {
		seen[ev.Step] = true
	}
	if !seen[StepReflect] && !seen[StepExpand] {
		t.Error("Expected at least one reflection or expansion step")
	}
}

func TestMinimizeInvalidInput(t *testing.T) {
	f := quadratic([]float64{0})

	if _, err := Minimize(nil, 1, nil); !errors.Is(err, ErrNilObjective) {
		t.Errorf("Expected ErrNilObjective, got %v", err)
	}
	for _, dim := range []int{0, -3} {
		if _, err := Minimize(f, dim, nil); !errors.Is(err, ErrInvalidDimension) {
			t.Errorf("Dim %d: expected ErrInvalidDimension, got %v", dim, err)
		}
	}

	tests := []struct {
		name   string
		modify func(*Settings)
		want   error
	}{
		{"coefficients", func(s *Settings) { s.Coefficients.Gamma = 0.5 }, ErrInvalidCoefficients},
		{"tolerance", func(s *Settings) { s.Tolerance = -1 }, ErrInvalidSettings},
		{"iterations", func(s *Settings) { s.MaxIterations = 0 }, ErrInvalidSettings},
		{"scale", func(s *Settings) { s.InitialScale = 0 }, ErrInvalidSettings},
		{"infinite scale", func(s *Settings) { s.InitialScale = math.Inf(1) }, ErrInvalidSettings},
		{"start", func(s *Settings) { s.Start = []float64{1, 2} }, ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(s)
			if _, err := Minimize(f, 1, s); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(3); err != nil {
		t.Fatalf("Default settings invalid: %v", err)
	}

	s := DefaultSettings()
	s.InitialScale = math.Inf(1)
	if err := s.Validate(2); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings for infinite scale, got %v", err)
	}

	s = DefaultSettings()
	s.Start = []float64{1, 2}
	if err := s.Validate(3); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings for short start, got %v", err)
	}
}

func TestStepString(t *testing.T) {
	tests := map[Step]string{
		StepReflect:         "reflect",
		StepExpand:          "expand",
		StepContractInside:  "contract-inside",
		StepContractOutside: "contract-outside",
		StepShrink:          "shrink",
		Step(42):            "Step(42)",
	}
	for step, want := range tests {
		if got := step.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

// Cross-check against gonum's Nelder-Mead on the same quadratic.
func TestMinimizeAgreesWithGonum(t *testing.T) {
	c := []float64{2, -1, 0.5}
	f := quadratic(c)

	ours, err := Minimize(f, len(c), seeded(21))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}

	ref, err := optimize.Minimize(optimize.Problem{Func: f}, make([]float64, len(c)), nil, &optimize.NelderMead{})
	if err != nil {
		t.Fatalf("gonum Minimize failed: %v", err)
	}

	for i := range c {
		if math.Abs(ours.X[i]-ref.X[i]) > 1e-3 {
			t.Errorf("Coordinate %d: ours %v, gonum %v", i, ours.X[i], ref.X[i])
		}
	}
}

func BenchmarkMinimizeQuadratic(b *testing.B) {
	f := quadratic([]float64{1, -2, 3, -4, 5})
	for i := 0; i < b.N; i++ {
		if _, err := Minimize(f, 5, seeded(int64(i))); err != nil {
			b.Fatal(err)
		}
	}
}
