package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cwbudde/neldermead/internal/config"
	"github.com/cwbudde/neldermead/internal/objective"
	"github.com/cwbudde/neldermead/internal/opt"
	"github.com/cwbudde/neldermead/internal/trace"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	objName     string
	dim         int
	center      []float64
	startPoint  []float64
	method      string
	seed        int64
	tolerance   float64
	maxIters    int
	scale       float64
	mayflyIters int
	popSize     int
	lowerBound  float64
	upperBound  float64
	traceDir    string
	traceEvery  int
	tracePoints bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Minimize a built-in objective",
	Long: `Runs one optimization of a built-in objective and prints the best point.
Settings come from --config (YAML) and are overridden by explicitly set flags.`,
	RunE: runOptimization,
}

func init() {
	def := config.Default()

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run file")
	runCmd.Flags().StringVar(&objName, "objective", def.Objective, "Objective name (see 'objectives')")
	runCmd.Flags().IntVar(&dim, "dim", def.Dim, "Dimension of the search space")
	runCmd.Flags().Float64SliceVar(&center, "center", nil, "Minimum location for the quadratic objective")
	runCmd.Flags().Float64SliceVar(&startPoint, "start", nil, "Center of the initial simplex (default origin)")
	runCmd.Flags().StringVar(&method, "method", def.Method, "Optimization method: nelder-mead, mayfly")
	runCmd.Flags().Int64Var(&seed, "seed", def.Seed, "Random seed")
	runCmd.Flags().Float64Var(&tolerance, "tolerance", def.Tolerance, "Convergence tolerance on the simplex spread")
	runCmd.Flags().IntVar(&maxIters, "max-iters", def.MaxIterations, "Nelder-Mead iteration cap")
	runCmd.Flags().Float64Var(&scale, "scale", def.InitialScale, "Scale of the random initial simplex")
	runCmd.Flags().IntVar(&mayflyIters, "mayfly-iters", def.Mayfly.Iterations, "Mayfly iterations")
	runCmd.Flags().IntVar(&popSize, "pop", def.Mayfly.Population, "Mayfly population size")
	runCmd.Flags().Float64Var(&lowerBound, "lower", def.Mayfly.Lower, "Mayfly lower bound")
	runCmd.Flags().Float64Var(&upperBound, "upper", def.Mayfly.Upper, "Mayfly upper bound")
	runCmd.Flags().StringVar(&traceDir, "trace-dir", "", "Write an iteration trace under this base directory (read it back with 'trace --trace-dir'; empty disables tracing)")
	runCmd.Flags().IntVar(&traceEvery, "trace-every", def.Trace.Every, "Record one of every N iterations")
	runCmd.Flags().BoolVar(&tracePoints, "trace-points", false, "Include the best point in trace entries")

	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if !cmd.Flags().Changed("log-level") {
			setupLogger(cfg.LogLevel, cmd.OutOrStdout())
		}
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	report, err := executeRun(cfg, uuid.New().String())
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

// applyFlags copies explicitly set flags over the config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("objective") {
		cfg.Objective = objName
	}
	if flags.Changed("dim") {
		cfg.Dim = dim
	}
	if flags.Changed("center") {
		cfg.Center = center
	}
	if flags.Changed("start") {
		cfg.Start = startPoint
	}
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("max-iters") {
		cfg.MaxIterations = maxIters
	}
	if flags.Changed("scale") {
		cfg.InitialScale = scale
	}
	if flags.Changed("mayfly-iters") {
		cfg.Mayfly.Iterations = mayflyIters
	}
	if flags.Changed("pop") {
		cfg.Mayfly.Population = popSize
	}
	if flags.Changed("lower") {
		cfg.Mayfly.Lower = lowerBound
	}
	if flags.Changed("upper") {
		cfg.Mayfly.Upper = upperBound
	}
	if flags.Changed("trace-dir") {
		cfg.Trace.Dir = traceDir
	}
	if flags.Changed("trace-every") {
		cfg.Trace.Every = traceEvery
	}
	if flags.Changed("trace-points") {
		cfg.Trace.Points = tracePoints
	}
}

// runReport summarizes one run for printing.
type runReport struct {
	RunID       string
	Method      string
	Objective   string
	X           []float64
	F           float64
	Converged   bool
	Iterations  int
	Evaluations int
	Elapsed     time.Duration
	TracePath   string
}

// executeRun performs the optimization described by a validated config.
func executeRun(cfg *config.Config, runID string) (*runReport, error) {
	f, err := objective.Lookup(cfg.Objective, cfg.Dim, cfg.Center)
	if err != nil {
		return nil, err
	}

	evaluations := 0
	counted := func(x []float64) float64 {
		evaluations++
		return f(x)
	}

	report := &runReport{
		RunID:     runID,
		Method:    cfg.Method,
		Objective: cfg.Objective,
	}

	slog.Info("Starting optimization",
		"run_id", runID,
		"method", cfg.Method,
		"objective", cfg.Objective,
		"dim", cfg.Dim,
	)

	start := time.Now()

	switch cfg.Method {
	case config.MethodNelderMead:
		settings, err := cfg.Settings()
		if err != nil {
			return nil, err
		}

		var tw *trace.Writer
		if cfg.Trace.Dir != "" {
			opts := []trace.Option{trace.Every(cfg.Trace.Every)}
			if cfg.Trace.Points {
				opts = append(opts, trace.WithPoints())
			}
			tw, err = trace.NewWriter(cfg.Trace.Dir, runID, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create trace: %w", err)
			}
			settings.Observer = tw.Record
			report.TracePath = tw.Path()
		}

		optimizer := opt.NewNelderMead(settings, cfg.Seed)
		report.X, report.F = optimizer.Run(counted, nil, nil, cfg.Dim)

		if tw != nil {
			if err := tw.Close(); err != nil {
				return nil, fmt.Errorf("failed to write trace: %w", err)
			}
		}

		result := optimizer.LastResult()
		if result == nil {
			return nil, fmt.Errorf("nelder-mead run failed: %w", optimizer.Err())
		}
		report.Converged = result.Converged
		report.Iterations = result.Iterations

	case config.MethodMayfly:
		lower, upper := cfg.Bounds()
		optimizer := opt.NewMayfly(cfg.Mayfly.Iterations, cfg.Mayfly.Population, cfg.Seed)
		report.X, report.F = optimizer.Run(counted, lower, upper, cfg.Dim)
		report.Iterations = cfg.Mayfly.Iterations

	default:
		return nil, fmt.Errorf("unknown method: %s", cfg.Method)
	}

	report.Elapsed = time.Since(start)
	report.Evaluations = evaluations

	if report.Method == config.MethodNelderMead && !report.Converged {
		slog.Warn("Optimization did not converge",
			"run_id", runID,
			"iterations", report.Iterations,
			"best_value", report.F,
		)
	} else {
		slog.Info("Optimization complete",
			"run_id", runID,
			"elapsed", report.Elapsed,
			"iterations", report.Iterations,
			"evaluations", report.Evaluations,
			"best_value", report.F,
		)
	}

	return report, nil
}

func printReport(w io.Writer, r *runReport) {
	fmt.Fprintf(w, "run:         %s\n", r.RunID)
	fmt.Fprintf(w, "method:      %s\n", r.Method)
	fmt.Fprintf(w, "objective:   %s\n", r.Objective)
	if r.Method == config.MethodNelderMead {
		fmt.Fprintf(w, "converged:   %t\n", r.Converged)
	}
	fmt.Fprintf(w, "iterations:  %d\n", r.Iterations)
	fmt.Fprintf(w, "evaluations: %d\n", r.Evaluations)
	fmt.Fprintf(w, "best value:  %.10g\n", r.F)
	fmt.Fprintf(w, "best point:  %v\n", r.X)
	if r.TracePath != "" {
		fmt.Fprintf(w, "trace:       %s\n", r.TracePath)
	}
}
