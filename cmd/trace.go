package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cwbudde/neldermead/internal/trace"
	"github.com/spf13/cobra"
)

var (
	showTraceDir string
	showTail     int
)

var traceCmd = &cobra.Command{
	Use:   "trace <run-id>",
	Short: "Print the iteration trace of a run",
	Long:  `Prints the entries recorded by 'run --trace-dir' for the given run ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShowTrace,
}

func init() {
	traceCmd.Flags().StringVar(&showTraceDir, "trace-dir", "./traces", "Base directory passed to 'run --trace-dir'")
	traceCmd.Flags().IntVar(&showTail, "tail", 0, "Show only the last N entries (0 = all)")
	rootCmd.AddCommand(traceCmd)
}

func runShowTrace(cmd *cobra.Command, args []string) error {
	reader, err := trace.NewReader(showTraceDir, args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Trace is empty.")
		return nil
	}
	if showTail > 0 && len(entries) > showTail {
		entries = entries[len(entries)-showTail:]
	}

	return printTrace(cmd.OutOrStdout(), entries)
}

func printTrace(out io.Writer, entries []trace.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITERATION\tSTEP\tBEST VALUE\tSPREAD")
	fmt.Fprintln(w, "---------\t----\t----------\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%.10g\t%.3e\n", e.Iteration, e.Step, e.BestValue, e.Spread)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nEntries: %d\n", len(entries))
	return nil
}
