package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/neldermead/internal/objective"
	"github.com/spf13/cobra"
)

var objectivesCmd = &cobra.Command{
	Use:   "objectives",
	Short: "List the built-in objective functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, name := range objective.Names() {
			fmt.Fprintf(w, "%s\t%s\n", name, objective.Describe(name))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(objectivesCmd)
}
