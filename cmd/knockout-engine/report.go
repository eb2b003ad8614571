// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knockout-engine/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-file>",
	Short: "Print the report of a saved run",
	Long: `Report reads a run file written by search --save and prints the
ranked knockouts with the run summary.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := report.ReadRunFile(args[0])
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return report.FormatJSON(os.Stdout, rf)
		}
		return report.FormatTable(os.Stdout, rf)
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(reportCmd)
}
