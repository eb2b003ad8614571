// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knockout-engine/internal/discover"
	"github.com/pdiddy/knockout-engine/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <model> <keyword>...",
	Short: "Find production targets by keyword",
	Long: `Discover searches reaction and metabolite ids, names, subsystems and
formulas for the given keywords, and lists the reactions that touch each
matching metabolite. Use it to pick a --target for search.

With --boundary, the keywords are metabolite ids and discover lists the
boundary reactions that export each one.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Bool("case-sensitive", false, "match keywords case-sensitively")
	discoverCmd.Flags().Bool("boundary", false, "list boundary reactions for metabolite ids")
	discoverCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if boundary, _ := cmd.Flags().GetBool("boundary"); boundary {
		return runBoundaries(m, args[1:], jsonOutput)
	}

	caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
	res, err := discover.Search(m, discover.Options{Keywords: args[1:], CaseSensitive: caseSensitive})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Reactions) == 0 && len(res.Metabolites) == 0 {
		fmt.Println("No matches found.")
		return nil
	}

	if len(res.Metabolites) > 0 {
		fmt.Fprintf(os.Stdout, "%-20s  %-40s  %-6s  %s\n", "Metabolite", "Name", "Comp", "Matched")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 84))
		for _, mm := range res.Metabolites {
			fmt.Fprintf(os.Stdout, "%-20s  %-40s  %-6s  %s\n",
				clip(mm.ID, 20), clip(mm.Name, 40), mm.Compartment, fieldNames(mm.Fields))
		}
		fmt.Println()
	}

	if len(res.Reactions) > 0 {
		fmt.Fprintf(os.Stdout, "%-20s  %-50s  %s\n", "Reaction", "Equation", "Matched")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 84))
		for _, rm := range res.Reactions {
			matched := fieldNames(rm.Fields)
			if len(rm.Metabolites) > 0 {
				if matched != "" {
					matched += ", "
				}
				matched += "via " + strings.Join(rm.Metabolites, " ")
			}
			fmt.Fprintf(os.Stdout, "%-20s  %-50s  %s\n", clip(rm.ID, 20), clip(rm.Equation, 50), matched)
		}
	}

	fmt.Fprintf(os.Stdout, "\n%d reactions, %d metabolites\n", len(res.Reactions), len(res.Metabolites))
	return nil
}

func runBoundaries(m *model.Model, metabolites []string, jsonOutput bool) error {
	out := make(map[string][]discover.ReactionMatch, len(metabolites))
	for _, met := range metabolites {
		rxs, err := discover.Boundaries(m, met)
		if err != nil {
			return err
		}
		matches := make([]discover.ReactionMatch, 0, len(rxs))
		for _, rx := range rxs {
			matches = append(matches, discover.ReactionMatch{
				ID:         rx.ID,
				Name:       rx.Name,
				Equation:   discover.Equation(rx),
				LowerBound: rx.LowerBound,
				UpperBound: rx.UpperBound,
			})
		}
		out[met] = matches
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, met := range metabolites {
		switch rxs := out[met]; len(rxs) {
		case 0:
			fmt.Printf("%s: no boundary reaction (search with --add-demand to create one)\n", met)
		default:
			for _, rm := range rxs {
				fmt.Printf("%s: %s  %s  [%g, %g]\n", met, rm.ID, rm.Equation, rm.LowerBound, rm.UpperBound)
			}
		}
	}
	return nil
}

func fieldNames(fields []discover.FieldMatch) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	return strings.Join(names, ", ")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
