package cmd

import (
	"fmt"
	"slices"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assemble/internal/processors"
	"github.com/conneroisu/assemble/internal/validation"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List every module found by an assembly",
	Long: `Run one assembly and list the modules it found, with where each came
from. With --processors, list the registered processors instead.

Examples:
  assemble list                    # List modules in table format
  assemble list -o json            # Output as JSON (short flag)
  assemble list --sort             # Order by identity, not discovery
  assemble list -p -o yaml         # List processors as YAML`,
	RunE: runList,
}

var (
	listFlags      *StandardFlags
	listSorted     bool
	listProcessors bool
)

// processorRow is one registered processor in list output.
type processorRow struct {
	Type   string `json:"type" yaml:"type"`
	Module string `json:"module" yaml:"module"`
}

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")

	listCmd.Flags().BoolVarP(&listSorted, "sort", "s", false, "Sort modules by identity")
	listCmd.Flags().BoolVarP(&listProcessors, "processors", "p", false, "List processors instead of modules")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if _, err := a.assembler.Run(commandContext(cmd)); err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	out := cmd.OutOrStdout()

	if listProcessors {
		rows := processorRows(a)
		return writeOutput(out, listFlags.OutputFormat, rows, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "TYPE\tMODULE")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\n", row.Type, validation.SanitizeInput(row.Module))
			}
		})
	}

	entries := listEntries(a, listSorted)
	return writeOutput(out, listFlags.OutputFormat, entries, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "MODULE\tSOURCE\tPATH")
		for _, e := range entries {
			path := e.Path
			if path == "" {
				path = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", validation.SanitizeInput(e.ID), e.Source, path)
		}
		if !listFlags.Quiet {
			fmt.Fprintf(tw, "\nTotal: %d modules\n", len(entries))
		}
	})
}

// listEntries reads the inventory when it was registered, or the
// assembler's own record of modules otherwise.
func listEntries(a *app, sorted bool) []processors.Entry {
	var entries []processors.Entry
	if slices.Contains(a.config.Discovery.Builtin, processors.NameInventory) {
		entries = a.builtins.Inventory.Snapshot()
	} else {
		for _, m := range a.assembler.Modules() {
			source := processors.SourceFile
			if m.Path == "" {
				source = processors.SourceResident
			}
			entries = append(entries, processors.Entry{ID: m.ID, Path: m.Path, Source: source})
		}
	}

	if sorted {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	}
	return entries
}

func processorRows(a *app) []processorRow {
	regs := a.assembler.Processors()
	rows := make([]processorRow, 0, len(regs))
	for _, reg := range regs {
		origin := reg.Module
		if origin == "" {
			origin = "builtin"
		}
		rows = append(rows, processorRow{Type: reg.TypeName(), Module: origin})
	}
	return rows
}
