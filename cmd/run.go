package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assemble/internal/assembler"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Run one assembly and print the report",
	Long: `Locate resident modules and module binaries, discover the processors
they export and dispatch every module to every processor, once.

Examples:
  assemble run                        # Scan next to the executable
  assemble run --root ./plugins       # Scan a specific directory
  assemble run --recursive=false      # Only the top level of the root
  assemble run -o json                # Print the report as JSON`,
	RunE: runRun,
}

var runFlags *StandardFlags

func init() {
	rootCmd.AddCommand(runCmd)

	runFlags = AddStandardFlags(runCmd, "output")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := runFlags.ValidateFlags(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	report, err := a.assembler.Run(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	if runFlags.Quiet {
		return nil
	}
	var regs []assembler.Registration
	if runFlags.Verbose {
		regs = a.assembler.Processors()
	}
	return writeReport(cmd.OutOrStdout(), runFlags.OutputFormat, report, regs)
}

// writeReport renders report; the table lists regs under it.
func writeReport(w io.Writer, format string, report assembler.Report, regs []assembler.Registration) error {
	return writeOutput(w, format, report, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Run\t%s\n", report.RunID)
		fmt.Fprintf(tw, "Modules\t%d (%d new)\n", report.Modules, report.NewModules)
		fmt.Fprintf(tw, "Processors\t%d (%d new)\n", report.Processors, report.NewProcessors)
		fmt.Fprintf(tw, "Dispatches\t%d\n", report.Dispatches)
		fmt.Fprintf(tw, "Duration\t%s\n", report.Duration)

		for _, reg := range regs {
			origin := reg.Module
			if origin == "" {
				origin = "builtin"
			}
			fmt.Fprintf(tw, "  %s\t%s\n", reg.TypeName(), origin)
		}
	})
}

// commandContext returns the command's context, which is nil when the
// command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// closeApp shuts a down, reporting but not failing on errors.
func closeApp(cmd *cobra.Command, a *app) {
	if err := a.Close(context.WithoutCancel(commandContext(cmd))); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Error during shutdown: %v\n", err)
	}
}
