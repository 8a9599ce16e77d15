package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assemble/internal/assembler"
	"github.com/conneroisu/assemble/internal/processors"
	"github.com/conneroisu/assemble/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Re-run assembly whenever module binaries appear",
	Long: `Run one assembly, then watch the scan root and run again each time a
module binary is created or replaced. Modules already assembled are kept
and dispatched again alongside the new ones; newly seen modules are printed.
The inventory processor is always turned on while watching, whatever
discovery.builtin names.

Examples:
  assemble watch                     # Watch next to the executable
  assemble watch --root ./plugins    # Watch a specific directory
  assemble watch -v                  # Report every run`,
	RunE: runWatch,
}

var watchVerbose bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Enable verbose output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(processors.NameInventory)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	if !a.config.Scan.Filesystem {
		return fmt.Errorf("nothing to watch: filesystem scanning is disabled")
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.OutOrStdout(), "\n🛑 Stopping watch...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return watchModules(ctx, a, cmd.OutOrStdout(), watchVerbose)
}

// watchModules runs a once, then again after every batch of loadable
// changes under the scan root, until ctx is done. Newly seen modules are
// reported only when a's inventory is one of its processors.
func watchModules(ctx context.Context, a *app, w io.Writer, verbose bool) error {
	out := &lockedWriter{w: w}
	root := a.config.ScanRoot()
	opts := a.assembler.Options()

	events := a.builtins.Inventory.Watch()
	defer a.builtins.Inventory.UnWatch(events)
	go reportAdded(ctx, events, out)

	report, err := a.assembler.Run(ctx)
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}
	printRun(out, report, true)

	fw, err := watcher.NewFileWatcher(a.config.Watch.Debounce, a.logger.WithComponent("watcher"))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtensionFilter(opts.Extensions...))

	fw.AddHandler(func(ctx context.Context, changes []watcher.ChangeEvent) error {
		changes = watcher.Loadable(changes)
		if len(changes) == 0 {
			return nil
		}
		if verbose {
			for _, change := range changes {
				fmt.Fprintf(out, "📝 %s %s\n", change.Type, change.Path)
			}
		}

		report, err := a.assembler.Run(ctx)
		if err != nil {
			fmt.Fprintf(out, "❌ Assembly failed: %v\n", err)
			return err
		}
		printRun(out, report, verbose)
		return nil
	})

	if opts.ScanRecursively {
		err = fw.AddRecursive(root)
	} else {
		err = fw.AddPath(root)
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(out, "👀 Watching %s for module binaries (%v)\n", root, opts.Extensions)

	<-ctx.Done()
	return nil
}

// printRun reports a run. Runs that found nothing new print only when
// always is set.
func printRun(out io.Writer, report assembler.Report, always bool) {
	if report.NewModules == 0 && report.NewProcessors == 0 && !always {
		return
	}
	fmt.Fprintf(out, "✅ Assembled %d modules with %d processors (%d new modules, %d dispatches) in %s\n",
		report.Modules, report.Processors, report.NewModules, report.Dispatches, report.Duration)
}

func reportAdded(ctx context.Context, events <-chan processors.Event, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type == processors.EventTypeAdded {
				fmt.Fprintf(out, "📦 %s (%s)\n", event.Entry.ID, event.Entry.Source)
			}
		}
	}
}

// lockedWriter serializes writes from the run handler and reportAdded.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
