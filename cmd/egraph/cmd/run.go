package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/internal/demo"
	"github.com/perf-analysis/internal/eclass"
	"github.com/perf-analysis/internal/egraph"
	"github.com/perf-analysis/internal/saturation"
	"github.com/perf-analysis/internal/storage"
	"github.com/perf-analysis/pkg/parallel"
	"github.com/perf-analysis/pkg/telemetry"
	"github.com/perf-analysis/pkg/utils"
	"github.com/perf-analysis/pkg/writer"
)

var (
	runExpr     string
	runFormat   string
	runTraceTo  string
	runTraceDir string
	runProgress bool
	runTiming   bool
)

// runResult is the shape printed by `egraph run`, in either text or JSON.
type runResult struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Classes int    `json:"classes"`
	Changed bool   `json:"changed"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Saturate an arithmetic expression and print the cheapest equivalent term",
	RunE: func(c *cobra.Command, args []string) error {
		return runSaturation(context.Background())
	},
}

func init() {
	runCmd.Flags().StringVar(&runExpr, "expr", "(+ (* x 1) (+ y 0))", "arithmetic expression to saturate, e.g. '(+ x 0)'")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "output format: text or json")
	runCmd.Flags().StringVar(&runTraceTo, "trace-to", "", "storage key to write a zstd-compressed iteration trace under")
	runCmd.Flags().StringVar(&runTraceDir, "trace-dir", "./trace-output", "local storage root trace-to is written under")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "log iteration progress while saturating")
	runCmd.Flags().BoolVar(&runTiming, "timing", false, "print a phase-by-phase timing summary after running")
	rootCmd.AddCommand(runCmd)
}

func runSaturation(ctx context.Context) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx)
		if err != nil {
			log.Warn("telemetry init failed, continuing without it: %v", err)
		} else {
			defer func() { _ = shutdown(ctx) }()
		}
	}

	timer := utils.NewTimer("egraph-run", utils.WithLogger(log), utils.WithEnabled(runTiming))
	defer func() {
		if runTiming {
			timer.PrintSummary()
		}
	}()

	term, err := demo.Parse(runExpr)
	if err != nil {
		return fmt.Errorf("parsing expression: %w", err)
	}

	pm := parallel.NewConcurrent(parallel.Config{MaxWorkers: cfg.Parallel.MaxWorkers})

	g := egraph.New[demo.Op](log)
	insertPhase := timer.Start("insert")
	root, err := demo.Insert(ctx, g, term, pm)
	insertPhase.Stop()
	if err != nil {
		return fmt.Errorf("inserting expression: %w", err)
	}

	inner := saturation.MaximalRuleApplication[demo.Op](demo.Rules())
	var tracker *parallel.ProgressTracker
	if runProgress {
		tracker = parallel.NewProgressTracker(0, func(completed, _ int64) {
			log.Info("saturation: %d iterations applied", completed)
		}, time.Second)
		tracker.Start(ctx)
		defer tracker.Stop()
		inner = saturation.WithProgress[demo.Op, struct{}](inner, tracker)
	}

	strategy := saturation.Instrument[demo.Op, struct{}](
		saturation.UntilFixpoint[demo.Op, struct{}](inner),
		"egraph-run",
	)

	var traceBuf *bytes.Buffer
	var traceStore storage.Storage
	if runTraceTo != "" {
		traceStore, err = storage.NewStorage(runTraceDir)
		if err != nil {
			return fmt.Errorf("opening trace storage: %w", err)
		}
		traceBuf = &bytes.Buffer{}

		traced, err := saturation.TraceDump[demo.Op, struct{}](strategy, traceBuf)
		if err != nil {
			return fmt.Errorf("setting up trace dump: %w", err)
		}
		strategy = traced
	}

	saturatePhase := timer.Start("saturate")
	changed, err := drive(ctx, g, strategy, pm)
	saturatePhase.Stop()
	if err != nil {
		return fmt.Errorf("saturating: %w", err)
	}

	if traceStore != nil {
		if err := traceStore.Upload(ctx, runTraceTo, traceBuf); err != nil {
			return fmt.Errorf("uploading trace: %w", err)
		}
		log.Info("trace written to %s", traceStore.GetURL(runTraceTo))
	}

	extractPhase := timer.Start("extract")
	defer extractPhase.Stop()
	return printResult(g, root, term, changed)
}

// drive runs strategy once to a fixpoint, honoring the configured timeout
// budget (spec.md §4.6's withTimeout composes over any Strategy, including
// the already-instrumented one).
func drive(ctx context.Context, g *egraph.EGraph[demo.Op], strategy saturation.Strategy[demo.Op, struct{}], pm parallel.Map) (bool, error) {
	if cfg.Saturation.TimeoutSeconds <= 0 {
		_, _, changed, err := strategy.Apply(ctx, g, strategy.InitialData(), pm)
		return changed, err
	}
	timed := saturation.WithTimeout[demo.Op, struct{}](strategy, time.Duration(cfg.Saturation.TimeoutSeconds)*time.Second)
	_, _, changed, err := timed.Apply(ctx, g, timed.InitialData(), pm)
	return changed, err
}

func printResult(g *egraph.EGraph[demo.Op], root eclass.EClassCall, input *demo.Term, changed bool) error {
	out, err := demo.ExtractTree(g, root)
	if err != nil {
		return fmt.Errorf("extracting result: %w", err)
	}

	result := runResult{
		Input:   input.String(),
		Output:  out.String(),
		Classes: g.ClassCount(),
		Changed: changed,
	}

	if runFormat == "json" {
		return writer.NewPrettyJSONWriter[runResult]().Write(result, os.Stdout)
	}

	fmt.Printf("input:   %s\n", result.Input)
	fmt.Printf("output:  %s\n", result.Output)
	fmt.Printf("classes: %d\n", result.Classes)
	fmt.Printf("changed: %t\n", result.Changed)
	return nil
}
