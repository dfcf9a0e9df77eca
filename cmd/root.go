package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	sim "github.com/opticsim/opticsim/sim"
	"github.com/opticsim/opticsim/sim/commands"
	_ "github.com/opticsim/opticsim/sim/effects" // registers every effect class
	"github.com/opticsim/opticsim/sim/fits"
	"github.com/opticsim/opticsim/sim/metrics"
	"github.com/opticsim/opticsim/sim/trace"
)

var (
	configPaths []string // Configuration YAML files, loaded in order
	modes       []string // Instrument modes to activate
	filterName  string   // Filter selected through !OBS.filter_name
	setValues   []string // Overrides of the form !SECTION.key=value
	logLevel    string   // Log verbosity level

	// run only
	sourcePath string // Source YAML file
	outputPath string // FITS output path
	metricsOut string // Prometheus textfile output path
	traceLevel string // Pipeline trace level
	fovWorkers int    // Parallel FOV workers
	seed       int64  // Seed for detector noise
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "opticsim",
	Short: "Optical train simulator for astronomical instruments",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// runCmd observes a source through the configured optical train and writes the readout
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Observe a source and read out the detectors",
	Run: func(cmd *cobra.Command, args []string) {
		if sourcePath == "" {
			logrus.Fatalf("--source is required")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("unknown trace level %q", traceLevel)
		}

		cmds, err := loadCommands()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		// CLI --seed only wins when set explicitly; otherwise the configured seed stays.
		if cmd.Flags().Changed("seed") {
			cmds.Define("!SIM.random.seed", seed)
		}

		srcCfg, err := LoadSourceConfig(sourcePath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		src, err := srcCfg.Build()
		if err != nil {
			logrus.Fatalf("invalid source: %v", err)
		}

		collector := metrics.NewCollector("")
		pt := trace.NewPipelineTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})

		startTime := time.Now()
		train, err := sim.NewOpticalTrain(cmds,
			sim.WithMetrics(collector),
			sim.WithTrace(pt),
			sim.WithFOVWorkers(fovWorkers),
		)
		if err != nil {
			logrus.Fatalf("building optical train: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := train.Observe(ctx, src, sim.ObserveOptions{}); err != nil {
			logrus.Fatalf("observe: %v", err)
		}
		products, err := train.Readout(ctx, sim.ReadoutOptions{OutputPath: outputPath})
		if err != nil {
			logrus.Fatalf("readout: %v", err)
		}

		printProducts(train.ObservationID(), products)
		if pt.Enabled() {
			printTraceSummary(trace.Summarize(pt))
		}
		if metricsOut != "" {
			if err := collector.WriteTextfile(metricsOut); err != nil {
				logrus.Fatalf("writing metrics: %v", err)
			}
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// loadCommands builds the configuration from the shared flags.
func loadCommands() (*commands.UserCommands, error) {
	if len(configPaths) == 0 {
		return nil, fmt.Errorf("at least one --config file is required")
	}
	cmds, err := commands.Load(configPaths...)
	if err != nil {
		return nil, err
	}
	if len(modes) > 0 {
		if err := cmds.SetModes(modes...); err != nil {
			return nil, err
		}
	}
	if filterName != "" {
		cmds.SelectFilter(filterName)
	}
	overrides, err := parseOverrides(setValues)
	if err != nil {
		return nil, err
	}
	cmds.Update(overrides)
	return cmds, nil
}

// parseOverrides turns "!SEC.key=value" flags into an override map. Values are YAML
// scalars or flow collections, so "10" is an int and "[1, 2]" a list.
func parseOverrides(values []string) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for _, kv := range values {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "!") {
			return nil, fmt.Errorf("--set %q: want !SECTION.key=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("--set %q: %w", kv, err)
		}
		out[key] = v
	}
	return out, nil
}

func printProducts(obsID string, products []fits.HDUList) {
	fmt.Println("=== Readout ===")
	fmt.Printf("Observation: %s\n", obsID)
	for i, hdus := range products {
		for j, hdu := range hdus[1:] {
			if hdu.Data == nil {
				continue
			}
			id, _ := hdu.Header.Get("ID")
			fmt.Printf("product %d detector %d (id=%v): sum=%.6g max=%.6g\n",
				i, j, id, mat.Sum(hdu.Data), mat.Max(hdu.Data))
		}
	}
}

func printTraceSummary(s *trace.TraceSummary) {
	fmt.Println("=== Trace Summary ===")
	fmt.Printf("Effect applications: %d (%d unique)\n", s.TotalApplications, s.UniqueEffects)
	fmt.Printf("FOVs: %d, observations: %d, readouts: %d\n", s.TotalFOVs, s.Observations, s.Readouts)
	stages := make([]string, 0, len(s.StageCounts))
	for stage := range s.StageCounts {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		fmt.Printf("  %-16s %d\n", stage, s.StageCounts[stage])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringArrayVar(&configPaths, "config", nil, "Configuration YAML file (can be repeated)")
	rootCmd.PersistentFlags().StringSliceVar(&modes, "mode", nil, "Instrument mode to activate (can be repeated)")
	rootCmd.PersistentFlags().StringVar(&filterName, "filter", "", "Filter name written to !OBS.filter_name")
	rootCmd.PersistentFlags().StringArrayVar(&setValues, "set", nil, "Override a configuration key, e.g. --set '!OBS.dit=10'")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&sourcePath, "source", "", "Source YAML file")
	runCmd.Flags().StringVar(&outputPath, "output", "", "FITS output path; further detector arrays get _<n> suffixes")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this path")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Pipeline trace level (none, effects)")
	runCmd.Flags().IntVar(&fovWorkers, "workers", 1, "Number of FOVs processed in parallel")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for detector noise (overrides !SIM.random.seed)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
