package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"popgraph/internal/config"
	"popgraph/internal/core"
	"popgraph/internal/logging"
	"popgraph/internal/metrics"
)

// app carries the state shared by every subcommand for one invocation.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath  string
	jsonOutput  bool
	trace       bool
	metricsFile string

	cfg     config.Config
	rt      *core.Runtime
	metrics *metrics.Recorder
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	rc := &cobra.Command{
		Use:   "popgraph",
		Short: "Ingest population spreadsheets and render age distribution charts.",
		Long: `popgraph stores uploaded population-by-age spreadsheets as datasets keyed by
content fingerprint and renders bar charts of them.

Configuration is read from an optional YAML file (--config) and POPGRAPH_*
environment variables, which take precedence.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.open(cmd.Context()) },
	}
	flags := rc.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file to read from.")
	flags.BoolVar(&a.jsonOutput, "json", false, "Print results as JSON.")
	flags.BoolVar(&a.trace, "trace", false, "Write one JSON span per operation to stderr.")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit (textfile collector format).")

	rc.AddCommand(newIngestCommand(a))
	rc.AddCommand(newDatasetsCommand(a))
	rc.AddCommand(newRenderCommand(a))
	rc.AddCommand(newSeriesCommand(a))
	rc.AddCommand(newDeleteCommand(a))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logger := logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Output: a.stderr})

	a.metrics = metrics.New()
	opts := []core.ServiceOption{
		core.WithLogger(logger.With("component", "core")),
		core.WithMetricsRecorder(a.metrics),
	}
	if a.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	rt, err := core.Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	a.rt = rt
	return nil
}

// runE adapts fn to cobra and releases the runtime whether or not fn fails.
func (a *app) runE(fn func(ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, a.close())
		}()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, args)
	}
}

func (a *app) close() error {
	if a.metricsFile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
			return err
		}
	}
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
