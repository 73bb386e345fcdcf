package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AndresSepulveda/gpu-ocean/internal/compute"
	"github.com/AndresSepulveda/gpu-ocean/internal/config"
	"github.com/AndresSepulveda/gpu-ocean/internal/experiment"
	"github.com/AndresSepulveda/gpu-ocean/internal/metrics"
	"github.com/AndresSepulveda/gpu-ocean/internal/storage"
	"github.com/AndresSepulveda/gpu-ocean/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	duration   float64
	dt         float64
	every      float64
	euler      bool
	kernelName string
	saveFields bool
	series     []string
	theme      string

	logger *log.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oceansim",
		Short: "shallow-water ocean simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				Prefix:          "oceansim",
			})
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".oceansim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scenario and store its diagnostics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().StringVar(&kernelName, "kernel", "rusanov", "flux kernel")
	runCmd.Flags().BoolVar(&saveFields, "fields", false, "store surface elevation at every output")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scenario with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "ocean", "colour theme (ocean, thermal, minimal)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&series, "series", []string{"mass", "energy", "cfl"},
		"series to plot ("+strings.Join(viz.SeriesNames(), ", ")+")")

	showCmd := &cobra.Command{
		Use:   "show [run_id] [output]",
		Short: "draw a stored surface elevation field",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  showField,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tGRID\tDT\tDURATION\tBOUNDARY\tBOTTOM")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%dx%d\t%gs\t%gs\t%s\t%s\n",
					name, p.Grid.Nx, p.Grid.Ny, p.Scheme.Dt, p.Scheme.Duration,
					boundaryLabel(p), p.Bathymetry.Kind)
			}
			return w.Flush()
		},
	}

	backendCmd := &cobra.Command{
		Use:   "backend",
		Short: "show the compute backend that would be used",
		Run: func(cmd *cobra.Command, args []string) {
			b := compute.AutoSelectBackend()
			defer b.Cleanup()
			fmt.Printf("backend: %s\n", b.Name())
			fmt.Printf("execution: %s\n", compute.Execution(b))
			if b.Name() == "cpu" {
				fmt.Println("opencl: unavailable (build with -tags opencl and an OpenCL runtime)")
			}
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, showCmd, presetsCmd, backendCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated duration in seconds")
	cmd.Flags().Float64Var(&dt, "dt", 0, "time step in seconds")
	cmd.Flags().Float64Var(&every, "every", 0, "output interval in seconds")
	cmd.Flags().BoolVar(&euler, "euler", false, "use forward Euler instead of RK2")
}

// loadScenario resolves the preset or config file and applies any flags
// that were set explicitly.
func loadScenario(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	case len(args) == 1:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", args[0], strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.GetPreset("bump")
	}

	if cmd.Flags().Changed("time") {
		cfg.Scheme.Duration = duration
	}
	if cmd.Flags().Changed("dt") {
		cfg.Scheme.Dt = dt
	}
	if cmd.Flags().Changed("every") {
		cfg.Scheme.Every = every
	}
	if euler {
		cfg.Scheme.Integrator = "euler"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func boundaryLabel(cfg *config.Config) string {
	b := cfg.Boundary
	return strings.Join([]string{b.North, b.East, b.South, b.West}, "/")
}

func newExperiment(cfg *config.Config, opts ...experiment.Option) (*experiment.Experiment, error) {
	backend := compute.AutoSelectBackend()
	compute.SetBackend(backend)
	logger.Debug("backend selected", "name", backend.Name(), "execution", compute.Execution(backend))

	opts = append([]experiment.Option{
		experiment.WithBackend(backend),
		experiment.WithLogger(logger),
	}, opts...)
	exp := experiment.New(cfg, opts...)
	if err := exp.Setup(metrics.Default()); err != nil {
		return nil, err
	}
	return exp, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	exp, err := newExperiment(cfg, experiment.WithKernel(kernelName))
	if err != nil {
		return err
	}
	defer exp.Close()

	var etas [][][]float32
	if saveFields {
		exp.AddObserver(func(index int, snap *metrics.Snapshot) error {
			etas = append(etas, snap.Eta)
			return nil
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("running", "scenario", cfg.Name, "nx", cfg.Grid.Nx, "ny", cfg.Grid.Ny,
		"integrator", cfg.Scheme.Integrator, "duration", cfg.Scheme.Duration)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	nx, ny := exp.Simulator().Dims()
	runID, err := st.Save(storage.RunMetadata{
		Scenario:   cfg.Name,
		Nx:         nx,
		Ny:         ny,
		Dx:         cfg.Grid.Dx,
		Dy:         cfg.Grid.Dy,
		Dt:         cfg.Scheme.Dt,
		Duration:   result.Time,
		Integrator: cfg.Scheme.Integrator,
		Boundary:   boundaryLabel(cfg),
		Backend:    compute.GetBackend().Name(),
		Metrics:    result.Metrics,
	}, result.Samples)
	if err != nil {
		return err
	}

	if err := config.Save(filepath.Join(st.Dir(runID), "scenario.yaml"), cfg); err != nil {
		return err
	}
	if saveFields {
		for i, eta := range etas {
			if _, err := st.WriteField(runID, "eta", i, eta); err != nil {
				return err
			}
		}
	} else if result.Final != nil {
		if _, err := st.WriteField(runID, "eta", len(result.Samples)-1, result.Final.Eta); err != nil {
			return err
		}
	}

	logger.Info("completed", "elapsed", elapsed.Round(time.Millisecond), "outputs", len(result.Samples))
	fmt.Printf("run id: %s\n", runID)
	fmt.Println(viz.Summary(cfg.Name, result.Metrics))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	viz.SetTheme(theme)

	exp, err := newExperiment(cfg)
	if err != nil {
		return err
	}
	defer exp.Close()

	interval := cfg.Scheme.Every
	if interval <= 0 {
		interval = cfg.Scheme.Dt
	}
	p := tea.NewProgram(viz.NewLiveModel(exp, interval, cfg.Scheme.Duration), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tGRID\tDURATION\tDT\tINTEG\tBACKEND")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%.0fs\t%gs\t%s\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Nx, run.Ny,
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Backend,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s, %dx%d, %s)\n\n", meta.ID, meta.Scenario, meta.Nx, meta.Ny, meta.Integrator)
	for _, name := range series {
		out, err := viz.PlotSeries(samples, name, 60, 10)
		if err != nil {
			return err
		}
		fmt.Println(out)
		fmt.Println()
	}
	fmt.Println(viz.Summary("metrics", meta.Metrics))
	return nil
}

func showField(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Load(args[0]); err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(st.Dir(args[0]), "eta_*.csv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no stored fields for run %s", args[0])
	}
	sort.Strings(files)

	path := files[len(files)-1]
	if len(args) == 2 {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid output index %q: %w", args[1], err)
		}
		path = filepath.Join(st.Dir(args[0]), fmt.Sprintf("eta_%04d.csv", index))
	}
	field, err := storage.ReadField(path)
	if err != nil {
		return err
	}
	if len(field) == 0 || len(field[0]) == 0 {
		return fmt.Errorf("empty field in %s", path)
	}

	lo, hi := viz.Range(field)
	width, height := min(len(field[0]), 80), min(len(field), 30)
	fmt.Println(filepath.Base(path))
	fmt.Print(viz.Heatmap(field, width, height, lo, hi))
	fmt.Println(viz.ColorBar(width, lo, hi))
	return nil
}
