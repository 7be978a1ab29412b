package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/emsim/internal/config"
	"github.com/san-kum/emsim/internal/ensemble"
	"github.com/san-kum/emsim/internal/experiment"
	"github.com/san-kum/emsim/internal/sim"
	"github.com/san-kum/emsim/internal/storage"
	"github.com/san-kum/emsim/internal/verify"
)

var (
	dataDir  string
	logLevel string
	logger   = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.Kitchen, Prefix: "emsim"})

	// Run parameters; each overrides the preset and config file only when set.
	configFile   string
	layoutName   string
	blockLen     int
	particles    int
	steps        int
	dt           float64
	workers      int
	spread       float64
	seed         int64
	observeEvery int

	plot bool
	save bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "emsim",
		Short:         "charged particles in uniform electromagnetic fields",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".emsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot deviation from the analytic orbit")
	runCmd.Flags().BoolVar(&save, "save", false, "save a run record")
	runCmd.Flags().IntVar(&observeEvery, "observe-every", 1, "observe metrics every n steps")

	benchCmd := &cobra.Command{
		Use:   "bench [preset]",
		Short: "time every layout on the same initial data",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchLayouts,
	}
	addRunFlags(benchCmd)
	benchCmd.Flags().BoolVar(&save, "save", false, "save a run record per layout")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "check every layout against the closed-form cyclotron orbit",
		Args:  cobra.NoArgs,
		RunE:  verifyLayouts,
	}
	addRunFlags(verifyCmd)
	verifyCmd.Flags().BoolVar(&plot, "plot", true, "plot deviation per step")

	compareCmd := &cobra.Command{
		Use:   "compare [preset]",
		Short: "run every layout and report how far they drift apart",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareLayouts,
	}
	addRunFlags(compareCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-10s %s\n", name, config.Describe(name))
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print a saved run record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&plot, "plot", false, "plot per-step wall time")

	rootCmd.AddCommand(runCmd, benchCmd, verifyCmd, compareCmd, presetsCmd, listCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml or gcfg)")
	cmd.Flags().StringVar(&layoutName, "layout", "soa", "storage layout (aos, soa, chunked)")
	cmd.Flags().IntVar(&blockLen, "block", ensemble.DefaultBlockLen, "block length for the chunked layout")
	cmd.Flags().IntVar(&particles, "particles", config.DefaultParticles, "number of particles")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "time step in seconds")
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel workers per step")
	cmd.Flags().Float64Var(&spread, "spread", 0, "uniform velocity jitter in cm/s")
	cmd.Flags().Int64Var(&seed, "seed", 1, "seed for the velocity jitter")
}

// Particle counts used by bench and verify when neither a config file nor
// --particles gives one.
const (
	benchParticles  = 1 << 14
	verifyParticles = 100
)

// loadConfig resolves preset, then config file, then explicitly set flags.
// A fallbackParticles > 0 replaces the preset's particle count when no
// config file is given and --particles is unset.
func loadConfig(cmd *cobra.Command, args []string, fallbackParticles int) (*config.Config, string, error) {
	cfg := config.DefaultConfig()
	preset := ""
	if len(args) > 0 {
		preset = args[0]
		p, err := config.GetPreset(preset)
		if err != nil {
			return nil, "", err
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg
	} else if fallbackParticles > 0 {
		cfg.Ensemble.Particles = fallbackParticles
	}

	flags := cmd.Flags()
	if flags.Changed("layout") {
		cfg.Ensemble.Layout = layoutName
	}
	if flags.Changed("block") {
		cfg.Ensemble.BlockLen = blockLen
	}
	if flags.Changed("particles") {
		cfg.Ensemble.Particles = particles
	}
	if flags.Changed("steps") {
		cfg.Run.Steps = steps
	}
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = workers
	}
	if flags.Changed("spread") {
		cfg.Ensemble.Spread = spread
	}
	if flags.Changed("seed") {
		cfg.Ensemble.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, preset, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, preset, err := loadConfig(cmd, args, 0)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithObserveEvery(observeEvery))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("running", "setup", exp.Describe(), "steps", cfg.Run.Steps, "dt", cfg.Run.Dt)
	result, err := exp.Run(ctx)
	if err != nil {
		if result == nil || !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warn("interrupted", "steps", result.StepsTaken)
	}

	p, err := exp.Ensemble().Particle(0)
	if err == nil {
		fmt.Printf("particle 0 at t=%.4g s\n", result.Time)
		fmt.Printf("  r = %v cm\n", p.Position)
		fmt.Printf("  v = %v cm/s\n", p.Velocity)
	}

	fmt.Printf("\ncompleted %d steps in %v (%.4g steps/s)\n", result.StepsTaken, result.Elapsed, result.StepsPerSecond())
	printMetrics(result.Metrics)

	if dev := exp.Deviation(); dev != nil {
		verdict := "PASS"
		if !dev.Passed() {
			verdict = "FAIL"
		}
		fmt.Printf("\ncyclotron check: %s (max deviation %.4g cm, tolerance %.4g cm)\n",
			verdict, dev.Value(), dev.Tolerance())
		if plot {
			fmt.Println()
			fmt.Println(asciigraph.Plot(dev.Series(),
				asciigraph.Height(12), asciigraph.Width(72), asciigraph.Caption("deviation from analytic orbit (cm)")))
		}
	} else if plot {
		logger.Warn("no analytic orbit for this setup, nothing to plot")
	}

	if save {
		runID, err := saveRecord("run", preset, exp, result)
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", runID)
	}
	return nil
}

// benchVariant is one layout configuration timed by bench.
type benchVariant struct {
	layout ensemble.Layout
	block  int
}

func benchVariants(cfg *config.Config) []benchVariant {
	vs := []benchVariant{{layout: ensemble.LayoutAoS}, {layout: ensemble.LayoutSoA}}
	blocks := []int{16, 32, 64}
	if !slices.Contains(blocks, cfg.Ensemble.BlockLen) {
		blocks = append(blocks, cfg.Ensemble.BlockLen)
	}
	for _, b := range blocks {
		vs = append(vs, benchVariant{layout: ensemble.LayoutChunked, block: b})
	}
	return vs
}

func benchLayouts(cmd *cobra.Command, args []string) error {
	fallback := 0
	if len(args) == 0 {
		fallback = benchParticles
	}
	cfg, preset, err := loadConfig(cmd, args, fallback)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var st *storage.Store
	if save {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	fmt.Printf("benchmarking %d particles, %d steps, %d workers\n\n", cfg.Ensemble.Particles, cfg.Run.Steps, max(cfg.Run.Workers, 1))

	rows := make([][]string, 0)
	for _, v := range benchVariants(cfg) {
		c := cfg.Clone()
		c.Ensemble.Layout = v.layout.String()
		if v.block > 0 {
			c.Ensemble.BlockLen = v.block
		}

		exp, err := experiment.New(c, experiment.WithLogger(logger), experiment.WithObserveEvery(max(c.Run.Steps, 1)))
		if err != nil {
			return err
		}
		logger.Debug("timing", "setup", exp.Describe())

		result, err := exp.Run(ctx)
		if err != nil {
			return err
		}

		rec := newRecord("bench", preset, exp, result)
		rows = append(rows, []string{
			rec.Layout,
			blockLabel(rec.BlockLen),
			rec.Kernel,
			fmt.Sprintf("%d", rec.Steps),
			result.Elapsed.Round(time.Microsecond).String(),
			fmt.Sprintf("%.4g", rec.StepsPerSec),
			fmt.Sprintf("%.4g", rec.ParticleStepsPerSec),
		})

		if st != nil {
			if _, err := st.Save(rec, result.StepTimes); err != nil {
				return err
			}
		}
	}

	fmt.Println(renderTable([]string{"LAYOUT", "BLOCK", "KERNEL", "STEPS", "TIME", "STEPS/S", "PARTICLE-STEPS/S"}, rows, -1))
	return nil
}

func verifyLayouts(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, []string{"cyclotron"}, verifyParticles)
	if err != nil {
		return err
	}
	oracle, ok := experiment.Oracle(cfg)
	if !ok {
		return fmt.Errorf("setup has no analytic orbit: E must lie along y, B along z, v0 along x")
	}

	ctx, cancel := signalContext()
	defer cancel()

	failed := 0
	rows := make([][]string, 0)
	var series []float64
	for _, v := range benchVariants(cfg) {
		c := cfg.Clone()
		c.Ensemble.Layout = v.layout.String()
		if v.block > 0 {
			c.Ensemble.BlockLen = v.block
		}

		exp, err := experiment.New(c, experiment.WithLogger(logger))
		if err != nil {
			return err
		}
		if _, err := exp.Run(ctx); err != nil {
			return err
		}

		dev := exp.Deviation()
		verdict := "PASS"
		if !dev.Passed() {
			verdict = "FAIL"
			failed++
		}
		if series == nil {
			series = dev.Series()
		}
		rows = append(rows, []string{v.layout.String(), blockLabel(v.block), fmt.Sprintf("%.4g", dev.Value()), verdict})
	}

	fmt.Printf("cyclotron check: %d steps of %g s, tolerance %.4g cm\n\n", cfg.Run.Steps, cfg.Run.Dt, oracle.Tolerance())
	fmt.Println(renderTable([]string{"LAYOUT", "BLOCK", "MAX DEVIATION (cm)", "RESULT"}, rows, 3))

	if plot && len(series) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(series,
			asciigraph.Height(12), asciigraph.Width(72), asciigraph.Caption("deviation per step, aos (cm)")))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d layouts outside tolerance", verify.ErrMismatch, failed, len(rows))
	}
	return nil
}

func compareLayouts(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, args, 0)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	variants := benchVariants(cfg)
	exps := make([]*experiment.Experiment, len(variants))
	jobs := make([]sim.Job, len(variants))
	for i, v := range variants {
		c := cfg.Clone()
		c.Ensemble.Layout = v.layout.String()
		if v.block > 0 {
			c.Ensemble.BlockLen = v.block
		}
		exp, err := experiment.New(c, experiment.WithLogger(logger), experiment.WithObserveEvery(max(c.Run.Steps, 1)))
		if err != nil {
			return err
		}
		exps[i] = exp
		jobs[i] = sim.Job{Name: exp.Describe(), Runner: exp.Runner(), Config: exp.SimConfig()}
	}

	if _, err := sim.RunBatch(ctx, jobs, 0); err != nil {
		return err
	}

	// the SoA run is the reference
	ref := exps[1].Ensemble()
	rows := make([][]string, 0, len(exps))
	for i, exp := range exps {
		d, err := verify.Compare(ref, exp.Ensemble())
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			variants[i].layout.String(),
			blockLabel(variants[i].block),
			fmt.Sprintf("%.3g", d.MaxAbs),
			fmt.Sprintf("%.3g", d.MaxRel),
			fmt.Sprintf("%t", d.Identical),
		})
	}

	fmt.Printf("%d particles after %d steps, compared with soa\n\n", cfg.Ensemble.Particles, cfg.Run.Steps)
	fmt.Println(renderTable([]string{"LAYOUT", "BLOCK", "MAX ABS", "MAX REL", "IDENTICAL"}, rows, -1))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		verdict := "-"
		if r.Passed != nil {
			verdict = "FAIL"
			if *r.Passed {
				verdict = "PASS"
			}
		}
		rows = append(rows, []string{
			r.ID,
			r.Command,
			r.Timestamp.Format("2006-01-02 15:04"),
			r.Layout,
			blockLabel(r.BlockLen),
			fmt.Sprintf("%d", r.Particles),
			fmt.Sprintf("%d", r.Steps),
			fmt.Sprintf("%.4g", r.ParticleStepsPerSec),
			verdict,
		})
	}
	fmt.Println(renderTable([]string{"ID", "CMD", "TIME", "LAYOUT", "BLOCK", "N", "STEPS", "PARTICLE-STEPS/S", "CHECK"}, rows, 8))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	rec, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if err := storage.Export(os.Stdout, rec); err != nil {
		return err
	}

	if plot {
		timings, err := st.LoadTimings(args[0])
		if err != nil {
			return err
		}
		if len(timings) < 2 {
			return nil
		}
		us := make([]float64, len(timings))
		for i, d := range timings {
			us[i] = float64(d.Nanoseconds()) / 1e3
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(us, asciigraph.Height(10), asciigraph.Width(72), asciigraph.Caption("wall time per step (µs)")))
	}
	return nil
}

func saveRecord(command, preset string, exp *experiment.Experiment, result *sim.Result) (string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(newRecord(command, preset, exp, result), result.StepTimes)
}

func newRecord(command, preset string, exp *experiment.Experiment, result *sim.Result) storage.Record {
	cfg := exp.Config()
	n := exp.Ensemble().Len()
	rec := storage.Record{
		Preset:              preset,
		Command:             command,
		Layout:              exp.Ensemble().Layout().String(),
		Kernel:              exp.Pusher().Kernel(),
		Particles:           n,
		Steps:               result.StepsTaken,
		Dt:                  cfg.Run.Dt,
		Workers:             max(cfg.Run.Workers, 1),
		Partitions:          exp.Pusher().Partitions(),
		Elapsed:             result.Elapsed,
		StepsPerSec:         result.StepsPerSecond(),
		ParticleStepsPerSec: result.StepsPerSecond() * float64(n),
		Metrics:             result.Metrics,
	}
	if b, ok := exp.Ensemble().(ensemble.Blocked); ok {
		rec.BlockLen = b.BlockLen()
	}
	if dev := exp.Deviation(); dev != nil {
		worst, passed := dev.Value(), dev.Passed()
		rec.MaxDeviation = &worst
		rec.Passed = &passed
	}
	return rec
}

func blockLabel(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
