package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/san-kum/qctrl/internal/analysis"
	"github.com/san-kum/qctrl/internal/config"
	"github.com/san-kum/qctrl/internal/dynamics"
	"github.com/san-kum/qctrl/internal/fidelity"
	"github.com/san-kum/qctrl/internal/optim"
	"github.com/san-kum/qctrl/internal/storage"
	"github.com/san-kum/qctrl/internal/viz"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	dataDir string
	logger  *log.Logger

	configFile  string
	preset      string
	nTS         int
	evoTime     float64
	seed        int64
	fidErrTarg  float64
	maxIter     int
	maxWallTime float64
	propType    string
	fidType     string
	phaseOption string
	workers     int

	showStats bool
	showPlot  bool
	ampsOut   string

	sweepEvoTimes []float64
	sweepNumTS    []int
	sweepJobs     int

	showInitial bool
	outFile     string
	writePath   string
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("qctrl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "qctrl",
		Short:         "CRAB optimal control of closed quantum systems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("data", ".qctrl", "data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("theme", viz.ThemeBloch.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	for _, name := range []string{"data", "log-level", "theme"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "optimise a preset or problem file",
		Args:  cobra.NoArgs,
		RunE:  runOptimisation,
	}
	problemFlags(runCmd)
	runCmd.Flags().BoolVar(&showStats, "stats", false, "print the stats report")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the final amplitudes")
	runCmd.Flags().StringVar(&ampsOut, "amps-out", "", "also write final amplitudes to this file")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "optimise with a live progress view",
		Args:  cobra.NoArgs,
		RunE:  watchOptimisation,
	}
	problemFlags(watchCmd)
	watchCmd.Flags().BoolVar(&showStats, "stats", false, "print the stats report")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "optimise over a grid of evolution times and slot counts",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	problemFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepEvoTimes, "evo-times", nil, "evolution times to try")
	sweepCmd.Flags().IntSliceVar(&sweepNumTS, "n-ts-list", nil, "slot counts to try")
	sweepCmd.Flags().IntVar(&sweepJobs, "jobs", 2, "optimisations run at once")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored amplitudes",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&showInitial, "initial", false, "also plot the initial amplitudes")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the final amplitudes",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}
	presetsCmd.Flags().StringVar(&writePath, "write", "", "save the preset to this file")

	rootCmd.AddCommand(runCmd, watchCmd, sweepCmd, listCmd, plotCmd, exportCmd, analyzeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error(err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// setup resolves the persistent settings; QCTRL_DATA, QCTRL_LOG_LEVEL and
// QCTRL_THEME apply when the flag is not given.
func setup(v *viper.Viper) error {
	dataDir = v.GetString("data")
	viz.SetTheme(v.GetString("theme"))

	level, err := log.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return err
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "qctrl",
		Level:           level,
	})
	return nil
}

func problemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "problem file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset problem ("+strings.Join(config.ListPresets(), ", ")+")")
	cmd.Flags().IntVar(&nTS, "n-ts", config.DefaultNumTS, "number of time slots")
	cmd.Flags().Float64Var(&evoTime, "evo-time", config.DefaultEvoTime, "evolution time")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for the CRAB basis")
	cmd.Flags().Float64Var(&fidErrTarg, "fid-err-targ", config.DefaultFidErrTarg, "target fidelity error")
	cmd.Flags().IntVar(&maxIter, "max-iter", config.DefaultMaxIter, "iteration budget")
	cmd.Flags().Float64Var(&maxWallTime, "max-wall-time", config.DefaultMaxWallTime, "wall time budget in seconds")
	cmd.Flags().StringVar(&propType, "prop-type", "DIAG", "propagator method (DIAG, FRECHET)")
	cmd.Flags().StringVar(&fidType, "fid-type", "UNIT", "fidelity measure (UNIT, TRACEDIFF)")
	cmd.Flags().StringVar(&phaseOption, "phase-option", "PSU", "phase option (PSU, SU)")
	cmd.Flags().IntVar(&workers, "workers", 0, "propagator goroutines (default GOMAXPROCS)")
}

// loadConfig starts from the preset (pi_pulse by default), replaces it with
// the problem file when one is given, then applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("n-ts") {
		cfg.NumTS = nTS
	}
	if flags.Changed("evo-time") {
		cfg.EvoTime = evoTime
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("fid-err-targ") {
		cfg.Optim.FidErrTarg = fidErrTarg
	}
	if flags.Changed("max-iter") {
		cfg.Optim.MaxIter = maxIter
	}
	if flags.Changed("max-wall-time") {
		cfg.Optim.MaxWallTime = maxWallTime
	}
	if flags.Changed("workers") {
		cfg.Optim.Workers = workers
	}
	if flags.Changed("prop-type") {
		pt, err := dynamics.ParsePropType(propType)
		if err != nil {
			return nil, err
		}
		cfg.Optim.PropType = pt
	}
	if flags.Changed("fid-type") {
		ft, err := fidelity.ParseType(fidType)
		if err != nil {
			return nil, err
		}
		cfg.Optim.FidType = ft
	}
	if flags.Changed("phase-option") {
		po, err := fidelity.ParsePhaseOption(phaseOption)
		if err != nil {
			return nil, err
		}
		cfg.Optim.PhaseOption = po
	}
	return cfg, nil
}

func runOptimisation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := cfg.Build()
	if err != nil {
		return err
	}
	p.Options.Logger = logger.With("problem", cfg.Name)

	opt, err := p.Optimizer()
	if err != nil {
		return err
	}
	res, err := opt.Run()
	if err != nil {
		return err
	}
	return report(cfg, p, res)
}

func watchOptimisation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := cfg.Build()
	if err != nil {
		return err
	}

	prog := tea.NewProgram(viz.NewWatchModel(cfg.Name, p.Options))
	sender := viz.NewProgressSender(prog, 50*time.Millisecond)
	p.Options.Observer = sender
	// log lines would tear the view
	p.Options.Logger = log.New(io.Discard)

	opt, err := p.Optimizer()
	if err != nil {
		return err
	}

	done := make(chan viz.DoneMsg, 1)
	go func() {
		res, err := opt.Run()
		sender.Flush()
		msg := viz.DoneMsg{Result: res, Err: err}
		done <- msg
		prog.Send(msg)
	}()

	final, err := prog.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.WatchModel); ok && m.Quit() {
		logger.Info("view closed, waiting for the run to reach its budget")
	}

	msg := <-done
	if msg.Err != nil {
		return msg.Err
	}
	return report(cfg, p, msg.Result)
}

func report(cfg *config.Config, p *config.Problem, res *optim.Result) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := storage.NewMetadata(cfg.Name, cfg.Seed, p.Grid.NumSlots(), p.Grid.EvoTime(), len(p.Gens), p.Options)
	runID, err := st.Save(meta, res)
	if err != nil {
		return err
	}

	fmt.Println(viz.RenderReport(cfg.Name, res, showStats))
	fmt.Printf("run id: %s\n", runID)

	if ampsOut != "" {
		if err := storage.WriteAmplitudesFile(ampsOut, res.FinalAmps); err != nil {
			return err
		}
		fmt.Printf("final amplitudes written to %s\n", ampsOut)
	}
	if showPlot {
		fmt.Println()
		fmt.Println(viz.PlotAmplitudes(res.FinalAmps, "final amplitudes"))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base, err := cfg.Build()
	if err != nil {
		return err
	}
	if len(sweepEvoTimes) == 0 {
		sweepEvoTimes = []float64{cfg.EvoTime}
	}
	if len(sweepNumTS) == 0 {
		sweepNumTS = []int{cfg.NumTS}
	}

	sw := optim.NewSweep(sweepEvoTimes, sweepNumTS)
	sw.Workers = sweepJobs
	logger.Info("sweeping", "problem", cfg.Name, "points", len(sw.Points()), "jobs", sw.Workers)

	results, err := sw.Run(cmd.Context(), func(pt optim.SweepPoint) (*optim.Optimizer, error) {
		p, err := cfg.WithGrid(pt.NumTS, pt.EvoTime).Build()
		if err != nil {
			return nil, err
		}
		p.Options.Logger = logger.With("evo_time", pt.EvoTime, "n_ts", pt.NumTS)
		return p.Optimizer()
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVO_TIME\tN_TS\tSTATE\tFINAL ERR\tITER\tWALL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%g\t%d\terror\t%v\t\t\n", r.Point.EvoTime, r.Point.NumTS, r.Err)
			continue
		}
		fmt.Fprintf(w, "%g\t%d\t%s\t%.3e\t%d\t%s\n",
			r.Point.EvoTime, r.Point.NumTS, r.Result.State, r.Result.FinalFidErr,
			r.Result.Iterations, r.Result.WallTime.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, ok := optim.Best(results)
	if !ok {
		return fmt.Errorf("no sweep point finished")
	}
	fmt.Printf("\nbest: evo_time %g, n_ts %d\n", best.Point.EvoTime, best.Point.NumTS)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := storage.NewMetadata(cfg.Name, cfg.Seed, best.Point.NumTS, best.Point.EvoTime, len(base.Gens), base.Options)
	runID, err := st.Save(meta, best.Result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSTATE\tFINAL ERR\tITER\tN_TS\tEVO_TIME")

	for _, run := range runs {
		finalErr := "n/a"
		if run.FinalFidErr != nil {
			finalErr = fmt.Sprintf("%.3e", *run.FinalFidErr)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.4g\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.State,
			finalErr,
			run.Iterations,
			run.NumTS,
			run.EvoTime,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	final, err := st.LoadAmplitudes(runID, storage.Final)
	if err != nil {
		return err
	}

	fmt.Printf("problem: %s\n", meta.Name)
	fmt.Printf("state: %s\n", meta.State)
	fmt.Printf("slots: %d over %.4g\n\n", meta.NumTS, meta.EvoTime)

	if showInitial {
		initial, err := st.LoadAmplitudes(runID, storage.Initial)
		if err != nil {
			return err
		}
		fmt.Println(viz.PlotAmplitudes(initial, "initial amplitudes"))
		fmt.Println()
	}
	fmt.Println(viz.PlotAmplitudes(final, "final amplitudes"))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	data, err := st.Export(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return storage.WriteJSON(os.Stdout, data)
	}
	if err := storage.ExportJSON(outFile, data); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	amps, err := st.LoadAmplitudes(runID, storage.Final)
	if err != nil {
		return err
	}
	if len(amps) == 0 {
		return fmt.Errorf("run %s has no amplitudes", runID)
	}

	dt := meta.EvoTime / float64(len(amps))
	fmt.Printf("problem: %s\n", meta.Name)
	fmt.Printf("slot duration: %.4g (nyquist %.4g)\n", dt, 0.5/dt)

	durations := make([]float64, len(amps))
	for i := range durations {
		durations[i] = dt
	}
	metrics := analysis.DefaultMetrics()
	values := analysis.Measure(amps, durations, metrics...)
	for _, m := range metrics {
		fmt.Printf("  %s: %.6g\n", m.Name(), values[m.Name()])
	}
	fmt.Println()

	for c := range amps[0] {
		col := make([]float64, len(amps))
		for i := range amps {
			col[i] = amps[i][c]
		}
		spec, err := analysis.PowerSpectrum(col, dt)
		if err != nil {
			return err
		}
		freq, power := spec.Dominant()
		fmt.Printf("ctrl %d: dominant %.4g (power %.3g, %.1f%% of total)\n",
			c, freq, power, 100*power/math.Max(spec.Total(), math.SmallestNonzeroFloat64))
		if chart := viz.PlotSpectrum(spec, fmt.Sprintf("ctrl %d power spectrum", c)); chart != "" {
			fmt.Println(chart)
			fmt.Println()
		}
	}
	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCTRLS\tN_TS\tEVO_TIME\tTARGET ERR")
		for _, name := range config.ListPresets() {
			cfg := config.GetPreset(name)
			fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%.0e\n", name, len(cfg.Controls), cfg.NumTS, cfg.EvoTime, cfg.Optim.FidErrTarg)
		}
		return w.Flush()
	}

	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	if writePath != "" {
		if err := config.Save(writePath, cfg); err != nil {
			return err
		}
		fmt.Printf("saved %s to %s\n", args[0], writePath)
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
