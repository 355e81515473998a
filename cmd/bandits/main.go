package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/bandits/internal/logging"
	"github.com/boristopalov/bandits/pkg/config"
	"github.com/boristopalov/bandits/pkg/experiment"
	"github.com/boristopalov/bandits/pkg/messaging"
	"github.com/boristopalov/bandits/pkg/metrics"
)

type runFlags struct {
	configPath  string
	suite       string
	trials      int
	experiments int
	budget      float64
	seed        uint64
	logLevel    string
	metrics     bool
}

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bandits",
		Short:        "Bandits simulates multi-armed bandit agents under a survival budget and compares their decision policies.",
		SilenceUsage: true,
	}

	flags := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment from a config file or a preset suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, flags)
		},
	}
	runCmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to an experiment YAML file")
	runCmd.Flags().StringVarP(&flags.suite, "suite", "s", "bernoulli", "preset suite to run when no config is given")
	runCmd.Flags().IntVar(&flags.trials, "trials", 0, "override the number of trials per repetition")
	runCmd.Flags().IntVar(&flags.experiments, "experiments", 0, "override the number of repetitions")
	runCmd.Flags().Float64Var(&flags.budget, "budget", 0, "override the initial survival budget")
	runCmd.Flags().Uint64Var(&flags.seed, "seed", 0, "random seed (0 picks one)")
	runCmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	runCmd.Flags().BoolVar(&flags.metrics, "metrics", false, "print metric totals after the run")

	suitesCmd := &cobra.Command{
		Use:   "suites",
		Short: "List the preset suites",
		Run: func(cmd *cobra.Command, args []string) {
			printSuites(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(runCmd, suitesCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command, flags *runFlags) (*config.ExperimentConfig, error) {
	var (
		cfg *config.ExperimentConfig
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadConfig(flags.configPath)
	} else {
		cfg, err = config.Suite(flags.suite)
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("trials") {
		cfg.Trials = flags.trials
	}
	if cmd.Flags().Changed("experiments") {
		cfg.Experiments = flags.experiments
	}
	if cmd.Flags().Changed("budget") {
		cfg.Budget = flags.budget
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = flags.seed
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.metrics {
		cfg.Logging.Metrics = true
	}
	return cfg, cfg.Validate()
}

func runExperiment(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	broker := messaging.NewBroker()
	defer broker.Reset()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Warn("interrupted, stopping after the current repetition")
			cancel()
		case <-ctx.Done():
		}
	}()

	events := make(chan messaging.Message, 256)
	if err := broker.Subscribe("cli", events); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		logEvents(logger, events)
	}()

	opts := []experiment.Option{
		experiment.WithLogger(logger),
		experiment.WithBroker(broker),
	}
	var m *metrics.Metrics
	if cfg.Logging.Metrics {
		m = metrics.New()
		opts = append(opts, experiment.WithMetrics(m))
	}

	exp, err := experiment.NewBanditExperiment(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}
	runErr := exp.Run(ctx)

	_ = broker.Unsubscribe("cli")
	close(events)
	<-done

	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	printSummary(out, cfg, exp)
	if m != nil {
		if err := printMetrics(out, m); err != nil {
			return err
		}
	}
	return nil
}

func logEvents(logger *slog.Logger, events <-chan messaging.Message) {
	for msg := range events {
		ev, ok := msg.Content.(messaging.Event)
		if !ok {
			continue
		}
		switch ev.Type {
		case messaging.AgentExhausted:
			logger.Debug("agent exhausted its budget",
				"repetition", ev.Repetition, "trial", ev.Trial, "agent", ev.AgentID, "budget", ev.Budget)
		case messaging.RunFinished:
			logger.Info("run finished", "label", ev.Label)
		}
	}
}

func printSummary(w io.Writer, cfg *config.ExperimentConfig, exp *experiment.BanditExperiment) {
	status := exp.GetStatus()
	fmt.Fprintf(w, "%s: %d trials x %d repetitions, budget %g (%s)\n\n",
		cfg.Name, cfg.Trials, cfg.Experiments, cfg.Budget, status.Duration().Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tMEAN REWARD\tOPTIMAL\tFINAL OPTIMAL\tFINAL BUDGET\tSURVIVAL")
	for _, s := range exp.Summary() {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.3f\t%.4f\n",
			s.Name, s.MeanReward, s.OptimalFraction, s.FinalOptimal, s.FinalBudget, s.FinalSurvival)
	}
	tw.Flush()

	b := exp.Environment().GetBandit()
	fmt.Fprintf(w, "\ntrue action values (optimal arm %d):\n  %s\n", b.Optimal(), formatValues(b.ActionValues()))
	for _, belief := range exp.Beliefs() {
		fmt.Fprintf(w, "%s estimates:\n  %s\n", belief.Name, formatValues(belief.Estimates))
	}
}

func printMetrics(w io.Writer, m *metrics.Metrics) error {
	totals, err := m.Totals()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	fmt.Fprintln(w, "\nmetrics:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range slices.Sorted(maps.Keys(totals)) {
		fmt.Fprintf(tw, "  %s\t%g\n", name, totals[name])
	}
	return tw.Flush()
}

func printSuites(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUITE\tNAME\tARMS\tAGENTS")
	for _, name := range config.SuiteNames() {
		cfg, err := config.Suite(name)
		if err != nil {
			continue
		}
		kinds := make([]string, 0, len(cfg.Agents))
		for _, a := range cfg.Agents {
			kinds = append(kinds, a.Kind+"/"+a.Policy.Type)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", name, cfg.Name, cfg.Bandit.Arms, strings.Join(kinds, ", "))
	}
	tw.Flush()
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return strings.Join(parts, " ")
}
