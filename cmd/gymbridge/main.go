package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/gymbridge/pkg/agent"
	"github.com/boristopalov/gymbridge/pkg/config"
	"github.com/boristopalov/gymbridge/pkg/core"
	"github.com/boristopalov/gymbridge/pkg/environment"
	"github.com/boristopalov/gymbridge/pkg/experiment"
	"github.com/boristopalov/gymbridge/pkg/messaging"
	"github.com/boristopalov/gymbridge/pkg/providers"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
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
		Use:          "gymbridge",
		Short:        "gymbridge drives Gymnasium environments from Go.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("runtime", config.RuntimeBridge, "Python runtime: bridge or embedded")
	rootCmd.PersistentFlags().String("python", "", "Python interpreter for the bridge runtime")

	inspectCmd := &cobra.Command{
		Use:   "inspect <env-id>",
		Short: "Print the action and observation spaces of an environment",
		Args:  cobra.ExactArgs(1),
		RunE:  inspect,
	}

	rootCmd.AddCommand(inspectCmd, newRunCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run rollouts of an environment with a random or LLM agent",
		RunE:  runRollout,
	}
	runCmd.Flags().String("config", "", "YAML rollout config")
	runCmd.Flags().String("env", "", "environment id, e.g. CartPole-v1")
	runCmd.Flags().Int("episodes", 0, "number of episodes")
	runCmd.Flags().Int("max-steps", 0, "step cap per episode, 0 for none")
	runCmd.Flags().Uint64("seed", 0, "base reset seed")
	runCmd.Flags().String("agent", "", "agent type: random or llm")
	runCmd.Flags().String("provider", "", "LLM provider: openai or gemini")
	runCmd.Flags().String("model", "", "LLM model id")
	runCmd.Flags().Bool("verbose", false, "log every step")
	return runCmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func inspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.DefaultConfig()
	applyRuntimeFlags(cmd, &cfg)
	rt, closeRuntime, err := openRuntime(ctx, cfg.Runtime)
	if err != nil {
		return err
	}
	defer closeRuntime()

	env, err := environment.Make[core.Discrete](rt, args[0])
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "environment:       %s\n", env.Name())
	fmt.Fprintf(out, "action space:      %d\n", env.ActionSpace())
	fmt.Fprintf(out, "observation shape: %v\n", env.ObservationSpace())
	fmt.Fprintf(out, "observation size:  %d\n", env.ObservationSize())
	return nil
}

func runRollout(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadRolloutConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Logging.Path != "" {
		f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	rt, closeRuntime, err := openRuntime(ctx, cfg.Runtime)
	if err != nil {
		return err
	}
	defer closeRuntime()

	env, err := environment.Make[core.Discrete](rt, cfg.Env)
	if err != nil {
		return err
	}
	defer env.Close()

	ag, err := newAgent(ctx, cfg, env.ActionSpace())
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	log.Printf("Created %s", ag.GetID())

	broker := messaging.NewBroker()
	defer broker.Reset()
	if cfg.Logging.Verbose {
		stop, err := startReporter(broker, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer stop()
	}

	rollout, err := experiment.NewRollout[core.Discrete](env, ag,
		experiment.WithEpisodes(cfg.Episodes),
		experiment.WithMaxSteps(cfg.MaxSteps),
		experiment.WithSeed(cfg.Seed),
		experiment.WithPublisher(broker),
	)
	if err != nil {
		return err
	}

	stats, err := rollout.Run(ctx)
	printSummary(cmd.OutOrStdout(), cfg.Env, stats)
	if err != nil {
		return fmt.Errorf("rollout failed: %w", err)
	}
	return nil
}

func newAgent(ctx context.Context, cfg *config.RolloutConfig, actions int) (agent.Agent[core.Discrete], error) {
	switch cfg.Agent.Type {
	case config.AgentLLM:
		client, err := providers.New(ctx, cfg.Agent.Provider)
		if err != nil {
			return nil, err
		}
		return agent.NewLLMAgent(ctx, actions,
			agent.WithClient(client),
			agent.WithModel(agent.ModelInfo{Id: cfg.Agent.Model, Config: cfg.Agent.Config}),
			agent.WithEnvironment(cfg.Env),
			agent.WithTask(cfg.Agent.Task),
			agent.WithHistory(cfg.Agent.History),
		)
	default:
		return agent.NewRandomAgent(actions, int64(cfg.Seed))
	}
}

// loadRolloutConfig layers explicitly set flags over the config file.
func loadRolloutConfig(cmd *cobra.Command) (*config.RolloutConfig, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("env") {
		cfg.Env, _ = flags.GetString("env")
	}
	if flags.Changed("episodes") {
		cfg.Episodes, _ = flags.GetInt("episodes")
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps, _ = flags.GetInt("max-steps")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("agent") {
		cfg.Agent.Type, _ = flags.GetString("agent")
	}
	if flags.Changed("provider") {
		cfg.Agent.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		cfg.Agent.Model, _ = flags.GetString("model")
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbose, _ = flags.GetBool("verbose")
	}
	applyRuntimeFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyRuntimeFlags(cmd *cobra.Command, cfg *config.RolloutConfig) {
	flags := cmd.Flags()
	if flags.Changed("runtime") {
		cfg.Runtime.Type, _ = flags.GetString("runtime")
	}
	if flags.Changed("python") {
		cfg.Runtime.Python, _ = flags.GetString("python")
	}
}

func printSummary(w io.Writer, env string, stats []experiment.EpisodeStats) {
	for _, st := range stats {
		fmt.Fprintf(w, "episode %d (seed %d): %d steps, return %.2f, terminated=%t truncated=%t\n",
			st.Episode, st.Seed, st.Steps, st.Return, st.Terminated, st.Truncated)
	}
	s := experiment.Summarize(stats)
	if s.Episodes == 0 {
		return
	}
	fmt.Fprintf(w, "\n=== %s: %d episodes ===\n", env, s.Episodes)
	fmt.Fprintf(w, "  Mean return: %.2f (std %.2f, min %.2f, max %.2f)\n", s.MeanReturn, s.StdReturn, s.MinReturn, s.MaxReturn)
	fmt.Fprintf(w, "  Mean steps:  %.1f\n", s.MeanSteps)
	fmt.Fprintf(w, "  Terminated:  %d, truncated: %d\n", s.Terminated, s.Truncated)
}
