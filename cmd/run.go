// -- cmd/run.go --
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim-cli/internal/browser"
	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/hotspot"
	"github.com/xkilldash9x/trafficsim-cli/internal/observability"
	"github.com/xkilldash9x/trafficsim-cli/internal/referrer"
	"github.com/xkilldash9x/trafficsim-cli/internal/rng"
	"github.com/xkilldash9x/trafficsim-cli/internal/scheduler"
	"github.com/xkilldash9x/trafficsim-cli/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the traffic simulation against the configured storefront.",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().String("origin", "", "storefront origin URL (e.g. https://shop.example.com)")
	runCmd.Flags().Float64("rate", 0, "sessions per minute")
	runCmd.Flags().Int("sessions", 0, "stop after this many sessions (0 = unlimited)")
	runCmd.Flags().Duration("duration", 0, "stop after this wall-clock duration (0 = unlimited)")
	runCmd.Flags().Bool("smoke", false, "smoke mode: run three sessions and exit")
	runCmd.Flags().Int64("seed", 0, "base random seed (0 = derive from clock)")

	must(viper.BindPFlag("target.origin", runCmd.Flags().Lookup("origin")))
	must(viper.BindPFlag("scheduler.sessions_per_minute", runCmd.Flags().Lookup("rate")))
	must(viper.BindPFlag("scheduler.max_sessions", runCmd.Flags().Lookup("sessions")))
	must(viper.BindPFlag("scheduler.duration", runCmd.Flags().Lookup("duration")))
	must(viper.BindPFlag("scheduler.smoke", runCmd.Flags().Lookup("smoke")))
	must(viper.BindPFlag("seed", runCmd.Flags().Lookup("seed")))

	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Every component below is constructed, and therefore validated,
	// before the first session is issued.
	profiles, err := referrer.NewProfileBuilder(cfg.Referrers)
	if err != nil {
		return err
	}
	policy := hotspot.NewPolicy(cfg.Hotspots)
	src := rng.New(cfg.Seed)

	launcher, err := browser.NewLauncher(cmd.Context(), cfg.Browser, cfg.Target, cfg.Scheduler.GlobalQPSCap, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer launcher.Close()

	orch, err := session.New(&cfg, profiles, policy, launcher, logger)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(cfg.Scheduler, orch, src, logger)
	if err != nil {
		return err
	}

	logger.Info("Simulation starting",
		zap.String("origin", cfg.Target.Origin),
		zap.Int64("seed", src.Seed()))

	sum := sched.Run(cmd.Context())
	if sum.Sessions == 0 && cmd.Context().Err() == nil {
		return errors.New("scheduler exited without issuing any sessions")
	}
	return nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
