package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reconctl/reconctl/internal/cmdutil"
	"github.com/reconctl/reconctl/internal/dashboard"
	"github.com/reconctl/reconctl/internal/engine"
	"github.com/reconctl/reconctl/internal/eventbus"
	"github.com/reconctl/reconctl/internal/llm"
	"github.com/reconctl/reconctl/internal/process"
	"github.com/reconctl/reconctl/internal/signals"
	"github.com/reconctl/reconctl/internal/ui"
)

type runOpts struct {
	noDashboard bool
}

func (o *runOpts) addFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&o.noDashboard, "no-dashboard", false, "disable the live progress dashboard even when attached to a terminal")
}

// newRunCmd builds the "run" subcommand, grounded on turborepo's
// internal/cmd/run package: flags accumulate onto a Helper, which is then
// turned into a programmatic RunConfig and handed to the engine — here
// engine.Run rather than run.RunOptions/execContext, since orchestrating a
// single target's tool graph needs none of the monorepo's task-hash/cache
// machinery.
func newRunCmd(helper *cmdutil.Helper, signalWatcher *signals.Watcher) *cobra.Command {
	opts := &runOpts{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured tool catalog against a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}
			if err := helper.ApplyConfigFile(cmd.Flags()); err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}

			var llmClient llm.Client
			if helper.LLMEndpoint != "" {
				llmClient = llm.NewHTTPClient(llm.Options{
					Endpoint: helper.LLMEndpoint,
					APIKey:   cmdutil.LLMAPIKeyFromEnv(),
					Timeout:  30 * time.Second,
					Logger:   base.Logger,
				})
			}

			runCfg, err := helper.BuildRunConfig(llmClient)
			if err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			signalWatcher.AddOnClose(cancel)

			mgr := process.NewManager()
			signalWatcher.AddOnClose(mgr.Close)

			bus := eventbus.New()
			attachDashboard := !opts.noDashboard && ui.IsTTY && !ui.IsCI

			var dashboardErr error
			dashboardDone := make(chan struct{})
			if attachDashboard {
				sub := bus.Subscribe()
				go func() {
					defer close(dashboardDone)
					defer sub.Close()
					dashboardErr = dashboard.Run(ctx, sub, runCfg.Target.Host, 0)
				}()
			} else {
				close(dashboardDone)
			}

			outcome, runErr := engine.Run(ctx, runCfg, bus, base.Logger, time.Now, mgr)
			bus.Close()
			<-dashboardDone
			if dashboardErr != nil {
				base.LogWarning("dashboard", dashboardErr)
			}

			if runErr != nil {
				base.LogError("run failed: %v", runErr)
				return newExitCodeError(engine.ExitConfigError, runErr)
			}

			base.LogInfo(fmt.Sprintf("wrote report for %s: %d/%d tasks completed",
				runCfg.Target.Host, outcome.Summary.Stats.CompletedTasks, outcome.Summary.Stats.TotalTasks))

			if outcome.ExitCode != engine.ExitSuccess {
				return newExitCodeError(outcome.ExitCode, fmt.Errorf("run exited with code %d", outcome.ExitCode))
			}
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	return cmd
}
