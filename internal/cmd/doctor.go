package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/cmdutil"
	"github.com/reconctl/reconctl/internal/engine"
	"github.com/reconctl/reconctl/internal/ui"
)

// newDoctorCmd builds the "doctor" subcommand: resolve every catalog tool's
// binary on PATH and print install guidance for anything missing, without
// running a single one of them. Grounded on original_source/doctor.rs's
// DependencyChecker, surfaced here the way turborepo surfaces its own
// one-shot diagnostic commands (internal/cmd/info/bin.go's single flag, one
// pass, plain CmdBase UI output).
func newDoctorCmd(helper *cmdutil.Helper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that every catalog tool's binary is resolvable",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := helper.GetCmdBase(cmd.Flags())
			if err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}
			if err := helper.ApplyConfigFile(cmd.Flags()); err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}
			if helper.CatalogPath == "" {
				return newExitCodeError(engine.ExitConfigError, fmt.Errorf("cmdutil: --catalog is required"))
			}

			cat, err := catalog.Load(helper.CatalogPath)
			if err != nil {
				return newExitCodeError(engine.ExitConfigError, err)
			}

			var results []engine.ToolAvailability
			if ui.IsTTY && !ui.IsCI {
				spin := ui.NewSpinner(os.Stderr)
				spin.Start("resolving catalog tools")
				results = engine.Doctor(cat)
				spin.Stop("")
			} else {
				results = engine.Doctor(cat)
			}
			missing := 0
			for _, r := range results {
				if r.Available {
					base.UI.Output(fmt.Sprintf("  ok    %-16s %s", r.Name, r.ResolvedPath))
					continue
				}
				missing++
				base.UI.Output(fmt.Sprintf("  MISSING %-14s %s", r.Name, r.Error))
				for _, hint := range r.InstallHints {
					base.UI.Output(fmt.Sprintf("            %s", hint))
				}
			}

			if missing > 0 {
				return newExitCodeError(engine.ExitAllTasksFailed, fmt.Errorf("%d of %d catalog tools are not resolvable", missing, len(results)))
			}
			base.LogInfo(fmt.Sprintf("all %d catalog tools are resolvable", len(results)))
			return nil
		},
	}
	return cmd
}
