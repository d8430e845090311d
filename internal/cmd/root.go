// Package cmd holds the root cobra command for reconctl and its
// subcommands. Grounded on turborepo's internal/cmd/root.go: a
// signals.Watcher and a cmdutil.Helper are constructed once, handed down to
// every subcommand's constructor, and RunWithArgs races the command's
// completion against the watcher catching a termination signal.
package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/reconctl/reconctl/internal/cmdutil"
	"github.com/reconctl/reconctl/internal/signals"
)

// RunWithArgs runs reconctl with the specified arguments (not including the
// binary name) and returns the process exit code.
func RunWithArgs(args []string, version string) int {
	signalWatcher := signals.NewWatcher()
	helper := cmdutil.NewHelper(version)
	root := getCmd(helper, signalWatcher)
	root.SetArgs(args)

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		signalWatcher.Close()
		helper.Cleanup(root.Flags())
		var exitErr *exitCodeError
		if errors.As(execErr, &exitErr) {
			return exitErr.code
		} else if execErr != nil {
			return 1
		}
		return 0
	case <-signalWatcher.Done():
		// The watcher already ran every registered cleanup closer.
		return 130
	}
}

// exitCodeError lets a subcommand's RunE carry a specific process exit code
// back up through cobra's error-only RunE signature, mirroring the
// teacher's process.ChildExit carrying a task's exit code the same way.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func newExitCodeError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: code, err: err}
}

func getCmd(helper *cmdutil.Helper, signalWatcher *signals.Watcher) *cobra.Command {
	root := &cobra.Command{
		Use:           "reconctl",
		Short:         "Concurrent reconnaissance-tool orchestration engine",
		Version:       helper.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	helper.AddFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(helper, signalWatcher))
	root.AddCommand(newDoctorCmd(helper))
	return root
}
