// Package ui renders human-facing output for reconctl: a colored cli.Ui for
// the run/doctor commands and a spinner for short waits. The Dashboard
// (internal/dashboard) is the primary live-progress surface; this package
// only covers the plain-terminal fallback and one-shot command output.
package ui

import (
	"io"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"
)

const ansiEscapeStr = "[][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))"

// IsTTY is true when stdout appears to be a terminal.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// IsCI is true when we appear to be running in a non-interactive context,
// either because stdout isn't a TTY or a CI env var is set.
var IsCI = !IsTTY || os.Getenv("CI") != ""

var gray = color.New(color.Faint)
var bold = color.New(color.Bold)

// ERROR_PREFIX, WARNING_PREFIX, InfoPrefix are reverse-video labels used by
// CmdBase's Log* helpers.
var ERROR_PREFIX = color.New(color.Bold, color.FgRed, color.ReverseVideo).Sprint(" ERROR ")
var WARNING_PREFIX = color.New(color.Bold, color.FgYellow, color.ReverseVideo).Sprint(" WARNING ")
var InfoPrefix = color.New(color.Bold, color.FgWhite, color.ReverseVideo).Sprint(" INFO ")

var ansiRegex = regexp.MustCompile(ansiEscapeStr)

// Dim prints out dimmed text.
func Dim(str string) string { return gray.Sprint(str) }

// Bold prints out bold text.
func Bold(str string) string { return bold.Sprint(str) }

type stripAnsiWriter struct {
	wrappedWriter io.Writer
}

func (into *stripAnsiWriter) Write(p []byte) (int, error) {
	n, err := into.wrappedWriter.Write(ansiRegex.ReplaceAll(p, []byte{}))
	if err != nil {
		return n, err
	}
	// Write must return a non-nil error if it returns n < len(p); since the
	// wrapped write succeeded, report the original length.
	return len(p), nil
}

// Default returns the default colored UI for the current environment.
func Default() *cli.ColoredUi {
	return BuildColoredUi(ColorModeUndefined)
}

// BuildColoredUi constructs a cli.ColoredUi writing to stdout/stderr,
// stripping ANSI codes when colorMode resolves to suppressed.
func BuildColoredUi(colorMode ColorMode) *cli.ColoredUi {
	colorMode = applyColorMode(colorMode)

	var outWriter, errWriter io.Writer
	if colorMode == ColorModeSuppressed {
		outWriter = &stripAnsiWriter{wrappedWriter: os.Stdout}
		errWriter = &stripAnsiWriter{wrappedWriter: os.Stderr}
	} else {
		outWriter = os.Stdout
		errWriter = os.Stderr
	}

	return &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      outWriter,
			ErrorWriter: errWriter,
		},
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColor{Code: int(color.FgYellow), Bold: false},
		ErrorColor:  cli.UiColorRed,
	}
}
