// Package cmdutil gathers flags, environment variables, and config-file
// values into the engine's RunConfig and the common pieces every reconctl
// subcommand needs (a colored cli.Ui, an hclog.Logger). Adapted from the
// teacher's internal/cmdutil/cmdutil.go: same Helper-builds-a-Base shape,
// re-keyed from TURBO_* / monorepo config to RECONCTL_* and the recon
// RunConfig this package builds.
package cmdutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/llm"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/ui"
	"github.com/reconctl/reconctl/internal/util"
)

// _envLogLevel is the environment variable that sets log verbosity when
// --verbosity is not passed, mirroring turborepo's TURBO_LOG_LEVEL.
const _envLogLevel = "RECONCTL_LOG_LEVEL"

// _envLLMAPIKey is read by LLMAPIKeyFromEnv at the CLI boundary and handed
// to the LLM client as Options.APIKey; the core never consults the
// environment itself.
const _envLLMAPIKey = "LLM_API_KEY"

// RunConfig is the programmatic configuration this package hands to the
// engine: target, catalog, output root, concurrency limits, and the
// optional LLM client wiring. Everything here is produced by Helper from
// flags/env/config file; the engine itself never parses a flag.
type RunConfig struct {
	Target            target.Target
	Catalog           catalog.Catalog
	OutputRoot        string
	Concurrency       int
	CategoryLimits    map[string]int
	GlobalTimeout     time.Duration
	LLMClient         llm.Client
	ConsistencyPasses int
}

// Helper accumulates flag/env/config values common to every subcommand and
// constructs the CmdBase commands build on.
type Helper struct {
	// Version is the reconctl build version.
	Version string

	forceColor bool
	noColor    bool
	verbosity  int

	TargetHost    string
	CatalogPath   string
	OutputRoot    string
	Concurrency   int
	GlobalTimeout time.Duration

	LLMEndpoint string

	// ConfigFile, if set, is layered under whichever flags/env the user
	// didn't pass explicitly; see ApplyConfigFile.
	ConfigFile string

	cleanupsMu sync.Mutex
	cleanups   []io.Closer
}

// RegisterCleanup saves a function to run after the command returns, even
// on error.
func (h *Helper) RegisterCleanup(cleanup io.Closer) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	h.cleanups = append(h.cleanups, cleanup)
}

// Cleanup runs every registered cleanup handler, warning on the UI for any
// that fail.
func (h *Helper) Cleanup(flags *pflag.FlagSet) {
	h.cleanupsMu.Lock()
	defer h.cleanupsMu.Unlock()
	var u cli.Ui
	for _, cleanup := range h.cleanups {
		if err := cleanup.Close(); err != nil {
			if u == nil {
				u = h.getUI(flags)
			}
			u.Warn(fmt.Sprintf("failed cleanup: %v", err))
		}
	}
}

func (h *Helper) getUI(flags *pflag.FlagSet) cli.Ui {
	colorMode := ui.GetColorModeFromEnv()
	if flags.Changed("no-color") && h.noColor {
		colorMode = ui.ColorModeSuppressed
	}
	if flags.Changed("color") && h.forceColor {
		colorMode = ui.ColorModeForced
	}
	return ui.BuildColoredUi(colorMode)
}

func (h *Helper) getLogger() (hclog.Logger, error) {
	var level hclog.Level
	switch h.verbosity {
	case 0:
		if v := os.Getenv(_envLogLevel); v != "" {
			level = hclog.LevelFromString(v)
			if level == hclog.NoLevel {
				return nil, fmt.Errorf("%s value %q is not a valid log level", _envLogLevel, v)
			}
		} else {
			level = hclog.NoLevel
		}
	case 1:
		level = hclog.Info
	case 2:
		level = hclog.Debug
	default:
		level = hclog.Trace
	}

	output := ioutil.Discard
	logColor := hclog.ColorOff
	if level != hclog.NoLevel {
		output = os.Stderr
		logColor = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "reconctl",
		Level:  level,
		Color:  logColor,
		Output: output,
	}), nil
}

// AddFlags registers the flags common to every reconctl subcommand.
func (h *Helper) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&h.forceColor, "color", false, "force color usage in the terminal")
	flags.BoolVar(&h.noColor, "no-color", false, "suppress color usage in the terminal")
	flags.CountVarP(&h.verbosity, "verbosity", "v", "verbosity")
	flags.StringVar(&h.ConfigFile, "config", "", "optional YAML/JSON/TOML config file layered under any flag not passed explicitly")
	flags.StringVar(&h.TargetHost, "target", "", "hostname or IP to scan")
	flags.StringVar(&h.CatalogPath, "catalog", "", "path to the tool catalog YAML file")
	flags.StringVar(&h.OutputRoot, "output", "./reconctl-out", "directory to write per-tool output and reports into")
	concurrency := &util.ConcurrencyValue{Value: &h.Concurrency}
	_ = concurrency.Set("10")
	flags.Var(concurrency, "concurrency", "global concurrency limit, integer or percentage of CPU cores (e.g. 50%)")
	flags.DurationVar(&h.GlobalTimeout, "timeout", 0, "overall run deadline (0 disables)")
	flags.StringVar(&h.LLMEndpoint, "llm-endpoint", "", "LLM provider endpoint for §4.5 LLM-assisted extraction (empty disables it)")
}

// ApplyConfigFile layers h.ConfigFile's values (if set) under whichever
// flags the caller did not pass explicitly on the command line: explicit
// flags and environment variables (RECONCTL_LOG_LEVEL, LLM_API_KEY) always
// win, the config file only fills gaps. A no-op when h.ConfigFile is empty.
func (h *Helper) ApplyConfigFile(flags *pflag.FlagSet) error {
	if h.ConfigFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(h.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cmdutil: reading config file %q: %w", h.ConfigFile, err)
	}

	if !flags.Changed("target") && v.IsSet("target") {
		h.TargetHost = v.GetString("target")
	}
	if !flags.Changed("catalog") && v.IsSet("catalog") {
		h.CatalogPath = v.GetString("catalog")
	}
	if !flags.Changed("output") && v.IsSet("output") {
		h.OutputRoot = v.GetString("output")
	}
	if !flags.Changed("concurrency") && v.IsSet("concurrency") {
		if err := flags.Set("concurrency", v.GetString("concurrency")); err != nil {
			return fmt.Errorf("cmdutil: config file concurrency: %w", err)
		}
	}
	if !flags.Changed("timeout") && v.IsSet("timeout") {
		h.GlobalTimeout = v.GetDuration("timeout")
	}
	if !flags.Changed("llm-endpoint") && v.IsSet("llm_endpoint") {
		h.LLMEndpoint = v.GetString("llm_endpoint")
	}
	return nil
}

// NewHelper returns a Helper for the given reconctl build version.
func NewHelper(version string) *Helper {
	return &Helper{Version: version}
}

// CmdBase encompasses the pieces common to every subcommand: a colored UI,
// a structured logger, and Log* conveniences that write to both.
type CmdBase struct {
	UI      cli.Ui
	Logger  hclog.Logger
	Version string
}

// GetCmdBase builds the common UI/logger pair. It does not build a
// RunConfig; the run command does that separately once it knows it needs a
// catalog and target resolved.
func (h *Helper) GetCmdBase(flags *pflag.FlagSet) (*CmdBase, error) {
	terminal := h.getUI(flags)
	logger, err := h.getLogger()
	if err != nil {
		return nil, err
	}
	return &CmdBase{UI: terminal, Logger: logger, Version: h.Version}, nil
}

// LogError prints an error to the UI and the logger.
func (b *CmdBase) LogError(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	b.Logger.Error("error", "err", err)
	b.UI.Error(fmt.Sprintf("%s%s", ui.ERROR_PREFIX, color.RedString(" %v", err)))
}

// LogWarning logs a warning with an optional prefix.
func (b *CmdBase) LogWarning(prefix string, err error) {
	b.Logger.Warn(prefix, "warning", err)
	if prefix != "" {
		prefix = " " + prefix + ": "
	}
	b.UI.Warn(fmt.Sprintf("%s%s%s", ui.WARNING_PREFIX, prefix, color.YellowString(" %v", err)))
}

// LogInfo logs an informational message.
func (b *CmdBase) LogInfo(msg string) {
	b.Logger.Info(msg)
	b.UI.Info(fmt.Sprintf("%s%s", ui.InfoPrefix, color.WhiteString(" %v", msg)))
}

// BuildRunConfig resolves the flag values gathered on this Helper into a
// RunConfig: loads the catalog from disk and sanitizes the target; the
// concurrency value was already parsed when the --concurrency flag was set.
// llmClient is nil when --llm-endpoint was not set.
func (h *Helper) BuildRunConfig(llmClient llm.Client) (RunConfig, error) {
	if h.TargetHost == "" {
		return RunConfig{}, fmt.Errorf("cmdutil: --target is required")
	}
	if h.CatalogPath == "" {
		return RunConfig{}, fmt.Errorf("cmdutil: --catalog is required")
	}
	cat, err := catalog.Load(h.CatalogPath)
	if err != nil {
		return RunConfig{}, err
	}
	return RunConfig{
		Target:        target.New(h.TargetHost),
		Catalog:       cat,
		OutputRoot:    h.OutputRoot,
		Concurrency:   h.Concurrency,
		GlobalTimeout: h.GlobalTimeout,
		LLMClient:     llmClient,
	}, nil
}

// LLMAPIKeyFromEnv reads the LLM provider API key the core never consults
// itself, for the outer wrapper to pass into llm.NewHTTPClient.
func LLMAPIKeyFromEnv() string {
	return os.Getenv(_envLLMAPIKey)
}
