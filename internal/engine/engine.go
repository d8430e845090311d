package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/reconctl/reconctl/internal/cmdutil"
	"github.com/reconctl/reconctl/internal/eventbus"
	"github.com/reconctl/reconctl/internal/extractor"
	"github.com/reconctl/reconctl/internal/process"
	"github.com/reconctl/reconctl/internal/report"
	"github.com/reconctl/reconctl/internal/scheduler"
)

// ExitCode mirrors the outer-wrapper's process exit codes. The core itself
// returns a RunOutcome; cmd/reconctl is the only place these values matter.
const (
	ExitSuccess       = 0
	ExitConfigError   = 1
	ExitAllTasksFailed = 2
	ExitCancelled     = 130
)

// RunOutcome is everything a caller of Run needs to render a report and
// pick an exit code.
type RunOutcome struct {
	Summary  report.Summary
	ExitCode int
}

// Clock lets tests stub out the report timestamp; production callers pass
// time.Now.
type Clock func() time.Time

// Run wires the Dependency Graph (via Scheduler), Process Runner,
// Extractor, Event Bus, and Report Writer into one pass over cfg, then
// writes both report files under cfg.OutputRoot/<target-slug>/. mgr is the
// process.Manager every spawned child registers with; pass nil to let Run
// construct its own (tests and one-shot callers), or construct one
// yourself first so you can register its Close with a signals.Watcher
// before Run starts — cmd/run.go does the latter, satisfying "no lingering
// children on cancellation or program exit" even for children whose task
// hadn't reached its own ctx.Done() select branch yet.
//
// Grounded on turborepo's internal/run/real_run.go: collect every error
// a phase can produce, compute one terminal exit code, and always attempt
// to write the summary before returning — generalized away from turbo's
// per-package task hashing/caching into this domain's single-target run.
func Run(ctx context.Context, cfg cmdutil.RunConfig, bus *eventbus.Bus, logger hclog.Logger, now Clock, mgr *process.Manager) (RunOutcome, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	if now == nil {
		now = time.Now
	}
	if mgr == nil {
		mgr = process.NewManager()
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	targetRoot := filepath.Join(cfg.OutputRoot, cfg.Target.Slug)

	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.GlobalTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.GlobalTimeout)
		defer cancel()
	}

	sched, err := scheduler.New(scheduler.Config{
		Catalog:        cfg.Catalog,
		Target:         cfg.Target,
		OutputRoot:     targetRoot,
		Concurrency:    cfg.Concurrency,
		CategoryLimits: cfg.CategoryLimits,
		Runner:         &process.Runner{Logger: logger, Manager: mgr},
		Extractor:      &extractor.Extractor{Client: cfg.LLMClient},
		Bus:            bus,
		Logger:         logger,
	})
	if err != nil {
		return RunOutcome{}, fmt.Errorf("engine: %w", err)
	}

	result, runErr := sched.Run(runCtx)
	cancelled := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !cancelled {
		return RunOutcome{}, fmt.Errorf("engine: run failed: %w", runErr)
	}

	summary := report.Build(cfg.Target, result.Results, result.Findings, result.Discovery, now(), runID)

	if err := writeReportFiles(targetRoot, summary); err != nil {
		logger.Warn("failed writing report files", "error", err)
	}

	exitCode := exitCodeFor(cancelled, summary)
	return RunOutcome{Summary: summary, ExitCode: exitCode}, nil
}

// exitCodeFor picks the outer-wrapper exit code: cancelled
// takes priority, then "no task ever completed" (all failed or none ran),
// then success.
func exitCodeFor(cancelled bool, summary report.Summary) int {
	if cancelled {
		return ExitCancelled
	}
	if summary.Stats.TotalTasks > 0 && summary.Stats.CompletedTasks == 0 {
		return ExitAllTasksFailed
	}
	return ExitSuccess
}
