// Package scheduler implements the bounded-concurrency executor of §4.4: it
// walks the dependency graph, dispatches ready tasks under a global permit
// plus optional per-category sub-limits, and serializes every completion
// through a single goroutine so the Discovery Index and dependent-readiness
// bookkeeping never race.
//
// Grounded on turborepo's internal/core/scheduler.go (semaphore-gated
// dag.Walk) and internal/core/engine.go (ready-set computation over a
// DAG), generalized from package-task execution to tool-task execution with
// the addition this domain needs and turborepo's single-semaphore design
// doesn't have: a second, category-scoped semaphore layer.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/depgraph"
	"github.com/reconctl/reconctl/internal/discovery"
	"github.com/reconctl/reconctl/internal/eventbus"
	"github.com/reconctl/reconctl/internal/extractor"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/process"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/task"
	"github.com/reconctl/reconctl/internal/util"
)

// Config wires a Scheduler to its run-scoped collaborators.
type Config struct {
	Catalog    catalog.Catalog
	Target     target.Target
	OutputRoot string

	// Concurrency is the global admission limit (max_concurrent_total). <=0
	// means unlimited.
	Concurrency int
	// CategoryLimits caps concurrency within a Descriptor.Category bucket;
	// a category absent from this map is unlimited.
	CategoryLimits map[string]int

	Runner    *process.Runner
	Extractor *extractor.Extractor
	Bus       *eventbus.Bus
	Logger    hclog.Logger
}

// Result is everything a run produced: every TaskResult (including skipped
// tools), every Finding extracted from them, and the final Discovery Index
// snapshot for the Report Writer.
type Result struct {
	Results   []task.Result
	Findings  []finding.Finding
	Discovery discovery.Snapshot
}

// Scheduler executes one catalog against one target to completion.
type Scheduler struct {
	cfg   Config
	graph *depgraph.Graph
	index *discovery.Index

	global     *util.Semaphore
	categories map[string]*util.Semaphore
}

// New validates cfg.Catalog, builds its dependency graph, and returns a
// ready-to-run Scheduler. Catalog cycles are a fatal configuration error
// reported here, before any task is ever rendered (§4.3).
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: invalid catalog: %w", err)
	}
	graph, err := depgraph.Build(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	if cfg.Runner == nil {
		cfg.Runner = &process.Runner{}
	}
	if cfg.Extractor == nil {
		cfg.Extractor = &extractor.Extractor{}
	}
	if cfg.Bus == nil {
		cfg.Bus = eventbus.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	categories := make(map[string]*util.Semaphore, len(cfg.CategoryLimits))
	for name, limit := range cfg.CategoryLimits {
		categories[name] = util.NewSemaphore(limit)
	}

	return &Scheduler{
		cfg:        cfg,
		graph:      graph,
		index:      discovery.New(),
		global:     util.NewSemaphore(cfg.Concurrency),
		categories: categories,
	}, nil
}

// completion is what a dispatched task's goroutine reports back to the
// single completion-handling loop.
type completion struct {
	toolName string
	result   task.Result
	findings []finding.Finding
}

// Run executes every ready tool to completion, feeding the Discovery Index
// as results arrive, and returns once no tool is ready and no task is
// outstanding. A fatal error (the output root cannot be created) aborts
// before any task runs; individual task/tool failures never abort the run
// (§4.4's failure semantics).
func (s *Scheduler) Run(ctx context.Context) (Result, error) {
	if err := os.MkdirAll(s.cfg.OutputRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("scheduler: creating output root: %w", err)
	}

	order := s.graph.Order()
	pending := util.NewStringSet(order)
	dispatchedCount := make(map[string]int, len(order))
	subResults := make(map[string][]task.Result, len(order))
	terminal := make(map[string]task.Result, len(order))

	var out Result
	completions := make(chan completion, 32)
	outstanding := 0

	s.cfg.Bus.Publish(eventbus.Event{
		Kind:       eventbus.KindInitProgress,
		Target:     s.cfg.Target.Host,
		TotalTasks: len(order),
	})
	s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindPhaseChange, Phase: eventbus.PhaseExecuting})

	dispatch := func() {
		for _, name := range order {
			if !pending.Includes(name) {
				continue
			}
			if _, alreadyDispatched := dispatchedCount[name]; alreadyDispatched {
				continue
			}
			d, _ := s.cfg.Catalog.ByName(name)

			ready, skipReason, err := s.evaluateReadiness(d, terminal)
			if err != nil {
				skipReason = err.Error()
			}
			if !ready && skipReason == "" {
				continue // waiting on a predecessor still in flight
			}
			if skipReason != "" {
				s.recordSkip(d, &out, pending, terminal, skipReason)
				continue
			}

			tasks, skipReason := s.renderTasks(d)
			if skipReason != "" {
				s.recordSkip(d, &out, pending, terminal, skipReason)
				continue
			}

			dispatchedCount[name] = len(tasks)
			for _, t := range tasks {
				outstanding++
				go s.runOne(ctx, d, t, completions)
			}
		}
	}

	dispatch()
runLoop:
	for pending.Len() > 0 || outstanding > 0 {
		select {
		case <-ctx.Done():
			// Tasks already running still report their (cancelled) result
			// through this same channel; tasks still queued on a semaphore
			// permit abandon silently (runOne's AcquireCtx). Rather than
			// block here until every in-flight runOne unwinds, keep
			// draining in the background so no sender ever blocks, and
			// return what the run produced up to this point.
			go func(remaining int) {
				for remaining > 0 {
					<-completions
					remaining--
				}
			}(outstanding)
			s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindShutdown})
			break runLoop
		case msg := <-completions:
			outstanding--

			before := s.index.Snapshot()
			s.index.Merge(msg.findings)
			s.publishDiscoveries(before, s.index.Snapshot())

			out.Results = append(out.Results, msg.result)
			out.Findings = append(out.Findings, msg.findings...)
			subResults[msg.toolName] = append(subResults[msg.toolName], msg.result)

			s.cfg.Bus.Publish(eventbus.Event{
				Kind:     eventbus.KindTaskCompleted,
				TaskID:   msg.result.TaskID,
				ToolName: msg.toolName,
				Status:   string(msg.result.Status.State),
			})

			if len(subResults[msg.toolName]) == dispatchedCount[msg.toolName] {
				terminal[msg.toolName] = aggregateResults(msg.toolName, subResults[msg.toolName])
				pending.Delete(msg.toolName)
			}

			dispatch()
		}
	}

	out.Discovery = s.index.Snapshot()
	s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindPhaseChange, Phase: eventbus.PhaseDone})
	return out, ctx.Err()
}

// evaluateReadiness reports whether d's predecessors have all reached a
// terminal state and its gating predicate (if any) is satisfied. A
// non-empty skipReason means the tool must be recorded as Skipped rather
// than dispatched. Returning (false, "", nil) means "not yet decidable" —
// some predecessor is still in flight.
func (s *Scheduler) evaluateReadiness(d catalog.Descriptor, terminal map[string]task.Result) (ready bool, skipReason string, err error) {
	for _, pred := range d.Predecessors {
		if _, ok := terminal[pred]; !ok {
			return false, "", nil
		}
	}
	for _, pred := range d.Predecessors {
		predResult := terminal[pred]
		if predResult.Status.State == task.StateFailed || predResult.Status.State == task.StateTimedOut {
			return false, fmt.Sprintf("predecessor %q did not complete successfully", pred), nil
		}
	}
	if d.Predicate != "" {
		for _, pred := range d.Predecessors {
			ok, evalErr := depgraph.EvaluatePredicate(d.Predicate, terminal[pred])
			if evalErr != nil {
				return false, "", evalErr
			}
			if !ok {
				return false, fmt.Sprintf("predicate %q evaluated false", d.Predicate), nil
			}
		}
	}
	return true, "", nil
}

// renderTasks builds the concrete Tasks for a ready descriptor: one for a
// plain tool, or one per currently discovered port for a port-scoped tool.
// A port-scoped tool with no discovered ports yet is reported as a skip,
// not held back — the graph only notifies the scheduler on completions, and
// a tool already past its predecessor gate has no future trigger to retry.
func (s *Scheduler) renderTasks(d catalog.Descriptor) (tasks []task.Task, skipReason string) {
	snapshot := s.index.Snapshot()
	ports := snapshot.SortedPortNumbers()

	if d.PortScoped {
		if len(ports) == 0 {
			return nil, "no ports discovered"
		}
		for _, p := range ports {
			t, err := task.New(d, s.cfg.Target.Host, p, s.cfg.OutputRoot)
			if err != nil {
				return nil, err.Error()
			}
			tasks = append(tasks, t)
		}
		return tasks, ""
	}

	t, err := task.New(d, s.cfg.Target.Host, 0, s.cfg.OutputRoot)
	if err != nil {
		return nil, err.Error()
	}
	t = t.ResolveDiscoveredPorts(ports)
	return []task.Task{t}, ""
}

func (s *Scheduler) recordSkip(d catalog.Descriptor, out *Result, pending util.StringSet, terminal map[string]task.Result, reason string) {
	t, err := task.New(d, s.cfg.Target.Host, 0, s.cfg.OutputRoot)
	if err != nil {
		t = task.Task{ID: task.ID(d.Name, s.cfg.Target.Host, 0), ToolName: d.Name}
	}
	result := task.Skipped(t, reason)
	terminal[d.Name] = result
	out.Results = append(out.Results, result)
	pending.Delete(d.Name)

	s.cfg.Bus.Publish(eventbus.Event{
		Kind:       eventbus.KindTaskCompleted,
		TaskID:     result.TaskID,
		ToolName:   d.Name,
		Status:     string(result.Status.State),
		Skipped:    true,
		SkipReason: reason,
	})
}

// runOne acquires the global and (if declared) category permit, runs the
// task to completion, extracts its findings, and reports both back on
// completions. It releases its permits before returning, regardless of
// outcome.
func (s *Scheduler) runOne(ctx context.Context, d catalog.Descriptor, t task.Task, completions chan<- completion) {
	if err := s.global.AcquireCtx(ctx); err != nil {
		// Cancelled before ever being admitted: this task generates no
		// TaskResult at all, matching the "queued work is abandoned, not
		// reported" cancellation semantics.
		return
	}
	defer s.global.Release()

	var categorySem *util.Semaphore
	if d.Category != "" {
		categorySem = s.categories[d.Category]
	}
	if categorySem != nil {
		if err := categorySem.AcquireCtx(ctx); err != nil {
			return
		}
		defer categorySem.Release()
	}

	s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindTaskStarted, TaskID: t.ID, ToolName: t.ToolName})

	result := s.cfg.Runner.Run(ctx, t)

	var findings []finding.Finding
	if result.Status.State == task.StateCompleted {
		extracted, err := s.cfg.Extractor.Extract(ctx, d, t, result)
		if err != nil {
			s.cfg.Logger.Warn("extraction failed", "tool", t.ToolName, "error", err)
		} else {
			findings = extracted
		}
	}

	completions <- completion{toolName: t.ToolName, result: result, findings: findings}
}

// publishDiscoveries emits PortDiscovered/HostnameDiscovered events for
// entries present in after but not in before, so the dashboard only sees
// genuinely new discoveries rather than a replay of the whole index on
// every completion.
func (s *Scheduler) publishDiscoveries(before, after discovery.Snapshot) {
	beforePorts := make(map[int]struct{}, len(before.Ports))
	for _, p := range before.Ports {
		beforePorts[p.Port] = struct{}{}
	}
	for _, p := range after.Ports {
		if _, ok := beforePorts[p.Port]; !ok {
			s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindPortDiscovered, Port: p.Port, Service: p.Service})
		}
	}

	beforeHosts := util.NewStringSet(before.Hosts)
	for _, h := range after.Hosts {
		if !beforeHosts.Includes(h) {
			s.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindHostnameDiscovered, Hostname: h})
		}
	}
}

// aggregateResults synthesizes one representative TaskResult for a
// port-scoped tool's fan-out, used for dependent readiness and predicate
// evaluation: Completed if any sub-task completed successfully, stdout
// concatenated in task-ID string order (so ":443" precedes ":80") for
// has_output/contains predicate checks.
func aggregateResults(toolName string, results []task.Result) task.Result {
	if len(results) == 1 {
		return results[0]
	}
	sorted := append([]task.Result{}, results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TaskID < sorted[j].TaskID })

	agg := task.Result{
		TaskID:   toolName,
		ToolName: toolName,
	}
	anySucceeded := false
	for _, r := range sorted {
		agg.Stdout += r.Stdout
		agg.Stderr += r.Stderr
		if r.Status.State == task.StateCompleted && r.Status.ExitCode == 0 {
			anySucceeded = true
		}
	}
	if anySucceeded {
		agg.Status = task.Status{State: task.StateCompleted, ExitCode: 0}
	} else {
		agg.Status = task.Status{State: task.StateFailed, Error: "all port-scoped invocations failed"}
	}
	return agg
}
