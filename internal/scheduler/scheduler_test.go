package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/eventbus"
	"github.com/reconctl/reconctl/internal/process"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() catalog.Catalog {
	return catalog.Catalog{Tools: []catalog.Descriptor{
		{
			Name:    "portscan",
			Command: "printf",
			Args:    []string{"22/tcp open ssh\n80/tcp open http\n"},
			Extraction: catalog.ExtractionRecipe{
				Patterns: []catalog.Pattern{
					{Name: "nmap_open_port", Regex: `^(?P<port>\d+)/(?P<proto>tcp|udp)\s+open\s+(?P<service>\S+)`, Kind: catalog.DiscoveryPort},
				},
			},
		},
		{
			Name:         "probe",
			Command:      "echo",
			Args:         []string{"probing port {port}"},
			Predecessors: []string{"portscan"},
			Predicate:    "exit_success",
			PortScoped:   true,
		},
		{
			Name:         "gated",
			Command:      "echo",
			Args:         []string{"never runs"},
			Predecessors: []string{"portscan"},
			Predicate:    "contains:nonexistent-literal",
		},
	}}
}

func TestSchedulerRunsFullPipeline(t *testing.T) {
	dir := t.TempDir()
	sched, err := New(Config{
		Catalog:     testCatalog(),
		Target:      target.New("example.com"),
		OutputRoot:  dir,
		Concurrency: 4,
		Runner:      &process.Runner{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := sched.Run(ctx)
	require.NoError(t, err)

	byTool := map[string][]task.Result{}
	for _, r := range result.Results {
		byTool[r.ToolName] = append(byTool[r.ToolName], r)
	}

	require.Len(t, byTool["portscan"], 1)
	assert.Equal(t, task.StateCompleted, byTool["portscan"][0].Status.State)

	require.Len(t, byTool["probe"], 2, "probe is port-scoped and should fan out to both discovered ports")
	for _, r := range byTool["probe"] {
		assert.Equal(t, task.StateCompleted, r.Status.State)
	}

	require.Len(t, byTool["gated"], 1)
	assert.Equal(t, task.StateSkipped, byTool["gated"][0].Status.State)

	var portFindings int
	for _, f := range result.Findings {
		if f.Kind == catalog.DiscoveryPort {
			portFindings++
		}
	}
	assert.Equal(t, 2, portFindings)
}

func TestSchedulerAbandonsQueuedWorkOnCancellation(t *testing.T) {
	dir := t.TempDir()
	ports := make([]string, 10)
	for i := range ports {
		ports[i] = fmt.Sprintf("%d/tcp open svc\n", 10000+i)
	}
	cat := catalog.Catalog{Tools: []catalog.Descriptor{
		{
			Name:    "portscan",
			Command: "printf",
			Args:    []string{strings.Join(ports, "")},
			Extraction: catalog.ExtractionRecipe{
				Patterns: []catalog.Pattern{
					{Name: "nmap_open_port", Regex: `^(?P<port>\d+)/(?P<proto>tcp|udp)\s+open\s+(?P<service>\S+)`, Kind: catalog.DiscoveryPort},
				},
			},
		},
		{
			Name:         "sleeper",
			Command:      "sleep",
			Args:         []string{"0.5"},
			Predecessors: []string{"portscan"},
			Predicate:    "exit_success",
			PortScoped:   true,
		},
	}}

	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	sched, err := New(Config{
		Catalog:     cat,
		Target:      target.New("example.com"),
		OutputRoot:  dir,
		Concurrency: 3,
		Bus:         bus,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	result, err := sched.Run(ctx)
	require.Error(t, err, "a cancelled context should surface as an error even though the report is still usable")

	var sleeperResults int
	for _, r := range result.Results {
		if r.ToolName == "sleeper" {
			sleeperResults++
			assert.Equal(t, task.StateFailed, r.Status.State)
			assert.Equal(t, "cancelled", r.Status.Error)
		}
	}
	assert.Less(t, sleeperResults, 10, "at most the admitted permits should ever report a result; queued work is abandoned silently")

	var shutdowns int
	drainShutdown:
	for {
		select {
		case ev := <-sub.Events():
			if ev.Kind == eventbus.KindShutdown {
				shutdowns++
			}
		default:
			break drainShutdown
		}
	}
	assert.Equal(t, 1, shutdowns)
}

func TestSchedulerRejectsCyclicCatalog(t *testing.T) {
	cat := catalog.Catalog{Tools: []catalog.Descriptor{
		{Name: "a", Command: "echo", Predecessors: []string{"b"}},
		{Name: "b", Command: "echo", Predecessors: []string{"a"}},
	}}
	_, err := New(Config{Catalog: cat, Target: target.New("x"), OutputRoot: t.TempDir()})
	assert.Error(t, err)
}

func TestSchedulerEmitsEventsOnBus(t *testing.T) {
	dir := t.TempDir()
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	sched, err := New(Config{
		Catalog:    testCatalog(),
		Target:     target.New("example.com"),
		OutputRoot: dir,
		Bus:        bus,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = sched.Run(ctx)
	require.NoError(t, err)

	var sawPortDiscovered, sawInit, sawDone bool
	drain:
	for {
		select {
		case ev := <-sub.Events():
			switch ev.Kind {
			case eventbus.KindPortDiscovered:
				sawPortDiscovered = true
			case eventbus.KindInitProgress:
				sawInit = true
			case eventbus.KindPhaseChange:
				if ev.Phase == eventbus.PhaseDone {
					sawDone = true
				}
			}
		default:
			break drain
		}
	}
	assert.True(t, sawPortDiscovered)
	assert.True(t, sawInit)
	assert.True(t, sawDone)
}
