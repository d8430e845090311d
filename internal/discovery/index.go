// Package discovery implements the Discovery Index: a run-scoped,
// append-only projection of findings used to chain dependent tasks (e.g.
// rendering {discovered_ports} from an earlier port scan).
//
// Single-writer model: the scheduler's completion handler is the only
// writer, and it publishes a new Snapshot atomically before any dependent
// task is rendered, so readers never observe a partially-updated index —
// this replaces the source's Arc<Mutex<...>> sharing (see DESIGN.md).
package discovery

import (
	"sort"
	"sync"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/util"
)

// PortEntry is one discovered open port, optionally with a service name.
type PortEntry struct {
	Port    int
	Service string
}

// Snapshot is an immutable view of the index at a point in time, handed to
// command rendering so that a dependent task's placeholders observe a
// consistent, unchanging set of discoveries.
type Snapshot struct {
	Ports    []PortEntry
	Hosts    []string
	Services []string
	URLs     []string
}

// SortedPortNumbers returns just the port numbers, ascending, suitable for
// {discovered_ports} rendering.
func (s Snapshot) SortedPortNumbers() []int {
	out := make([]int, len(s.Ports))
	for i, p := range s.Ports {
		out[i] = p.Port
	}
	sort.Ints(out)
	return out
}

// Index is the mutable, run-scoped collection. Construct with New; only the
// scheduler's single completion-handling goroutine should call Merge.
type Index struct {
	mu       sync.Mutex
	ports    map[int]string
	hosts    util.StringSet
	services util.StringSet
	urls     util.StringSet
	custom   map[catalog.DiscoveryKind]util.StringSet
}

// New builds an empty Index.
func New() *Index {
	return &Index{
		ports:    make(map[int]string),
		hosts:    make(util.StringSet),
		services: make(util.StringSet),
		urls:     make(util.StringSet),
		custom:   make(map[catalog.DiscoveryKind]util.StringSet),
	}
}

// Merge folds a batch of Findings into the index. Entries are only ever
// added, never removed; the one in-place change is that a port first
// recorded without a service name takes the service of a later finding for
// it. The index grows monotonically for the lifetime of the run.
func (idx *Index) Merge(findings []finding.Finding) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, f := range findings {
		switch f.Kind {
		case catalog.DiscoveryPort:
			if f.Port != 0 {
				if existing, ok := idx.ports[f.Port]; !ok || existing == "" {
					idx.ports[f.Port] = f.Captures["service"]
				}
			}
		case catalog.DiscoveryService:
			if svc := f.Captures["service"]; svc != "" {
				idx.services.Add(svc)
			}
		case catalog.DiscoveryHost:
			// ssl_subject_cn/ssl_san patterns can capture garbage (a
			// malformed cert field, a wildcard fragment) alongside real
			// hostnames; only admit captures that parse as one.
			if h := f.Captures["host"]; h != "" && target.IsValidHostname(h) {
				idx.hosts.Add(h)
			}
		default:
			if url := f.Captures["url"]; url != "" {
				idx.urls.Add(url)
			}
			if idx.custom[f.Kind] == nil {
				idx.custom[f.Kind] = make(util.StringSet)
			}
			idx.custom[f.Kind].Add(f.CanonicalForm())
		}
	}
}

// Snapshot returns an immutable copy of the index's current contents.
func (idx *Index) Snapshot() Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	s := Snapshot{
		Hosts:    idx.hosts.List(),
		Services: idx.services.List(),
		URLs:     idx.urls.List(),
	}
	for port, service := range idx.ports {
		s.Ports = append(s.Ports, PortEntry{Port: port, Service: service})
	}
	sort.Slice(s.Ports, func(i, j int) bool { return s.Ports[i].Port < s.Ports[j].Port })
	sort.Strings(s.Hosts)
	sort.Strings(s.Services)
	sort.Strings(s.URLs)
	return s
}
