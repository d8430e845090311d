package catalog

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered, validated set of Descriptors for a run. Order is
// preserved from declaration, which the scheduler uses as its tie-break for
// fairness among equally-ready tools.
type Catalog struct {
	Tools []Descriptor
}

// ByName looks up a Descriptor by name, returning false if absent.
func (c Catalog) ByName(name string) (Descriptor, bool) {
	for _, d := range c.Tools {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Validate checks the invariants a catalog must satisfy before a run
// starts: unique tool names, every predecessor name resolvable, and every
// declared regex pattern compiles. Cycle detection is the Dependency
// Graph's job, not the catalog's, since it requires graph construction.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Tools))
	for _, d := range c.Tools {
		if d.Name == "" {
			return fmt.Errorf("catalog: tool with empty name")
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("catalog: duplicate tool name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for _, d := range c.Tools {
		for _, pred := range d.Predecessors {
			if _, ok := seen[pred]; !ok {
				return fmt.Errorf("catalog: tool %q declares unknown predecessor %q", d.Name, pred)
			}
		}
		for _, p := range d.Extraction.Patterns {
			if _, err := regexp.Compile(p.Regex); err != nil {
				return fmt.Errorf("catalog: tool %q pattern %q: invalid regex: %w", d.Name, p.Name, err)
			}
		}
	}
	return nil
}

// yamlFile mirrors the on-disk catalog format, kept separate from
// Descriptor so the YAML schema can evolve without breaking the in-memory
// type's invariants (timeouts are integer seconds there, for instance).
type yamlFile struct {
	Tools []yamlTool `yaml:"tools"`
}

type yamlTool struct {
	Name         string        `yaml:"name"`
	Command      string        `yaml:"command"`
	Args         []string      `yaml:"args"`
	Category     string        `yaml:"category"`
	TimeoutSec   int           `yaml:"timeout_seconds"`
	Predecessors []string      `yaml:"predecessors"`
	Predicate    string        `yaml:"predicate"`
	PortScoped   bool          `yaml:"port_scoped"`
	UseLLM       bool          `yaml:"use_llm"`
	Patterns     []yamlPattern `yaml:"patterns"`
}

type yamlPattern struct {
	Name       string  `yaml:"name"`
	Regex      string  `yaml:"regex"`
	Kind       string  `yaml:"kind"`
	Severity   string  `yaml:"severity"`
	Confidence float64 `yaml:"confidence"`
}

// Load reads and validates a YAML tool catalog from path. Loading the
// catalog, like argument parsing, is a configuration-layer concern kept
// outside the core engine; the engine only ever consumes the resulting
// Catalog value.
func Load(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var file yamlFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	cat := Catalog{Tools: make([]Descriptor, 0, len(file.Tools))}
	for _, t := range file.Tools {
		d := Descriptor{
			Name:         t.Name,
			Command:      t.Command,
			Args:         t.Args,
			Category:     t.Category,
			Timeout:      time.Duration(t.TimeoutSec) * time.Second,
			Predecessors: t.Predecessors,
			Predicate:    t.Predicate,
			PortScoped:   t.PortScoped,
			Extraction: ExtractionRecipe{
				UseLLM: t.UseLLM,
			},
		}
		for _, p := range t.Patterns {
			d.Extraction.Patterns = append(d.Extraction.Patterns, Pattern{
				Name:             p.Name,
				Regex:            p.Regex,
				Kind:             DiscoveryKind(p.Kind),
				Severity:         Severity(p.Severity),
				ConfidenceWeight: p.Confidence,
			})
		}
		cat.Tools = append(cat.Tools, d)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}
