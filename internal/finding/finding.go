// Package finding defines the atomic structured observation an extractor
// produces from a finished task's output, and the content-addressed
// identity used to de-duplicate findings within a run.
package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/reconctl/reconctl/internal/catalog"
)

// Finding is one atomic structured observation.
type Finding struct {
	// ID is content-addressed: identical captures from the same tool
	// collapse to the same ID.
	ID string

	ToolName string
	Target   string
	// Port is 0 when not port-scoped.
	Port int
	Kind catalog.DiscoveryKind

	Severity    catalog.Severity
	Title       string
	Description string

	// Captures holds the named regex captures that produced this finding,
	// or the LLM-extracted key/value payload.
	Captures map[string]string

	// Narrative is an optional free-text LLM-produced elaboration; it is
	// deliberately excluded from ID computation since it is
	// non-deterministic across LLM calls on the same input.
	Narrative string

	// StdoutPath/StderrPath link back to the originating task's captured
	// output.
	StdoutPath string
	StderrPath string
}

// NewID computes the content-addressed identity of a finding from its
// deterministic fields (tool, kind, port, and captures) — not from
// Narrative, Severity, or Title, so that two extraction passes over
// identical output collapse to the same Finding even if severity
// classification or narrative text differs.
func NewID(toolName string, kind catalog.DiscoveryKind, port int, captures map[string]string) string {
	keys := make([]string, 0, len(captures))
	for k := range captures {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d", toolName, kind, port)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, captures[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CanonicalForm renders Captures deterministically, used for within-tool
// de-duplication during extraction (§4.5a).
func (f Finding) CanonicalForm() string {
	keys := make([]string, 0, len(f.Captures))
	for k := range f.Captures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+f.Captures[k])
	}
	return strings.Join(parts, ";")
}
