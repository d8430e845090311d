// Package extractor turns a finished task's raw output into structured
// Findings, via a regex pattern-matching strategy (always available) and
// an optional LLM-assisted strategy (§4.5).
package extractor

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/finding"
)

// compiledPattern pairs a catalog.Pattern with its compiled regexp.
type compiledPattern struct {
	spec catalog.Pattern
	re   *regexp.Regexp
}

// BuiltinPatterns are the common extraction recipes shipped out of the box, available
// to every tool regardless of what the catalog declares: nmap-style open
// ports, greppable host:port pairs, HTTP status lines, DNS record lines,
// and SSL certificate CN/SAN entries.
func BuiltinPatterns() []catalog.Pattern {
	return []catalog.Pattern{
		{
			Name:             "nmap_open_port",
			Regex:            `^(?P<port>\d+)/(?P<proto>tcp|udp)\s+open\s+(?P<service>\S+)`,
			Kind:             catalog.DiscoveryPort,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.9,
		},
		{
			Name:             "greppable_host_port",
			Regex:            `^(?P<host>[\w.-]+):(?P<port>\d{1,5})\s*$`,
			Kind:             catalog.DiscoveryPort,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.6,
		},
		{
			Name:             "http_status_line",
			Regex:            `^HTTP/(?P<version>\d\.\d)\s+(?P<code>\d{3})`,
			Kind:             catalog.DiscoveryService,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.8,
		},
		{
			Name:             "dns_record",
			Regex:            `^(?P<name>\S+)\.?\s+\d+\s+IN\s+(?P<type>A|AAAA|CNAME|MX|NS|TXT|SOA|PTR)\s+(?P<value>.+)$`,
			Kind:             catalog.DiscoveryHost,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.8,
		},
		{
			Name:             "ssl_subject_cn",
			Regex:            `CN=(?P<host>[^,\s]+)`,
			Kind:             catalog.DiscoveryHost,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.7,
		},
		{
			Name:             "ssl_san",
			Regex:            `DNS:(?P<host>[^,\s]+)`,
			Kind:             catalog.DiscoveryHost,
			Severity:         catalog.SeverityInfo,
			ConfidenceWeight: 0.7,
		},
	}
}

func compileAll(patterns []catalog.Pattern) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			// Catalog.Validate should have already caught this; treat a
			// remaining compile error as fatal configuration, per §4.5's
			// failure semantics.
			return nil, err
		}
		out = append(out, compiledPattern{spec: p, re: re})
	}
	return out, nil
}

// ExtractPatterns runs every pattern over output line by line, synthesizing
// one Finding per match and de-duplicating within this single call by
// canonical capture form, per §4.5a.
func ExtractPatterns(toolName, targetHost string, port int, output string, patterns []catalog.Pattern, stdoutPath, stderrPath string) ([]finding.Finding, error) {
	compiled, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []finding.Finding
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, cp := range compiled {
			matches := cp.re.FindAllStringSubmatch(line, -1)
			for _, m := range matches {
				captures := namedCaptures(cp.re, m)
				port := port
				if p, ok := captures["port"]; ok {
					if parsed, err := strconv.Atoi(p); err == nil {
						port = parsed
					}
				}
				f := finding.Finding{
					ToolName:    toolName,
					Target:      targetHost,
					Port:        port,
					Kind:        cp.spec.Kind,
					Severity:    cp.spec.Severity,
					Title:       cp.spec.Name,
					Description: line,
					Captures:    captures,
					StdoutPath:  stdoutPath,
					StderrPath:  stderrPath,
				}
				key := cp.spec.Name + "|" + f.CanonicalForm()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				f.ID = finding.NewID(toolName, f.Kind, f.Port, captures)
				out = append(out, f)
			}
		}
	}
	return out, scanner.Err()
}

func namedCaptures(re *regexp.Regexp, m []string) map[string]string {
	captures := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || i >= len(m) {
			continue
		}
		captures[name] = m[i]
	}
	return captures
}
