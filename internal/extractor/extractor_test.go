package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSkipsLLMWithoutFlagOrHeuristic(t *testing.T) {
	client := &fakeClient{response: `{"findings":[]}`}
	e := &Extractor{Client: client}
	d := catalog.Descriptor{Name: "nmap"}
	tk := task.Task{Target: "example.com"}
	result := task.Result{Stdout: "short"}

	findings, err := e.Extract(context.Background(), d, tk, result)
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, 0, client.calls, "heuristic should reject trivial output and never call the client")
}

func TestExtractTriggersLLMOnExplicitFlag(t *testing.T) {
	client := &fakeClient{response: `{"findings":[{"kind":"vulnerability","title":"CVE-2022-0001","severity":"high","captures":{"cve":"CVE-2022-0001"}}]}`}
	e := &Extractor{Client: client}
	d := catalog.Descriptor{Name: "nikto", Extraction: catalog.ExtractionRecipe{UseLLM: true}}
	tk := task.Task{Target: "example.com"}
	out := strings.Repeat("interesting finding line with detail\n", 3)
	result := task.Result{Stdout: out}

	findings, err := e.Extract(context.Background(), d, tk, result)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, client.calls)
}

// TestExtractTriggersLLMOnHeuristicAlone exercises condition (ii): a
// descriptor with UseLLM left false still reaches the LLM strategy when
// ShouldUseLLM judges the stdout worth a second pass.
func TestExtractTriggersLLMOnHeuristicAlone(t *testing.T) {
	client := &fakeClient{response: `{"findings":[{"kind":"vulnerability","title":"CVE-2022-0002","severity":"medium","captures":{"cve":"CVE-2022-0002"}}]}`}
	e := &Extractor{Client: client}
	d := catalog.Descriptor{Name: "nikto"}
	tk := task.Task{Target: "example.com"}
	out := strings.Repeat("interesting finding line with detail\n", 3)
	require.True(t, ShouldUseLLM(out), "fixture stdout must satisfy the heuristic for this test to be meaningful")
	result := task.Result{Stdout: out}

	findings, err := e.Extract(context.Background(), d, tk, result)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, client.calls)
}

func TestExtractSwallowsLLMErrorsKeepingPatternFindings(t *testing.T) {
	client := &fakeClient{err: assert.AnError}
	e := &Extractor{Client: client}
	d := catalog.Descriptor{Name: "nmap", Extraction: catalog.ExtractionRecipe{UseLLM: true}}
	tk := task.Task{Target: "example.com"}
	out := "22/tcp open ssh\n" + strings.Repeat("interesting finding line with detail\n", 3)
	result := task.Result{Stdout: out}

	findings, err := e.Extract(context.Background(), d, tk, result)
	require.NoError(t, err)
	require.Len(t, findings, 1, "pattern findings must survive an LLM provider failure")
	assert.Equal(t, "ssh", findings[0].Captures["service"])
	assert.Equal(t, 1, client.calls)
}
