package engine

import (
	"testing"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorFindsResolvableBinary(t *testing.T) {
	cat := catalog.Catalog{Tools: []catalog.Descriptor{{Name: "echoer", Command: "echo"}}}
	results := Doctor(cat)
	require.Len(t, results, 1)
	assert.True(t, results[0].Available)
	assert.NotEmpty(t, results[0].ResolvedPath)
}

func TestDoctorReportsMissingBinaryWithInstallHints(t *testing.T) {
	cat := catalog.Catalog{Tools: []catalog.Descriptor{{Name: "nmap", Command: "nmap"}}}
	results := Doctor(cat)
	require.Len(t, results, 1)
	if results[0].Available {
		t.Skip("nmap happens to be installed on this machine")
	}
	assert.NotEmpty(t, results[0].InstallHints)
}

func TestBaseToolNameStripsSuffix(t *testing.T) {
	assert.Equal(t, "nuclei", baseToolName("nuclei_v2"))
	assert.Equal(t, "httpx", baseToolName("httpx-amd64"))
	assert.Equal(t, "gobuster", baseToolName("gobuster"))
}
