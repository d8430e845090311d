package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHostname(t *testing.T) {
	assert.Equal(t, "example_com", Sanitize("Example.com"))
}

func TestSanitizeIPv6(t *testing.T) {
	assert.Equal(t, "fe80__1", Sanitize("fe80::1"))
}

func TestSanitizeEmptyFallsBackToTarget(t *testing.T) {
	assert.Equal(t, "target", Sanitize("***"))
}

func TestNewDerivesSlug(t *testing.T) {
	tg := New("scanme.nmap.org")
	assert.Equal(t, "scanme.nmap.org", tg.Host)
	assert.Equal(t, "scanme_nmap_org", tg.Slug)
	assert.False(t, tg.IsIP())
}

func TestNewIPTarget(t *testing.T) {
	tg := New("192.168.1.10")
	assert.True(t, tg.IsIP())
}

func TestIsValidHostname(t *testing.T) {
	assert.True(t, IsValidHostname("example.com"))
	assert.True(t, IsValidHostname("*.example.com"))
	assert.False(t, IsValidHostname("192.168.1.1"))
	assert.False(t, IsValidHostname("localhost"))
	assert.False(t, IsValidHostname(""))
}
