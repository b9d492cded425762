package k8sdns

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilder_Defaults(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)
	assert.Equal(t, DefaultScheme, b.Scheme())
	assert.Equal(t, DefaultPriority, b.Priority())
	assert.Equal(t, DefaultRefreshInterval, b.refreshInterval)
	assert.EqualValues(t, 443, b.defaultPort)
}

func TestNewBuilder_Options(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(
		WithScheme("my-dns"),
		WithPriority(8),
		WithRefreshInterval(5*time.Second),
		WithDefaultPort(8080),
		WithDNSServers("10.0.0.10:53"),
	)
	require.NoError(t, err)

	assert.Equal(t, "my-dns", b.Scheme())
	assert.Equal(t, 8, b.Priority())
	assert.Equal(t, 5*time.Second, b.refreshInterval)
	assert.EqualValues(t, 8080, b.defaultPort)
	assert.Equal(t, []string{"10.0.0.10:53"}, b.dnsServers)
}

func TestNewBuilder_InvalidOptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opt  Option
	}{
		{"empty scheme", WithScheme("")},
		{"priority too low", WithPriority(-1)},
		{"priority too high", WithPriority(11)},
		{"non-positive refresh interval", WithRefreshInterval(0)},
		{"zero default port", WithDefaultPort(0)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewBuilder(tc.opt)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	doc := `
[resolver]
scheme = "my-dns"
priority = 7
refresh_interval_seconds = 15
default_port = 9000
dns_servers = ["10.0.0.10:53", "10.0.0.11:53"]
`
	cfg, err := LoadConfig(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "my-dns", cfg.Scheme)
	assert.Equal(t, 7, cfg.Priority)
	assert.Equal(t, 15, cfg.RefreshIntervalSeconds)
	assert.EqualValues(t, 9000, cfg.DefaultPort)
	assert.Equal(t, []string{"10.0.0.10:53", "10.0.0.11:53"}, cfg.DNSServers)
}

func TestLoadConfig_AsOption(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(strings.NewReader(`
[resolver]
scheme = "my-dns"
refresh_interval_seconds = 30
`))
	require.NoError(t, err)

	b, err := NewBuilder(FromConfig(cfg))
	require.NoError(t, err)

	assert.Equal(t, "my-dns", b.Scheme())
	assert.Equal(t, 30*time.Second, b.refreshInterval)
	// Fields left at their zero value in the document fall back to
	// NewBuilder's defaults rather than being forced to zero.
	assert.Equal(t, DefaultPriority, b.Priority())
}

func TestRegister_HigherPriorityWins(t *testing.T) {
	scheme := "register-test-scheme"

	low, err := NewBuilder(WithScheme(scheme), WithPriority(1))
	require.NoError(t, err)
	high, err := NewBuilder(WithScheme(scheme), WithPriority(9))
	require.NoError(t, err)

	assert.True(t, Register(low))
	assert.Contains(t, Resolvers(), scheme)

	assert.True(t, Register(high))
	assert.False(t, Register(low), "a lower-or-equal priority Builder must not override an existing registration")
}

func TestDefaultBuilderIsRegistered(t *testing.T) {
	t.Parallel()
	assert.Contains(t, Resolvers(), DefaultScheme)
}
