package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int      `env:"TEST_PORT" envDefault:"8080"`
	Domains []string `env:"TEST_DOMAINS" envDefault:"swsc.edu.np" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"swsc.edu.np"}, cfg.Domains)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_DOMAINS", "a.edu,b.edu")

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"a.edu", "b.edu"}, cfg.Domains)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")

	var cfg testConfig
	assert.Error(t, Load(&cfg))
}
