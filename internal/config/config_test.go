package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", c.DefaultProvider)
	assert.Equal(t, 5, c.MaxSuggestions)
	assert.Equal(t, "output", c.OutputDir)
	assert.Equal(t, ":8000", c.ListenAddr)
	assert.Equal(t, 600, c.ChartWidth)
	assert.False(t, c.DateFullScan)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("max_suggestions: 7\noutput_dir: /tmp/out\ndate_full_scan: true\n"), 0o644))
	t.Setenv("REPORTLOOM_OUTPUT_DIR", "/srv/reports")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 7, c.MaxSuggestions)
	assert.True(t, c.DateFullScan)
	assert.Equal(t, "/srv/reports", c.OutputDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, c.MaxSuggestions)
}

func TestLoadBrokenFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("max_suggestions: [\n"), 0o644))
	_, err := Load(p)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := &Global{DefaultProvider: "ollama", DefaultModel: "llama3", MaxSuggestions: 3, ChartWidth: 800}
	require.NoError(t, Save(in, p))

	out, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "ollama", out.DefaultProvider)
	assert.Equal(t, "llama3", out.DefaultModel)
	assert.Equal(t, 3, out.MaxSuggestions)
	assert.Equal(t, 800, out.ChartWidth)
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", c.OpenAIAPIKey)
}

func TestSet(t *testing.T) {
	c := &Global{}
	require.NoError(t, Set(c, "max_suggestions", "8"))
	require.NoError(t, Set(c, "temperature", "0.7"))
	require.NoError(t, Set(c, "date_full_scan", "true"))
	require.NoError(t, Set(c, "default_provider", "Local"))
	assert.Equal(t, 8, c.MaxSuggestions)
	assert.Equal(t, 0.7, c.Temperature)
	assert.True(t, c.DateFullScan)
	assert.Equal(t, "ollama", c.DefaultProvider)

	for _, tc := range [][2]string{
		{"max_suggestions", "zero"},
		{"max_suggestions", "0"},
		{"temperature", "3"},
		{"default_provider", "anthropic"},
		{"no_such_key", "1"},
	} {
		assert.Error(t, Set(c, tc[0], tc[1]), "%s=%s", tc[0], tc[1])
	}
}
