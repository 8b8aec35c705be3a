package llmtools

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()
	cfg, err := ParseConfig([]byte(`
fix_json_args: false
case_insensitive: true
strict: true
max_concurrency: 4
timeout: 30s
choice: 1
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.FixJSONArgs)
	assert.False(t, *cfg.FixJSONArgs)
	assert.True(t, cfg.CaseInsensitive)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Choice)
}

func TestParseConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.FixJSONArgs)
	assert.True(t, cfg.fixJSONArgs())

	o := newDispatchOptions(cfg.DispatchOptions())
	assert.True(t, o.fixJSONArgs)
	assert.False(t, o.caseInsensitive)
	assert.Zero(t, o.timeout)
	assert.Equal(t, Sequential(), o.executor)
	assert.Empty(t, cfg.ToolOptions())
}

func TestParseConfig_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "retries: 3\n"},
		{"negative concurrency", "max_concurrency: -1\n"},
		{"negative timeout", "timeout: -5s\n"},
		{"bad duration", "timeout: soon\n"},
		{"not a mapping", "- a\n- b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseConfig([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "llmtools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strict: true\ncase_insensitive: true\ntimeout: 2s\nmax_concurrency: 2\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	o := newDispatchOptions(cfg.DispatchOptions())
	assert.True(t, o.caseInsensitive)
	assert.Equal(t, 2*time.Second, o.timeout)
	assert.IsType(t, &Pool{}, o.executor)

	to := applyToolOptions(cfg.ToolOptions())
	assert.True(t, to.strict)
	assert.True(t, to.caseInsensitive)

	tb := NewToolbox(cfg.ToolboxOptions()...)
	assert.True(t, tb.opts.strict)
	assert.True(t, tb.opts.caseInsensitive)
	assert.True(t, tb.opts.fixJSONArgs)
	assert.Equal(t, 2, tb.opts.maxConcurrency)
	assert.Equal(t, 2*time.Second, tb.opts.timeout)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
