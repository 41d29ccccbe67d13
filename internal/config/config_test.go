package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/lattice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "localhost:6379", cfg.Address())
	assert.Equal(t, 5*time.Second, cfg.AutoCloseTimeout)
	assert.Equal(t, "lattice", cfg.Graph)
	assert.True(t, cfg.MetricsEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Formats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "lattice.yaml", "host: graph.local\nport: 6380\nusername: neo\npassword: secret\nauto_close_timeout: 2s\n"},
		{"toml", "lattice.toml", "host = \"graph.local\"\nport = 6380\nusername = \"neo\"\npassword = \"secret\"\nauto_close_timeout = \"2s\"\n"},
		{"json", "lattice.json", `{"host":"graph.local","port":6380,"username":"neo","password":"secret","auto_close_timeout":2000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeFile(t, dir, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "graph.local:6380", cfg.Address())
			assert.Equal(t, "neo", cfg.Credentials().Username)
			assert.Equal(t, "secret", cfg.Credentials().Password)
			assert.Equal(t, 2*time.Second, cfg.AutoCloseTimeout)
			// Untouched keys keep their defaults.
			assert.Equal(t, "lattice", cfg.Graph)
			assert.Equal(t, ":8080", cfg.ListenAddr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Load(writeFile(t, dir, "lattice.ini", "host=x"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, dir, "bad.yaml", "host: [unterminated"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, dir, "unknown.yaml", "hots: typo\n"))
	assert.Error(t, err, "Unknown keys should be rejected")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LATTICE_HOST", "env.local")
	t.Setenv("LATTICE_PORT", "7000")
	t.Setenv("LATTICE_AUTO_CLOSE_TIMEOUT", "250ms")
	t.Setenv("LATTICE_METRICS_ENABLED", "false")

	cfg := config.Default()
	require.NoError(t, config.ApplyEnv(&cfg))
	assert.Equal(t, "env.local:7000", cfg.Address())
	assert.Equal(t, 250*time.Millisecond, cfg.AutoCloseTimeout)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "lattice", cfg.Graph)
}

func TestApplyEnv_BareDurationIsMillis(t *testing.T) {
	t.Setenv("LATTICE_AUTO_CLOSE_TIMEOUT", "5000")

	cfg := config.Default()
	require.NoError(t, config.ApplyEnv(&cfg))
	assert.Equal(t, 5*time.Second, cfg.AutoCloseTimeout)

	t.Setenv("LATTICE_AUTO_CLOSE_TIMEOUT", "soon")
	assert.Error(t, config.ApplyEnv(&cfg))
}

func TestLoad_QuotedBareDurationIsMillis(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lattice.yaml", "auto_close_timeout: \"5000\"\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.AutoCloseTimeout)
}

func TestResolve_Validates(t *testing.T) {
	t.Setenv("LATTICE_PORT", "0")
	_, err := config.Resolve("")
	assert.Error(t, err)
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lattice.yaml", "host: first\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, func(c config.Config) { got <- c.Host }, nil)
	}()

	// The watcher registers asynchronously; keep rewriting until a reload lands.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case host := <-got:
			// A truncating write can surface the empty file first.
			if host != "second" {
				continue
			}
			cancel()
			require.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("host: second\n"), 0o644))
		case <-deadline:
			t.Fatal("Timed out waiting for reload")
		}
	}
}
