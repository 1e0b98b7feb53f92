package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cores: 2\ninterval: 1s\niterations: 5\n"), 0o644))

	for i := 0; i < 2; i++ {
		opts := newOptions()
		cmd := newRootCmd(opts)
		require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--cores", "4", "--simulate"}))

		conf, err := loadConfig(cmd, opts)
		require.NoError(t, err)
		require.Equal(t, 4, conf.Cores)
		require.Equal(t, time.Second, conf.Interval)
		require.Equal(t, 5, conf.Iterations)
		require.True(t, conf.Simulate)
		require.Empty(t, conf.Metrics.Addr)
	}
}

func TestRunSimulated(t *testing.T) {
	for i := 0; i < 2; i++ {
		out := &bytes.Buffer{}
		cmd := newRootCmd(newOptions())
		cmd.SetOut(out)
		cmd.SetArgs([]string{
			"--simulate",
			"--cores", "2",
			"--iterations", "2",
			"--interval", "1ms",
			"--log-level", "error",
		})

		require.NoError(t, cmd.Execute())
		require.Contains(t, out.String(), "Round 1")
		require.NotContains(t, out.String(), "Round 2")
	}
}

func TestRunRejectsBadLevel(t *testing.T) {
	cmd := newRootCmd(newOptions())
	cmd.SetArgs([]string{"--simulate", "--cores", "1", "--log-level", "loud"})
	require.Error(t, cmd.Execute())
}
