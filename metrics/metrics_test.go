package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockCounters(t *testing.T) {
	m := New()

	obs := m.Block("CopyRand_3")
	obs.Items(100)
	obs.Items(28)
	obs.Messages(2)

	assert.Equal(t, 128.0, testutil.ToFloat64(m.BlockItems.WithLabelValues("CopyRand_3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BlockMessages.WithLabelValues("CopyRand_3")))
}

func TestObserveRunAndWriteFile(t *testing.T) {
	m := New()
	m.ObserveRun("null-rand", 250*time.Millisecond)
	m.ObserveRun("null-rand", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("null-rand")))

	path := filepath.Join(t.TempDir(), "flowbench.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.Contains(text, "flowbench_run_duration_seconds_count{variant=\"null-rand\"} 2"))
	assert.True(t, strings.Contains(text, "flowbench_runs_total{variant=\"null-rand\"} 2"))
}
