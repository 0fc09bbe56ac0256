package polytunnelpv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotIrradianceHeatmap(t *testing.T) {
	s := newTestScenario(t)
	w := enrichedTestWeather(t)
	frame, err := s.ComputeCellwiseIrradiance(context.Background(), w, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "heatmap.png")
	require.NoError(t, PlotIrradianceHeatmap(frame, path))
	assertNonEmptyFile(t, path)
}

func TestPlotIrradianceHeatmapRejectsTinyFrame(t *testing.T) {
	var cfgErr *ConfigurationError
	err := PlotIrradianceHeatmap(&CellwiseIrradiance{Scenario: "tiny"}, "unused.png")
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPlotIVSnapshot(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)
	snapshot, err := s.IVSnapshotAt(w, 2, []float64{0, 1, 2, 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.png")
	require.NoError(t, PlotIVSnapshot(snapshot, path))
	assertNonEmptyFile(t, path)

	path = filepath.Join(t.TempDir(), "snapshot_pv.png")
	require.NoError(t, PlotPowerVoltageSnapshot(snapshot, path))
	assertNonEmptyFile(t, path)
}

func TestPlotPowerSeries(t *testing.T) {
	points := []PowerPoint{
		{Time: time.Date(2014, 7, 8, 10, 0, 0, 0, time.UTC), Power: 1.2, Current: 1.1, Voltage: 1.09},
		{Time: time.Date(2014, 7, 8, 11, 0, 0, 0, time.UTC), Power: 2.4, Current: 1.6, Voltage: 1.5},
		{Time: time.Date(2014, 7, 8, 12, 0, 0, 0, time.UTC), Power: 2.1, Current: 1.5, Voltage: 1.4},
	}

	path := filepath.Join(t.TempDir(), "power.png")
	require.NoError(t, PlotPowerSeries("test_scenario", points, path))
	assertNonEmptyFile(t, path)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, PlotPowerSeries("test_scenario", nil, path), &cfgErr)
}
