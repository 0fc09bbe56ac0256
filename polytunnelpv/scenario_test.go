package polytunnelpv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocation() Location {
	return Location{Name: "test_site", Latitude: 52.2, Longitude: 0.12, Timezone: "UTC"}
}

func newTestScenario(t *testing.T) *Scenario {
	t.Helper()
	module, err := NewThinFilmModule(testThinFilmParams(t))
	require.NoError(t, err)
	return &Scenario{Name: "test_scenario", Location: testLocation(), Module: module}
}

// newSmallScenario keeps the cell count down for tests that solve full
// current sweeps.
func newSmallScenario(t *testing.T) *Scenario {
	t.Helper()
	params := testThinFilmParams(t)
	params.CellCount = 3
	params.CellsPerDiode = 3
	module, err := NewThinFilmModule(params)
	require.NoError(t, err)
	return &Scenario{Name: "small_scenario", Location: testLocation(), Module: module}
}

func enrichedTestWeather(t *testing.T) *WeatherSeries {
	t.Helper()
	w := loadTestWeather(t)
	w.EnrichSolar(52.2, 0.12)
	return w
}

func TestCellwiseIrradianceShape(t *testing.T) {
	s := newTestScenario(t)
	w := enrichedTestWeather(t)

	frame, err := s.ComputeCellwiseIrradiance(context.Background(), w, 2)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", frame.Scenario)
	require.Len(t, frame.Times, w.Len())
	require.Len(t, frame.Angles, s.Module.CellCount())
	require.Len(t, frame.Values, w.Len())
	for i, row := range frame.Values {
		require.Len(t, row, s.Module.CellCount())
		for _, poa := range row {
			assert.GreaterOrEqual(t, poa, 0.0, "row %d", i)
		}
	}

	// Midnight in July at 52N is fully dark, noon is not.
	for _, poa := range frame.Values[0] {
		assert.Zero(t, poa)
	}
	for _, poa := range frame.Values[2] {
		assert.Greater(t, poa, 0.0)
	}
}

func TestCellwiseIrradianceDeterministic(t *testing.T) {
	s := newTestScenario(t)
	w := enrichedTestWeather(t)

	serial, err := s.ComputeCellwiseIrradiance(context.Background(), w, 1)
	require.NoError(t, err)
	parallel, err := s.ComputeCellwiseIrradiance(context.Background(), w, 4)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestCellwiseIrradianceRequiresEnrichment(t *testing.T) {
	s := newTestScenario(t)
	w := loadTestWeather(t)

	_, err := s.ComputeCellwiseIrradiance(context.Background(), w, 1)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "solar position")
}

func TestCellwiseIrradianceHonoursCancellation(t *testing.T) {
	s := newTestScenario(t)
	w := enrichedTestWeather(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ComputeCellwiseIrradiance(ctx, w, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCellwiseIrradianceExtractPeriod(t *testing.T) {
	s := newTestScenario(t)
	w := enrichedTestWeather(t)

	frame, err := s.ComputeCellwiseIrradiance(context.Background(), w, 1)
	require.NoError(t, err)

	day := frame.ExtractPeriod(
		time.Date(2014, 7, 8, 6, 0, 0, 0, time.UTC),
		time.Date(2014, 7, 8, 18, 0, 0, 0, time.UTC),
	)
	require.Len(t, day.Times, 2)
	require.Len(t, day.Values, 2)
	assert.Equal(t, time.Date(2014, 7, 8, 6, 0, 0, 0, time.UTC), day.Times[0])
	assert.Equal(t, frame.Values[1], day.Values[0])
	assert.Equal(t, frame.Angles, day.Angles)
}

func TestMaximumPowerSeries(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)

	series, err := s.MaximumPowerSeries(context.Background(), w, 2)
	require.NoError(t, err)
	require.Len(t, series, w.Len())

	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].Time.After(series[i-1].Time))
	}

	// A dark module delivers nothing, so its best point is the short
	// circuit sample.
	assert.Zero(t, series[0].Power)
	assert.Zero(t, series[0].Current)

	noon := series[2]
	assert.Greater(t, noon.Power, 0.0)
	assert.Greater(t, noon.Current, 0.0)
	assert.Greater(t, noon.Voltage, 0.0)
	assert.InDelta(t, noon.Power, noon.Current*noon.Voltage, 1e-9)
}

func TestMaximumPowerSeriesDeterministic(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)

	serial, err := s.MaximumPowerSeries(context.Background(), w, 1)
	require.NoError(t, err)
	parallel, err := s.MaximumPowerSeries(context.Background(), w, 4)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestIVSnapshotAt(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)
	grid := []float64{0, 3, 6, 9}

	snapshot, err := s.IVSnapshotAt(w, 2, grid)
	require.NoError(t, err)

	assert.Equal(t, "small_scenario", snapshot.Scenario)
	assert.Equal(t, time.Date(2014, 7, 8, 12, 0, 0, 0, time.UTC), snapshot.Time)
	assert.Equal(t, 21.5, snapshot.Ambient)
	require.Len(t, snapshot.Irradiance, 3)
	require.Len(t, snapshot.CellCurves, 3)
	require.Len(t, snapshot.StringCurves, 1)
	require.Len(t, snapshot.ModuleCurve.Current, len(grid))

	// One string of three cells: the module curve is the string curve.
	for i := range grid {
		assert.InDelta(t, snapshot.StringCurves[0].Voltage[i], snapshot.ModuleCurve.Voltage[i], 1e-9)
		assert.GreaterOrEqual(t, snapshot.StringCurves[0].Voltage[i], DefaultBypassDiodeVoltage-1e-9)
	}
}

func TestIVSnapshotDefaultGrid(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)

	snapshot, err := s.IVSnapshotAt(w, 2, nil)
	require.NoError(t, err)
	assert.Len(t, snapshot.ModuleCurve.Current, DefaultCurrentSamples)
	assert.Zero(t, snapshot.ModuleCurve.Current[0])
}

func TestIVSnapshotBounds(t *testing.T) {
	s := newSmallScenario(t)
	w := enrichedTestWeather(t)

	var cfgErr *ConfigurationError
	_, err := s.IVSnapshotAt(w, -1, nil)
	require.ErrorAs(t, err, &cfgErr)
	_, err = s.IVSnapshotAt(w, w.Len(), nil)
	require.ErrorAs(t, err, &cfgErr)

	_, err = s.IVSnapshotAt(loadTestWeather(t), 0, nil)
	require.ErrorAs(t, err, &cfgErr)
}
