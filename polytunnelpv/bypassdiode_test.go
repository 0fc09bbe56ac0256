package polytunnelpv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestString(t *testing.T, stringID int, bypassVoltage float64, cellCount int) *BypassedCellString {
	t.Helper()
	cells := make([]*PVCell, cellCount)
	for i := range cells {
		cells[i] = newTestCell(t, i, 10, 180)
	}
	s, err := NewBypassedCellString(stringID, bypassVoltage, cells)
	require.NoError(t, err)
	return s
}

func TestClampVoltagesPinsBelowThreshold(t *testing.T) {
	clamped := clampVoltages([]float64{1.2, 0.0, -0.3, -5.0, -12.0}, -0.5)
	assert.Equal(t, []float64{1.2, 0.0, -0.3, -0.5, -0.5}, clamped)
}

func TestStringCurveSumsUniformCells(t *testing.T) {
	s := newTestString(t, 0, -0.5, 3)
	grid := []float64{0, 2, 4, 6, 8}

	cellCurve, err := s.Cells()[0].CalculateIVCurve(25, 1000, grid)
	require.NoError(t, err)
	stringCurve, err := s.CalculateIVCurve(25, []float64{1000, 1000, 1000}, grid)
	require.NoError(t, err)

	// Below the short-circuit current every cell sits in forward bias, so
	// the diode stays off and the string is a plain series sum.
	for i := range grid {
		assert.InDelta(t, 3*cellCurve.Voltage[i], stringCurve.Voltage[i], 1e-9)
	}
}

func TestStringCurvePowerUsesClampedVoltage(t *testing.T) {
	s := newTestString(t, 0, -5.0, 2)

	// One lit cell, one dark. At 9 A the dark cell is pushed toward its
	// breakdown voltage and the summed string voltage falls past the diode
	// threshold.
	curve, err := s.CalculateIVCurve(25, []float64{1000, 0}, []float64{9.0})
	require.NoError(t, err)

	assert.Equal(t, -5.0, curve.Voltage[0])
	assert.Equal(t, -45.0, curve.Power[0])
}

func TestStringCurveNeverBelowBypassVoltage(t *testing.T) {
	s := newTestString(t, 0, -0.5, 4)

	curve, err := s.CalculateIVCurve(25, []float64{1000, 200, 0, 800}, nil)
	require.NoError(t, err)
	for _, v := range curve.Voltage {
		assert.GreaterOrEqual(t, v, -0.5)
	}
}

func TestHalfShadedStringOpenCircuit(t *testing.T) {
	s := newTestString(t, 0, -0.5, 18)
	irradiance := make([]float64, 18)
	for i := 0; i < 9; i++ {
		irradiance[i] = 1000
	}

	cellCurve, err := s.Cells()[0].CalculateIVCurve(25, 1000, []float64{0})
	require.NoError(t, err)
	stringCurve, err := s.CalculateIVCurve(25, irradiance, []float64{0})
	require.NoError(t, err)

	// At open circuit the dark cells contribute nothing, so the string
	// open-circuit voltage is set by the nine lit cells alone.
	vocCell := cellCurve.Voltage[0]
	assert.InDelta(t, 9*vocCell, stringCurve.Voltage[0], 1e-6)
	assert.Less(t, stringCurve.Voltage[0], 18*vocCell)
}

func TestStringDefaultCurrentSeries(t *testing.T) {
	s := newTestString(t, 0, -0.5, 3)

	grid := s.DefaultCurrentSeries()
	require.Len(t, grid, DefaultCurrentSamples)
	assert.Equal(t, 0.0, grid[0])
	assert.InDelta(t, 2*s.ShortCircuitCurrent(), grid[len(grid)-1], 1e-9)
}

func TestStringUnitProperties(t *testing.T) {
	cellA := newTestCell(t, 4, 10, 180)
	cellB := newTestCell(t, 2, 10, 180)

	s, err := NewBypassedCellString(1, -0.5, []*PVCell{cellA, cellB})
	require.NoError(t, err)

	assert.Equal(t, 2, s.CellID())
	// As a unit the string bottoms out at the diode voltage, not at the
	// junction breakdown of any member.
	assert.Equal(t, -0.5, s.BreakdownVoltage())
	assert.Equal(t, 1, s.StringID())
	assert.Equal(t, -0.5, s.BypassDiodeVoltage())
	assert.InDelta(t, 9.43, s.ShortCircuitCurrent(), 1e-9)
}

func TestStringValidation(t *testing.T) {
	cells := []*PVCell{newTestCell(t, 0, 10, 180)}

	_, err := NewBypassedCellString(-1, -0.5, cells)
	assert.Error(t, err)

	_, err = NewBypassedCellString(0, 0.5, cells)
	assert.Error(t, err)

	_, err = NewBypassedCellString(0, -0.5, nil)
	assert.Error(t, err)

	_, err = NewBypassedCellString(0, -0.5, []*PVCell{nil})
	assert.Error(t, err)
}

func TestStringIrradianceLengthMismatch(t *testing.T) {
	s := newTestString(t, 0, -0.5, 3)

	_, err := s.CalculateIVCurve(25, []float64{1000, 1000}, nil)
	require.Error(t, err)
	var confErr *ConfigurationError
	assert.True(t, errors.As(err, &confErr))
}

func TestStringConvergenceErrorNamesStringAndCell(t *testing.T) {
	params := testCellParameters()
	params.ShuntResistance = 1e6
	params.BreakdownFactor = 1e-40
	stuck, err := NewPVCell(3, 10, 180, 0.02, 0.02, params)
	require.NoError(t, err)

	s, err := NewBypassedCellString(2, -0.5, []*PVCell{newTestCell(t, 0, 10, 180), stuck})
	require.NoError(t, err)

	_, err = s.CalculateIVCurve(25, []float64{0, 0}, []float64{1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cell string 2")
	var convErr *ModelConvergenceError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, 3, convErr.CellID)
}
