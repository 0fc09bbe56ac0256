package polytunnelpv

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatCurveOrientationConstant(t *testing.T) {
	curve := NewFlatCurve(180, 10)

	for _, offset := range []float64{-3, -0.5, 0, 0.02, 0.5, 3} {
		tilt, azimuth, err := curve.OrientationAt(offset)
		require.NoError(t, err)
		assert.Equal(t, 10.0, tilt)
		assert.Equal(t, 180.0, azimuth)
	}
}

func TestCircularCurveCentreOrientation(t *testing.T) {
	curve, err := NewCircularCurve(180, 10, 10)
	require.NoError(t, err)

	tilt, azimuth, err := curve.OrientationAt(0)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, tilt, 1e-12)
	assert.InDelta(t, 180.0, azimuth, 1e-12)
}

func TestCircularCurveMirrorSymmetry(t *testing.T) {
	curve, err := NewCircularCurve(180, 10, 10)
	require.NoError(t, err)

	// 0.5 m on a 10 m radius subtends 0.05 rad = 2.864789 degrees.
	tiltPos, azPos, err := curve.OrientationAt(0.5)
	require.NoError(t, err)
	tiltNeg, azNeg, err := curve.OrientationAt(-0.5)
	require.NoError(t, err)

	assert.InDelta(t, 12.864789, tiltPos, 1e-6)
	assert.InDelta(t, 7.135211, tiltNeg, 1e-6)
	// Mirror images about the axis tilt.
	assert.InDelta(t, 20.0, tiltPos+tiltNeg, 1e-9)
	assert.Equal(t, 180.0, azPos)
	assert.Equal(t, 180.0, azNeg)
}

func TestCircularCurveSubtendedAngleLinear(t *testing.T) {
	curve, err := NewCircularCurve(180, 0, 4)
	require.NoError(t, err)

	single := curve.SubtendedAngle(0.25)
	double := curve.SubtendedAngle(0.5)
	assert.InDelta(t, 2*single, double, 1e-12)
	assert.InDelta(t, 0.25/4*180/math.Pi, single, 1e-12)
}

func TestCircularCurveAzimuthFlipsPastCrown(t *testing.T) {
	// With the axis horizontal, cells on the far side of the crown face the
	// opposite compass direction at the same tilt magnitude.
	curve, err := NewCircularCurve(180, 0, 10)
	require.NoError(t, err)

	tiltPos, azPos, err := curve.OrientationAt(0.5)
	require.NoError(t, err)
	tiltNeg, azNeg, err := curve.OrientationAt(-0.5)
	require.NoError(t, err)

	assert.InDelta(t, tiltPos, tiltNeg, 1e-12)
	assert.Equal(t, 180.0, azPos)
	assert.Equal(t, 0.0, azNeg)
}

func TestCircularCurveTiltBeyondNinetyKeepsAzimuth(t *testing.T) {
	// An overhanging surface (tilt past 90) is legal as long as it has not
	// wrapped past vertical.
	curve, err := NewCircularCurve(180, 10, 1)
	require.NoError(t, err)

	offset := degToRad(100) // 100 degrees of arc on a 1 m radius
	tilt, azimuth, err := curve.OrientationAt(offset)
	require.NoError(t, err)
	assert.InDelta(t, 110.0, tilt, 1e-9)
	assert.Equal(t, 180.0, azimuth)
}

func TestCircularCurveWrapsPastVertical(t *testing.T) {
	curve, err := NewCircularCurve(180, 0, 1)
	require.NoError(t, err)

	_, _, err = curve.OrientationAt(3.2) // 183.3 degrees of arc
	require.Error(t, err)
	var geomErr *GeometryError
	assert.True(t, errors.As(err, &geomErr))
}

func TestNewCircularCurveRejectsNonPositiveRadius(t *testing.T) {
	for _, radius := range []float64{0, -1} {
		_, err := NewCircularCurve(180, 10, radius)
		require.Error(t, err)
		var geomErr *GeometryError
		assert.True(t, errors.As(err, &geomErr))
	}
}

func TestCurveAxisAnglesNormalized(t *testing.T) {
	curve, err := NewCircularCurve(450, 370, 10)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, curve.CurvatureAxisAzimuth(), 1e-12)
	assert.InDelta(t, 10.0, curve.CurvatureAxisTilt(), 1e-12)

	flat := NewFlatCurve(-90, 0)
	assert.InDelta(t, 270.0, flat.CurvatureAxisAzimuth(), 1e-12)
}
