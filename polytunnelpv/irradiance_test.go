package polytunnelpv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransposeHorizontalSurfaceRecoversGlobal(t *testing.T) {
	// For a horizontal surface the beam projection plus sky diffuse must
	// reproduce the global horizontal irradiance when the components are
	// consistent: GHI = DNI*cos(zenith) + DHI.
	ghi, dhi, zenith := 500.0, 200.0, 60.0
	dni := DirectNormalFromGlobalAndDiffuse(ghi, dhi, zenith)
	assert.InDelta(t, 600.0, dni, 1e-9)

	poa := TransposeToPlaneOfArray(0, 180, zenith, 180, dhi, ghi, dni)
	assert.InDelta(t, ghi, poa, 1e-9)
}

func TestTransposeSunBelowHorizonIsZero(t *testing.T) {
	for _, zenith := range []float64{90, 95, 120} {
		poa := TransposeToPlaneOfArray(30, 180, zenith, 180, 50, 50, 0)
		assert.Equal(t, 0.0, poa)
	}
}

func TestTransposeAvertedSurfaceSeesNoBeam(t *testing.T) {
	// North-facing vertical surface with the sun due south: the beam term
	// vanishes, leaving half the sky diffuse plus the ground reflection.
	poa := TransposeToPlaneOfArray(90, 0, 45, 180, 200, 600, 400)
	expected := 200*0.5 + 600*groundAlbedo*0.5
	assert.InDelta(t, expected, poa, 1e-9)
}

func TestTransposeTiltedTowardsSun(t *testing.T) {
	// A surface tilted to meet the beam head on collects the full direct
	// normal irradiance in its beam term.
	tilt, zenith := 45.0, 45.0
	poa := TransposeToPlaneOfArray(tilt, 180, zenith, 180, 0, 0, 800)
	assert.InDelta(t, 800.0, poa, 1e-9)
}

func TestTransposeNeverNegative(t *testing.T) {
	poa := TransposeToPlaneOfArray(170, 0, 80, 180, 0, -50, 0)
	assert.GreaterOrEqual(t, poa, 0.0)
}

func TestAngleOfIncidence(t *testing.T) {
	// Normal incidence when the surface normal points at the sun.
	assert.InDelta(t, 0.0, AngleOfIncidence(45, 180, 45, 180), 1e-9)
	// Horizontal surface: the angle of incidence equals the zenith.
	assert.InDelta(t, 30.0, AngleOfIncidence(0, 180, 30, 140), 1e-9)
	// Sun behind the surface.
	assert.InDelta(t, 135.0, AngleOfIncidence(90, 0, 45, 180), 1e-9)
}

func TestDirectNormalEstimateCutoffs(t *testing.T) {
	// Beyond the zenith cutoff the estimate is unusable and reported as 0.
	assert.Equal(t, 0.0, DirectNormalFromGlobalAndDiffuse(100, 50, 88))
	assert.Equal(t, 0.0, DirectNormalFromGlobalAndDiffuse(100, 50, 90))
	// A diffuse reading above global would imply a negative beam; clamp.
	assert.Equal(t, 0.0, DirectNormalFromGlobalAndDiffuse(40, 50, 30))
}
