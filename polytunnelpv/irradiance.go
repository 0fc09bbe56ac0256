package polytunnelpv

import "math"

const (
	// groundAlbedo is the reflectance used for the ground-reflected
	// component of the isotropic transposition.
	groundAlbedo = 0.25

	// dniZenithCutoff is the solar zenith in degrees beyond which a direct
	// normal estimate from horizontal components is unusable; the division
	// by cos(zenith) amplifies sensor noise without bound near the horizon.
	dniZenithCutoff = 88.0
)

// AngleOfIncidence returns the angle in degrees between the direct sun beam
// and the normal of a surface with the given tilt and azimuth, for the given
// solar zenith and azimuth. All angles are in degrees.
func AngleOfIncidence(tilt, azimuth, solarZenith, solarAzimuth float64) float64 {
	cosAOI := math.Cos(degToRad(solarZenith))*math.Cos(degToRad(tilt)) +
		math.Sin(degToRad(solarZenith))*math.Sin(degToRad(tilt))*
			math.Cos(degToRad(solarAzimuth-azimuth))
	return radToDeg(math.Acos(clampUnit(cosAOI)))
}

// TransposeToPlaneOfArray converts horizontal irradiance components into the
// plane-of-array irradiance on a surface, using the isotropic sky model: a
// beam component projected through the angle of incidence, sky diffuse scaled
// by the surface's sky view fraction and a ground-reflected component scaled
// by the ground view fraction and albedo.
//
// Inputs are the surface tilt and azimuth, solar zenith and azimuth (all
// degrees) and the diffuse horizontal, global horizontal and direct normal
// irradiance in W/m2. The sun at or below the horizon yields 0. The result
// is never negative and the function never fails; an irradiance of 0 is a
// physically valid answer for a shaded or averted surface.
func TransposeToPlaneOfArray(tilt, azimuth, solarZenith, solarAzimuth, dhi, ghi, dni float64) float64 {
	if solarZenith >= 90 {
		return 0
	}

	cosAOI := math.Cos(degToRad(solarZenith))*math.Cos(degToRad(tilt)) +
		math.Sin(degToRad(solarZenith))*math.Sin(degToRad(tilt))*
			math.Cos(degToRad(solarAzimuth-azimuth))
	beam := 0.0
	if cosAOI > 0 {
		beam = dni * cosAOI
	}

	cosTilt := math.Cos(degToRad(tilt))
	skyDiffuse := dhi * (1 + cosTilt) / 2
	groundReflected := ghi * groundAlbedo * (1 - cosTilt) / 2

	poa := beam + skyDiffuse + groundReflected
	if poa < 0 || math.IsNaN(poa) {
		return 0
	}
	return poa
}

// DirectNormalFromGlobalAndDiffuse estimates the direct normal irradiance
// from global and diffuse horizontal measurements in W/m2 and the solar
// zenith in degrees. Beyond the zenith cutoff, or when the horizontal beam
// component is negative, the estimate is 0.
func DirectNormalFromGlobalAndDiffuse(ghi, dhi, solarZenith float64) float64 {
	if solarZenith >= dniZenithCutoff {
		return 0
	}
	dni := (ghi - dhi) / math.Cos(degToRad(solarZenith))
	if dni < 0 || math.IsNaN(dni) {
		return 0
	}
	return dni
}
