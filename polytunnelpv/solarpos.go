package polytunnelpv

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SolarPosition holds the sun's coordinates for one location and instant.
// All angles are in degrees.
type SolarPosition struct {
	Zenith         float64 // true zenith angle
	ApparentZenith float64 // zenith corrected for atmospheric refraction
	Azimuth        float64 // measured clockwise from north
	Declination    float64
	HourAngle      float64
	EquationOfTime float64 // minutes
}

// Elevation returns the true solar elevation in degrees.
func (p SolarPosition) Elevation() float64 { return 90 - p.Zenith }

// ApparentElevation returns the refraction-corrected solar elevation in
// degrees.
func (p SolarPosition) ApparentElevation() float64 { return 90 - p.ApparentZenith }

// degToRad converts degrees to radians.
func degToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// radToDeg converts radians to degrees.
func radToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// clampUnit limits a value to [-1, 1] before an inverse trig call, absorbing
// rounding excursions just outside the domain.
func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// SolarPositionAt computes the sun's position for a time and site using the
// NOAA solar calculator's reduction of the Meeus algorithm, accurate to well
// under a tenth of a degree between 1900 and 2100. Latitude is positive
// north and longitude positive east, both in degrees. The time's zone is
// respected; all internal arithmetic runs in UTC.
func SolarPositionAt(t time.Time, latitude, longitude float64) SolarPosition {
	utc := t.UTC()
	jd := julian.TimeToJD(utc)
	jc := (jd - 2451545.0) / 36525.0

	// Geometric mean longitude and anomaly of the sun.
	meanLong := math.Mod(280.46646+jc*(36000.76983+jc*0.0003032), 360)
	meanAnom := 357.52911 + jc*(35999.05029-0.0001537*jc)
	eccent := 0.016708634 - jc*(0.000042037+0.0000001267*jc)

	// Equation of centre, then true and apparent longitude.
	centre := math.Sin(degToRad(meanAnom))*(1.914602-jc*(0.004817+0.000014*jc)) +
		math.Sin(degToRad(2*meanAnom))*(0.019993-0.000101*jc) +
		math.Sin(degToRad(3*meanAnom))*0.000289
	trueLong := meanLong + centre
	apparentLong := trueLong - 0.00569 - 0.00478*math.Sin(degToRad(125.04-1934.136*jc))

	// Obliquity of the ecliptic corrected for nutation.
	meanObliq := 23 + (26+(21.448-jc*(46.815+jc*(0.00059-jc*0.001813)))/60)/60
	obliq := meanObliq + 0.00256*math.Cos(degToRad(125.04-1934.136*jc))

	declination := radToDeg(math.Asin(math.Sin(degToRad(obliq)) * math.Sin(degToRad(apparentLong))))

	// Equation of time in minutes.
	vary := math.Tan(degToRad(obliq / 2))
	vary *= vary
	eot := 4 * radToDeg(vary*math.Sin(2*degToRad(meanLong))-
		2*eccent*math.Sin(degToRad(meanAnom))+
		4*eccent*vary*math.Sin(degToRad(meanAnom))*math.Cos(2*degToRad(meanLong))-
		0.5*vary*vary*math.Sin(4*degToRad(meanLong))-
		1.25*eccent*eccent*math.Sin(2*degToRad(meanAnom)))

	// True solar time, then the hour angle in (-180, 180], negative before
	// local solar noon.
	minutes := float64(utc.Hour())*60 + float64(utc.Minute()) +
		(float64(utc.Second())+float64(utc.Nanosecond())/1e9)/60
	trueSolarTime := math.Mod(minutes+eot+4*longitude+1440, 1440)
	hourAngle := trueSolarTime/4 - 180
	if hourAngle < -180 {
		hourAngle += 360
	}

	latRad := degToRad(latitude)
	declRad := degToRad(declination)
	cosZenith := math.Sin(latRad)*math.Sin(declRad) +
		math.Cos(latRad)*math.Cos(declRad)*math.Cos(degToRad(hourAngle))
	zenith := radToDeg(math.Acos(clampUnit(cosZenith)))

	return SolarPosition{
		Zenith:         zenith,
		ApparentZenith: zenith - refractionCorrection(90-zenith),
		Azimuth:        solarAzimuth(latRad, declRad, zenith, hourAngle),
		Declination:    declination,
		HourAngle:      hourAngle,
		EquationOfTime: eot,
	}
}

// solarAzimuth resolves the azimuth quadrant from the sign of the hour angle.
func solarAzimuth(latRad, declRad, zenithDeg, hourAngle float64) float64 {
	zenRad := degToRad(zenithDeg)
	denom := math.Cos(latRad) * math.Sin(zenRad)
	if math.Abs(denom) < 1e-12 {
		// Sun at the zenith or site at a pole; any azimuth serves.
		return 180
	}
	cosAz := clampUnit((math.Sin(latRad)*math.Cos(zenRad) - math.Sin(declRad)) / denom)
	az := radToDeg(math.Acos(cosAz))
	if hourAngle > 0 {
		return normalizeDegrees(az + 180)
	}
	return normalizeDegrees(540 - az)
}

// refractionCorrection returns the atmospheric refraction in degrees for a
// true solar elevation in degrees, following the NOAA calculator's piecewise
// fit. Below the horizon the correction tapers to zero.
func refractionCorrection(elevation float64) float64 {
	switch {
	case elevation > 85:
		return 0
	case elevation > 5:
		te := math.Tan(degToRad(elevation))
		return (58.1/te - 0.07/(te*te*te) + 0.000086/math.Pow(te, 5)) / 3600
	case elevation > -0.575:
		return (1735 + elevation*(-518.2+elevation*(103.4+elevation*(-12.79+elevation*0.711)))) / 3600
	default:
		return -20.772 / math.Tan(degToRad(elevation)) / 3600
	}
}
