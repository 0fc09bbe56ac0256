package polytunnelpv

import (
	"fmt"
	"math"
)

// CurveType identifies the curvature variant of a mounting surface.
type CurveType string

const (
	CurveTypeCircular CurveType = "circular"
	CurveTypeFlat     CurveType = "flat"
)

// Curve describes the surface a PV module is mounted on. A curve computes the
// local surface orientation at a signed arc position measured from its
// reference point, with positive offsets running towards the curvature-axis
// azimuth. Curves are immutable and safe to share across modules.
type Curve interface {
	// OrientationAt returns the local surface tilt and azimuth in degrees at
	// the given arc offset in metres. Tilt is reported in [0, 180] and
	// azimuth in [0, 360). An offset that carries the surface past vertical
	// fails with a GeometryError.
	OrientationAt(offset float64) (tilt, azimuth float64, err error)

	// CurvatureAxisAzimuth and CurvatureAxisTilt return the orientation of
	// the axis the surface curves around, in degrees, normalized to [0, 360).
	CurvatureAxisAzimuth() float64
	CurvatureAxisTilt() float64

	Type() CurveType
}

// normalizeDegrees maps an angle to the range [0, 360).
func normalizeDegrees(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// signedDegrees maps a normalized angle to the range (-180, 180].
func signedDegrees(angle float64) float64 {
	a := normalizeDegrees(angle)
	if a > 180 {
		a -= 360
	}
	return a
}

// foldOrientation converts a signed tilt measured from horizontal into the
// reporting convention: tilt in [0, 180], azimuth in [0, 360). A negative
// signed tilt means the surface faces the far side of the curvature axis, so
// the azimuth flips by 180 degrees. A signed tilt outside (-180, 180) has
// rotated past vertical and is a geometry error.
func foldOrientation(signedTilt, axisAzimuth float64) (float64, float64, error) {
	if signedTilt > 180 || signedTilt < -180 {
		return 0, 0, &GeometryError{Reason: fmt.Sprintf(
			"surface tilt of %.3f degrees wraps past vertical", signedTilt)}
	}
	if signedTilt < 0 {
		return -signedTilt, normalizeDegrees(axisAzimuth + 180), nil
	}
	return signedTilt, normalizeDegrees(axisAzimuth), nil
}

// CircularCurve is a surface curved along a circular arc, such as the roof of
// a polytunnel, described by the orientation of its curvature axis and the
// arc radius.
type CircularCurve struct {
	curvatureAxisAzimuth float64
	curvatureAxisTilt    float64
	radiusOfCurvature    float64
}

// NewCircularCurve builds a circular curve from the curvature-axis azimuth
// and tilt in degrees and the radius of curvature in metres. The radius must
// be strictly positive.
func NewCircularCurve(axisAzimuth, axisTilt, radius float64) (*CircularCurve, error) {
	if radius <= 0 {
		return nil, &GeometryError{Reason: fmt.Sprintf(
			"radius of curvature must be positive, got %g", radius)}
	}
	return &CircularCurve{
		curvatureAxisAzimuth: normalizeDegrees(axisAzimuth),
		curvatureAxisTilt:    normalizeDegrees(axisTilt),
		radiusOfCurvature:    radius,
	}, nil
}

func (c *CircularCurve) Type() CurveType               { return CurveTypeCircular }
func (c *CircularCurve) CurvatureAxisAzimuth() float64 { return c.curvatureAxisAzimuth }
func (c *CircularCurve) CurvatureAxisTilt() float64    { return c.curvatureAxisTilt }

// RadiusOfCurvature returns the arc radius in metres.
func (c *CircularCurve) RadiusOfCurvature() float64 { return c.radiusOfCurvature }

// SubtendedAngle returns the angle in degrees subtended at the arc centre by
// an arc length in metres.
func (c *CircularCurve) SubtendedAngle(arcLength float64) float64 {
	return radToDeg(arcLength / c.radiusOfCurvature)
}

// OrientationAt rotates the surface normal about the curvature axis by the
// angle the offset subtends at the arc centre. The signed tilt is the axis
// tilt plus the subtended angle; folding it back into [0, 180] flips the
// azimuth for cells facing the far side of the axis.
func (c *CircularCurve) OrientationAt(offset float64) (float64, float64, error) {
	signedTilt := signedDegrees(c.curvatureAxisTilt) + c.SubtendedAngle(offset)
	return foldOrientation(signedTilt, c.curvatureAxisAzimuth)
}

// FlatCurve is the degenerate variant for modules mounted on a plane. The
// orientation is the axis orientation at every offset.
type FlatCurve struct {
	curvatureAxisAzimuth float64
	curvatureAxisTilt    float64
}

// NewFlatCurve builds a flat surface with the given orientation in degrees.
func NewFlatCurve(axisAzimuth, axisTilt float64) *FlatCurve {
	return &FlatCurve{
		curvatureAxisAzimuth: normalizeDegrees(axisAzimuth),
		curvatureAxisTilt:    normalizeDegrees(axisTilt),
	}
}

func (c *FlatCurve) Type() CurveType               { return CurveTypeFlat }
func (c *FlatCurve) CurvatureAxisAzimuth() float64 { return c.curvatureAxisAzimuth }
func (c *FlatCurve) CurvatureAxisTilt() float64    { return c.curvatureAxisTilt }

// OrientationAt returns the axis orientation regardless of offset.
func (c *FlatCurve) OrientationAt(offset float64) (float64, float64, error) {
	return foldOrientation(signedDegrees(c.curvatureAxisTilt), c.curvatureAxisAzimuth)
}
