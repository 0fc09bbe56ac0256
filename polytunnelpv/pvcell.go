package polytunnelpv

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// ZeroCelsiusOffset converts between Celsius and Kelvin.
	ZeroCelsiusOffset = 273.15

	// Standard test conditions the reference parameters are quoted at.
	referenceCellTemperature = 25.0 + ZeroCelsiusOffset // K
	referenceIrradiance      = 1000.0                   // W/m2

	// Silicon bandgap and its temperature dependence, used for the
	// saturation-current temperature correction.
	bandgapReference = 1.121     // eV
	bandgapTempCoeff = 0.0002677 // 1/K
	boltzmannEV      = 8.617332478e-5

	// Faiman steady-state thermal model coefficients.
	faimanU0 = 25.0 // W/m2K
	faimanU1 = 6.84 // W/m2K per m/s of wind
)

// Default avalanche-breakdown parametrization for cells whose catalog entry
// does not override it.
const (
	DefaultBreakdownVoltage  = -15.0
	DefaultBreakdownFactor   = 2.0e-3
	DefaultBreakdownExponent = 3.0
)

// DefaultCurrentSamples is the length of the default current sweep.
const DefaultCurrentSamples = 1000

// IVCurve is one swept current-voltage characteristic. The three slices are
// index-aligned: Power[i] = Current[i] * Voltage[i].
type IVCurve struct {
	Current []float64 // A
	Power   []float64 // W
	Voltage []float64 // V
}

// CellUnit is the granularity breakdown-aware calculations operate at:
// either a bare cell or a bypass-protected cell string. The most negative
// breakdown voltage across a module's units sizes its reporting voltage
// floor.
type CellUnit interface {
	CellID() int
	BreakdownVoltage() float64
}

// MinimumBreakdownVoltage returns the most negative breakdown voltage across
// a set of cell units, or 0 for an empty set.
func MinimumBreakdownVoltage(units []CellUnit) float64 {
	minVoltage := 0.0
	for _, u := range units {
		if v := u.BreakdownVoltage(); v < minVoltage {
			minVoltage = v
		}
	}
	return minVoltage
}

// CellElectricalParameters are the reference-condition equivalent-circuit
// parameters of one cell, in the CEC single-diode parametrization.
type CellElectricalParameters struct {
	ShortCircuitCurrent   float64 // A at STC
	PhotocurrentRef       float64 // A at STC; falls back to ShortCircuitCurrent when zero
	SaturationCurrent     float64 // A at STC
	SeriesResistance      float64 // ohm
	ShuntResistance       float64 // ohm
	ThermalVoltage        float64 // V at STC (ideality times junctions times kT/q)
	ShortCircuitTempCoeff float64 // A/K
	BreakdownVoltage      float64 // V, <= 0
	BreakdownFactor       float64
	BreakdownExponent     float64
}

// Validate checks the reference parameters for physical admissibility.
func (p CellElectricalParameters) Validate() error {
	switch {
	case p.ShortCircuitCurrent < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("short-circuit current must be non-negative, got %g", p.ShortCircuitCurrent)}
	case p.SaturationCurrent <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("saturation current must be positive, got %g", p.SaturationCurrent)}
	case p.SeriesResistance < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("series resistance must be non-negative, got %g", p.SeriesResistance)}
	case p.ShuntResistance <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("shunt resistance must be positive, got %g", p.ShuntResistance)}
	case p.ThermalVoltage <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("thermal voltage must be positive, got %g", p.ThermalVoltage)}
	case p.BreakdownVoltage > 0:
		return &ConfigurationError{Reason: fmt.Sprintf("breakdown voltage must not be positive, got %g", p.BreakdownVoltage)}
	case p.BreakdownFactor < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("breakdown factor must be non-negative, got %g", p.BreakdownFactor)}
	}
	return nil
}

// photocurrentReference resolves the optional photocurrent against the
// short-circuit current, which approximates it closely for practical cells.
func (p CellElectricalParameters) photocurrentReference() float64 {
	if p.PhotocurrentRef > 0 {
		return p.PhotocurrentRef
	}
	return p.ShortCircuitCurrent
}

// operatingParameters adjusts the reference parameters to a cell temperature
// in Kelvin and a plane-of-array irradiance in W/m2. The photocurrent scales
// linearly with irradiance; the saturation current and thermal voltage
// follow the De Soto temperature rules; the resistances stay fixed so that a
// dark cell keeps its shunt and breakdown conduction paths.
func (p CellElectricalParameters) operatingParameters(cellTemperature, irradiance float64) SingleDiodeParameters {
	tRatio := cellTemperature / referenceCellTemperature
	bandgap := bandgapReference * (1 - bandgapTempCoeff*(cellTemperature-referenceCellTemperature))
	saturation := p.SaturationCurrent * tRatio * tRatio * tRatio *
		math.Exp(bandgapReference/(boltzmannEV*referenceCellTemperature)-
			bandgap/(boltzmannEV*cellTemperature))

	if irradiance < 0 {
		irradiance = 0
	}
	photocurrent := irradiance / referenceIrradiance *
		(p.photocurrentReference() + p.ShortCircuitTempCoeff*(cellTemperature-referenceCellTemperature))
	if photocurrent < 0 {
		photocurrent = 0
	}

	return SingleDiodeParameters{
		Photocurrent:      photocurrent,
		SaturationCurrent: saturation,
		SeriesResistance:  p.SeriesResistance,
		ShuntResistance:   p.ShuntResistance,
		ThermalVoltage:    p.ThermalVoltage * tRatio,
		BreakdownVoltage:  p.BreakdownVoltage,
		BreakdownFactor:   p.BreakdownFactor,
		BreakdownExponent: p.BreakdownExponent,
	}
}

// PVCell is one cell of a curved module: an identity, a fixed orientation
// derived from the module's curve, physical dimensions and electrical
// parameters. Cells are immutable; every computed quantity is a pure
// function of the supplied conditions.
type PVCell struct {
	cellID  int
	tilt    float64
	azimuth float64
	width   float64 // m, along the curve
	length  float64 // m, along the curvature axis
	params  CellElectricalParameters
}

// NewPVCell builds a cell at a fixed orientation. The tilt and azimuth are
// in degrees; width and length in metres must be positive.
func NewPVCell(cellID int, tilt, azimuth, width, length float64, params CellElectricalParameters) (*PVCell, error) {
	if cellID < 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("cell id must be non-negative, got %d", cellID)}
	}
	if width <= 0 || length <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"cell %d dimensions must be positive, got %g x %g", cellID, width, length)}
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("cell %d: %w", cellID, err)
	}
	return &PVCell{
		cellID:  cellID,
		tilt:    tilt,
		azimuth: normalizeDegrees(azimuth),
		width:   width,
		length:  length,
		params:  params,
	}, nil
}

func (c *PVCell) CellID() int   { return c.cellID }
func (c *PVCell) Tilt() float64 { return c.tilt }

// Azimuth returns the direction the cell faces, in degrees clockwise from
// north.
func (c *PVCell) Azimuth() float64 { return c.azimuth }
func (c *PVCell) Width() float64   { return c.width }
func (c *PVCell) Length() float64  { return c.length }

// ElectricalParameters returns the cell's reference-condition parameters.
func (c *PVCell) ElectricalParameters() CellElectricalParameters { return c.params }

// ShortCircuitCurrent returns the reference short-circuit current in amps.
func (c *PVCell) ShortCircuitCurrent() float64 { return c.params.ShortCircuitCurrent }

// BreakdownVoltage returns the cell's avalanche breakdown voltage in volts.
func (c *PVCell) BreakdownVoltage() float64 { return c.params.BreakdownVoltage }

// EffectiveIrradiance returns the plane-of-array irradiance on this cell in
// W/m2 for the given diffuse and global horizontal irradiance (W/m2) and
// solar azimuth and zenith (degrees), deriving the direct normal component
// from the horizontal measurements. Zero is a valid result for a cell that
// is shaded or faces away from the sun.
func (c *PVCell) EffectiveIrradiance(dhi, ghi, solarAzimuth, solarZenith float64) float64 {
	dni := DirectNormalFromGlobalAndDiffuse(ghi, dhi, solarZenith)
	return c.EffectiveIrradianceWithDirect(dhi, ghi, solarAzimuth, solarZenith, dni)
}

// EffectiveIrradianceWithDirect is EffectiveIrradiance with a measured
// direct normal irradiance in W/m2 instead of a derived one.
func (c *PVCell) EffectiveIrradianceWithDirect(dhi, ghi, solarAzimuth, solarZenith, dni float64) float64 {
	return TransposeToPlaneOfArray(c.tilt, c.azimuth, solarZenith, solarAzimuth, dhi, ghi, dni)
}

// AverageCellTemperature returns the steady-state cell temperature in Kelvin
// for an ambient temperature in Kelvin, a plane-of-array irradiance in W/m2
// and a wind speed in m/s, using the Faiman model. The result never falls
// below ambient and rises monotonically with irradiance and ambient
// temperature.
func (c *PVCell) AverageCellTemperature(ambientKelvin, poaIrradiance, windSpeed float64) float64 {
	if poaIrradiance < 0 {
		poaIrradiance = 0
	}
	if windSpeed < 0 {
		windSpeed = 0
	}
	return ambientKelvin + poaIrradiance/(faimanU0+faimanU1*windSpeed)
}

// DefaultCurrentSeries returns the sweep grid used when a caller supplies
// none: DefaultCurrentSamples points from zero to twice the reference
// short-circuit current.
func (c *PVCell) DefaultCurrentSeries() []float64 {
	return floats.Span(make([]float64, DefaultCurrentSamples), 0, 2*c.params.ShortCircuitCurrent)
}

// CalculateIVCurve computes the cell's I-V characteristic at an ambient
// temperature in Celsius and a plane-of-array irradiance in W/m2. The cell's
// operating temperature comes from the thermal model with still air; the
// diode parameters are adjusted to it and the single-diode characteristic is
// solved at each entry of the current series (the default sweep when nil).
// Zero irradiance yields the valid dark curve. A failed solve surfaces a
// ModelConvergenceError naming this cell and the offending sample; no value
// is ever substituted.
func (c *PVCell) CalculateIVCurve(ambientCelsius, irradiance float64, currentSeries []float64) (IVCurve, error) {
	if currentSeries == nil {
		currentSeries = c.DefaultCurrentSeries()
	}

	cellTemperature := c.AverageCellTemperature(ambientCelsius+ZeroCelsiusOffset, irradiance, 0)
	operating := c.params.operatingParameters(cellTemperature, irradiance)

	voltage, err := VoltageFromCurrent(operating, currentSeries)
	if err != nil {
		var convErr *ModelConvergenceError
		if errors.As(err, &convErr) {
			convErr.CellID = c.cellID
		}
		return IVCurve{}, fmt.Errorf("cell %d: %w", c.cellID, err)
	}

	current := append([]float64(nil), currentSeries...)
	power := make([]float64, len(current))
	for i := range current {
		power[i] = current[i] * voltage[i]
	}
	return IVCurve{Current: current, Power: power, Voltage: voltage}, nil
}
