package polytunnelpv

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// BypassedCellString is a series-connected run of cells protected by a
// single bypass diode. When part of the run is shaded the shaded cells are
// driven into reverse bias by the rest of the module; the diode conducts
// once the string voltage falls to its forward threshold and caps the
// reverse excursion there.
type BypassedCellString struct {
	stringID      int
	bypassVoltage float64
	cells         []*PVCell
}

// NewBypassedCellString builds a cell string guarded by one bypass diode.
// The bypass voltage is the diode's conduction threshold expressed as the
// (negative) string voltage at which it turns on.
func NewBypassedCellString(stringID int, bypassVoltage float64, cells []*PVCell) (*BypassedCellString, error) {
	if stringID < 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("cell string id must be non-negative, got %d", stringID)}
	}
	if bypassVoltage >= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("bypass diode voltage must be negative, got %g", bypassVoltage)}
	}
	if len(cells) == 0 {
		return nil, &ConfigurationError{Reason: "cell string must contain at least one cell"}
	}
	for i, cell := range cells {
		if cell == nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("cell string position %d is nil", i)}
		}
	}
	return &BypassedCellString{
		stringID:      stringID,
		bypassVoltage: bypassVoltage,
		cells:         cells,
	}, nil
}

func (s *BypassedCellString) StringID() int { return s.stringID }

func (s *BypassedCellString) BypassDiodeVoltage() float64 { return s.bypassVoltage }

func (s *BypassedCellString) Cells() []*PVCell { return s.cells }

// CellID reports the lowest cell id in the string, used when the string
// itself must be identified as a unit.
func (s *BypassedCellString) CellID() int {
	id := s.cells[0].CellID()
	for _, cell := range s.cells[1:] {
		if cell.CellID() < id {
			id = cell.CellID()
		}
	}
	return id
}

// BreakdownVoltage reports the bypass diode's conduction voltage. The diode
// turns on well before any member junction approaches avalanche breakdown,
// so it is the effective floor for the string as a unit.
func (s *BypassedCellString) BreakdownVoltage() float64 {
	return s.bypassVoltage
}

// ShortCircuitCurrent reports the largest member short-circuit current.
// An unshaded string passes no more than this.
func (s *BypassedCellString) ShortCircuitCurrent() float64 {
	isc := s.cells[0].ShortCircuitCurrent()
	for _, cell := range s.cells[1:] {
		if cell.ShortCircuitCurrent() > isc {
			isc = cell.ShortCircuitCurrent()
		}
	}
	return isc
}

// DefaultCurrentSeries sweeps from zero to twice the string short-circuit
// current so the curve straddles the full operating range even when some
// members are shaded.
func (s *BypassedCellString) DefaultCurrentSeries() []float64 {
	return floats.Span(make([]float64, DefaultCurrentSamples), 0, 2*s.ShortCircuitCurrent())
}

// clampVoltages applies a bypass diode to a summed string voltage curve.
// Any sample below the diode's conduction threshold is pinned to it.
func clampVoltages(voltages []float64, bypassVoltage float64) []float64 {
	clamped := make([]float64, len(voltages))
	for i, v := range voltages {
		if v < bypassVoltage {
			clamped[i] = bypassVoltage
		} else {
			clamped[i] = v
		}
	}
	return clamped
}

// CalculateIVCurve computes the string IV curve at a shared ambient
// temperature with per-cell plane-of-array irradiance. Cell curves are
// evaluated on a common current grid and summed elementwise; the bypass
// clamp is applied to the summed voltage before power is formed, so the
// reported power reflects what the protected string actually delivers.
func (s *BypassedCellString) CalculateIVCurve(ambientCelsius float64, irradiance []float64, currentSeries []float64) (IVCurve, error) {
	if len(irradiance) != len(s.cells) {
		return IVCurve{}, &ConfigurationError{Reason: fmt.Sprintf(
			"cell string %d: irradiance series has %d entries for %d cells",
			s.stringID, len(irradiance), len(s.cells))}
	}
	if currentSeries == nil {
		currentSeries = s.DefaultCurrentSeries()
	}

	summed := make([]float64, len(currentSeries))
	for i, cell := range s.cells {
		curve, err := cell.CalculateIVCurve(ambientCelsius, irradiance[i], currentSeries)
		if err != nil {
			var convErr *ModelConvergenceError
			if errors.As(err, &convErr) {
				return IVCurve{}, fmt.Errorf("cell string %d: %w", s.stringID, err)
			}
			return IVCurve{}, err
		}
		floats.Add(summed, curve.Voltage)
	}

	voltage := clampVoltages(summed, s.bypassVoltage)

	current := make([]float64, len(currentSeries))
	copy(current, currentSeries)
	power := make([]float64, len(currentSeries))
	for i := range power {
		power[i] = current[i] * voltage[i]
	}
	return IVCurve{Current: current, Power: power, Voltage: voltage}, nil
}
