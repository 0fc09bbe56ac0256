package polytunnelpv

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ModuleType identifies the construction archetype of a module.
type ModuleType string

const (
	ModuleTypeThinFilm    ModuleType = "thin_film"
	ModuleTypeCrystalline ModuleType = "crystalline"
)

// DefaultBypassDiodeVoltage is the conduction threshold assumed for a bypass
// diode when a configuration does not name one, in volts.
const DefaultBypassDiodeVoltage = -0.5

// BypassDiode places one diode across an inclusive, contiguous range of cell
// ids. The diode conducts once the protected run's summed voltage falls to
// BypassVoltage.
type BypassDiode struct {
	BypassVoltage float64
	StartIndex    int
	EndIndex      int
}

// CurvedPVModule is an ordered run of cells laid over a shared curve,
// partitioned into bypass-protected strings. Both views, the flat cell
// sequence and the string partition, describe the same cells and stay
// consistent for the module's lifetime.
type CurvedPVModule struct {
	name         string
	moduleType   ModuleType
	curve        Curve
	cells        []*PVCell
	cellStrings  []*BypassedCellString
	offsets      []float64
	centreOffset float64
}

// ThinFilmModuleParams describes a thin-film module as a uniform grid of N
// cells over a curve, with one bypass diode per CellsPerDiode cells. The last
// diode covers a shorter run when the counts do not divide evenly.
type ThinFilmModuleParams struct {
	Name           string
	Curve          Curve
	CellCount      int
	CellWidth      float64 // m, along the curved axis
	CellLength     float64 // m, along the curvature axis
	CellSpacing    float64 // m, gap between adjacent cells
	CellsPerDiode  int
	BypassVoltage  float64 // V, < 0
	OffsetAngle    float64 // deg, shifts the whole module around a circular curve
	CentreOffset   float64 // m, arc offset of the module centre
	CellParameters CellElectricalParameters
}

// CrystallineModuleParams describes a crystalline module whose bypass-diode
// placement is listed explicitly. The diode ranges must tile the cell ids
// exactly once.
type CrystallineModuleParams struct {
	Name           string
	Curve          Curve
	CellCount      int
	CellWidth      float64
	CellLength     float64
	CellSpacing    float64
	BypassDiodes   []BypassDiode
	OffsetAngle    float64
	CentreOffset   float64
	CellParameters CellElectricalParameters
}

// NewThinFilmModule assembles a thin-film module from a uniform cell grid.
func NewThinFilmModule(p ThinFilmModuleParams) (*CurvedPVModule, error) {
	if p.CellsPerDiode <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: cells per diode must be positive, got %d", p.Name, p.CellsPerDiode)}
	}
	if p.BypassVoltage >= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: bypass diode voltage must be negative, got %g", p.Name, p.BypassVoltage)}
	}
	diodes := uniformBypassDiodes(p.CellCount, p.CellsPerDiode, p.BypassVoltage)
	return assembleModule(p.Name, ModuleTypeThinFilm, p.Curve, p.CellCount,
		p.CellWidth, p.CellLength, p.CellSpacing, diodes,
		p.OffsetAngle, p.CentreOffset, p.CellParameters)
}

// NewCrystallineModule assembles a crystalline module with explicit
// bypass-diode placement.
func NewCrystallineModule(p CrystallineModuleParams) (*CurvedPVModule, error) {
	return assembleModule(p.Name, ModuleTypeCrystalline, p.Curve, p.CellCount,
		p.CellWidth, p.CellLength, p.CellSpacing, p.BypassDiodes,
		p.OffsetAngle, p.CentreOffset, p.CellParameters)
}

// uniformBypassDiodes tiles n cells with one diode per k cells. The final
// diode covers the remainder.
func uniformBypassDiodes(n, k int, bypassVoltage float64) []BypassDiode {
	var diodes []BypassDiode
	for start := 0; start < n; start += k {
		end := start + k - 1
		if end >= n {
			end = n - 1
		}
		diodes = append(diodes, BypassDiode{
			BypassVoltage: bypassVoltage,
			StartIndex:    start,
			EndIndex:      end,
		})
	}
	return diodes
}

// validateDiodePartition checks that the diode ranges tile the cell ids
// 0..cellCount-1 exactly once, and returns them ordered by start index.
func validateDiodePartition(name string, diodes []BypassDiode, cellCount int) ([]BypassDiode, error) {
	if len(diodes) == 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: at least one bypass diode is required", name)}
	}
	ordered := make([]BypassDiode, len(diodes))
	copy(ordered, diodes)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartIndex < ordered[j].StartIndex })

	next := 0
	for _, d := range ordered {
		if d.BypassVoltage >= 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"module %q: bypass diode over cells %d-%d has non-negative voltage %g",
				name, d.StartIndex, d.EndIndex, d.BypassVoltage)}
		}
		if d.StartIndex > d.EndIndex {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"module %q: bypass diode range %d-%d is inverted", name, d.StartIndex, d.EndIndex)}
		}
		if d.StartIndex < next {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"module %q: cell %d is covered by more than one bypass diode", name, d.StartIndex)}
		}
		if d.StartIndex > next {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"module %q: cell %d is not covered by any bypass diode", name, next)}
		}
		next = d.EndIndex + 1
	}
	if next < cellCount {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: cell %d is not covered by any bypass diode", name, next)}
	}
	if next > cellCount {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: bypass diode range ends at cell %d but the module has %d cells",
			name, next-1, cellCount)}
	}
	return ordered, nil
}

// assembleModule lays cells along the curve and groups them into bypass
// strings. The position offset of cell i is
// (i - centreCell)*(width + spacing) + centreOffset, with centreCell the
// midpoint of the id range, so the module is centred on its centre offset.
// All validation happens here, before the module is ever used.
func assembleModule(
	name string,
	moduleType ModuleType,
	curve Curve,
	cellCount int,
	cellWidth, cellLength, cellSpacing float64,
	diodes []BypassDiode,
	offsetAngle, centreOffset float64,
	params CellElectricalParameters,
) (*CurvedPVModule, error) {
	if curve == nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("module %q: a curve is required", name)}
	}
	if cellCount <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: cell count must be positive, got %d", name, cellCount)}
	}
	if cellWidth <= 0 || cellLength <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: cell dimensions must be positive, got %g x %g", name, cellWidth, cellLength)}
	}
	if cellSpacing < 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: cell spacing must be non-negative, got %g", name, cellSpacing)}
	}

	// An offset angle shifts the whole module around the arc; it has no
	// meaning on a flat surface.
	var arcShift float64
	if offsetAngle != 0 {
		circular, ok := curve.(*CircularCurve)
		if !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"module %q: an offset angle requires a circular curve", name)}
		}
		arcShift = degToRad(offsetAngle) * circular.RadiusOfCurvature()
	}

	ordered, err := validateDiodePartition(name, diodes, cellCount)
	if err != nil {
		return nil, err
	}

	centreCell := float64(cellCount-1) / 2
	pitch := cellWidth + cellSpacing
	cells := make([]*PVCell, cellCount)
	offsets := make([]float64, cellCount)
	for i := 0; i < cellCount; i++ {
		offset := (float64(i)-centreCell)*pitch + centreOffset + arcShift
		tilt, azimuth, err := curve.OrientationAt(offset)
		if err != nil {
			return nil, fmt.Errorf("module %q: cell %d at offset %.4f m: %w", name, i, offset, err)
		}
		cell, err := NewPVCell(i, tilt, azimuth, cellWidth, cellLength, params)
		if err != nil {
			return nil, fmt.Errorf("module %q: cell %d: %w", name, i, err)
		}
		cells[i] = cell
		offsets[i] = offset
	}

	cellStrings := make([]*BypassedCellString, len(ordered))
	for si, d := range ordered {
		s, err := NewBypassedCellString(si, d.BypassVoltage, cells[d.StartIndex:d.EndIndex+1])
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		cellStrings[si] = s
	}

	return &CurvedPVModule{
		name:         name,
		moduleType:   moduleType,
		curve:        curve,
		cells:        cells,
		cellStrings:  cellStrings,
		offsets:      offsets,
		centreOffset: centreOffset,
	}, nil
}

func (m *CurvedPVModule) Name() string { return m.name }

func (m *CurvedPVModule) Type() ModuleType { return m.moduleType }

func (m *CurvedPVModule) Curve() Curve { return m.curve }

func (m *CurvedPVModule) Cells() []*PVCell { return m.cells }

func (m *CurvedPVModule) CellStrings() []*BypassedCellString { return m.cellStrings }

func (m *CurvedPVModule) CellCount() int { return len(m.cells) }

func (m *CurvedPVModule) CentreOffset() float64 { return m.centreOffset }

// CellUnits returns the bypass strings as protected units, for callers that
// size voltage sweeps from breakdown voltages without caring whether a unit
// is one cell or a protected run.
func (m *CurvedPVModule) CellUnits() []CellUnit {
	units := make([]CellUnit, len(m.cellStrings))
	for i, s := range m.cellStrings {
		units[i] = s
	}
	return units
}

// BreakdownVoltage reports the most negative voltage any protected unit in
// the module can be driven to.
func (m *CurvedPVModule) BreakdownVoltage() float64 {
	return MinimumBreakdownVoltage(m.CellUnits())
}

// ShortCircuitCurrent reports the largest cell short-circuit current in the
// module.
func (m *CurvedPVModule) ShortCircuitCurrent() float64 {
	isc := m.cells[0].ShortCircuitCurrent()
	for _, cell := range m.cells[1:] {
		if cell.ShortCircuitCurrent() > isc {
			isc = cell.ShortCircuitCurrent()
		}
	}
	return isc
}

// DefaultCurrentSeries sweeps from zero to twice the module short-circuit
// current.
func (m *CurvedPVModule) DefaultCurrentSeries() []float64 {
	return floats.Span(make([]float64, DefaultCurrentSamples), 0, 2*m.ShortCircuitCurrent())
}

// DisplayAngles returns the signed tilt of each cell relative to horizontal,
// negative on the far side of the curvature axis. Reports and plot labels use
// these rather than the folded tilt/azimuth pairs.
func (m *CurvedPVModule) DisplayAngles() []float64 {
	angles := make([]float64, len(m.cells))
	for i, offset := range m.offsets {
		switch c := m.curve.(type) {
		case *CircularCurve:
			angles[i] = signedDegrees(c.CurvatureAxisTilt()) + c.SubtendedAngle(offset)
		default:
			angles[i] = signedDegrees(m.curve.CurvatureAxisTilt())
		}
	}
	return angles
}

// EffectiveIrradiance computes the plane-of-array irradiance seen by every
// cell for one set of sky conditions, in cell-id order.
func (m *CurvedPVModule) EffectiveIrradiance(diffuse, globalHorizontal, solarAzimuth, solarZenith float64) []float64 {
	poa := make([]float64, len(m.cells))
	for i, cell := range m.cells {
		poa[i] = cell.EffectiveIrradiance(diffuse, globalHorizontal, solarAzimuth, solarZenith)
	}
	return poa
}

// CalculateIVCurve computes the module IV curve as the series combination of
// its bypass strings: string curves share one current grid, string voltages
// sum elementwise, and power is recomputed from the summed voltage. The
// irradiance series carries one plane-of-array value per cell in id order.
func (m *CurvedPVModule) CalculateIVCurve(ambientCelsius float64, irradiance []float64, currentSeries []float64) (IVCurve, error) {
	if len(irradiance) != len(m.cells) {
		return IVCurve{}, &ConfigurationError{Reason: fmt.Sprintf(
			"module %q: irradiance series has %d entries for %d cells",
			m.name, len(irradiance), len(m.cells))}
	}
	if currentSeries == nil {
		currentSeries = m.DefaultCurrentSeries()
	}

	voltage := make([]float64, len(currentSeries))
	cursor := 0
	for _, s := range m.cellStrings {
		memberCount := len(s.Cells())
		curve, err := s.CalculateIVCurve(ambientCelsius, irradiance[cursor:cursor+memberCount], currentSeries)
		if err != nil {
			var convErr *ModelConvergenceError
			if errors.As(err, &convErr) {
				return IVCurve{}, fmt.Errorf("module %q: %w", m.name, err)
			}
			return IVCurve{}, err
		}
		floats.Add(voltage, curve.Voltage)
		cursor += memberCount
	}

	current := make([]float64, len(currentSeries))
	copy(current, currentSeries)
	power := make([]float64, len(currentSeries))
	for i := range power {
		power[i] = current[i] * voltage[i]
	}
	return IVCurve{Current: current, Power: power, Voltage: voltage}, nil
}
