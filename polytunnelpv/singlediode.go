package polytunnelpv

import (
	"fmt"
	"math"
)

const (
	// maxSolverIterations bounds the safeguarded Newton loop for one
	// current sample.
	maxSolverIterations = 100

	// maxBracketExpansions bounds the search for an upper bracket when a
	// sample sits beyond the open-circuit estimate.
	maxBracketExpansions = 200

	// solverCurrentTolerance is the relative residual at which a junction
	// voltage is accepted, in amps per amp of target current.
	solverCurrentTolerance = 1e-10

	// solverVoltageTolerance is the relative step size below which the
	// iteration is considered stationary, in volts per volt.
	solverVoltageTolerance = 1e-12
)

// SingleDiodeParameters collects the equivalent-circuit quantities of the
// Bishop formulation of the single-diode cell model, already adjusted to the
// operating temperature and irradiance. The breakdown terms describe
// avalanche conduction in reverse bias; a breakdown factor of zero disables
// them.
type SingleDiodeParameters struct {
	Photocurrent      float64 // A
	SaturationCurrent float64 // A
	SeriesResistance  float64 // ohm
	ShuntResistance   float64 // ohm
	ThermalVoltage    float64 // V, diode ideality times cells in series times kT/q
	BreakdownVoltage  float64 // V, <= 0
	BreakdownFactor   float64 // dimensionless, >= 0
	BreakdownExponent float64 // dimensionless
}

func (p SingleDiodeParameters) validate() error {
	switch {
	case p.Photocurrent < 0 || math.IsNaN(p.Photocurrent):
		return &ConfigurationError{Reason: fmt.Sprintf("photocurrent must be non-negative, got %g", p.Photocurrent)}
	case p.SaturationCurrent <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("saturation current must be positive, got %g", p.SaturationCurrent)}
	case p.SeriesResistance < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("series resistance must be non-negative, got %g", p.SeriesResistance)}
	case p.ShuntResistance <= 0 || math.IsInf(p.ShuntResistance, 1):
		return &ConfigurationError{Reason: fmt.Sprintf("shunt resistance must be positive and finite, got %g", p.ShuntResistance)}
	case p.ThermalVoltage <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("thermal voltage must be positive, got %g", p.ThermalVoltage)}
	case p.BreakdownVoltage > 0:
		return &ConfigurationError{Reason: fmt.Sprintf("breakdown voltage must not be positive, got %g", p.BreakdownVoltage)}
	case p.BreakdownFactor < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("breakdown factor must be non-negative, got %g", p.BreakdownFactor)}
	case p.BreakdownFactor > 0 && p.BreakdownVoltage >= 0:
		return &ConfigurationError{Reason: "a positive breakdown factor requires a negative breakdown voltage"}
	case p.BreakdownFactor > 0 && p.BreakdownExponent <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("breakdown exponent must be positive, got %g", p.BreakdownExponent)}
	}
	return nil
}

// current evaluates the cell current at a junction voltage vd. The terms are
// the photocurrent, the diode recombination current, the shunt leakage and
// the avalanche breakdown conduction, which diverges as vd approaches the
// breakdown voltage from above.
func (p SingleDiodeParameters) current(vd float64) float64 {
	i := p.Photocurrent -
		p.SaturationCurrent*math.Expm1(vd/p.ThermalVoltage) -
		vd/p.ShuntResistance
	if p.BreakdownFactor > 0 {
		i -= p.BreakdownFactor * (vd / p.ShuntResistance) *
			math.Pow(1-vd/p.BreakdownVoltage, -p.BreakdownExponent)
	}
	return i
}

// currentDerivative evaluates d(current)/d(vd). The characteristic is
// strictly decreasing, so the derivative is always negative on the domain.
func (p SingleDiodeParameters) currentDerivative(vd float64) float64 {
	d := -p.SaturationCurrent/p.ThermalVoltage*math.Exp(vd/p.ThermalVoltage) -
		1/p.ShuntResistance
	if p.BreakdownFactor > 0 {
		base := 1 - vd/p.BreakdownVoltage
		d -= p.BreakdownFactor / p.ShuntResistance * math.Pow(base, -p.BreakdownExponent)
		d -= p.BreakdownFactor * vd * p.BreakdownExponent /
			(p.ShuntResistance * p.BreakdownVoltage) * math.Pow(base, -p.BreakdownExponent-1)
	}
	return d
}

// terminalVoltage converts a junction voltage and cell current into the
// voltage at the cell terminals, across the series resistance.
func (p SingleDiodeParameters) terminalVoltage(vd, current float64) float64 {
	return vd - current*p.SeriesResistance
}

// openCircuitEstimate returns the junction voltage of the ideal diode at
// zero current, ignoring the shunt path. It seeds the upper bracket for the
// solve.
func (p SingleDiodeParameters) openCircuitEstimate() float64 {
	if p.Photocurrent <= 0 {
		return 0
	}
	return p.ThermalVoltage * math.Log1p(p.Photocurrent/p.SaturationCurrent)
}

// VoltageFromCurrent solves the single-diode characteristic for the terminal
// voltage at every entry of a current grid, preserving grid order in the
// returned slice. The characteristic is strictly decreasing in the junction
// voltage, so each sample has exactly one solution above the breakdown
// asymptote. A sample that cannot be solved within the iteration limit
// fails with a ModelConvergenceError identifying the sample; earlier samples
// are not returned with it.
func VoltageFromCurrent(p SingleDiodeParameters, currentGrid []float64) ([]float64, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	voltages := make([]float64, len(currentGrid))
	for idx, target := range currentGrid {
		vd, err := p.solveJunctionVoltage(target)
		if err != nil {
			return nil, &ModelConvergenceError{
				CellID:      -1,
				SampleIndex: idx,
				Current:     target,
				Reason:      err.Error(),
			}
		}
		voltages[idx] = p.terminalVoltage(vd, target)
	}
	return voltages, nil
}

// solveJunctionVoltage finds the junction voltage at which the cell carries
// the target current, by Newton iteration safeguarded with bisection against
// a maintained bracket.
func (p SingleDiodeParameters) solveJunctionVoltage(target float64) (float64, error) {
	lo, hi, err := p.bracketJunctionVoltage(target)
	if err != nil {
		return 0, err
	}

	vd := 0.5 * (lo + hi)
	for iter := 0; iter < maxSolverIterations; iter++ {
		f := p.current(vd) - target
		if math.Abs(f) <= solverCurrentTolerance*(1+math.Abs(target)) {
			return vd, nil
		}
		// The characteristic decreases with vd: a positive residual means
		// the root lies above vd.
		if f > 0 {
			lo = vd
		} else {
			hi = vd
		}

		next := vd - f/p.currentDerivative(vd)
		if math.IsNaN(next) || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		if math.Abs(next-vd) <= solverVoltageTolerance*(1+math.Abs(next)) {
			return next, nil
		}
		vd = next
	}
	return 0, fmt.Errorf("no convergence after %d iterations", maxSolverIterations)
}

// bracketJunctionVoltage returns junction voltages that straddle the target
// current. The lower edge sits just above the breakdown asymptote, where the
// avalanche term carries any current; without a breakdown term it is found
// by doubling downwards. The upper edge grows from the open-circuit estimate
// until the characteristic falls below the target.
func (p SingleDiodeParameters) bracketJunctionVoltage(target float64) (float64, float64, error) {
	var lo float64
	if p.BreakdownFactor > 0 {
		lo = p.BreakdownVoltage * (1 - 1e-12)
		if p.current(lo) < target {
			return 0, 0, fmt.Errorf("current %g A unreachable above breakdown voltage %g V", target, p.BreakdownVoltage)
		}
	} else {
		lo = -math.Max(1, p.ThermalVoltage)
		expansions := 0
		for p.current(lo) < target {
			lo *= 2
			expansions++
			if expansions > maxBracketExpansions {
				return 0, 0, fmt.Errorf("current %g A exceeds the characteristic's range", target)
			}
		}
	}

	hi := math.Max(p.openCircuitEstimate(), p.ThermalVoltage)
	step := math.Max(p.ThermalVoltage, 0.1)
	expansions := 0
	for p.current(hi) > target {
		hi += step
		step *= 2
		expansions++
		if expansions > maxBracketExpansions {
			return 0, 0, fmt.Errorf("no upper bracket below %g V", hi)
		}
	}
	return lo, hi, nil
}
