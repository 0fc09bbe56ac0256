package polytunnelpv

import "fmt"

// GeometryError reports curve or layout parameters that would produce a
// physically invalid surface orientation, such as a module whose cells wrap
// past vertical on a circular curve. It is raised while a curve or module is
// being constructed and is fatal to assembly.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error: %s", e.Reason)
}

// ConfigurationError reports an invalid cell count, diode coverage, missing
// parameter or malformed input-data entry detected at assembly or load time.
// A module that fails configuration is never handed to a simulation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ModelConvergenceError reports a single-diode solve that failed for one
// current sample. CellID names the cell (or the string's lowest cell id, when
// raised through a cell string) and SampleIndex the position in the current
// grid, so a caller can drop or investigate the sample without re-running the
// whole sweep. CellID is -1 when the solve was invoked outside any cell.
type ModelConvergenceError struct {
	CellID      int
	SampleIndex int
	Current     float64
	Reason      string
}

func (e *ModelConvergenceError) Error() string {
	if e.CellID < 0 {
		return fmt.Sprintf("single-diode solve did not converge at sample %d (current %.6g A): %s",
			e.SampleIndex, e.Current, e.Reason)
	}
	return fmt.Sprintf("single-diode solve did not converge for cell %d at sample %d (current %.6g A): %s",
		e.CellID, e.SampleIndex, e.Current, e.Reason)
}
