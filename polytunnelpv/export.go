package polytunnelpv

import (
	"bytes"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ToCSV writes the frame with one row per timestamp and one column per cell.
// Columns are headed by the cell display angle in degrees, negative on the
// eastern side of the tunnel crown.
func (c *CellwiseIrradiance) ToCSV(buf *bytes.Buffer) {
	buf.WriteString("local_time")
	for _, angle := range c.Angles {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(angle, 'f', 2, 64))
	}
	buf.WriteString("\n")

	writeFloat := func(v float64) {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for i, t := range c.Times {
		buf.WriteString(t.Format(weatherTimeLayout))
		for _, v := range c.Values[i] {
			writeFloat(v)
		}
		buf.WriteString("\n")
	}
}

// ToCSV writes the snapshot curves against their shared current grid: the
// terminal voltage of every cell and string, then the module voltage and
// power.
func (s *IVSnapshot) ToCSV(buf *bytes.Buffer) {
	buf.WriteString("current")
	for i := range s.CellCurves {
		buf.WriteString(",cell_")
		buf.WriteString(strconv.Itoa(i))
	}
	for i := range s.StringCurves {
		buf.WriteString(",string_")
		buf.WriteString(strconv.Itoa(i))
	}
	buf.WriteString(",module_voltage,module_power\n")

	writeFloat := func(v float64) {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for i, current := range s.ModuleCurve.Current {
		buf.WriteString(strconv.FormatFloat(current, 'f', -1, 64))
		for _, curve := range s.CellCurves {
			writeFloat(curve.Voltage[i])
		}
		for _, curve := range s.StringCurves {
			writeFloat(curve.Voltage[i])
		}
		writeFloat(s.ModuleCurve.Voltage[i])
		writeFloat(s.ModuleCurve.Power[i])
		buf.WriteString("\n")
	}
}

// CellSummary aggregates one cell's plane-of-array irradiance over a frame.
type CellSummary struct {
	Angle float64
	Mean  float64
	Peak  float64
}

// SummarizeCells reduces a frame to the mean and peak irradiance seen by
// each cell, in cell order. An empty frame yields nil.
func SummarizeCells(frame *CellwiseIrradiance) []CellSummary {
	if len(frame.Times) == 0 {
		return nil
	}
	summaries := make([]CellSummary, len(frame.Angles))
	column := make([]float64, len(frame.Times))
	for c := range frame.Angles {
		for r, row := range frame.Values {
			column[r] = row[c]
		}
		summaries[c] = CellSummary{
			Angle: frame.Angles[c],
			Mean:  stat.Mean(column, nil),
			Peak:  floats.Max(column),
		}
	}
	return summaries
}

// CellSummariesToCSV writes per-cell aggregates, one row per cell.
func CellSummariesToCSV(summaries []CellSummary, buf *bytes.Buffer) {
	buf.WriteString("angle,mean_irradiance,peak_irradiance\n")

	writeFloat := func(v float64) {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for _, s := range summaries {
		buf.WriteString(strconv.FormatFloat(s.Angle, 'f', 2, 64))
		writeFloat(s.Mean)
		writeFloat(s.Peak)
		buf.WriteString("\n")
	}
}

// PowerSeriesToCSV writes a maximum power point series, one row per
// timestamp that produced a solvable curve.
func PowerSeriesToCSV(points []PowerPoint, buf *bytes.Buffer) {
	buf.WriteString("local_time,power,current,voltage\n")

	writeFloat := func(v float64) {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for _, p := range points {
		buf.WriteString(p.Time.Format(weatherTimeLayout))
		writeFloat(p.Power)
		writeFloat(p.Current)
		writeFloat(p.Voltage)
		buf.WriteString("\n")
	}
}
