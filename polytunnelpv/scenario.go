package polytunnelpv

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scenario binds a module to the location it is simulated at. The weather
// series for the location is supplied separately, so one scenario can be run
// against different periods.
type Scenario struct {
	Name     string
	Location Location
	Module   *CurvedPVModule
}

// CellwiseIrradiance is a time-by-cell frame of plane-of-array irradiance
// for one scenario, in W/m2. Angles carries the signed display angle of each
// cell and labels the columns in exports and plots.
type CellwiseIrradiance struct {
	Scenario string
	Times    []time.Time
	Angles   []float64
	Values   [][]float64
}

// ExtractPeriod returns the frame rows with start <= time < end.
func (c *CellwiseIrradiance) ExtractPeriod(start, end time.Time) *CellwiseIrradiance {
	lo := sort.Search(len(c.Times), func(i int) bool { return !c.Times[i].Before(start) })
	hi := sort.Search(len(c.Times), func(i int) bool { return !c.Times[i].Before(end) })
	out := &CellwiseIrradiance{Scenario: c.Scenario, Angles: c.Angles}
	out.Times = append(out.Times, c.Times[lo:hi]...)
	out.Values = append(out.Values, c.Values[lo:hi]...)
	return out
}

// PowerPoint is the maximum power point of a module curve at one timestamp.
type PowerPoint struct {
	Time    time.Time
	Power   float64 // W
	Current float64 // A
	Voltage float64 // V
}

// IVSnapshot holds the full electrical state of a scenario at one timestamp:
// per-cell, per-string and module curves on a shared current grid.
type IVSnapshot struct {
	Scenario     string
	Time         time.Time
	Ambient      float64 // deg C
	Irradiance   []float64
	CellCurves   []IVCurve
	StringCurves []IVCurve
	ModuleCurve  IVCurve
}

func workerCount(workers int) int {
	if workers <= 0 {
		return runtime.NumCPU()
	}
	return workers
}

// ComputeCellwiseIrradiance evaluates the plane-of-array irradiance of every
// cell at every timestamp of an enriched weather series. Timestamps are
// distributed over a bounded worker pool; the result is indexed by timestamp
// then cell id, identical for any worker count.
func (s *Scenario) ComputeCellwiseIrradiance(ctx context.Context, weather *WeatherSeries, workers int) (*CellwiseIrradiance, error) {
	if !weather.Enriched() {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"scenario %q: weather series for %s lacks solar position data", s.Name, weather.Location)}
	}

	rows := make([][]float64, weather.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for i := 0; i < weather.Len(); i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows[i] = s.Module.EffectiveIrradiance(
				weather.DiffuseHorizontal[i],
				weather.GlobalHorizontal[i],
				weather.SolarAzimuth[i],
				weather.SolarZenith[i],
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Infof("scenario %s: cellwise irradiance computed for %d timestamps x %d cells",
		s.Name, weather.Len(), s.Module.CellCount())
	return &CellwiseIrradiance{
		Scenario: s.Name,
		Times:    append([]time.Time(nil), weather.Times...),
		Angles:   s.Module.DisplayAngles(),
		Values:   rows,
	}, nil
}

// MaximumPowerSeries computes the module maximum power point at every
// timestamp of an enriched weather series, usually a single extracted day.
// A timestamp whose solve does not converge is logged and dropped from the
// series; any other failure aborts the run. The returned points are in time
// order for any worker count.
func (s *Scenario) MaximumPowerSeries(ctx context.Context, weather *WeatherSeries, workers int) ([]PowerPoint, error) {
	if !weather.Enriched() {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"scenario %q: weather series for %s lacks solar position data", s.Name, weather.Location)}
	}

	points := make([]PowerPoint, weather.Len())
	valid := make([]bool, weather.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for i := 0; i < weather.Len(); i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			poa := s.Module.EffectiveIrradiance(
				weather.DiffuseHorizontal[i],
				weather.GlobalHorizontal[i],
				weather.SolarAzimuth[i],
				weather.SolarZenith[i],
			)
			curve, err := s.Module.CalculateIVCurve(weather.Temperature[i], poa, nil)
			if err != nil {
				var convErr *ModelConvergenceError
				if errors.As(err, &convErr) {
					logger.Warnf("scenario %s: %s: %v, dropping timestamp",
						s.Name, weather.Times[i].Format(weatherTimeLayout), err)
					return nil
				}
				return fmt.Errorf("scenario %q: %s: %w", s.Name, weather.Times[i].Format(weatherTimeLayout), err)
			}
			best := 0
			for j := 1; j < len(curve.Power); j++ {
				if curve.Power[j] > curve.Power[best] {
					best = j
				}
			}
			points[i] = PowerPoint{
				Time:    weather.Times[i],
				Power:   curve.Power[best],
				Current: curve.Current[best],
				Voltage: curve.Voltage[best],
			}
			valid[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make([]PowerPoint, 0, weather.Len())
	for i, ok := range valid {
		if ok {
			series = append(series, points[i])
		}
	}
	return series, nil
}

// IVSnapshotAt computes the cell, string and module curves at one row of an
// enriched weather series, all on the same current grid. A nil current
// series uses the module default sweep.
func (s *Scenario) IVSnapshotAt(weather *WeatherSeries, index int, currentSeries []float64) (*IVSnapshot, error) {
	if !weather.Enriched() {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"scenario %q: weather series for %s lacks solar position data", s.Name, weather.Location)}
	}
	if index < 0 || index >= weather.Len() {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"scenario %q: snapshot index %d outside weather series of %d rows", s.Name, index, weather.Len())}
	}
	if currentSeries == nil {
		currentSeries = s.Module.DefaultCurrentSeries()
	}

	ambient := weather.Temperature[index]
	poa := s.Module.EffectiveIrradiance(
		weather.DiffuseHorizontal[index],
		weather.GlobalHorizontal[index],
		weather.SolarAzimuth[index],
		weather.SolarZenith[index],
	)

	snapshot := &IVSnapshot{
		Scenario:   s.Name,
		Time:       weather.Times[index],
		Ambient:    ambient,
		Irradiance: poa,
		CellCurves: make([]IVCurve, len(s.Module.Cells())),
	}
	for i, cell := range s.Module.Cells() {
		curve, err := cell.CalculateIVCurve(ambient, poa[i], currentSeries)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		snapshot.CellCurves[i] = curve
	}

	snapshot.StringCurves = make([]IVCurve, len(s.Module.CellStrings()))
	cursor := 0
	for i, cellString := range s.Module.CellStrings() {
		memberCount := len(cellString.Cells())
		curve, err := cellString.CalculateIVCurve(ambient, poa[cursor:cursor+memberCount], currentSeries)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		snapshot.StringCurves[i] = curve
		cursor += memberCount
	}

	moduleCurve, err := s.Module.CalculateIVCurve(ambient, poa, currentSeries)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	snapshot.ModuleCurve = moduleCurve
	return snapshot, nil
}
