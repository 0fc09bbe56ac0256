// PolytunnelPV
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akamensky/argparse"
	"github.com/hhkbp2/go-logging"
	"github.com/polytunnelpv/polytunnelpv-go/polytunnelpv"
)

var logger = logging.GetLogger("polytunnelpv")

func fatal(err error) {
	logger.Errorf("%v", err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func writeOutput(path string, buf *bytes.Buffer) {
	if err := os.WriteFile(path, buf.Bytes(), os.ModePerm); err != nil {
		fatal(err)
	}
	logger.Infof("wrote %s", path)
}

func main() {
	parser := argparse.NewParser("PolytunnelPV", "Simulates curved photovoltaic modules mounted on polytunnels")

	scenarioName := parser.String("s", "scenario", &argparse.Options{
		Required: true,
		Help:     "Name of the scenario to run, as defined in scenarios.yaml"})

	inputDir := parser.String("", "input-data", &argparse.Options{
		Default: "input_data",
		Help:    "Directory holding the five YAML input files"})

	weatherDir := parser.String("", "weather-dir", &argparse.Options{
		Default: "weather_data",
		Help:    "Directory holding ninja_pv_<location>.csv weather files"})

	cacheDir := parser.String("", "cache-dir", &argparse.Options{
		Default: "auto_generated",
		Help:    "Directory for cached weather-with-solar files"})

	outputDir := parser.String("o", "output-dir", &argparse.Options{
		Default: "outputs",
		Help:    "Directory simulation results are written to"})

	regenerate := parser.Flag("r", "regenerate", &argparse.Options{
		Help: "Recompute the solar-position cache even if present"})

	workers := parser.Int("", "workers", &argparse.Options{
		Default: 0,
		Help:    "Worker goroutines for the simulation, 0 uses every CPU"})

	ivAt := parser.String("", "iv-at", &argparse.Options{
		Default: "",
		Help:    "Local timestamp (2006-01-02 15:04) to snapshot cell, string and module curves at"})

	plotDay := parser.String("", "plot-day", &argparse.Options{
		Default: "",
		Help:    "Local date (2006-01-02) to compute the maximum power point series for"})

	noPlots := parser.Flag("", "no-plots", &argparse.Options{
		Help: "Write CSV outputs only, skipping figure rendering"})

	logLevel := parser.Selector("", "log", []string{"DEBUG", "INFO", "WARN", "ERROR", "CRITICAL"}, &argparse.Options{
		Default: "INFO",
		Help:    "Log level"})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if *logLevel == "DEBUG" {
		logger.SetLevel(logging.LevelDebug)
	} else if *logLevel == "INFO" {
		logger.SetLevel(logging.LevelInfo)
	} else if *logLevel == "WARN" {
		logger.SetLevel(logging.LevelWarn)
	} else if *logLevel == "ERROR" {
		logger.SetLevel(logging.LevelError)
	} else if *logLevel == "CRITICAL" {
		logger.SetLevel(logging.LevelCritical)
	}

	data, err := polytunnelpv.LoadInputData(*inputDir)
	if err != nil {
		fatal(err)
	}
	scenario, ok := data.Scenarios[*scenarioName]
	if !ok {
		names := make([]string, 0, len(data.Scenarios))
		for name := range data.Scenarios {
			names = append(names, name)
		}
		fatal(fmt.Errorf("unknown scenario %q, defined scenarios: %v", *scenarioName, names))
	}

	tz, err := scenario.Location.TZ()
	if err != nil {
		fatal(err)
	}

	weather, err := polytunnelpv.LoadOrComputeWeather(
		*weatherDir,
		*cacheDir,
		scenario.Location.Name,
		scenario.Location.Latitude,
		scenario.Location.Longitude,
		tz,
		*regenerate)
	if err != nil {
		if found, derr := polytunnelpv.DiscoverWeatherFiles(*weatherDir); derr == nil {
			if _, ok := found[scenario.Location.Name]; !ok {
				locations := make([]string, 0, len(found))
				for name := range found {
					locations = append(locations, name)
				}
				err = fmt.Errorf("no weather download for location %q, found: %v", scenario.Location.Name, locations)
			}
		}
		fatal(err)
	}

	if err := os.MkdirAll(*outputDir, os.ModePerm); err != nil {
		fatal(err)
	}

	ctx := context.Background()

	// Cellwise irradiance over the whole weather series.
	frame, err := scenario.ComputeCellwiseIrradiance(ctx, weather, *workers)
	if err != nil {
		fatal(err)
	}
	buf := bytes.NewBuffer([]byte{})
	frame.ToCSV(buf)
	writeOutput(filepath.Join(*outputDir, fmt.Sprintf("%s_cellwise_irradiance.csv", scenario.Name)), buf)
	buf = bytes.NewBuffer([]byte{})
	polytunnelpv.CellSummariesToCSV(polytunnelpv.SummarizeCells(frame), buf)
	writeOutput(filepath.Join(*outputDir, fmt.Sprintf("%s_cellwise_summary.csv", scenario.Name)), buf)
	if !*noPlots {
		path := filepath.Join(*outputDir, fmt.Sprintf("%s_cellwise_irradiance.png", scenario.Name))
		if err := polytunnelpv.PlotIrradianceHeatmap(frame, path); err != nil {
			fatal(err)
		}
		logger.Infof("wrote %s", path)
	}

	// Electrical snapshot at one timestamp.
	if *ivAt != "" {
		at, err := time.ParseInLocation("2006-01-02 15:04", *ivAt, tz)
		if err != nil {
			fatal(fmt.Errorf("parsing --iv-at: %w", err))
		}
		index := weather.IndexAt(at)
		if index < 0 {
			fatal(fmt.Errorf("--iv-at %q is not a timestamp of the weather series for %s", *ivAt, scenario.Location.Name))
		}
		snapshot, err := scenario.IVSnapshotAt(weather, index, nil)
		if err != nil {
			fatal(err)
		}
		stamp := at.Format("2006-01-02_1504")
		buf := bytes.NewBuffer([]byte{})
		snapshot.ToCSV(buf)
		writeOutput(filepath.Join(*outputDir, fmt.Sprintf("%s_iv_%s.csv", scenario.Name, stamp)), buf)
		if !*noPlots {
			path := filepath.Join(*outputDir, fmt.Sprintf("%s_iv_%s.png", scenario.Name, stamp))
			if err := polytunnelpv.PlotIVSnapshot(snapshot, path); err != nil {
				fatal(err)
			}
			logger.Infof("wrote %s", path)

			path = filepath.Join(*outputDir, fmt.Sprintf("%s_pv_%s.png", scenario.Name, stamp))
			if err := polytunnelpv.PlotPowerVoltageSnapshot(snapshot, path); err != nil {
				fatal(err)
			}
			logger.Infof("wrote %s", path)
		}
	}

	// Maximum power point series over one day.
	if *plotDay != "" {
		dayStart, err := time.ParseInLocation("2006-01-02", *plotDay, tz)
		if err != nil {
			fatal(fmt.Errorf("parsing --plot-day: %w", err))
		}
		day := weather.ExtractPeriod(dayStart, dayStart.AddDate(0, 0, 1))
		if day.Len() == 0 {
			fatal(fmt.Errorf("--plot-day %q is outside the weather series for %s", *plotDay, scenario.Location.Name))
		}
		points, err := scenario.MaximumPowerSeries(ctx, day, *workers)
		if err != nil {
			fatal(err)
		}
		date := dayStart.Format("2006-01-02")
		buf := bytes.NewBuffer([]byte{})
		polytunnelpv.PowerSeriesToCSV(points, buf)
		writeOutput(filepath.Join(*outputDir, fmt.Sprintf("%s_mpp_%s.csv", scenario.Name, date)), buf)
		if !*noPlots {
			path := filepath.Join(*outputDir, fmt.Sprintf("%s_mpp_%s.png", scenario.Name, date))
			if err := polytunnelpv.PlotPowerSeries(scenario.Name, points, path); err != nil {
				fatal(err)
			}
			logger.Infof("wrote %s", path)

			dayFrame := frame.ExtractPeriod(dayStart, dayStart.AddDate(0, 0, 1))
			path = filepath.Join(*outputDir, fmt.Sprintf("%s_cellwise_irradiance_%s.png", scenario.Name, date))
			if err := polytunnelpv.PlotIrradianceHeatmap(dayFrame, path); err != nil {
				fatal(err)
			}
			logger.Infof("wrote %s", path)
		}
	}

	logger.Infof("scenario %s finished", scenario.Name)
}
