package polytunnelpv

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	logging "github.com/hhkbp2/go-logging"
)

var logger = logging.GetLogger("polytunnelpv")

// weatherFilePattern matches renewables.ninja exports and captures the
// location name they were downloaded for.
var weatherFilePattern = regexp.MustCompile(`^ninja_pv_(.+)\.csv$`)

const weatherTimeLayout = "2006-01-02 15:04"

// WeatherSeries is a columnar frame of hourly weather for one location,
// optionally enriched with solar position and derived irradiance components.
// All slices share one length and index; irradiances are W/m2, temperatures
// degrees Celsius, angles degrees.
type WeatherSeries struct {
	Location string

	Times             []time.Time
	DirectHorizontal  []float64
	DiffuseHorizontal []float64
	Temperature       []float64

	// Derived by EnrichSolar, empty until then.
	GlobalHorizontal []float64
	DirectNormal     []float64
	SolarZenith      []float64
	SolarAzimuth     []float64
}

func (w *WeatherSeries) Len() int { return len(w.Times) }

// Enriched reports whether the solar-derived columns have been filled in.
func (w *WeatherSeries) Enriched() bool { return len(w.SolarZenith) == w.Len() && w.Len() > 0 }

// DiscoverWeatherFiles maps location names to ninja weather files in a
// directory. Files that do not match the ninja naming scheme are skipped.
func DiscoverWeatherFiles(weatherDir string) (map[string]string, error) {
	entries, err := os.ReadDir(weatherDir)
	if err != nil {
		return nil, fmt.Errorf("reading weather directory: %w", err)
	}
	found := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := weatherFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		found[m[1]] = filepath.Join(weatherDir, entry.Name())
	}
	return found, nil
}

// LoadNinjaWeather reads a renewables.ninja CSV export. Lines starting with
// '#' carry download metadata and are skipped. The direct and diffuse columns
// hold horizontal irradiance components in kW/m2 and are normalized to W/m2
// here; negative irradiance readings clamp to zero. Timestamps are parsed in
// the supplied zone and must be strictly increasing.
func LoadNinjaWeather(path, location string, tz *time.Location) (*WeatherSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening weather file: %w", err)
	}
	defer f.Close()

	w, err := readNinjaCSV(f, location, tz)
	if err != nil {
		return nil, fmt.Errorf("weather file %s: %w", path, err)
	}
	logger.Infof("loaded %d weather rows for %s from %s", w.Len(), location, path)
	return w, nil
}

func readNinjaCSV(r io.Reader, location string, tz *time.Location) (*WeatherSeries, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("cannot read header: %v", err)}
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, required := range []string{"local_time", "irradiance_direct", "irradiance_diffuse", "temperature"} {
		if _, ok := columns[required]; !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("missing column %q", required)}
		}
	}

	w := &WeatherSeries{Location: location}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: %v", line, err)}
		}
		line++

		ts, err := time.ParseInLocation(weatherTimeLayout, record[columns["local_time"]], tz)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad local_time: %v", line, err)}
		}
		if n := len(w.Times); n > 0 && !ts.After(w.Times[n-1]) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: timestamps must be strictly increasing", line)}
		}
		direct, err := strconv.ParseFloat(record[columns["irradiance_direct"]], 64)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad irradiance_direct: %v", line, err)}
		}
		diffuse, err := strconv.ParseFloat(record[columns["irradiance_diffuse"]], 64)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad irradiance_diffuse: %v", line, err)}
		}
		temperature, err := strconv.ParseFloat(record[columns["temperature"]], 64)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad temperature: %v", line, err)}
		}

		// ninja irradiances arrive in kW/m2.
		direct *= 1000
		diffuse *= 1000
		if direct < 0 {
			direct = 0
		}
		if diffuse < 0 {
			diffuse = 0
		}

		w.Times = append(w.Times, ts)
		w.DirectHorizontal = append(w.DirectHorizontal, direct)
		w.DiffuseHorizontal = append(w.DiffuseHorizontal, diffuse)
		w.Temperature = append(w.Temperature, temperature)
	}
	if w.Len() == 0 {
		return nil, &ConfigurationError{Reason: "no weather rows"}
	}
	return w, nil
}

// EnrichSolar fills in the solar position and derived irradiance columns for
// a location: global horizontal as the sum of the horizontal components, the
// apparent solar zenith and azimuth at each timestamp, and the direct normal
// component recovered from global, diffuse and zenith.
func (w *WeatherSeries) EnrichSolar(latitude, longitude float64) {
	n := w.Len()
	w.GlobalHorizontal = make([]float64, n)
	w.DirectNormal = make([]float64, n)
	w.SolarZenith = make([]float64, n)
	w.SolarAzimuth = make([]float64, n)
	for i := 0; i < n; i++ {
		ghi := w.DirectHorizontal[i] + w.DiffuseHorizontal[i]
		pos := SolarPositionAt(w.Times[i], latitude, longitude)
		w.GlobalHorizontal[i] = ghi
		w.SolarZenith[i] = pos.ApparentZenith
		w.SolarAzimuth[i] = pos.Azimuth
		w.DirectNormal[i] = DirectNormalFromGlobalAndDiffuse(ghi, w.DiffuseHorizontal[i], pos.ApparentZenith)
	}
	logger.Infof("computed solar position for %d timestamps at %s", n, w.Location)
}

// ExtractPeriod returns the rows with start <= time < end, sharing no memory
// with the receiver. The receiver must be enriched.
func (w *WeatherSeries) ExtractPeriod(start, end time.Time) *WeatherSeries {
	lo := sort.Search(w.Len(), func(i int) bool { return !w.Times[i].Before(start) })
	hi := sort.Search(w.Len(), func(i int) bool { return !w.Times[i].Before(end) })

	out := &WeatherSeries{Location: w.Location}
	out.Times = append(out.Times, w.Times[lo:hi]...)
	out.DirectHorizontal = append(out.DirectHorizontal, w.DirectHorizontal[lo:hi]...)
	out.DiffuseHorizontal = append(out.DiffuseHorizontal, w.DiffuseHorizontal[lo:hi]...)
	out.Temperature = append(out.Temperature, w.Temperature[lo:hi]...)
	if w.Enriched() {
		out.GlobalHorizontal = append(out.GlobalHorizontal, w.GlobalHorizontal[lo:hi]...)
		out.DirectNormal = append(out.DirectNormal, w.DirectNormal[lo:hi]...)
		out.SolarZenith = append(out.SolarZenith, w.SolarZenith[lo:hi]...)
		out.SolarAzimuth = append(out.SolarAzimuth, w.SolarAzimuth[lo:hi]...)
	}
	return out
}

// IndexAt returns the row index holding exactly the given timestamp, or -1.
func (w *WeatherSeries) IndexAt(t time.Time) int {
	i := sort.Search(w.Len(), func(i int) bool { return !w.Times[i].Before(t) })
	if i < w.Len() && w.Times[i].Equal(t) {
		return i
	}
	return -1
}

// ToCSV writes the series, with its solar columns, in the cache layout.
func (w *WeatherSeries) ToCSV(buf *bytes.Buffer) {
	buf.WriteString("local_time")
	buf.WriteString(",irradiance_direct")
	buf.WriteString(",irradiance_diffuse")
	buf.WriteString(",temperature")
	buf.WriteString(",irradiance_global_horizontal")
	buf.WriteString(",irradiance_direct_normal")
	buf.WriteString(",apparent_zenith")
	buf.WriteString(",azimuth")
	buf.WriteString("\n")

	writeFloat := func(v float64) {
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	for i := 0; i < w.Len(); i++ {
		buf.WriteString(w.Times[i].Format(weatherTimeLayout))
		writeFloat(w.DirectHorizontal[i])
		writeFloat(w.DiffuseHorizontal[i])
		writeFloat(w.Temperature[i])
		writeFloat(w.GlobalHorizontal[i])
		writeFloat(w.DirectNormal[i])
		writeFloat(w.SolarZenith[i])
		writeFloat(w.SolarAzimuth[i])
		buf.WriteString("\n")
	}
}

// solarCachePath names the merged weather-and-solar cache for a location.
func solarCachePath(cacheDir, location string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("w_with_s_%s.csv.gz", location))
}

// SaveSolarCache writes the enriched series as a gzipped CSV under cacheDir,
// creating the directory if needed.
func SaveSolarCache(cacheDir string, w *WeatherSeries) error {
	if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	path := solarCachePath(cacheDir, w.Location)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w.ToCSV(&buf)
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing cache file %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("writing cache file %s: %w", path, err)
	}
	logger.Infof("cached weather with solar for %s: %s", w.Location, path)
	return nil
}

// LoadSolarCache reads a series previously written by SaveSolarCache.
func LoadSolarCache(cacheDir, location string, tz *time.Location) (*WeatherSeries, error) {
	path := solarCachePath(cacheDir, location)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("cache file %s: %w", path, err)
	}
	defer gz.Close()

	w, err := readCacheCSV(gz, location, tz)
	if err != nil {
		return nil, fmt.Errorf("cache file %s: %w", path, err)
	}
	logger.Infof("loaded cached weather with solar for %s: %s", location, path)
	return w, nil
}

func readCacheCSV(r io.Reader, location string, tz *time.Location) (*WeatherSeries, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("cannot read header: %v", err)}
	}

	w := &WeatherSeries{Location: location}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: %v", line, err)}
		}
		line++
		if len(record) != 8 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: expected 8 columns, got %d", line, len(record))}
		}

		ts, err := time.ParseInLocation(weatherTimeLayout, record[0], tz)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad local_time: %v", line, err)}
		}
		values := make([]float64, 7)
		for i := range values {
			values[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("row %d: bad value in column %d: %v", line, i+1, err)}
			}
		}

		w.Times = append(w.Times, ts)
		w.DirectHorizontal = append(w.DirectHorizontal, values[0])
		w.DiffuseHorizontal = append(w.DiffuseHorizontal, values[1])
		w.Temperature = append(w.Temperature, values[2])
		w.GlobalHorizontal = append(w.GlobalHorizontal, values[3])
		w.DirectNormal = append(w.DirectNormal, values[4])
		w.SolarZenith = append(w.SolarZenith, values[5])
		w.SolarAzimuth = append(w.SolarAzimuth, values[6])
	}
	if w.Len() == 0 {
		return nil, &ConfigurationError{Reason: "no weather rows"}
	}
	return w, nil
}

// LoadOrComputeWeather returns the enriched weather series for a location,
// reading the gzipped cache when present and recomputing it from the raw
// ninja export otherwise or when regenerate is set.
func LoadOrComputeWeather(weatherDir, cacheDir, location string, latitude, longitude float64, tz *time.Location, regenerate bool) (*WeatherSeries, error) {
	if !regenerate && fileExists(solarCachePath(cacheDir, location)) {
		return LoadSolarCache(cacheDir, location, tz)
	}

	path := filepath.Join(weatherDir, fmt.Sprintf("ninja_pv_%s.csv", location))
	w, err := LoadNinjaWeather(path, location, tz)
	if err != nil {
		return nil, err
	}
	w.EnrichSolar(latitude, longitude)
	if err := SaveSolarCache(cacheDir, w); err != nil {
		return nil, err
	}
	return w, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
