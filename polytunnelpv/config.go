package polytunnelpv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Input-data file names, resolved inside the input directory.
const (
	LocationsFilename   = "locations.yaml"
	PolytunnelsFilename = "polytunnels.yaml"
	PVCellsFilename     = "pv_cells.yaml"
	PVModulesFilename   = "pv_modules.yaml"
	ScenariosFilename   = "scenarios.yaml"
)

// Location is a site a scenario can be simulated at. The timezone is the
// IANA name the weather file's local_time column is expressed in.
type Location struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"tz"`
	Altitude  float64 `yaml:"altitude"`
}

// TZ resolves the location's timezone.
func (l Location) TZ() (*time.Location, error) {
	tz, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"location %q: unknown timezone %q", l.Name, l.Timezone)}
	}
	return tz, nil
}

// PolytunnelConfig describes one mounting curve.
type PolytunnelConfig struct {
	Name                 string  `yaml:"name"`
	Type                 string  `yaml:"type"`
	RadiusOfCurvature    float64 `yaml:"radius_of_curvature"`
	CurvatureAxisAzimuth float64 `yaml:"curvature_axis_azimuth"`
	CurvatureAxisTilt    float64 `yaml:"curvature_axis_tilt"`
}

// PVCellConfig carries user-defined cell electrical parameters under their
// CEC database names. Breakdown fields are optional and fall back to the
// usual avalanche defaults.
type PVCellConfig struct {
	Name              string   `yaml:"name"`
	IScRef            float64  `yaml:"i_sc_ref"`
	ILRef             float64  `yaml:"i_l_ref"`
	IORef             float64  `yaml:"i_o_ref"`
	RS                float64  `yaml:"r_s"`
	RShRef            float64  `yaml:"r_sh_ref"`
	ARef              float64  `yaml:"a_ref"`
	AlphaSC           float64  `yaml:"alpha_sc"`
	BreakdownVoltage  *float64 `yaml:"breakdown_voltage"`
	BreakdownFactor   *float64 `yaml:"breakdown_factor"`
	BreakdownExponent *float64 `yaml:"breakdown_exponent"`
}

func (c PVCellConfig) electricalParameters() CellElectricalParameters {
	params := CellElectricalParameters{
		ShortCircuitCurrent:   c.IScRef,
		PhotocurrentRef:       c.ILRef,
		SaturationCurrent:     c.IORef,
		SeriesResistance:      c.RS,
		ShuntResistance:       c.RShRef,
		ThermalVoltage:        c.ARef,
		ShortCircuitTempCoeff: c.AlphaSC,
		BreakdownVoltage:      DefaultBreakdownVoltage,
		BreakdownFactor:       DefaultBreakdownFactor,
		BreakdownExponent:     DefaultBreakdownExponent,
	}
	if c.BreakdownVoltage != nil {
		params.BreakdownVoltage = *c.BreakdownVoltage
	}
	if c.BreakdownFactor != nil {
		params.BreakdownFactor = *c.BreakdownFactor
	}
	if c.BreakdownExponent != nil {
		params.BreakdownExponent = *c.BreakdownExponent
	}
	return params
}

// BypassDiodeConfig is one explicit diode placement in a module definition.
type BypassDiodeConfig struct {
	BypassVoltage float64 `yaml:"bypass_voltage"`
	StartIndex    int     `yaml:"start_index"`
	EndIndex      int     `yaml:"end_index"`
}

// PVModuleConfig describes one module to assemble. Thin-film modules place
// diodes uniformly via cells_per_diode; crystalline modules list them under
// bypass_diodes.
type PVModuleConfig struct {
	Name               string              `yaml:"name"`
	Type               string              `yaml:"type"`
	PolytunnelCurve    string              `yaml:"polytunnel_curve"`
	CellType           string              `yaml:"cell_type"`
	NCells             int                 `yaml:"n_cells"`
	CellWidth          float64             `yaml:"cell_width"`
	CellLength         float64             `yaml:"cell_length"`
	CellSpacing        float64             `yaml:"cell_spacing"`
	CellsPerDiode      int                 `yaml:"cells_per_diode"`
	BypassDiodeVoltage *float64            `yaml:"bypass_diode_voltage"`
	BypassDiodes       []BypassDiodeConfig `yaml:"bypass_diodes"`
	OffsetAngle        float64             `yaml:"offset_angle"`
	ModuleCentreOffset float64             `yaml:"module_centre_offset"`
}

// ScenarioConfig names a simulation to run.
type ScenarioConfig struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	PVModule string `yaml:"pv_module"`
}

// InputData is the fully constructed configuration: every curve, cell
// parameter set, module and scenario built and validated.
type InputData struct {
	Locations map[string]Location
	Curves    map[string]Curve
	Cells     map[string]CellElectricalParameters
	Modules   map[string]*CurvedPVModule
	Scenarios map[string]*Scenario
}

// BuiltinCellCatalog returns the reference cell parameter sets shipped with
// the model. User definitions with the same name shadow these.
func BuiltinCellCatalog() map[string]CellElectricalParameters {
	return map[string]CellElectricalParameters{
		"generic_mono_si_cell": {
			ShortCircuitCurrent:   9.43,
			PhotocurrentRef:       9.45,
			SaturationCurrent:     1.2e-9,
			SeriesResistance:      0.004,
			ShuntResistance:       12.0,
			ThermalVoltage:        0.0277,
			ShortCircuitTempCoeff: 0.0045,
			BreakdownVoltage:      DefaultBreakdownVoltage,
			BreakdownFactor:       DefaultBreakdownFactor,
			BreakdownExponent:     DefaultBreakdownExponent,
		},
		"generic_thin_film_cell": {
			ShortCircuitCurrent:   1.70,
			PhotocurrentRef:       1.72,
			SaturationCurrent:     3.0e-9,
			SeriesResistance:      0.06,
			ShuntResistance:       150.0,
			ThermalVoltage:        0.042,
			ShortCircuitTempCoeff: 0.0006,
			BreakdownVoltage:      DefaultBreakdownVoltage,
			BreakdownFactor:       DefaultBreakdownFactor,
			BreakdownExponent:     DefaultBreakdownExponent,
		},
	}
}

func loadYAML(inputDir, filename string, out interface{}) error {
	path := filepath.Join(inputDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("%s: %v", filename, err)}
	}
	return nil
}

// LoadInputData reads the five input files from a directory and constructs
// every curve, module and scenario they describe. All validation is eager: a
// malformed definition fails here, before any simulation starts.
func LoadInputData(inputDir string) (*InputData, error) {
	var locationConfigs []Location
	if err := loadYAML(inputDir, LocationsFilename, &locationConfigs); err != nil {
		return nil, err
	}
	var polytunnelConfigs []PolytunnelConfig
	if err := loadYAML(inputDir, PolytunnelsFilename, &polytunnelConfigs); err != nil {
		return nil, err
	}
	var cellConfigs []PVCellConfig
	if err := loadYAML(inputDir, PVCellsFilename, &cellConfigs); err != nil {
		return nil, err
	}
	var moduleConfigs []PVModuleConfig
	if err := loadYAML(inputDir, PVModulesFilename, &moduleConfigs); err != nil {
		return nil, err
	}
	var scenarioConfigs []ScenarioConfig
	if err := loadYAML(inputDir, ScenariosFilename, &scenarioConfigs); err != nil {
		return nil, err
	}

	data := &InputData{
		Locations: make(map[string]Location, len(locationConfigs)),
		Curves:    make(map[string]Curve, len(polytunnelConfigs)),
		Cells:     BuiltinCellCatalog(),
		Modules:   make(map[string]*CurvedPVModule, len(moduleConfigs)),
		Scenarios: make(map[string]*Scenario, len(scenarioConfigs)),
	}

	for _, l := range locationConfigs {
		if l.Name == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: a location has no name", LocationsFilename)}
		}
		if _, dup := data.Locations[l.Name]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: duplicate location %q", LocationsFilename, l.Name)}
		}
		if _, err := l.TZ(); err != nil {
			return nil, err
		}
		data.Locations[l.Name] = l
	}

	for _, p := range polytunnelConfigs {
		curve, err := buildCurve(p)
		if err != nil {
			return nil, err
		}
		if _, dup := data.Curves[p.Name]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: duplicate polytunnel %q", PolytunnelsFilename, p.Name)}
		}
		data.Curves[p.Name] = curve
	}

	for _, c := range cellConfigs {
		if c.Name == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: a cell definition has no name", PVCellsFilename)}
		}
		params := c.electricalParameters()
		if err := params.Validate(); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: cell %q: %v", PVCellsFilename, c.Name, err)}
		}
		data.Cells[c.Name] = params
	}

	for _, m := range moduleConfigs {
		module, err := buildModule(m, data.Curves, data.Cells)
		if err != nil {
			return nil, err
		}
		if _, dup := data.Modules[m.Name]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: duplicate module %q", PVModulesFilename, m.Name)}
		}
		data.Modules[m.Name] = module
	}

	for _, s := range scenarioConfigs {
		scenario, err := buildScenario(s, data.Locations, data.Modules)
		if err != nil {
			return nil, err
		}
		if _, dup := data.Scenarios[s.Name]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: duplicate scenario %q", ScenariosFilename, s.Name)}
		}
		data.Scenarios[s.Name] = scenario
	}

	return data, nil
}

func buildCurve(p PolytunnelConfig) (Curve, error) {
	if p.Name == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: a polytunnel has no name", PolytunnelsFilename)}
	}
	switch CurveType(p.Type) {
	case CurveTypeCircular:
		curve, err := NewCircularCurve(p.CurvatureAxisAzimuth, p.CurvatureAxisTilt, p.RadiusOfCurvature)
		if err != nil {
			return nil, fmt.Errorf("%s: polytunnel %q: %w", PolytunnelsFilename, p.Name, err)
		}
		return curve, nil
	case CurveTypeFlat:
		return NewFlatCurve(p.CurvatureAxisAzimuth, p.CurvatureAxisTilt), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: polytunnel %q: unknown type %q", PolytunnelsFilename, p.Name, p.Type)}
	}
}

func buildModule(m PVModuleConfig, curves map[string]Curve, cells map[string]CellElectricalParameters) (*CurvedPVModule, error) {
	if m.Name == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: a module has no name", PVModulesFilename)}
	}
	curve, ok := curves[m.PolytunnelCurve]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: module %q: unknown polytunnel %q", PVModulesFilename, m.Name, m.PolytunnelCurve)}
	}
	cellParams, ok := cells[m.CellType]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: module %q: cell type %q found in neither the user-defined nor the built-in catalog",
			PVModulesFilename, m.Name, m.CellType)}
	}

	var module *CurvedPVModule
	var err error
	switch ModuleType(m.Type) {
	case ModuleTypeThinFilm:
		bypassVoltage := DefaultBypassDiodeVoltage
		if m.BypassDiodeVoltage != nil {
			bypassVoltage = *m.BypassDiodeVoltage
		}
		module, err = NewThinFilmModule(ThinFilmModuleParams{
			Name:           m.Name,
			Curve:          curve,
			CellCount:      m.NCells,
			CellWidth:      m.CellWidth,
			CellLength:     m.CellLength,
			CellSpacing:    m.CellSpacing,
			CellsPerDiode:  m.CellsPerDiode,
			BypassVoltage:  bypassVoltage,
			OffsetAngle:    m.OffsetAngle,
			CentreOffset:   m.ModuleCentreOffset,
			CellParameters: cellParams,
		})
	case ModuleTypeCrystalline:
		diodes := make([]BypassDiode, len(m.BypassDiodes))
		for i, d := range m.BypassDiodes {
			diodes[i] = BypassDiode{
				BypassVoltage: d.BypassVoltage,
				StartIndex:    d.StartIndex,
				EndIndex:      d.EndIndex,
			}
		}
		module, err = NewCrystallineModule(CrystallineModuleParams{
			Name:           m.Name,
			Curve:          curve,
			CellCount:      m.NCells,
			CellWidth:      m.CellWidth,
			CellLength:     m.CellLength,
			CellSpacing:    m.CellSpacing,
			BypassDiodes:   diodes,
			OffsetAngle:    m.OffsetAngle,
			CentreOffset:   m.ModuleCentreOffset,
			CellParameters: cellParams,
		})
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: module %q: unknown type %q", PVModulesFilename, m.Name, m.Type)}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PVModulesFilename, err)
	}
	return module, nil
}

func buildScenario(s ScenarioConfig, locations map[string]Location, modules map[string]*CurvedPVModule) (*Scenario, error) {
	if s.Name == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%s: a scenario has no name", ScenariosFilename)}
	}
	location, ok := locations[s.Location]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: scenario %q: unknown location %q", ScenariosFilename, s.Name, s.Location)}
	}
	module, ok := modules[s.PVModule]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"%s: scenario %q: unknown pv module %q", ScenariosFilename, s.Name, s.PVModule)}
	}
	return &Scenario{Name: s.Name, Location: location, Module: module}, nil
}
