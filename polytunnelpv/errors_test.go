package polytunnelpv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryErrorMessage(t *testing.T) {
	err := &GeometryError{Reason: "cell 3 wraps past vertical"}
	assert.Equal(t, "geometry error: cell 3 wraps past vertical", err.Error())
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Reason: "cell count must be positive"}
	assert.Equal(t, "configuration error: cell count must be positive", err.Error())
}

func TestModelConvergenceErrorMessage(t *testing.T) {
	anonymous := &ModelConvergenceError{CellID: -1, SampleIndex: 4, Current: 9.43, Reason: "bracket expansion exhausted"}
	assert.Equal(t,
		"single-diode solve did not converge at sample 4 (current 9.43 A): bracket expansion exhausted",
		anonymous.Error())

	named := &ModelConvergenceError{CellID: 7, SampleIndex: 4, Current: 9.43, Reason: "bracket expansion exhausted"}
	assert.Equal(t,
		"single-diode solve did not converge for cell 7 at sample 4 (current 9.43 A): bracket expansion exhausted",
		named.Error())
}

func TestConvergenceErrorSurvivesWrapping(t *testing.T) {
	inner := &ModelConvergenceError{CellID: 2, SampleIndex: 9, Current: 1.5, Reason: "no sign change"}
	wrapped := fmt.Errorf("module %q: %w", "demo", fmt.Errorf("cell string 0: %w", inner))

	var convErr *ModelConvergenceError
	require.ErrorAs(t, wrapped, &convErr)
	assert.Equal(t, 2, convErr.CellID)
	assert.Equal(t, 9, convErr.SampleIndex)
	assert.Contains(t, wrapped.Error(), `module "demo"`)
	assert.Contains(t, wrapped.Error(), "cell string 0")
}

func TestErrorTypesAreDistinct(t *testing.T) {
	var geomErr *GeometryError
	var cfgErr *ConfigurationError

	err := error(&GeometryError{Reason: "radius must be positive"})
	assert.True(t, errors.As(err, &geomErr))
	assert.False(t, errors.As(err, &cfgErr))
}
