package rulecheck

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoParameterFor(t *testing.T) {
	tests := []struct {
		field   string
		keyword string
	}{
		{"effe_porosity_avg", "effe_porosity"},
		{"POROSITY", "porosity"},
		{"log_permeability", "permeability"},
		{"bulk_density", "density"},
		{"deep_resistivity", "resistivity"},
		{"gamma_ray_api", "gamma_ray"},
	}
	for _, tt := range tests {
		geo := geoParameterFor(tt.field)
		if assert.NotNil(t, geo, tt.field) {
			assert.Equal(t, tt.keyword, geo.keyword, tt.field)
		}
	}

	assert.Nil(t, geoParameterFor("well_name"))
}

func TestIntervalBoundsLogPercentile(t *testing.T) {
	geo := geoParameterFor("permeability")
	interval := map[string]interface{}{"mean": 10.0, "std": 5.0}

	lower, upper, method := intervalBounds(interval, geo)
	assert.Equal(t, "log_percentile", method)
	// exp(ln(10) ± 2·0.5)
	assert.InDelta(t, math.Exp(math.Log(10)-1), lower, 1e-9)
	assert.InDelta(t, math.Exp(math.Log(10)+1), upper, 1e-9)
}

func TestIntervalBoundsUnmatchedDefaultsToPercentile(t *testing.T) {
	// 未命中参数族时走分位数方法，q05/q95 直接作为边界
	interval := map[string]interface{}{"mean": 5.0, "std": 2.0, "q05": 1.0, "q95": 9.0}
	lower, upper, method := intervalBounds(interval, nil)
	assert.Equal(t, "percentile", method)
	assert.Equal(t, 1.0, lower)
	assert.Equal(t, 9.0, upper)
}

func TestIntervalBoundsUnmatchedIQRFallbackAndClamp(t *testing.T) {
	// 无 q05/q95 时退到四分位距；未命中参数族的负下界也截断为 0
	interval := map[string]interface{}{"mean": 3.0, "std": 2.0, "q25": 1.0, "q75": 5.0}
	lower, upper, method := intervalBounds(interval, nil)
	assert.Equal(t, "percentile", method)
	// q25-1.5·IQR = 1-6 = -5，截断为 0
	assert.Equal(t, 0.0, lower)
	assert.Equal(t, 11.0, upper)
}

func TestIntervalBoundsLogPercentileZeroStdFallback(t *testing.T) {
	geo := geoParameterFor("resistivity")
	interval := map[string]interface{}{"mean": 10.0, "std": 0.0}
	lower, upper, method := intervalBounds(interval, geo)
	assert.Equal(t, "log_percentile", method)
	assert.Equal(t, 0.0, lower)
	assert.Equal(t, 30.0, upper)
}

func TestIntervalBoundsNegativeLowerClamped(t *testing.T) {
	geo := geoParameterFor("porosity")
	// q05 为负时截断到 0
	interval := map[string]interface{}{"mean": 1.0, "std": 1.0, "q05": -2.0, "q95": 30.0}
	lower, upper, method := intervalBounds(interval, geo)
	assert.Equal(t, "percentile", method)
	assert.Equal(t, 0.0, lower)
	assert.Equal(t, 30.0, upper)
}
