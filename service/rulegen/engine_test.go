/*
 * @module service/rulegen/engine_test
 * @description 规则生成引擎单元测试
 * @architecture 测试层
 * @stateFlow 构造样本数据 -> 生成规则 -> 断言规则参数
 * @rules 覆盖区间、离群值、聚类、分组与频率规则的生成逻辑
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs engine.go, cluster.go
 */

package rulegen

import (
	"fmt"
	"testing"

	"geodata-quality-service/service/meta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsFromValues(field string, values []float64) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(values))
	for i, v := range values {
		rows[i] = map[string]interface{}{field: v}
	}
	return rows
}

func TestGenerateRangeRule(t *testing.T) {
	engine := NewEngine()

	// range 规则取均值 ± 2σ，method 标记 basic
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeRange,
		Field:    "porosity",
		Rows:     rowsFromValues("porosity", []float64{10, 20}),
	})
	require.NoError(t, err)

	assert.Equal(t, "basic", rule.Params["method"])
	// mean 15, 样本标准差 ≈ 7.071
	assert.InDelta(t, 15-2*7.0711, rule.Params["min_value"].(float64), 0.01)
	assert.InDelta(t, 15+2*7.0711, rule.Params["max_value"].(float64), 0.01)
	assert.InDelta(t, 15.0, rule.Params["mean"].(float64), 0.001)
}

func TestGenerateRangeRuleZeroVariance(t *testing.T) {
	engine := NewEngine()
	// 取值恒定的字段不生成区间与离群值规则
	rows := rowsFromValues("porosity", []float64{5, 5, 5, 5})
	for _, ruleType := range []string{
		meta.RuleTypeRange, meta.RuleTypeRange2Sigma,
		meta.RuleTypeOutlier3Sigma, meta.RuleTypeOutlierIQR, meta.RuleTypeOutlierZScore,
	} {
		_, err := engine.Generate(Request{RuleType: ruleType, Field: "porosity", Rows: rows})
		assert.Error(t, err, ruleType)
	}
}

func TestGeneratePercentileRangeRule(t *testing.T) {
	engine := NewEngine()
	values := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		values = append(values, float64(i))
	}
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeRangePercentile,
		Field:    "porosity",
		Rows:     rowsFromValues("porosity", values),
	})
	require.NoError(t, err)
	assert.Equal(t, "percentile", rule.Params["method"])
	// 分位区间取 q25-q75
	assert.Equal(t, rule.Params["q25"], rule.Params["min_value"])
	assert.Equal(t, rule.Params["q75"], rule.Params["max_value"])
	assert.InDelta(t, 25.0, rule.Params["min_value"].(float64), 1.0)
	assert.InDelta(t, 75.0, rule.Params["max_value"].(float64), 1.0)
}

func TestGenerateManualRangeRule(t *testing.T) {
	engine := NewEngine()
	minV, maxV := 0.0, 50.0

	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeManualRange,
		Field:    "porosity",
		MinValue: &minV,
		MaxValue: &maxV,
	})
	require.NoError(t, err)
	assert.Equal(t, meta.RuleTypeRange, rule.RuleType)
	assert.Equal(t, "manual", rule.Params["method"])
	assert.Equal(t, 0.0, rule.Params["min_value"])
	assert.Equal(t, 50.0, rule.Params["max_value"])

	// 下界大于上界时报错
	bad := 100.0
	_, err = engine.Generate(Request{
		RuleType: meta.RuleTypeManualRange,
		Field:    "porosity",
		MinValue: &bad,
		MaxValue: &minV,
	})
	assert.Error(t, err)
}

func TestGenerateManualRangeRuleOneSided(t *testing.T) {
	engine := NewEngine()
	maxV := 50.0

	// 只给上界，规则不含下界
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeManualRange,
		Field:    "porosity",
		MaxValue: &maxV,
	})
	require.NoError(t, err)
	_, hasMin := rule.Params["min_value"]
	assert.False(t, hasMin)
	assert.Equal(t, 50.0, rule.Params["max_value"])

	// 两侧都缺失报错
	_, err = engine.Generate(Request{RuleType: meta.RuleTypeManualRange, Field: "porosity"})
	assert.Error(t, err)
}

func TestGenerateOutlierZScoreRule(t *testing.T) {
	engine := NewEngine()
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeOutlierZScore,
		Field:    "density",
		Rows:     rowsFromValues("density", []float64{2.1, 2.2, 2.3, 2.4, 2.5}),
	})
	require.NoError(t, err)
	assert.Equal(t, "zscore", rule.Params["method"])
	assert.Equal(t, 2.5, rule.Params["z_threshold"])

	mean := rule.Params["mean"].(float64)
	std := rule.Params["std"].(float64)
	assert.InDelta(t, mean-2.5*std, rule.Params["lower_bound"].(float64), 1e-9)
	assert.InDelta(t, mean+2.5*std, rule.Params["upper_bound"].(float64), 1e-9)
}

func TestGenerateOutlierIQRRule(t *testing.T) {
	engine := NewEngine()
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeOutlierIQR,
		Field:    "density",
		Rows:     rowsFromValues("density", []float64{2.1, 2.2, 2.3, 2.4, 2.5, 2.6, 2.7, 2.8}),
	})
	require.NoError(t, err)
	assert.Equal(t, "iqr", rule.Params["method"])
	assert.Equal(t, 1.5, rule.Params["iqr_factor"])
	lower := rule.Params["lower_bound"].(float64)
	upper := rule.Params["upper_bound"].(float64)
	assert.Less(t, lower, 2.1)
	assert.Greater(t, upper, 2.8)
}

func TestGenerateKMeansRuleDeterministic(t *testing.T) {
	engine := NewEngine()
	// 两个明显分离的簇
	values := []float64{1, 1.1, 0.9, 1.2, 0.8, 10, 10.1, 9.9, 10.2, 9.8}
	req := Request{
		RuleType: meta.RuleTypeClusterKMeans,
		Field:    "gamma_ray",
		Rows:     rowsFromValues("gamma_ray", values),
		Options:  map[string]interface{}{"n_clusters": 2},
	}

	first, err := engine.Generate(req)
	require.NoError(t, err)
	second, err := engine.Generate(req)
	require.NoError(t, err)

	// 分位点初始化保证两次生成结果一致
	assert.Equal(t, fmt.Sprintf("%v", first.Params), fmt.Sprintf("%v", second.Params))

	clusters := first.Params["clusters"].([]map[string]interface{})
	require.Len(t, clusters, 2)
	assert.Equal(t, 5, clusters[0]["count"])
	assert.Equal(t, 5, clusters[1]["count"])
}

func TestGenerateKMeansClusterCount(t *testing.T) {
	engine := NewEngine()
	tests := []struct {
		sampleCount int
		expected    int
	}{
		{3, 1},
		{9, 3},
		{100, 5},
	}
	for _, tt := range tests {
		values := make([]float64, tt.sampleCount)
		for i := range values {
			values[i] = float64(i)
		}
		rule, err := engine.Generate(Request{
			RuleType: meta.RuleTypeClusterKMeans,
			Field:    "depth",
			Rows:     rowsFromValues("depth", values),
		})
		require.NoError(t, err)
		assert.Equal(t, tt.expected, rule.Params["n_clusters"], "样本量 %d", tt.sampleCount)
	}
}

func TestGenerateDBSCANRule(t *testing.T) {
	engine := NewEngine()

	// 样本量不足 20 直接报错
	_, err := engine.Generate(Request{
		RuleType: meta.RuleTypeClusterDBSCAN,
		Field:    "resistivity",
		Rows:     rowsFromValues("resistivity", []float64{1, 2, 3}),
	})
	assert.Error(t, err)

	values := make([]float64, 0, 25)
	for i := 0; i < 25; i++ {
		values = append(values, 5.0+float64(i)*0.01)
	}
	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeClusterDBSCAN,
		Field:    "resistivity",
		Rows:     rowsFromValues("resistivity", values),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, rule.Params["eps"])
	assert.Equal(t, 5, rule.Params["min_samples"])
	clusters := rule.Params["clusters"].([]map[string]interface{})
	assert.NotEmpty(t, clusters)
}

func TestGenerateGroupRangeRule(t *testing.T) {
	engine := NewEngine()
	rows := []map[string]interface{}{
		{"company": "A", "value": 10.0},
		{"company": "A", "value": 12.0},
		{"company": "B", "value": 5.0},
	}

	rule, err := engine.Generate(Request{
		RuleType:   meta.RuleTypeClusterGroupRange,
		Field:      "value",
		GroupField: "company",
		Rows:       rows,
	})
	require.NoError(t, err)

	groups := rule.Params["groups"].(map[string]interface{})
	groupA := groups["A"].(map[string]interface{})
	assert.Equal(t, 10.0, groupA["min_value"])
	assert.Equal(t, 12.0, groupA["max_value"])
	assert.Equal(t, 2, groupA["count"])
	groupB := groups["B"].(map[string]interface{})
	assert.Equal(t, 5.0, groupB["min_value"])
	assert.Equal(t, 5.0, groupB["max_value"])
}

func TestGenerateFrequencyRule(t *testing.T) {
	engine := NewEngine()
	rows := make([]map[string]interface{}, 0, 100)
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]interface{}{"lithology": "sandstone"})
	}
	for i := 0; i < 38; i++ {
		rows = append(rows, map[string]interface{}{"lithology": "mudstone"})
	}
	rows = append(rows, map[string]interface{}{"lithology": "coal"})
	rows = append(rows, map[string]interface{}{"lithology": "tuff"})

	rule, err := engine.Generate(Request{
		RuleType: meta.RuleTypeFrequency,
		Field:    "lithology",
		Rows:     rows,
	})
	require.NoError(t, err)

	expected := rule.Params["expected_values"].([]interface{})
	// 前两个取值已覆盖 98%，低频值不进入期望集合
	assert.Contains(t, expected, "sandstone")
	assert.Contains(t, expected, "mudstone")
	assert.NotContains(t, expected, "tuff")
}

func TestGenerateDepthIntervalRule(t *testing.T) {
	engine := NewEngine()
	rows := []map[string]interface{}{
		{"depth": 10.0, "porosity": 20.0},
		{"depth": 20.0, "porosity": 22.0},
		{"depth": 110.0, "porosity": 15.0},
		{"depth": 120.0, "porosity": 16.0},
	}

	rule, err := engine.Generate(Request{
		RuleType:   meta.RuleTypeDepthIntervalStat,
		Field:      "porosity",
		DepthField: "depth",
		Rows:       rows,
	})
	require.NoError(t, err)

	intervals := rule.Params["intervals"].([]map[string]interface{})
	require.Len(t, intervals, 2)
	assert.Equal(t, 0.0, intervals[0]["depth_start"])
	assert.Equal(t, 100.0, intervals[0]["depth_end"])
	assert.Equal(t, 2, intervals[0]["count"])
	assert.Equal(t, 100.0, intervals[1]["depth_start"])
}

func TestGenerateUnknownRuleType(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Generate(Request{RuleType: "magic_check", Field: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未知的规则类型")
}
