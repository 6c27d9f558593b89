/*
 * @module service/rulegen/engine
 * @description 质量规则生成引擎，按封闭的规则类型集合从样本数据生成规则参数
 * @architecture 业务逻辑层 - 规则生成
 * @stateFlow 取样本数据 -> 按规则类型分发 -> 统计/聚类计算 -> 输出规则参数
 * @rules 规则类型集合封闭，未知类型直接报错；样本量不足时报错不输出半成品规则
 * @dependencies gonum.org/v1/gonum/stat, github.com/spf13/cast
 * @refs cluster.go, service/rulecheck/
 */

package rulegen

import (
	"fmt"
	"math"
	"sort"

	"geodata-quality-service/service/meta"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/stat"
)

// Rule 生成的质量规则
type Rule struct {
	RuleType string                 `json:"rule_type"`
	Field    string                 `json:"field"`
	Name     string                 `json:"name,omitempty"`
	Params   map[string]interface{} `json:"params"`
}

// Request 规则生成请求
type Request struct {
	RuleType    string
	Field       string
	SecondField string // correlation_check 的第二字段
	GroupField  string // cluster_group_ranges 的分组字段
	DepthField  string // depth_interval_stats 的深度字段
	Rows        []map[string]interface{}
	MinValue    *float64 // manual_range 下界
	MaxValue    *float64 // manual_range 上界
	Options     map[string]interface{}
}

// Engine 规则生成引擎
type Engine struct{}

// NewEngine 创建规则生成引擎
func NewEngine() *Engine {
	return &Engine{}
}

// Generate 按规则类型生成规则
func (e *Engine) Generate(req Request) (*Rule, error) {
	if !meta.IsValidRuleType(req.RuleType) {
		return nil, fmt.Errorf("未知的规则类型: %s", req.RuleType)
	}
	if req.Field == "" && req.RuleType != meta.RuleTypeCorrelation {
		return nil, fmt.Errorf("字段名不能为空")
	}

	switch req.RuleType {
	case meta.RuleTypeRange:
		return e.generateRangeRule(req, 2, "basic")
	case meta.RuleTypeRange2Sigma:
		return e.generateRangeRule(req, 2, "2sigma")
	case meta.RuleTypeRangePercentile:
		return e.generatePercentileRangeRule(req)
	case meta.RuleTypeManualRange:
		return e.generateManualRangeRule(req)
	case meta.RuleTypeOutlier3Sigma:
		return e.generateOutlier3SigmaRule(req)
	case meta.RuleTypeOutlierIQR:
		return e.generateOutlierIQRRule(req)
	case meta.RuleTypeOutlierZScore:
		return e.generateOutlierZScoreRule(req)
	case meta.RuleTypeClusterKMeans:
		return e.generateKMeansRule(req)
	case meta.RuleTypeClusterDBSCAN:
		return e.generateDBSCANRule(req)
	case meta.RuleTypeClusterGroupRange:
		return e.generateGroupRangeRule(req)
	case meta.RuleTypeDepthIntervalStat:
		return e.generateDepthIntervalRule(req)
	case meta.RuleTypeFrequency:
		return e.generateFrequencyRule(req)
	case meta.RuleTypeDistribution:
		return e.generateDistributionRule(req)
	case meta.RuleTypeCorrelation:
		return e.generateCorrelationRule(req)
	}
	return nil, fmt.Errorf("未知的规则类型: %s", req.RuleType)
}

// numericValues 从样本行中提取字段的数值，忽略空值与非数值
func numericValues(rows []map[string]interface{}, field string) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		raw, ok := row[field]
		if !ok || raw == nil {
			continue
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil || math.IsNaN(v) {
			continue
		}
		values = append(values, v)
	}
	return values
}

// sortedCopy 返回排序副本，分位数计算要求有序输入
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// quantile 经验分位数
func quantile(sorted []float64, p float64) float64 {
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// generateRangeRule 均值 ± k·标准差 区间规则
func (e *Engine) generateRangeRule(req Request, k float64, method string) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 2 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成区间规则", req.Field)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return nil, fmt.Errorf("字段 %s 取值无波动，无法生成区间规则", req.Field)
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"min_value": mean - k*std,
			"max_value": mean + k*std,
			"method":    method,
			"mean":      mean,
			"std":       std,
		},
	}, nil
}

// generatePercentileRangeRule q25-q75 分位区间规则
func (e *Engine) generatePercentileRangeRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 2 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成分位区间规则", req.Field)
	}
	sorted := sortedCopy(values)
	q25 := quantile(sorted, 0.25)
	q75 := quantile(sorted, 0.75)
	if q25 == q75 {
		return nil, fmt.Errorf("字段 %s 取值无波动，无法生成分位区间规则", req.Field)
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"min_value": q25,
			"max_value": q75,
			"q25":       q25,
			"q75":       q75,
			"method":    "percentile",
		},
	}, nil
}

// generateManualRangeRule 人工指定上下界，输出 range 类型规则
// 上下界可只给一侧，单侧区间只校验给定的一侧
func (e *Engine) generateManualRangeRule(req Request) (*Rule, error) {
	if req.MinValue == nil && req.MaxValue == nil {
		return nil, fmt.Errorf("手工区间规则至少给定一侧边界")
	}
	if req.MinValue != nil && req.MaxValue != nil && *req.MinValue > *req.MaxValue {
		return nil, fmt.Errorf("手工区间下界 %v 大于上界 %v", *req.MinValue, *req.MaxValue)
	}
	params := map[string]interface{}{"method": "manual"}
	if req.MinValue != nil {
		params["min_value"] = *req.MinValue
	}
	if req.MaxValue != nil {
		params["max_value"] = *req.MaxValue
	}
	return &Rule{
		RuleType: meta.RuleTypeRange,
		Field:    req.Field,
		Params:   params,
	}, nil
}

// generateOutlier3SigmaRule 3σ 离群值规则
func (e *Engine) generateOutlier3SigmaRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 2 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成离群值规则", req.Field)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return nil, fmt.Errorf("字段 %s 取值无波动，无法生成离群值规则", req.Field)
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"method":      "3sigma",
			"mean":        mean,
			"std":         std,
			"lower_bound": mean - 3*std,
			"upper_bound": mean + 3*std,
		},
	}, nil
}

// generateOutlierIQRRule 四分位距离群值规则，系数 1.5
func (e *Engine) generateOutlierIQRRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 4 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成IQR离群值规则", req.Field)
	}
	sorted := sortedCopy(values)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return nil, fmt.Errorf("字段 %s 四分位距为零，无法生成IQR离群值规则", req.Field)
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"method":      "iqr",
			"q1":          q1,
			"q3":          q3,
			"iqr_factor":  1.5,
			"lower_bound": q1 - 1.5*iqr,
			"upper_bound": q3 + 1.5*iqr,
		},
	}, nil
}

// generateOutlierZScoreRule Z 分数离群值规则，默认阈值 2.5
func (e *Engine) generateOutlierZScoreRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 2 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成Z分数离群值规则", req.Field)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 {
		return nil, fmt.Errorf("字段 %s 取值无波动，无法生成Z分数离群值规则", req.Field)
	}
	threshold := 2.5
	if v, ok := req.Options["z_threshold"]; ok {
		if parsed := cast.ToFloat64(v); parsed > 0 {
			threshold = parsed
		}
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"method":      "zscore",
			"mean":        mean,
			"std":         std,
			"z_threshold": threshold,
			"lower_bound": mean - threshold*std,
			"upper_bound": mean + threshold*std,
		},
	}, nil
}

// generateDepthIntervalRule 深度分段统计规则，默认段长 100m
func (e *Engine) generateDepthIntervalRule(req Request) (*Rule, error) {
	if req.DepthField == "" {
		return nil, fmt.Errorf("深度分段规则必须指定深度字段")
	}
	intervalSize := 100.0
	if v, ok := req.Options["interval_size"]; ok {
		if parsed := cast.ToFloat64(v); parsed > 0 {
			intervalSize = parsed
		}
	}

	type pair struct{ depth, value float64 }
	pairs := make([]pair, 0, len(req.Rows))
	for _, row := range req.Rows {
		depth, err1 := cast.ToFloat64E(row[req.DepthField])
		value, err2 := cast.ToFloat64E(row[req.Field])
		if err1 != nil || err2 != nil {
			continue
		}
		pairs = append(pairs, pair{depth, value})
	}
	if len(pairs) < 2 {
		return nil, fmt.Errorf("字段 %s 有效深度数据不足，无法生成深度分段规则", req.Field)
	}

	buckets := make(map[int][]float64)
	for _, p := range pairs {
		idx := int(math.Floor(p.depth / intervalSize))
		buckets[idx] = append(buckets[idx], p.value)
	}
	indexes := make([]int, 0, len(buckets))
	for idx := range buckets {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	intervals := make([]map[string]interface{}, 0, len(indexes))
	for _, idx := range indexes {
		values := buckets[idx]
		sorted := sortedCopy(values)
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) == 1 {
			std = 0
		}
		intervals = append(intervals, map[string]interface{}{
			"depth_start": float64(idx) * intervalSize,
			"depth_end":   float64(idx+1) * intervalSize,
			"count":       len(values),
			"mean":        mean,
			"std":         std,
			"q05":         quantile(sorted, 0.05),
			"q25":         quantile(sorted, 0.25),
			"q75":         quantile(sorted, 0.75),
			"q95":         quantile(sorted, 0.95),
		})
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"depth_field":   req.DepthField,
			"interval_size": intervalSize,
			"intervals":     intervals,
		},
	}, nil
}

// generateFrequencyRule 频率分析规则，期望值集合覆盖主要频次
func (e *Engine) generateFrequencyRule(req Request) (*Rule, error) {
	counts := make(map[string]int)
	total := 0
	for _, row := range req.Rows {
		raw, ok := row[req.Field]
		if !ok || raw == nil {
			continue
		}
		key := cast.ToString(raw)
		counts[key]++
		total++
	}
	if total == 0 {
		return nil, fmt.Errorf("字段 %s 无有效数据，无法生成频率规则", req.Field)
	}

	type freq struct {
		value string
		count int
	}
	frequencies := make([]freq, 0, len(counts))
	for v, c := range counts {
		frequencies = append(frequencies, freq{v, c})
	}
	sort.Slice(frequencies, func(i, j int) bool {
		if frequencies[i].count != frequencies[j].count {
			return frequencies[i].count > frequencies[j].count
		}
		return frequencies[i].value < frequencies[j].value
	})

	// 按频次累计覆盖 95% 样本的取值作为期望集合
	coverageTarget := 0.95
	if v, ok := req.Options["coverage"]; ok {
		if parsed := cast.ToFloat64(v); parsed > 0 && parsed <= 1 {
			coverageTarget = parsed
		}
	}
	expected := make([]interface{}, 0, len(frequencies))
	covered := 0
	valueCounts := make(map[string]interface{}, len(frequencies))
	for _, f := range frequencies {
		valueCounts[f.value] = f.count
		if float64(covered)/float64(total) < coverageTarget {
			expected = append(expected, f.value)
			covered += f.count
		}
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"expected_values": expected,
			"coverage":        float64(covered) / float64(total),
			"value_counts":    valueCounts,
		},
	}, nil
}

// generateDistributionRule 分布检查规则，直方图分箱与期望占比
func (e *Engine) generateDistributionRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 10 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成分布检查规则", req.Field)
	}
	sorted := sortedCopy(values)
	minV, maxV := sorted[0], sorted[len(sorted)-1]
	binCount := 10
	if v, ok := req.Options["bins"]; ok {
		if parsed := cast.ToInt(v); parsed > 1 {
			binCount = parsed
		}
	}
	if minV == maxV {
		return nil, fmt.Errorf("字段 %s 取值恒定，无法生成分布检查规则", req.Field)
	}

	width := (maxV - minV) / float64(binCount)
	histogram := make([]int, binCount)
	for _, v := range values {
		idx := int((v - minV) / width)
		if idx >= binCount {
			idx = binCount - 1
		}
		histogram[idx]++
	}
	bins := make([]map[string]interface{}, 0, binCount)
	for i, count := range histogram {
		bins = append(bins, map[string]interface{}{
			"lower":      minV + float64(i)*width,
			"upper":      minV + float64(i+1)*width,
			"proportion": float64(count) / float64(len(values)),
		})
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"min_value": minV,
			"max_value": maxV,
			"bins":      bins,
			"tolerance": 0.1,
		},
	}, nil
}

// generateCorrelationRule 相关性检查规则，皮尔逊相关系数
func (e *Engine) generateCorrelationRule(req Request) (*Rule, error) {
	if req.Field == "" || req.SecondField == "" {
		return nil, fmt.Errorf("相关性规则必须指定两个字段")
	}
	xs := make([]float64, 0, len(req.Rows))
	ys := make([]float64, 0, len(req.Rows))
	for _, row := range req.Rows {
		x, err1 := cast.ToFloat64E(row[req.Field])
		y, err2 := cast.ToFloat64E(row[req.SecondField])
		if err1 != nil || err2 != nil {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 3 {
		return nil, fmt.Errorf("字段 %s/%s 配对数据不足，无法生成相关性规则", req.Field, req.SecondField)
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return nil, fmt.Errorf("字段 %s/%s 相关系数不可计算", req.Field, req.SecondField)
	}
	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"second_field": req.SecondField,
			"correlation":  r,
			"expected_min": math.Max(r-0.2, -1),
			"expected_max": math.Min(r+0.2, 1),
		},
	}, nil
}
