/*
 * @module service/rulecheck/engine
 * @description 质量规则校验引擎，逐规则产出判定结果与失败行明细
 * @architecture 业务逻辑层 - 规则校验
 * @stateFlow 加载规则 -> 按类型分发校验 -> 汇总失败行并集与通过率
 * @rules 规则类型集合封闭；深度分段校验叠加地质参数物理边界
 * @dependencies github.com/spf13/cast, gonum.org/v1/gonum/stat
 * @refs geology.go, service/rulegen/, service/quality/
 */

package rulecheck

import (
	"fmt"
	"math"
	"sort"

	"geodata-quality-service/service/meta"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/stat"
)

// RuleResult 单条规则的校验结果
type RuleResult struct {
	RuleName      string                   `json:"rule_name"`
	RuleType      string                   `json:"rule_type"`
	Field         string                   `json:"field"`
	PassedCount   int64                    `json:"passed_count"`
	FailedCount   int64                    `json:"failed_count"`
	FailedIndices []int                    `json:"failed_indices"`
	ErrorDetails  []map[string]interface{} `json:"error_details"`
}

// Summary 整体校验汇总
type Summary struct {
	TotalRecords  int64         `json:"total_records"`
	PassedRecords int64         `json:"passed_records"`
	FailedRecords int64         `json:"failed_records"`
	PassRate      float64       `json:"pass_rate"`
	FailedIndices []int         `json:"failed_indices"`
	RuleResults   []*RuleResult `json:"rule_results"`
}

// Engine 规则校验引擎
type Engine struct{}

// NewEngine 创建规则校验引擎
func NewEngine() *Engine {
	return &Engine{}
}

// ValidateAll 校验全部规则并汇总失败行并集
func (e *Engine) ValidateAll(rows []map[string]interface{}, rules []map[string]interface{}) (*Summary, error) {
	summary := &Summary{
		TotalRecords: int64(len(rows)),
		RuleResults:  make([]*RuleResult, 0, len(rules)),
	}
	failedSet := make(map[int]bool)

	for _, rule := range rules {
		result, err := e.Validate(rows, rule)
		if err != nil {
			return nil, err
		}
		summary.RuleResults = append(summary.RuleResults, result)
		for _, idx := range result.FailedIndices {
			failedSet[idx] = true
		}
	}

	summary.FailedIndices = make([]int, 0, len(failedSet))
	for idx := range failedSet {
		summary.FailedIndices = append(summary.FailedIndices, idx)
	}
	sort.Ints(summary.FailedIndices)
	summary.FailedRecords = int64(len(failedSet))
	summary.PassedRecords = summary.TotalRecords - summary.FailedRecords
	if summary.TotalRecords > 0 {
		summary.PassRate = float64(summary.PassedRecords) / float64(summary.TotalRecords) * 100
	}
	return summary, nil
}

// Validate 校验单条规则
func (e *Engine) Validate(rows []map[string]interface{}, rule map[string]interface{}) (*RuleResult, error) {
	ruleType := cast.ToString(rule["rule_type"])
	field := cast.ToString(rule["field"])
	params, _ := rule["params"].(map[string]interface{})
	if params == nil {
		params = map[string]interface{}{}
	}

	result := &RuleResult{
		RuleName:      cast.ToString(rule["name"]),
		RuleType:      ruleType,
		Field:         field,
		FailedIndices: make([]int, 0),
		ErrorDetails:  make([]map[string]interface{}, 0),
	}
	if result.RuleName == "" {
		result.RuleName = fmt.Sprintf("%s-%s", ruleType, field)
	}

	switch ruleType {
	case meta.RuleTypeRange, meta.RuleTypeRange2Sigma, meta.RuleTypeRangePercentile:
		e.validateRange(rows, field, params, result)
	case meta.RuleTypeOutlier3Sigma, meta.RuleTypeOutlierIQR:
		e.validateOutlierBounds(rows, field, params, result)
	case meta.RuleTypeOutlierZScore:
		e.validateOutlierZScore(rows, field, params, result)
	case meta.RuleTypeClusterKMeans, meta.RuleTypeClusterDBSCAN:
		e.validateClusterRanges(rows, field, params, result)
	case meta.RuleTypeClusterGroupRange:
		e.validateGroupRanges(rows, field, params, result)
	case meta.RuleTypeDepthIntervalStat:
		e.validateDepthIntervals(rows, field, params, result)
	case meta.RuleTypeFrequency:
		e.validateFrequency(rows, field, params, result)
	case meta.RuleTypeDistribution:
		e.validateDistribution(rows, field, params, result)
	case meta.RuleTypeCorrelation:
		e.validateCorrelation(rows, field, params, result)
	default:
		return nil, fmt.Errorf("未知的规则类型: %s", ruleType)
	}

	result.FailedCount = int64(len(result.FailedIndices))
	result.PassedCount = int64(len(rows)) - result.FailedCount
	return result, nil
}

// addFailure 记录失败行
func (r *RuleResult) addFailure(row int, value interface{}, message string) {
	r.FailedIndices = append(r.FailedIndices, row)
	r.ErrorDetails = append(r.ErrorDetails, map[string]interface{}{
		"row":     row,
		"value":   value,
		"message": message,
	})
}

// validateRange 区间规则校验，单侧区间只校验给定的一侧
func (e *Engine) validateRange(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	rawMin, hasMin := params["min_value"]
	rawMax, hasMax := params["max_value"]
	minV := cast.ToFloat64(rawMin)
	maxV := cast.ToFloat64(rawMax)
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		if hasMin && value < minV {
			result.addFailure(i, value, fmt.Sprintf("值 %v 小于下界 %v", value, minV))
		} else if hasMax && value > maxV {
			result.addFailure(i, value, fmt.Sprintf("值 %v 大于上界 %v", value, maxV))
		}
	}
}

// validateOutlierBounds 上下界型离群值校验（3sigma、iqr）
func (e *Engine) validateOutlierBounds(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	lower := cast.ToFloat64(params["lower_bound"])
	upper := cast.ToFloat64(params["upper_bound"])
	method := cast.ToString(params["method"])
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		if value < lower || value > upper {
			result.addFailure(i, value, fmt.Sprintf("字段 %s 值 %v 为异常值（%s方法）", field, value, method))
		}
	}
}

// validateOutlierZScore Z 分数离群值校验
func (e *Engine) validateOutlierZScore(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	mean := cast.ToFloat64(params["mean"])
	std := cast.ToFloat64(params["std"])
	threshold := cast.ToFloat64(params["z_threshold"])
	if threshold == 0 {
		threshold = 2.5
	}
	if std == 0 {
		return
	}
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		if math.Abs((value-mean)/std) > threshold {
			result.addFailure(i, value, fmt.Sprintf("字段 %s 值 %v 为异常值（zscore方法）", field, value))
		}
	}
}

// addInfo 记录参考性说明，不计入失败行
func (r *RuleResult) addInfo(row int, value interface{}, message string) {
	r.ErrorDetails = append(r.ErrorDetails, map[string]interface{}{
		"row":     row,
		"value":   value,
		"message": message,
	})
}

// validateClusterRanges 聚类规则参考性校验：区间外的值只记录说明，一律判通过
func (e *Engine) validateClusterRanges(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	clusters := toMapSlice(params["clusters"])
	if len(clusters) == 0 {
		return
	}
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		matched := false
		for _, cluster := range clusters {
			minV := cast.ToFloat64(cluster["min_value"])
			maxV := cast.ToFloat64(cluster["max_value"])
			if value >= minV && value <= maxV {
				matched = true
				break
			}
		}
		if !matched {
			result.addInfo(i, value, fmt.Sprintf("值 %v 不在任何聚类取值区间内（参考）", value))
		}
	}
}

// validateGroupRanges 分组区间参考性校验：偏离只记录说明，一律判通过
func (e *Engine) validateGroupRanges(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	groupField := cast.ToString(params["group_field"])
	groups := cast.ToStringMap(params["groups"])
	if groupField == "" || len(groups) == 0 {
		return
	}
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		group := cast.ToString(row[groupField])
		rangeRaw, exists := groups[group]
		if !exists {
			result.addInfo(i, value, fmt.Sprintf("值 %v 所属分组 %s 未在规则中定义（参考）", value, group))
			continue
		}
		bounds := cast.ToStringMap(rangeRaw)
		minV := cast.ToFloat64(bounds["min_value"])
		maxV := cast.ToFloat64(bounds["max_value"])
		if value < minV || value > maxV {
			result.addInfo(i, value, fmt.Sprintf("分组 %s 的值 %v 超出范围[%v, %v]（参考）", group, value, minV, maxV))
		}
	}
}

// validateDepthIntervals 深度分段校验，叠加地质参数物理边界
func (e *Engine) validateDepthIntervals(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	depthField := cast.ToString(params["depth_field"])
	intervals := toMapSlice(params["intervals"])
	if depthField == "" || len(intervals) == 0 {
		return
	}
	geo := geoParameterFor(field)

	for i, row := range rows {
		depth, okDepth := toFloat(row[depthField])
		value, okValue := toFloat(row[field])
		if !okDepth || !okValue {
			continue
		}

		var matched map[string]interface{}
		for _, interval := range intervals {
			start := cast.ToFloat64(interval["depth_start"])
			end := cast.ToFloat64(interval["depth_end"])
			if depth >= start && depth < end {
				matched = interval
				break
			}
		}
		if matched == nil {
			detail := map[string]interface{}{
				"row":     i,
				"value":   value,
				"depth":   depth,
				"message": fmt.Sprintf("深度值%v不在任何统计区间范围内", depth),
			}
			result.FailedIndices = append(result.FailedIndices, i)
			result.ErrorDetails = append(result.ErrorDetails, detail)
			continue
		}

		lower, upper, method := intervalBounds(matched, geo)
		if value < lower || value > upper {
			start := cast.ToFloat64(matched["depth_start"])
			end := cast.ToFloat64(matched["depth_end"])
			detail := map[string]interface{}{
				"row":   i,
				"value": value,
				"depth": depth,
				"message": fmt.Sprintf("在深度%.0f-%.0fm区间内，%s值%v超出合理范围[%.2f, %.2f]（使用%s方法）",
					start, end, field, value, lower, upper, method),
			}
			result.FailedIndices = append(result.FailedIndices, i)
			result.ErrorDetails = append(result.ErrorDetails, detail)
		}
	}
}

// validateFrequency 频率规则校验：值必须在期望值列表内
func (e *Engine) validateFrequency(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	expectedRaw := cast.ToSlice(params["expected_values"])
	expected := make(map[string]bool, len(expectedRaw))
	display := make([]string, 0, len(expectedRaw))
	for _, v := range expectedRaw {
		s := cast.ToString(v)
		expected[s] = true
		display = append(display, s)
	}
	if len(expected) == 0 {
		return
	}
	for i, row := range rows {
		raw, ok := row[field]
		if !ok || raw == nil {
			continue
		}
		value := cast.ToString(raw)
		if !expected[value] {
			result.addFailure(i, raw, fmt.Sprintf("值 '%v' 不在期望的值列表中: %v", value, display))
		}
	}
}

// validateDistribution 分布参考性校验：占比偏离只记录说明，一律判通过
func (e *Engine) validateDistribution(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	bins := toMapSlice(params["bins"])
	tolerance := cast.ToFloat64(params["tolerance"])
	if tolerance == 0 {
		tolerance = 0.1
	}
	if len(bins) == 0 {
		return
	}

	// 行归箱
	binMembers := make([][]int, len(bins))
	var total int
	for i, row := range rows {
		value, ok := toFloat(row[field])
		if !ok {
			continue
		}
		total++
		for b, bin := range bins {
			lower := cast.ToFloat64(bin["lower"])
			upper := cast.ToFloat64(bin["upper"])
			last := b == len(bins)-1
			if value >= lower && (value < upper || (last && value <= upper)) {
				binMembers[b] = append(binMembers[b], i)
				break
			}
		}
	}
	if total == 0 {
		return
	}

	for b, bin := range bins {
		expected := cast.ToFloat64(bin["proportion"])
		actual := float64(len(binMembers[b])) / float64(total)
		if math.Abs(actual-expected) > tolerance {
			lower := cast.ToFloat64(bin["lower"])
			upper := cast.ToFloat64(bin["upper"])
			msg := fmt.Sprintf("区间[%.2f, %.2f]占比%.3f偏离期望%.3f超过容差%.2f（参考）", lower, upper, actual, expected, tolerance)
			result.addInfo(-1, nil, msg)
		}
	}
}

// validateCorrelation 相关性校验：数据集级判定，不标记具体行
func (e *Engine) validateCorrelation(rows []map[string]interface{}, field string, params map[string]interface{}, result *RuleResult) {
	secondField := cast.ToString(params["second_field"])
	expectedMin := cast.ToFloat64(params["expected_min"])
	expectedMax := cast.ToFloat64(params["expected_max"])
	if secondField == "" {
		return
	}

	var xs, ys []float64
	for _, row := range rows {
		x, ok1 := toFloat(row[field])
		y, ok2 := toFloat(row[secondField])
		if !ok1 || !ok2 {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 3 {
		return
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return
	}
	if r < expectedMin || r > expectedMax {
		result.ErrorDetails = append(result.ErrorDetails, map[string]interface{}{
			"row":   -1,
			"value": r,
			"message": fmt.Sprintf("字段 %s 与 %s 相关系数%.3f超出期望范围[%.2f, %.2f]",
				field, secondField, r, expectedMin, expectedMax),
		})
	}
}

// toMapSlice 宽松转换为 map 切片，兼容 JSONB 反序列化出的 []interface{}
func toMapSlice(v interface{}) []map[string]interface{} {
	switch typed := v.(type) {
	case []map[string]interface{}:
		return typed
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(typed))
		for _, item := range typed {
			if m := cast.ToStringMap(item); m != nil {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
