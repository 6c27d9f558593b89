/*
 * @module service/rulegen/cluster
 * @description 聚类类规则生成：KMeans、DBSCAN 与分组极值区间
 * @architecture 业务逻辑层 - 规则生成
 * @stateFlow 样本标准化 -> 聚类 -> 以原始量纲输出各簇取值区间
 * @rules KMeans 簇数 min(5, N/3)，初始中心按分位点取保证确定性；DBSCAN eps 0.5、最少 5 点、样本量不少于 20
 * @dependencies gonum.org/v1/gonum/stat, github.com/spf13/cast
 * @refs engine.go
 */

package rulegen

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cast"
	"gonum.org/v1/gonum/stat"
)

const (
	kmeansMaxClusters   = 5
	kmeansMaxIterations = 100
	dbscanEps           = 0.5
	dbscanMinSamples    = 5
	dbscanMinPoints     = 20
)

// standardize 标准化为零均值单位方差，std 为 0 时返回原值副本
func standardize(values []float64) ([]float64, float64, float64) {
	mean, std := stat.MeanStdDev(values, nil)
	out := make([]float64, len(values))
	if std == 0 {
		copy(out, values)
		return out, mean, std
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out, mean, std
}

// generateKMeansRule KMeans 聚类规则，各簇输出原始量纲的取值区间
func (e *Engine) generateKMeansRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < 2 {
		return nil, fmt.Errorf("字段 %s 有效数值不足，无法生成KMeans聚类规则", req.Field)
	}

	nClusters := len(values) / 3
	if nClusters > kmeansMaxClusters {
		nClusters = kmeansMaxClusters
	}
	if nClusters < 1 {
		nClusters = 1
	}
	if v, ok := req.Options["n_clusters"]; ok {
		if parsed := cast.ToInt(v); parsed > 0 && parsed <= len(values) {
			nClusters = parsed
		}
	}

	scaled, _, _ := standardize(values)
	assignments := kmeans1D(scaled, nClusters)

	clusters := make([]map[string]interface{}, 0, nClusters)
	for c := 0; c < nClusters; c++ {
		var members []float64
		for i, a := range assignments {
			if a == c {
				members = append(members, values[i])
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.Float64s(members)
		clusters = append(clusters, map[string]interface{}{
			"center":    stat.Mean(members, nil),
			"min_value": members[0],
			"max_value": members[len(members)-1],
			"count":     len(members),
		})
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"n_clusters": nClusters,
			"clusters":   clusters,
		},
	}, nil
}

// kmeans1D 一维 Lloyd 迭代，初始中心取等距分位点保证结果可复现
func kmeans1D(values []float64, k int) []int {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	centers := make([]float64, k)
	for i := 0; i < k; i++ {
		p := (float64(i) + 0.5) / float64(k)
		centers[i] = quantile(sorted, p)
	}

	assignments := make([]int, len(values))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, v := range values {
			best, bestDist := 0, math.Inf(1)
			for c, center := range centers {
				if d := math.Abs(v - center); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, v := range values {
			sums[assignments[i]] += v
			counts[assignments[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				centers[c] = sums[c] / float64(counts[c])
			}
		}
		if !changed {
			break
		}
	}
	return assignments
}

// generateDBSCANRule DBSCAN 聚类规则，噪声占比一并输出
func (e *Engine) generateDBSCANRule(req Request) (*Rule, error) {
	values := numericValues(req.Rows, req.Field)
	if len(values) < dbscanMinPoints {
		return nil, fmt.Errorf("字段 %s 有效数值不足 %d 个，无法生成DBSCAN聚类规则", req.Field, dbscanMinPoints)
	}

	eps := dbscanEps
	if v, ok := req.Options["eps"]; ok {
		if parsed := cast.ToFloat64(v); parsed > 0 {
			eps = parsed
		}
	}
	minSamples := dbscanMinSamples
	if v, ok := req.Options["min_samples"]; ok {
		if parsed := cast.ToInt(v); parsed > 0 {
			minSamples = parsed
		}
	}

	scaled, _, _ := standardize(values)
	labels := dbscan1D(scaled, eps, minSamples)

	byLabel := make(map[int][]float64)
	noise := 0
	for i, label := range labels {
		if label < 0 {
			noise++
			continue
		}
		byLabel[label] = append(byLabel[label], values[i])
	}
	labelIDs := make([]int, 0, len(byLabel))
	for id := range byLabel {
		labelIDs = append(labelIDs, id)
	}
	sort.Ints(labelIDs)

	clusters := make([]map[string]interface{}, 0, len(byLabel))
	for _, id := range labelIDs {
		members := byLabel[id]
		sort.Float64s(members)
		clusters = append(clusters, map[string]interface{}{
			"min_value": members[0],
			"max_value": members[len(members)-1],
			"count":     len(members),
		})
	}
	if len(clusters) == 0 {
		return nil, fmt.Errorf("字段 %s 的DBSCAN聚类未产生有效簇", req.Field)
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"eps":         eps,
			"min_samples": minSamples,
			"clusters":    clusters,
			"noise_ratio": float64(noise) / float64(len(values)),
		},
	}, nil
}

// dbscan1D 一维 DBSCAN，返回簇标签，噪声点标签为 -1
func dbscan1D(values []float64, eps float64, minSamples int) []int {
	n := len(values)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -2 // 未访问
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if math.Abs(values[i]-values[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != -2 {
			continue
		}
		nbs := neighbors(i)
		if len(nbs) < minSamples {
			labels[i] = -1
			continue
		}
		labels[i] = cluster
		queue := append([]int{}, nbs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == -1 {
				labels[j] = cluster
			}
			if labels[j] != -2 {
				continue
			}
			labels[j] = cluster
			jnbs := neighbors(j)
			if len(jnbs) >= minSamples {
				queue = append(queue, jnbs...)
			}
		}
		cluster++
	}
	return labels
}

// generateGroupRangeRule 分组极值区间规则，按分组字段输出各组取值范围
func (e *Engine) generateGroupRangeRule(req Request) (*Rule, error) {
	if req.GroupField == "" {
		return nil, fmt.Errorf("分组区间规则必须指定分组字段")
	}

	grouped := make(map[string][]float64)
	for _, row := range req.Rows {
		groupRaw, ok := row[req.GroupField]
		if !ok || groupRaw == nil {
			continue
		}
		value, err := cast.ToFloat64E(row[req.Field])
		if err != nil {
			continue
		}
		group := cast.ToString(groupRaw)
		grouped[group] = append(grouped[group], value)
	}
	if len(grouped) == 0 {
		return nil, fmt.Errorf("字段 %s 按 %s 分组后无有效数据", req.Field, req.GroupField)
	}

	groups := make(map[string]interface{}, len(grouped))
	for name, values := range grouped {
		sort.Float64s(values)
		groups[name] = map[string]interface{}{
			"min_value": values[0],
			"max_value": values[len(values)-1],
			"count":     len(values),
		}
	}

	return &Rule{
		RuleType: req.RuleType,
		Field:    req.Field,
		Params: map[string]interface{}{
			"group_field": req.GroupField,
			"groups":      groups,
		},
	}, nil
}
