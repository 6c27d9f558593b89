/*
 * @module service/datasource/anomaly
 * @description 位号时序异常检测：数据丢失、数据断流、滚动 Z 分数异常
 * @architecture 数据访问层 - 时序分析
 * @stateFlow 时序取数 -> 间隔/停滞/Z 分数扫描 -> 异常清单与图表数据
 * @rules 三类异常类型名称固定：数据丢失、数据断流、数据异常
 * @dependencies gonum.org/v1/gonum/stat
 * @refs dal.go, realtime.go
 */

package datasource

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// 异常类型
const (
	AnomalyTypeGap        = "数据丢失"
	AnomalyTypeStagnation = "数据断流"
	AnomalyTypeOutlier    = "数据异常"
)

// AnomalyOptions 异常检测参数
type AnomalyOptions struct {
	GapThreshold     time.Duration // 相邻点间隔超过该值判定数据丢失
	StagnationWindow time.Duration // 值恒定持续超过该窗口判定数据断流
	ZScoreWindow     int           // 滚动 Z 分数窗口长度
	ZScoreThreshold  float64       // Z 分数绝对值阈值
}

// DefaultAnomalyOptions 默认检测参数
func DefaultAnomalyOptions() AnomalyOptions {
	return AnomalyOptions{
		GapThreshold:     60 * time.Second,
		StagnationWindow: 300 * time.Second,
		ZScoreWindow:     50,
		ZScoreThreshold:  2.0,
	}
}

// TagAnomaly 单条异常记录
type TagAnomaly struct {
	Type      string    `json:"type"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Index     int       `json:"index"`
	Value     float64   `json:"value"`
	Message   string    `json:"message"`
}

// AnomalyReport 异常检测报告
type AnomalyReport struct {
	Anomalies []TagAnomaly   `json:"anomalies"`
	ChartData []TagPoint     `json:"chart_data"`
	Summary   map[string]int `json:"summary"`
}

// DetectTagAnomalies 对时序数据执行三类异常扫描
func DetectTagAnomalies(points []TagPoint, opts AnomalyOptions) *AnomalyReport {
	report := &AnomalyReport{
		Anomalies: make([]TagAnomaly, 0),
		ChartData: points,
		Summary:   map[string]int{},
	}
	if len(points) < 2 {
		return report
	}

	detectGaps(points, opts, report)
	detectStagnation(points, opts, report)
	detectZScoreOutliers(points, opts, report)

	for _, a := range report.Anomalies {
		report.Summary[a.Type]++
	}
	return report
}

// detectGaps 相邻点时间间隔扫描
func detectGaps(points []TagPoint, opts AnomalyOptions, report *AnomalyReport) {
	for i := 1; i < len(points); i++ {
		gap := points[i].Time.Sub(points[i-1].Time)
		if gap > opts.GapThreshold {
			report.Anomalies = append(report.Anomalies, TagAnomaly{
				Type:      AnomalyTypeGap,
				StartTime: points[i-1].Time,
				EndTime:   points[i].Time,
				Index:     i,
				Value:     points[i].Value,
				Message:   fmt.Sprintf("相邻数据点间隔%.0f秒，超过阈值%.0f秒", gap.Seconds(), opts.GapThreshold.Seconds()),
			})
		}
	}
}

// detectStagnation 恒定值持续时长扫描
func detectStagnation(points []TagPoint, opts AnomalyOptions, report *AnomalyReport) {
	runStart := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && points[i].Value == points[runStart].Value {
			continue
		}
		duration := points[i-1].Time.Sub(points[runStart].Time)
		if i-runStart >= 2 && duration >= opts.StagnationWindow {
			report.Anomalies = append(report.Anomalies, TagAnomaly{
				Type:      AnomalyTypeStagnation,
				StartTime: points[runStart].Time,
				EndTime:   points[i-1].Time,
				Index:     runStart,
				Value:     points[runStart].Value,
				Message:   fmt.Sprintf("值%.4f持续%.0f秒未变化", points[runStart].Value, duration.Seconds()),
			})
		}
		runStart = i
	}
}

// detectZScoreOutliers 滚动窗口 Z 分数扫描
func detectZScoreOutliers(points []TagPoint, opts AnomalyOptions, report *AnomalyReport) {
	win := opts.ZScoreWindow
	if win < 2 {
		return
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	for i := win; i < len(values); i++ {
		window := values[i-win : i]
		mean, std := stat.MeanStdDev(window, nil)
		if std == 0 {
			continue
		}
		z := (values[i] - mean) / std
		if z > opts.ZScoreThreshold || z < -opts.ZScoreThreshold {
			report.Anomalies = append(report.Anomalies, TagAnomaly{
				Type:      AnomalyTypeOutlier,
				StartTime: points[i].Time,
				EndTime:   points[i].Time,
				Index:     i,
				Value:     points[i].Value,
				Message:   fmt.Sprintf("Z分数%.2f超过阈值%.1f", z, opts.ZScoreThreshold),
			})
		}
	}
}
