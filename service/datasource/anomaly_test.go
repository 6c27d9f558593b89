package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesAt(base time.Time, interval time.Duration, values []float64) []TagPoint {
	points := make([]TagPoint, len(values))
	for i, v := range values {
		points[i] = TagPoint{Time: base.Add(time.Duration(i) * interval), Value: v}
	}
	return points
}

func TestDetectGaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	points := []TagPoint{
		{Time: base, Value: 1},
		{Time: base.Add(10 * time.Second), Value: 2},
		{Time: base.Add(200 * time.Second), Value: 3}, // 190秒间隔
	}

	report := DetectTagAnomalies(points, DefaultAnomalyOptions())
	require.Equal(t, 1, report.Summary[AnomalyTypeGap])

	var gap *TagAnomaly
	for i := range report.Anomalies {
		if report.Anomalies[i].Type == AnomalyTypeGap {
			gap = &report.Anomalies[i]
		}
	}
	require.NotNil(t, gap)
	assert.Equal(t, 2, gap.Index)
	assert.Contains(t, gap.Message, "相邻数据点间隔190秒")
}

func TestDetectStagnation(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// 值 7.5 持续 10 分钟未变化
	values := make([]float64, 21)
	for i := range values {
		values[i] = 7.5
	}
	points := seriesAt(base, 30*time.Second, values)

	report := DetectTagAnomalies(points, DefaultAnomalyOptions())
	require.Equal(t, 1, report.Summary[AnomalyTypeStagnation])
	assert.Equal(t, AnomalyTypeStagnation, report.Anomalies[0].Type)
	assert.Equal(t, 7.5, report.Anomalies[0].Value)
}

func TestDetectZScoreOutliers(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	values := make([]float64, 60)
	for i := range values {
		values[i] = 10 + float64(i%3)*0.1
	}
	values[55] = 100 // 突变点

	opts := DefaultAnomalyOptions()
	opts.GapThreshold = time.Hour // 关闭间隔检测干扰
	points := seriesAt(base, 30*time.Second, values)

	report := DetectTagAnomalies(points, opts)
	require.GreaterOrEqual(t, report.Summary[AnomalyTypeOutlier], 1)

	found := false
	for _, a := range report.Anomalies {
		if a.Type == AnomalyTypeOutlier && a.Index == 55 {
			found = true
			assert.Equal(t, 100.0, a.Value)
		}
	}
	assert.True(t, found)
}

func TestDetectTagAnomaliesShortSeries(t *testing.T) {
	report := DetectTagAnomalies([]TagPoint{{Value: 1}}, DefaultAnomalyOptions())
	assert.Empty(t, report.Anomalies)
	assert.Empty(t, report.Summary)
}
