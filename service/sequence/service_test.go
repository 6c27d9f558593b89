/*
 * @module service/sequence/service_test
 * @description 序列异常检测单元测试：滑窗构造、权重加载校验、阈值与 argmax 判定
 * @architecture 测试层
 * @dependencies testing, github.com/stretchr/testify
 * @refs service.go, lstm.go, weights.go
 */

package sequence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"geodata-quality-service/service/meta"
	"geodata-quality-service/service/models"
	"geodata-quality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWindows(t *testing.T) {
	windows := BuildWindows([]float64{1, 2, 3}, 5)
	require.Len(t, windows, 3)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, windows[0])
	assert.Equal(t, []float64{1, 1, 1, 1, 2}, windows[1])
	assert.Equal(t, []float64{1, 1, 1, 2, 3}, windows[2])

	// 序列长于窗口时为普通滑窗
	windows = BuildWindows([]float64{1, 2, 3, 4}, 2)
	require.Len(t, windows, 4)
	assert.Equal(t, []float64{1, 1}, windows[0])
	assert.Equal(t, []float64{3, 4}, windows[3])
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{0, 0})
	assert.InDelta(t, 0.5, probs[0], 1e-9)
	assert.InDelta(t, 0.5, probs[1], 1e-9)

	// 大数值不溢出
	probs = Softmax([]float64{1000, 1001})
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], probs[0])
}

// writeTestWeights 生成指定结构的零权重文件，logits 恒等于输出层偏置
func writeTestWeights(t *testing.T, hidden, input, classes int, fcBias []float64) string {
	t.Helper()

	zeroMatrix := func(rows, cols int) [][]float64 {
		m := make([][]float64, rows)
		for i := range m {
			m[i] = make([]float64, cols)
		}
		return m
	}

	w := Weights{
		Layers: []LayerWeights{{
			WIh: zeroMatrix(4*hidden, input),
			WHh: zeroMatrix(4*hidden, hidden),
			BIh: make([]float64, 4*hidden),
			BHh: make([]float64, 4*hidden),
		}},
		FC: FCWeights{
			Weight: zeroMatrix(classes, hidden),
			Bias:   fcBias,
		},
	}

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestLoadWeightsValidate(t *testing.T) {
	path := writeTestWeights(t, 2, 1, 2, []float64{0, 0})
	w, err := LoadWeights(path)
	require.NoError(t, err)

	cfg := &models.LSTMAnomalyModel{
		SequenceLength: 5, InputSize: 1, HiddenSize: 2, NumLayers: 1, NumClasses: 2,
	}
	assert.NoError(t, w.Validate(cfg))

	// 配置与权重形状不符
	cfg.HiddenSize = 4
	assert.Error(t, w.Validate(cfg))
	cfg.HiddenSize = 2
	cfg.NumLayers = 2
	assert.Error(t, w.Validate(cfg))

	// 双向配置没有对应的推理实现，应拒绝
	cfg.NumLayers = 1
	cfg.Bidirectional = true
	err = w.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "双向")
}

func TestPredictThresholdVsArgmax(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	// 零权重下 logits 恒为 [0.2, 0]，p1 约 0.45
	path := writeTestWeights(t, 2, 1, 2, []float64{0.2, 0})
	series := []float64{1, 2, 3, 4}

	generic := &models.LSTMAnomalyModel{
		ModelPath: path, ModelType: meta.SequenceModelGeneric,
		SequenceLength: 3, InputSize: 1, HiddenSize: 2, NumLayers: 1, NumClasses: 2,
		Threshold: 0.4,
	}
	result, err := svc.Predict(generic, series, nil)
	require.NoError(t, err)
	require.Len(t, result.Flags, 4)
	// 阈值判定：p1 > 0.4 全部标记异常
	assert.Equal(t, 4, result.AnomalyCount)
	assert.InDelta(t, 0.45, result.Probabilities[0], 0.01)

	wid := &models.LSTMAnomalyModel{
		ModelPath: path, ModelType: meta.SequenceModelWid,
		SequenceLength: 3, InputSize: 1, HiddenSize: 2, NumLayers: 1, NumClasses: 2,
		Threshold: 0.4,
	}
	result, err = svc.Predict(wid, series, nil)
	require.NoError(t, err)
	// argmax 判定：类别0概率更高，全部正常
	assert.Equal(t, 0, result.AnomalyCount)
}

func TestDetectPreflagsMissingValues(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	// FC 偏置使 p1 约 0.45，低于阈值 0.5，模型侧全部判正常
	path := writeTestWeights(t, 2, 1, 2, []float64{0.2, 0})
	cfg := &models.LSTMAnomalyModel{
		ModelPath: path, ModelType: meta.SequenceModelGeneric,
		SequenceLength: 3, InputSize: 1, HiddenSize: 2, NumLayers: 1, NumClasses: 2,
		Threshold: 0.5,
	}

	v1, v3 := 1.5, 2.5
	zero := 0.0
	// 下标1缺失、下标2为0，都不进模型
	series := []*float64{&v1, nil, &zero, &v3}

	verdicts, err := svc.Detect(cfg, series, nil)
	require.NoError(t, err)
	require.Len(t, verdicts, 4)

	assert.False(t, verdicts[0].Anomaly)
	assert.True(t, verdicts[1].Missing)
	assert.True(t, verdicts[1].Anomaly)
	assert.Equal(t, "数据缺失", verdicts[1].Message)
	assert.True(t, verdicts[2].Missing)
	assert.True(t, verdicts[2].Anomaly)
	assert.False(t, verdicts[3].Anomaly)

	// 合并结果保持原始下标顺序
	for i, v := range verdicts {
		assert.Equal(t, i, v.Index)
	}
	assert.InDelta(t, 0.45, verdicts[3].Probability, 0.01)
}

func TestPredictSnsRequiresDualSeries(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	path := writeTestWeights(t, 2, 2, 2, []float64{0, 0})
	cfg := &models.LSTMAnomalyModel{
		ModelPath: path, ModelType: meta.SequenceModelSns,
		SequenceLength: 3, InputSize: 2, HiddenSize: 2, NumLayers: 1, NumClasses: 2,
		Threshold: 0.5,
	}

	// 双序列长度不一致报错
	_, err := svc.Predict(cfg, []float64{1, 2, 3}, []float64{1})
	assert.Error(t, err)

	result, err := svc.Predict(cfg, []float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, err)
	assert.Len(t, result.Flags, 3)
}

func TestModelCRUD(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	cfg := &models.LSTMAnomalyModel{Name: "depth-check", ModelPath: "/models/depth.json", ModelType: meta.SequenceModelDepth}
	require.NoError(t, svc.CreateModel(cfg))
	require.NotEmpty(t, cfg.ID)

	loaded, err := svc.GetModel(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "depth-check", loaded.Name)
	// 默认值由模型钩子与列默认值补齐
	assert.Equal(t, meta.SequenceModelDepth, loaded.ModelType)

	list, err := svc.ListModels()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteModel(cfg.ID))
	_, err = svc.GetModel(cfg.ID)
	assert.Error(t, err)
}
