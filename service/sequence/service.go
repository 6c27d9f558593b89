/*
 * @module service/sequence/service
 * @description 序列异常检测服务：滑动窗口构造、按模型类型分发推理、模型配置管理
 * @architecture 业务逻辑层 - 序列异常检测
 * @stateFlow 缺失预检 -> 加载模型配置与权重 -> 逐时刻滑窗 -> 阈值/argmax 判定 -> 合并输出异常标记
 * @rules 窗口左侧用窗内首值填充；depth/arc/generic 走阈值判定，wid/sns 走 argmax；sns 双序列输入
 * @dependencies gorm.io/gorm, geodata-quality-service/service/models
 * @refs lstm.go, weights.go
 */

package sequence

import (
	"fmt"
	"sync"

	"geodata-quality-service/service/meta"
	"geodata-quality-service/service/models"

	"gorm.io/gorm"
)

// PredictResult 序列推理结果，逐点对齐输入序列
type PredictResult struct {
	Flags         []bool    `json:"flags"`
	Probabilities []float64 `json:"probabilities"` // 异常类（类别1）概率
	AnomalyCount  int       `json:"anomaly_count"`
}

// Service 序列异常检测服务
type Service struct {
	db *gorm.DB

	mu       sync.Mutex
	networks map[string]*Network // model_path -> 已加载网络
}

// NewService 创建序列异常检测服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, networks: make(map[string]*Network)}
}

// BuildWindows 为每个时刻构造长度 w 的滑动窗口
// 窗口取 [max(0, i-w+1), i]，不足 w 时左侧用窗内首值填充
func BuildWindows(values []float64, w int) [][]float64 {
	windows := make([][]float64, 0, len(values))
	for i := range values {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		window := make([]float64, 0, w)
		for pad := w - (i - start + 1); pad > 0; pad-- {
			window = append(window, values[start])
		}
		window = append(window, values[start:i+1]...)
		windows = append(windows, window)
	}
	return windows
}

// Predict 按模型配置执行序列推理
// secondary 仅 sns 类模型需要，长度必须与 primary 一致
func (s *Service) Predict(cfg *models.LSTMAnomalyModel, primary, secondary []float64) (*PredictResult, error) {
	if len(primary) == 0 {
		return nil, fmt.Errorf("输入序列为空")
	}
	network, err := s.networkFor(cfg)
	if err != nil {
		return nil, err
	}

	useThreshold := false
	switch cfg.ModelType {
	case meta.SequenceModelDepth, meta.SequenceModelArc, meta.SequenceModelGeneric:
		useThreshold = true
	case meta.SequenceModelWid, meta.SequenceModelSns:
		useThreshold = false
	default:
		return nil, fmt.Errorf("未知的序列模型类型: %s", cfg.ModelType)
	}

	var inputs [][][]float64
	if cfg.ModelType == meta.SequenceModelSns {
		if len(secondary) != len(primary) {
			return nil, fmt.Errorf("sns模型双序列长度不一致: %d/%d", len(primary), len(secondary))
		}
		if cfg.InputSize != 2 {
			return nil, fmt.Errorf("sns模型输入维度应为2，当前为%d", cfg.InputSize)
		}
		inputs = buildDualInputs(primary, secondary, cfg.SequenceLength)
	} else {
		inputs = buildSingleInputs(primary, cfg.SequenceLength)
	}

	result := &PredictResult{
		Flags:         make([]bool, len(inputs)),
		Probabilities: make([]float64, len(inputs)),
	}
	for i, seq := range inputs {
		logits, err := network.Forward(seq)
		if err != nil {
			return nil, err
		}
		probs := Softmax(logits)
		p1 := 0.0
		if len(probs) > 1 {
			p1 = probs[1]
		}
		result.Probabilities[i] = p1

		if useThreshold {
			result.Flags[i] = p1 > cfg.Threshold
		} else {
			best := 0
			for c := 1; c < len(probs); c++ {
				if probs[c] > probs[best] {
					best = c
				}
			}
			result.Flags[i] = best == 1
		}
		if result.Flags[i] {
			result.AnomalyCount++
		}
	}
	return result, nil
}

// PointVerdict 逐点判定，预检标记与模型推理结果按原序合并
type PointVerdict struct {
	Index       int     `json:"index"`
	Value       float64 `json:"value"`
	Anomaly     bool    `json:"anomaly"`
	Missing     bool    `json:"missing"`
	Probability float64 `json:"probability"`
	Message     string  `json:"message,omitempty"`
}

// Detect 带缺失预检的序列推理
// 值缺失或为 0 的点不进模型，直接标记为数据缺失异常；
// 其余点送入模型推理，结果按原始下标顺序合并
func (s *Service) Detect(cfg *models.LSTMAnomalyModel, primary, secondary []*float64) ([]PointVerdict, error) {
	if len(primary) == 0 {
		return nil, fmt.Errorf("输入序列为空")
	}
	isSns := cfg.ModelType == meta.SequenceModelSns
	if isSns && len(secondary) != len(primary) {
		return nil, fmt.Errorf("sns模型双序列长度不一致: %d/%d", len(primary), len(secondary))
	}

	verdicts := make([]PointVerdict, len(primary))
	cleanIdx := make([]int, 0, len(primary))
	cleanPrimary := make([]float64, 0, len(primary))
	cleanSecondary := make([]float64, 0, len(primary))
	for i, v := range primary {
		missing := v == nil || *v == 0
		if isSns && !missing {
			missing = secondary[i] == nil || *secondary[i] == 0
		}
		if missing {
			value := 0.0
			if v != nil {
				value = *v
			}
			verdicts[i] = PointVerdict{Index: i, Value: value, Anomaly: true, Missing: true, Message: "数据缺失"}
			continue
		}
		verdicts[i] = PointVerdict{Index: i, Value: *v}
		cleanIdx = append(cleanIdx, i)
		cleanPrimary = append(cleanPrimary, *v)
		if isSns {
			cleanSecondary = append(cleanSecondary, *secondary[i])
		}
	}

	if len(cleanPrimary) > 0 {
		result, err := s.Predict(cfg, cleanPrimary, cleanSecondary)
		if err != nil {
			return nil, err
		}
		for pos, idx := range cleanIdx {
			verdicts[idx].Anomaly = result.Flags[pos]
			verdicts[idx].Probability = result.Probabilities[pos]
		}
	}
	return verdicts, nil
}

// buildSingleInputs 单序列输入，形状 [T][W][1]
func buildSingleInputs(values []float64, w int) [][][]float64 {
	windows := BuildWindows(values, w)
	inputs := make([][][]float64, len(windows))
	for i, window := range windows {
		seq := make([][]float64, len(window))
		for t, v := range window {
			seq[t] = []float64{v}
		}
		inputs[i] = seq
	}
	return inputs
}

// buildDualInputs 双序列对齐堆叠，形状 [T][W][2]
func buildDualInputs(primary, secondary []float64, w int) [][][]float64 {
	w1 := BuildWindows(primary, w)
	w2 := BuildWindows(secondary, w)
	inputs := make([][][]float64, len(w1))
	for i := range w1 {
		seq := make([][]float64, len(w1[i]))
		for t := range w1[i] {
			seq[t] = []float64{w1[i][t], w2[i][t]}
		}
		inputs[i] = seq
	}
	return inputs
}

// networkFor 获取模型权重网络，按权重路径缓存
func (s *Service) networkFor(cfg *models.LSTMAnomalyModel) (*Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if network, ok := s.networks[cfg.ModelPath]; ok {
		return network, nil
	}
	weights, err := LoadWeights(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if err := weights.Validate(cfg); err != nil {
		return nil, fmt.Errorf("权重与模型配置不符: %w", err)
	}
	network, err := NewNetwork(weights)
	if err != nil {
		return nil, err
	}
	s.networks[cfg.ModelPath] = network
	return network, nil
}

// CreateModel 注册模型配置
func (s *Service) CreateModel(cfg *models.LSTMAnomalyModel) error {
	if err := s.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("创建序列模型配置失败: %w", err)
	}
	return nil
}

// UpdateModel 更新模型配置并失效权重缓存
func (s *Service) UpdateModel(cfg *models.LSTMAnomalyModel) error {
	if err := s.db.Save(cfg).Error; err != nil {
		return fmt.Errorf("更新序列模型配置失败: %w", err)
	}
	s.mu.Lock()
	delete(s.networks, cfg.ModelPath)
	s.mu.Unlock()
	return nil
}

// DeleteModel 删除模型配置
func (s *Service) DeleteModel(id string) error {
	if err := s.db.Delete(&models.LSTMAnomalyModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("删除序列模型配置失败: %w", err)
	}
	return nil
}

// GetModel 查询模型配置
func (s *Service) GetModel(id string) (*models.LSTMAnomalyModel, error) {
	var cfg models.LSTMAnomalyModel
	if err := s.db.First(&cfg, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("序列模型配置 %s 不存在: %w", id, err)
	}
	return &cfg, nil
}

// ListModels 列出启用的模型配置
func (s *Service) ListModels() ([]models.LSTMAnomalyModel, error) {
	var list []models.LSTMAnomalyModel
	if err := s.db.Where("is_active = ?", true).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询序列模型配置失败: %w", err)
	}
	return list, nil
}
