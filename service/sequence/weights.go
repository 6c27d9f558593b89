/*
 * @module service/sequence/weights
 * @description LSTM 权重文件加载与形状校验，权重为 JSON 导出格式
 * @architecture 业务逻辑层 - 序列异常检测
 * @stateFlow 读取权重文件 -> 形状与模型配置比对 -> 构造推理网络
 * @rules 门顺序 i/f/g/o，与训练端导出约定一致；形状不符直接报错
 * @dependencies encoding/json
 * @refs lstm.go, service.go
 */

package sequence

import (
	"encoding/json"
	"fmt"
	"os"

	"geodata-quality-service/service/models"
)

// LayerWeights 单层 LSTM 权重
type LayerWeights struct {
	WIh [][]float64 `json:"w_ih"` // [4H, input]
	WHh [][]float64 `json:"w_hh"` // [4H, H]
	BIh []float64   `json:"b_ih"` // [4H]
	BHh []float64   `json:"b_hh"` // [4H]
}

// FCWeights 输出层权重
type FCWeights struct {
	Weight [][]float64 `json:"weight"` // [classes, H]
	Bias   []float64   `json:"bias"`   // [classes]
}

// Weights 完整网络权重
type Weights struct {
	Layers []LayerWeights `json:"layers"`
	FC     FCWeights      `json:"fc"`
}

// LoadWeights 从 JSON 权重文件加载
func LoadWeights(path string) (*Weights, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取权重文件失败: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("解析权重文件失败: %w", err)
	}
	if len(w.Layers) == 0 {
		return nil, fmt.Errorf("权重文件不含LSTM层")
	}
	return &w, nil
}

// Validate 按模型配置校验权重形状
func (w *Weights) Validate(cfg *models.LSTMAnomalyModel) error {
	// 前向推理只实现单向 LSTM，双向配置直接拒绝
	if cfg.Bidirectional {
		return fmt.Errorf("模型 %s 配置为双向 LSTM，当前推理仅支持单向", cfg.Name)
	}
	if len(w.Layers) != cfg.NumLayers {
		return fmt.Errorf("权重层数 %d 与配置 %d 不一致", len(w.Layers), cfg.NumLayers)
	}
	hidden := cfg.HiddenSize
	for i, layer := range w.Layers {
		expectedInput := cfg.InputSize
		if i > 0 {
			expectedInput = hidden
		}
		if len(layer.WIh) != 4*hidden {
			return fmt.Errorf("第 %d 层 w_ih 行数 %d 应为 %d", i, len(layer.WIh), 4*hidden)
		}
		if len(layer.WIh) > 0 && len(layer.WIh[0]) != expectedInput {
			return fmt.Errorf("第 %d 层 w_ih 列数 %d 应为 %d", i, len(layer.WIh[0]), expectedInput)
		}
		if len(layer.WHh) != 4*hidden {
			return fmt.Errorf("第 %d 层 w_hh 行数 %d 应为 %d", i, len(layer.WHh), 4*hidden)
		}
		if len(layer.WHh) > 0 && len(layer.WHh[0]) != hidden {
			return fmt.Errorf("第 %d 层 w_hh 列数 %d 应为 %d", i, len(layer.WHh[0]), hidden)
		}
		if len(layer.BIh) != 4*hidden || len(layer.BHh) != 4*hidden {
			return fmt.Errorf("第 %d 层偏置长度应为 %d", i, 4*hidden)
		}
	}
	if len(w.FC.Weight) != cfg.NumClasses {
		return fmt.Errorf("输出层行数 %d 应为 %d", len(w.FC.Weight), cfg.NumClasses)
	}
	if len(w.FC.Weight) > 0 && len(w.FC.Weight[0]) != hidden {
		return fmt.Errorf("输出层列数 %d 应为 %d", len(w.FC.Weight[0]), hidden)
	}
	if len(w.FC.Bias) != cfg.NumClasses {
		return fmt.Errorf("输出层偏置长度 %d 应为 %d", len(w.FC.Bias), cfg.NumClasses)
	}
	return nil
}
