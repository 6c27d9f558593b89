/*
 * @module service/models/sequence
 * @description LSTM 序列异常检测模型配置
 * @architecture 数据模型层
 * @stateFlow 模型注册 -> 权重文件加载 -> 序列推理
 * @rules model_type 取值 wid/depth/sns/arc/generic，决定推理分支
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/sequence/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LSTMAnomalyModel LSTM 异常检测模型配置
type LSTMAnomalyModel struct {
	ID             string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(100);not null" json:"name"`
	ModelPath      string    `gorm:"type:varchar(300);not null" json:"model_path"`
	SequenceLength int       `gorm:"default:20" json:"sequence_length"`
	InputSize      int       `gorm:"default:1" json:"input_size"`
	HiddenSize     int       `gorm:"default:64" json:"hidden_size"`
	NumLayers      int       `gorm:"default:2" json:"num_layers"`
	NumClasses     int       `gorm:"default:2" json:"num_classes"`
	Dropout        float64   `gorm:"default:0" json:"dropout"`
	Bidirectional  bool      `gorm:"default:false" json:"bidirectional"`
	Threshold      float64   `gorm:"default:0.5" json:"threshold"`
	ModelType      string    `gorm:"type:varchar(20);default:generic" json:"model_type"` // wid, depth, sns, arc, generic
	Description    string    `gorm:"type:text" json:"description"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (LSTMAnomalyModel) TableName() string {
	return "lstm_anomaly_models"
}

// BeforeCreate 创建前钩子
func (m *LSTMAnomalyModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ModelType == "" {
		m.ModelType = "generic"
	}
	return nil
}
