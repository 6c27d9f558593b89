/*
 * @module service/models/model_config
 * @description 模型配置、模型参数与训练历史记录模型
 * @architecture 数据模型层
 * @stateFlow 配置草稿 -> 启用 -> 训练 -> 归档
 * @rules 训练历史只追加不修改，JSON 负载统一使用 JSONB 列
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/modelconfig/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModelConfig 模型配置
type ModelConfig struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	ModelType   string    `gorm:"type:varchar(50);not null" json:"model_type"` // regression, clustering
	ModelName   string    `gorm:"type:varchar(50);not null" json:"model_name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	Status      string    `gorm:"type:varchar(20);default:draft" json:"status"` // draft, active, training, deployed, archived
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Parameters []ModelParameter `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE" json:"parameters,omitempty"`
}

// TableName 指定表名
func (ModelConfig) TableName() string {
	return "model_configs"
}

// BeforeCreate 创建前钩子
func (m *ModelConfig) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = "draft"
	}
	return nil
}

// ModelParameter 模型参数
type ModelParameter struct {
	ID           string   `gorm:"type:varchar(50);primaryKey" json:"id"`
	ConfigID     string   `gorm:"type:varchar(50);not null;index" json:"config_id"`
	ParamName    string   `gorm:"type:varchar(50);not null" json:"param_name"`
	ParamValue   string   `gorm:"type:varchar(200)" json:"param_value"`
	ParamType    string   `gorm:"type:varchar(20);not null" json:"param_type"` // int, float, string, bool
	Description  string   `gorm:"type:text" json:"description"`
	MinValue     *float64 `json:"min_value,omitempty"`
	MaxValue     *float64 `json:"max_value,omitempty"`
	DefaultValue string   `gorm:"type:varchar(200)" json:"default_value"`
}

// TableName 指定表名
func (ModelParameter) TableName() string {
	return "model_parameters"
}

// BeforeCreate 创建前钩子
func (m *ModelParameter) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TrainingHistory 模型训练历史记录
type TrainingHistory struct {
	ID             string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	ModelName      string           `gorm:"type:varchar(100);not null" json:"model_name"`
	ModelType      string           `gorm:"type:varchar(50);not null" json:"model_type"`
	Algorithm      string           `gorm:"type:varchar(50);not null" json:"algorithm"`
	DataSourceID   string           `gorm:"type:varchar(50);not null" json:"data_source_id"`
	DataTable      string           `gorm:"column:table_name;type:varchar(100);not null" json:"table_name"`
	FeatureColumns JSONBStringArray `gorm:"type:jsonb;not null" json:"feature_columns"`
	TargetColumn   string           `gorm:"type:varchar(100)" json:"target_column"`
	Parameters     JSONB            `gorm:"type:jsonb" json:"parameters"`
	TrainingConfig JSONB            `gorm:"type:jsonb" json:"training_config"`
	Metrics        JSONB            `gorm:"type:jsonb" json:"metrics"`
	DataInfo       JSONB            `gorm:"type:jsonb" json:"data_info"`
	OutlierSummary JSONB            `gorm:"type:jsonb" json:"outlier_summary"`
	OutlierDetails JSONBArray       `gorm:"type:jsonb" json:"outlier_details"`
	VizData        JSONB            `gorm:"type:jsonb" json:"viz_data"`
	Description    string           `gorm:"type:text" json:"description"`
	CreatedBy      string           `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TableName 指定表名
func (TrainingHistory) TableName() string {
	return "training_history"
}

// BeforeCreate 创建前钩子
func (t *TrainingHistory) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedBy == "" {
		t.CreatedBy = "system"
	}
	return nil
}
