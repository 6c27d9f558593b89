/*
 * @module service/modelconfig/service
 * @description 模型配置与训练历史管理：配置及参数 CRUD、状态流转、训练记录追加与查询
 * @architecture 业务逻辑层 - 模型配置管理
 * @stateFlow 配置草稿 -> 启用 -> 训练 -> 归档；训练历史只追加
 * @rules 配置与参数同事务写入；参数值按声明类型与取值范围校验
 * @dependencies gorm.io/gorm, github.com/spf13/cast
 * @refs service/models/model_config.go, service/sequence/
 */

package modelconfig

import (
	"fmt"

	"geodata-quality-service/service/models"

	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// 配置状态流转集合
var validStatuses = map[string]bool{
	"draft":    true,
	"active":   true,
	"training": true,
	"deployed": true,
	"archived": true,
}

// Service 模型配置管理服务
type Service struct {
	db *gorm.DB
}

// NewService 创建模型配置管理服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateConfig 创建模型配置及其参数
func (s *Service) CreateConfig(config *models.ModelConfig) error {
	if config.Name == "" {
		return fmt.Errorf("模型配置名称不能为空")
	}
	for i := range config.Parameters {
		if err := validateParameter(&config.Parameters[i]); err != nil {
			return err
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(config).Error
	})
}

// GetConfig 查询模型配置，附带参数列表
func (s *Service) GetConfig(id string) (*models.ModelConfig, error) {
	var config models.ModelConfig
	err := s.db.Preload("Parameters").First(&config, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("模型配置 %s 不存在: %w", id, err)
	}
	return &config, nil
}

// ListConfigs 按类型查询模型配置
func (s *Service) ListConfigs(modelType string) ([]models.ModelConfig, error) {
	query := s.db.Preload("Parameters").Order("created_at DESC")
	if modelType != "" {
		query = query.Where("model_type = ?", modelType)
	}
	var configs []models.ModelConfig
	err := query.Find(&configs).Error
	return configs, err
}

// UpdateConfig 更新模型配置基本信息
func (s *Service) UpdateConfig(id string, updates map[string]interface{}) (*models.ModelConfig, error) {
	if status, ok := updates["status"]; ok {
		if !validStatuses[cast.ToString(status)] {
			return nil, fmt.Errorf("无效的配置状态: %v", status)
		}
	}
	config, err := s.GetConfig(id)
	if err != nil {
		return nil, err
	}
	err = s.db.Model(config).Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("更新模型配置失败: %w", err)
	}
	return s.GetConfig(id)
}

// DeleteConfig 删除模型配置，级联删除参数
func (s *Service) DeleteConfig(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", id).Delete(&models.ModelParameter{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ModelConfig{}, "id = ?", id).Error
	})
}

// SetParameter 新增或更新配置参数
func (s *Service) SetParameter(configID string, param *models.ModelParameter) error {
	param.ConfigID = configID
	if err := validateParameter(param); err != nil {
		return err
	}
	var existing models.ModelParameter
	err := s.db.Where("config_id = ? AND param_name = ?", configID, param.ParamName).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(param).Error
	}
	if err != nil {
		return err
	}
	param.ID = existing.ID
	return s.db.Save(param).Error
}

func validateParameter(param *models.ModelParameter) error {
	if param.ParamName == "" {
		return fmt.Errorf("参数名不能为空")
	}
	switch param.ParamType {
	case "int":
		v, err := cast.ToInt64E(param.ParamValue)
		if err != nil {
			return fmt.Errorf("参数 %s 的值 %s 不是整数", param.ParamName, param.ParamValue)
		}
		return checkRange(param, float64(v))
	case "float":
		v, err := cast.ToFloat64E(param.ParamValue)
		if err != nil {
			return fmt.Errorf("参数 %s 的值 %s 不是浮点数", param.ParamName, param.ParamValue)
		}
		return checkRange(param, v)
	case "bool":
		if _, err := cast.ToBoolE(param.ParamValue); err != nil {
			return fmt.Errorf("参数 %s 的值 %s 不是布尔值", param.ParamName, param.ParamValue)
		}
	case "string":
	default:
		return fmt.Errorf("不支持的参数类型: %s", param.ParamType)
	}
	return nil
}

func checkRange(param *models.ModelParameter, v float64) error {
	if param.MinValue != nil && v < *param.MinValue {
		return fmt.Errorf("参数 %s 的值 %v 小于最小值 %v", param.ParamName, v, *param.MinValue)
	}
	if param.MaxValue != nil && v > *param.MaxValue {
		return fmt.Errorf("参数 %s 的值 %v 大于最大值 %v", param.ParamName, v, *param.MaxValue)
	}
	return nil
}

// RecordTraining 追加一条训练历史记录
func (s *Service) RecordTraining(history *models.TrainingHistory) error {
	if history.ModelName == "" || history.Algorithm == "" {
		return fmt.Errorf("训练记录的模型名与算法不能为空")
	}
	if len(history.FeatureColumns) == 0 {
		return fmt.Errorf("训练记录缺少特征列")
	}
	return s.db.Create(history).Error
}

// ListTrainingHistory 查询训练历史，支持按模型类型过滤
func (s *Service) ListTrainingHistory(modelType string, limit int) ([]models.TrainingHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.Order("created_at DESC").Limit(limit)
	if modelType != "" {
		query = query.Where("model_type = ?", modelType)
	}
	var histories []models.TrainingHistory
	err := query.Find(&histories).Error
	return histories, err
}

// GetTrainingHistory 查询单条训练历史
func (s *Service) GetTrainingHistory(id string) (*models.TrainingHistory, error) {
	var history models.TrainingHistory
	err := s.db.First(&history, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("训练记录 %s 不存在: %w", id, err)
	}
	return &history, nil
}

// DeleteTrainingHistory 删除训练历史记录
func (s *Service) DeleteTrainingHistory(id string) error {
	return s.db.Delete(&models.TrainingHistory{}, "id = ?", id).Error
}
