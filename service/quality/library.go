/*
 * @module service/quality/library
 * @description 规则库管理：创建（支持强制替换与复活）、current 版本规则保存与读取
 * @architecture 业务逻辑层 - 规则库
 * @stateFlow 规则生成 -> SaveCurrentRules 清理历史版本 -> 校验按 current 版本加载
 * @rules 同名规则库唯一；force_replace 硬删除旧库；保存 current 前删除该库全部版本
 * @dependencies gorm.io/gorm, geodata-quality-service/service/models
 * @refs service.go, service/rulegen/
 */

package quality

import (
	"fmt"

	"geodata-quality-service/service/meta"
	"geodata-quality-service/service/models"

	"gorm.io/gorm"
)

// LibraryService 规则库管理服务
type LibraryService struct {
	db *gorm.DB
}

// NewLibraryService 创建规则库管理服务
func NewLibraryService(db *gorm.DB) *LibraryService {
	return &LibraryService{db: db}
}

// CreateLibrary 创建规则库
// 同名库已存在时：forceReplace 硬删除重建；旧库未启用则复活；否则报错
func (s *LibraryService) CreateLibrary(name, description string, forceReplace bool) (*models.RuleLibrary, error) {
	var existing models.RuleLibrary
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		switch {
		case forceReplace:
			if err := s.deleteLibraryTx(existing.ID); err != nil {
				return nil, err
			}
		case !existing.IsActive:
			existing.IsActive = true
			existing.Description = description
			if err := s.db.Save(&existing).Error; err != nil {
				return nil, fmt.Errorf("复活规则库失败: %w", err)
			}
			return &existing, nil
		default:
			return nil, fmt.Errorf("规则库 %s 已存在", name)
		}
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("查询规则库失败: %w", err)
	}

	library := &models.RuleLibrary{Name: name, Description: description, IsActive: true}
	if err := s.db.Create(library).Error; err != nil {
		return nil, fmt.Errorf("创建规则库失败: %w", err)
	}
	return library, nil
}

// GetLibrary 按 ID 查询规则库
func (s *LibraryService) GetLibrary(id string) (*models.RuleLibrary, error) {
	var library models.RuleLibrary
	if err := s.db.First(&library, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("规则库 %s 不存在: %w", id, err)
	}
	return &library, nil
}

// ListLibraries 列出启用的规则库
func (s *LibraryService) ListLibraries() ([]models.RuleLibrary, error) {
	var list []models.RuleLibrary
	if err := s.db.Where("is_active = ?", true).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询规则库列表失败: %w", err)
	}
	return list, nil
}

// DeleteLibrary 删除规则库及其全部版本
func (s *LibraryService) DeleteLibrary(id string) error {
	return s.deleteLibraryTx(id)
}

func (s *LibraryService) deleteLibraryTx(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("library_id = ?", id).Delete(&models.RuleVersion{}).Error; err != nil {
			return fmt.Errorf("删除规则版本失败: %w", err)
		}
		if err := tx.Delete(&models.RuleLibrary{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("删除规则库失败: %w", err)
		}
		return nil
	})
}

// SaveCurrentRules 保存规则库的 current 版本
// 先删除该库全部历史版本，current 始终唯一
func (s *LibraryService) SaveCurrentRules(libraryID string, rules models.JSONBArray, description string) (*models.RuleVersion, error) {
	if _, err := s.GetLibrary(libraryID); err != nil {
		return nil, err
	}

	version := &models.RuleVersion{
		LibraryID:   libraryID,
		Version:     meta.RuleVersionCurrent,
		Rules:       rules,
		Description: description,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("library_id = ?", libraryID).Delete(&models.RuleVersion{}).Error; err != nil {
			return err
		}
		return tx.Create(version).Error
	})
	if err != nil {
		return nil, fmt.Errorf("保存规则失败: %w", err)
	}
	return version, nil
}

// GetCurrentRules 读取规则库 current 版本的规则
func (s *LibraryService) GetCurrentRules(libraryID string) (models.JSONBArray, error) {
	var version models.RuleVersion
	err := s.db.Where("library_id = ? AND version = ?", libraryID, meta.RuleVersionCurrent).
		First(&version).Error
	if err != nil {
		return nil, fmt.Errorf("规则库 %s 无 current 版本规则: %w", libraryID, err)
	}
	return version.Rules, nil
}
