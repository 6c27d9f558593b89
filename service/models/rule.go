/*
 * @module service/models/rule
 * @description 规则库与规则版本模型，规则内容以 JSONB 数组存储
 * @architecture 数据模型层
 * @stateFlow 规则生成 -> 保存为版本 -> 校验引擎按 current 版本加载
 * @rules 同一规则库下 current 版本唯一，保存时清理历史版本
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/quality/library.go, service/rulegen/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleLibrary 规则库模型
type RuleLibrary struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Versions []RuleVersion `gorm:"foreignKey:LibraryID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

// TableName 指定表名
func (RuleLibrary) TableName() string {
	return "rule_libraries"
}

// BeforeCreate 创建前钩子
func (r *RuleLibrary) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// RuleVersion 规则版本模型，Rules 字段存储该版本下全部规则定义
type RuleVersion struct {
	ID          string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	LibraryID   string     `gorm:"type:varchar(50);not null;index" json:"library_id"`
	Version     string     `gorm:"type:varchar(20);not null" json:"version"`
	Rules       JSONBArray `gorm:"type:jsonb;not null" json:"rules"`
	Description string     `gorm:"type:text" json:"description"`
	CreatedBy   string     `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName 指定表名
func (RuleVersion) TableName() string {
	return "rule_versions"
}

// BeforeCreate 创建前钩子
func (r *RuleVersion) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedBy == "" {
		r.CreatedBy = "system"
	}
	return nil
}

// RuleCount 返回版本内规则数量
func (r *RuleVersion) RuleCount() int {
	return len(r.Rules)
}
