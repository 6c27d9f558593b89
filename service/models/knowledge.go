/*
 * @module service/models/knowledge
 * @description 文本质检知识库模型，条目来源于知识库工作簿
 * @architecture 数据模型层
 * @stateFlow 工作簿导入 -> 条目入库 -> 文本质检提示词引用
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/textquality/knowledge.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeBase 知识库模型
type KnowledgeBase struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	FilePath    string    `gorm:"type:varchar(500)" json:"file_path"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedBy   string    `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Entries []KnowledgeBaseEntry `gorm:"foreignKey:KnowledgeBaseID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
}

// TableName 指定表名
func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

// BeforeCreate 创建前钩子
func (k *KnowledgeBase) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedBy == "" {
		k.CreatedBy = "system"
	}
	return nil
}

// KnowledgeBaseEntry 知识库条目，对应工作簿中的一行质量规范
type KnowledgeBaseEntry struct {
	ID                 string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	KnowledgeBaseID    string    `gorm:"type:varchar(50);not null;index" json:"knowledge_base_id"`
	Category           string    `gorm:"type:varchar(100);not null" json:"category"`
	Variable           string    `gorm:"type:varchar(100);not null" json:"variable"`
	QualityDescription string    `gorm:"type:text;not null" json:"quality_description"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName 指定表名
func (KnowledgeBaseEntry) TableName() string {
	return "knowledge_base_entries"
}

// BeforeCreate 创建前钩子
func (k *KnowledgeBaseEntry) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	return nil
}
