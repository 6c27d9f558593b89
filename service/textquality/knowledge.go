/*
 * @module service/textquality/knowledge
 * @description 文本质检知识库服务：导入知识库工作簿并按变量检索质量规范
 * @architecture 业务逻辑层 - 知识库
 * @stateFlow 工作簿导入 -> 条目入库 -> 构造提示词时按变量检索
 * @rules 工作簿列头为 Variable / Category / 质量规范描述；同名知识库重复导入时整体替换
 * @dependencies github.com/xuri/excelize/v2, gorm.io/gorm
 * @refs service.go, prompt.go
 */

package textquality

import (
	"fmt"
	"log/slog"
	"strings"

	"geodata-quality-service/service/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// KnowledgeService 知识库服务
type KnowledgeService struct {
	db *gorm.DB
}

// NewKnowledgeService 创建知识库服务
func NewKnowledgeService(db *gorm.DB) *KnowledgeService {
	return &KnowledgeService{db: db}
}

// ImportWorkbook 导入知识库工作簿，同名知识库整体替换
func (k *KnowledgeService) ImportWorkbook(name, path string) (*models.KnowledgeBase, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开知识库工作簿失败: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("知识库工作簿无工作表")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("读取知识库工作簿失败: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("知识库工作簿内容为空")
	}

	varCol, catCol, descCol := -1, -1, -1
	for i, header := range rows[0] {
		h := strings.TrimSpace(header)
		switch {
		case strings.EqualFold(h, "Variable"):
			varCol = i
		case strings.EqualFold(h, "Category"):
			catCol = i
		case strings.Contains(h, "质量规范"):
			descCol = i
		}
	}
	if varCol < 0 || catCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("知识库工作簿缺少必需列: Variable/Category/质量规范描述")
	}

	kb := &models.KnowledgeBase{Name: name, FilePath: path}
	err = k.db.Transaction(func(tx *gorm.DB) error {
		var existing models.KnowledgeBase
		if err := tx.Where("name = ?", name).First(&existing).Error; err == nil {
			if err := tx.Where("knowledge_base_id = ?", existing.ID).
				Delete(&models.KnowledgeBaseEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(kb).Error; err != nil {
			return err
		}
		for _, row := range rows[1:] {
			if len(row) <= varCol || len(row) <= descCol {
				continue
			}
			variable := strings.TrimSpace(row[varCol])
			desc := strings.TrimSpace(row[descCol])
			if variable == "" || desc == "" {
				continue
			}
			category := ""
			if catCol < len(row) {
				category = strings.TrimSpace(row[catCol])
			}
			entry := &models.KnowledgeBaseEntry{
				KnowledgeBaseID:    kb.ID,
				Category:           category,
				Variable:           variable,
				QualityDescription: desc,
			}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("导入知识库失败: %w", err)
	}

	var count int64
	k.db.Model(&models.KnowledgeBaseEntry{}).Where("knowledge_base_id = ?", kb.ID).Count(&count)
	slog.Info("知识库导入完成", "name", name, "entries", count)
	return kb, nil
}

// SpecsFor 按变量名检索质量规范描述，大小写不敏感
func (k *KnowledgeService) SpecsFor(variable string) []string {
	var entries []models.KnowledgeBaseEntry
	k.db.Joins("JOIN knowledge_bases ON knowledge_bases.id = knowledge_base_entries.knowledge_base_id").
		Where("knowledge_bases.is_active = ?", true).
		Where("LOWER(variable) = ?", strings.ToLower(variable)).
		Find(&entries)
	specs := make([]string, 0, len(entries))
	for _, e := range entries {
		specs = append(specs, e.QualityDescription)
	}
	return specs
}

// List 列出知识库
func (k *KnowledgeService) List() ([]models.KnowledgeBase, error) {
	var list []models.KnowledgeBase
	if err := k.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询知识库列表失败: %w", err)
	}
	return list, nil
}

// Delete 删除知识库及条目
func (k *KnowledgeService) Delete(id string) error {
	return k.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("knowledge_base_id = ?", id).Delete(&models.KnowledgeBaseEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.KnowledgeBase{}, "id = ?", id).Error
	})
}
