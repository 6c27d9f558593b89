/*
 * @module service/models/quality
 * @description 质量检测结果与明细报告模型
 * @architecture 数据模型层
 * @stateFlow 质量检测执行 -> 结果汇总入库 -> 按规则生成明细报告
 * @rules 结果与报告同事务写入，删除结果时级联删除报告
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/quality/, service/textquality/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QualityResult 质量检测结果模型
// RuleLibraryID 允许为空，文本 LLM 检查不依赖规则库
type QualityResult struct {
	ID            string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	RuleLibraryID *string    `gorm:"type:varchar(50);index" json:"rule_library_id"`
	DataSource    string     `gorm:"type:varchar(100);not null" json:"data_source"`
	DataTable     string     `gorm:"column:table_name;type:varchar(100);not null" json:"table_name"`
	TotalRecords  int64      `gorm:"not null" json:"total_records"`
	PassedRecords int64      `gorm:"not null" json:"passed_records"`
	FailedRecords int64      `gorm:"not null" json:"failed_records"`
	PassRate      float64    `gorm:"not null" json:"pass_rate"`
	ExecutionTime float64    `json:"execution_time"`                            // 执行时间，秒
	CheckType     string     `gorm:"type:varchar(20);default:rule" json:"check_type"` // rule, text_llm, sequence
	ReportFile    string     `gorm:"type:varchar(300)" json:"report_file,omitempty"`
	CreatedBy     string     `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`

	Reports []QualityReport `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE" json:"reports,omitempty"`
}

// TableName 指定表名
func (QualityResult) TableName() string {
	return "quality_results"
}

// BeforeCreate 创建前钩子
func (q *QualityResult) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.CreatedBy == "" {
		q.CreatedBy = "system"
	}
	return nil
}

// QualityReport 质量检测明细报告模型，按规则逐条记录
type QualityReport struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ResultID     string     `gorm:"type:varchar(50);not null;index" json:"result_id"`
	RuleName     string     `gorm:"type:varchar(100);not null" json:"rule_name"`
	RuleType     string     `gorm:"type:varchar(50);not null" json:"rule_type"`
	FieldName    string     `gorm:"type:varchar(100);not null" json:"field_name"`
	PassedCount  int64      `gorm:"not null" json:"passed_count"`
	FailedCount  int64      `gorm:"not null" json:"failed_count"`
	ErrorDetails JSONBArray `gorm:"type:jsonb" json:"error_details"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName 指定表名
func (QualityReport) TableName() string {
	return "quality_reports"
}

// BeforeCreate 创建前钩子
func (q *QualityReport) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// QualityCheckSchedule 周期性质量检测配置
type QualityCheckSchedule struct {
	ID           string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	CronExpr     string     `gorm:"type:varchar(100);not null" json:"cron_expr"`
	DataSourceID string     `gorm:"type:varchar(50);not null" json:"data_source_id"`
	DataTable    string     `gorm:"column:table_name;type:varchar(100);not null" json:"table_name"`
	LibraryID    string     `gorm:"type:varchar(50);not null" json:"library_id"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (QualityCheckSchedule) TableName() string {
	return "quality_check_schedules"
}

// BeforeCreate 创建前钩子
func (q *QualityCheckSchedule) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
