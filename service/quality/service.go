/*
 * @module service/quality/service
 * @description 质量检测门面：执行规则校验、结果/报告管理、统计、对比与级联删除
 * @architecture 业务逻辑层 - 质量检测编排
 * @stateFlow 加载 current 规则 -> 取数 -> 校验 -> 结果与报告同事务入库 -> 事件通知
 * @rules 失败行取各规则失败行并集；结果删除时先删报告再删结果，并清理报告文件
 * @dependencies gorm.io/gorm, geodata-quality-service/service/rulecheck, geodata-quality-service/service/datasource
 * @refs library.go, events.go, metrics.go
 */

package quality

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"geodata-quality-service/service/datasource"
	"geodata-quality-service/service/meta"
	"geodata-quality-service/service/models"
	"geodata-quality-service/service/rulecheck"

	"gorm.io/gorm"
)

const defaultResultLimit = 50

// Service 质量检测门面
type Service struct {
	db          *gorm.DB
	datasources *datasource.Service
	libraries   *LibraryService
	checker     *rulecheck.Engine
	events      *EventPublisher
}

// NewService 创建质量检测门面
func NewService(db *gorm.DB, datasources *datasource.Service, libraries *LibraryService, events *EventPublisher) *Service {
	return &Service{
		db:          db,
		datasources: datasources,
		libraries:   libraries,
		checker:     rulecheck.NewEngine(),
		events:      events,
	}
}

// RunQualityCheck 对指定数据源表执行规则质量检测
func (s *Service) RunQualityCheck(ctx context.Context, dataSourceID, tableName, libraryID string) (*models.QualityResult, error) {
	start := time.Now()

	rules, err := s.libraries.GetCurrentRules(libraryID)
	if err != nil {
		return nil, err
	}
	ds, err := s.datasources.GetDataSource(dataSourceID)
	if err != nil {
		return nil, err
	}
	conn, err := s.datasources.GetConnection(ctx, dataSourceID)
	if err != nil {
		checksTotal.WithLabelValues(meta.CheckTypeRule, "failed").Inc()
		return nil, err
	}

	var rows []map[string]interface{}
	err = conn.ReadInBatches(ctx, tableName, 1000, func(batch []map[string]interface{}) error {
		rows = append(rows, batch...)
		return nil
	})
	if err != nil {
		checksTotal.WithLabelValues(meta.CheckTypeRule, "failed").Inc()
		return nil, fmt.Errorf("读取表 %s 数据失败: %w", tableName, err)
	}

	ruleMaps := make([]map[string]interface{}, len(rules))
	for i, r := range rules {
		ruleMaps[i] = r
	}
	summary, err := s.checker.ValidateAll(rows, ruleMaps)
	if err != nil {
		checksTotal.WithLabelValues(meta.CheckTypeRule, "failed").Inc()
		return nil, err
	}

	result := &models.QualityResult{
		RuleLibraryID: &libraryID,
		DataSource:    ds.Name,
		DataTable:     tableName,
		TotalRecords:  summary.TotalRecords,
		PassedRecords: summary.PassedRecords,
		FailedRecords: summary.FailedRecords,
		PassRate:      summary.PassRate,
		ExecutionTime: time.Since(start).Seconds(),
		CheckType:     meta.CheckTypeRule,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		for _, rr := range summary.RuleResults {
			details := make(models.JSONBArray, 0, len(rr.ErrorDetails))
			for _, d := range rr.ErrorDetails {
				details = append(details, models.JSONB(d))
			}
			report := &models.QualityReport{
				ResultID:     result.ID,
				RuleName:     rr.RuleName,
				RuleType:     rr.RuleType,
				FieldName:    rr.Field,
				PassedCount:  rr.PassedCount,
				FailedCount:  rr.FailedCount,
				ErrorDetails: details,
			}
			if err := tx.Create(report).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		checksTotal.WithLabelValues(meta.CheckTypeRule, "failed").Inc()
		s.events.Publish(ctx, QualityEvent{
			LibraryID: libraryID, DataSource: ds.Name, TableName: tableName,
			CheckType: meta.CheckTypeRule, Status: "failed",
		})
		return nil, fmt.Errorf("保存质量检测结果失败: %w", err)
	}

	checksTotal.WithLabelValues(meta.CheckTypeRule, "completed").Inc()
	checkDuration.Observe(result.ExecutionTime)
	s.events.Publish(ctx, QualityEvent{
		ResultID: result.ID, LibraryID: libraryID, DataSource: ds.Name,
		TableName: tableName, CheckType: meta.CheckTypeRule,
		PassRate: result.PassRate, Status: "completed",
	})
	slog.Info("质量检测完成", "table", tableName, "total", result.TotalRecords,
		"failed", result.FailedRecords, "pass_rate", result.PassRate)
	return result, nil
}

// BatchQualityCheck 对多张表依次执行检测，单表失败不中断
func (s *Service) BatchQualityCheck(ctx context.Context, dataSourceID string, tables []string, libraryID string) ([]*models.QualityResult, []error) {
	results := make([]*models.QualityResult, 0, len(tables))
	errs := make([]error, 0)
	for _, table := range tables {
		result, err := s.RunQualityCheck(ctx, dataSourceID, table, libraryID)
		if err != nil {
			errs = append(errs, fmt.Errorf("表 %s 检测失败: %w", table, err))
			continue
		}
		results = append(results, result)
	}
	return results, errs
}

// GetResults 查询检测结果列表，按创建时间倒序，默认 50 条
func (s *Service) GetResults(libraryID string, limit int) ([]models.QualityResult, error) {
	if limit <= 0 {
		limit = defaultResultLimit
	}
	query := s.db.Order("created_at DESC").Limit(limit)
	if libraryID != "" {
		query = query.Where("rule_library_id = ?", libraryID)
	}
	var results []models.QualityResult
	if err := query.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("查询检测结果失败: %w", err)
	}
	return results, nil
}

// Report 质量检测报告视图
type Report struct {
	Result      models.QualityResult   `json:"result"`
	RuleReports []models.QualityReport `json:"rule_reports"`
	Summary     map[string]interface{} `json:"summary"`
}

// GetReport 组装检测报告：逐规则通过率与整体汇总
func (s *Service) GetReport(resultID string) (*Report, error) {
	var result models.QualityResult
	if err := s.db.First(&result, "id = ?", resultID).Error; err != nil {
		return nil, fmt.Errorf("检测结果 %s 不存在: %w", resultID, err)
	}
	var reports []models.QualityReport
	if err := s.db.Where("result_id = ?", resultID).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("查询检测报告失败: %w", err)
	}

	var ratesSum float64
	for _, r := range reports {
		total := r.PassedCount + r.FailedCount
		if total > 0 {
			ratesSum += float64(r.PassedCount) / float64(total) * 100
		} else {
			ratesSum += 100
		}
	}
	avgRulePassRate := 100.0
	if len(reports) > 0 {
		avgRulePassRate = ratesSum / float64(len(reports))
	}

	return &Report{
		Result:      result,
		RuleReports: reports,
		Summary: map[string]interface{}{
			"rule_count":         len(reports),
			"pass_rate":          result.PassRate,
			"avg_rule_pass_rate": avgRulePassRate,
			"total_records":      result.TotalRecords,
			"failed_records":     result.FailedRecords,
		},
	}, nil
}

// CompareResults 对比两次检测结果
func (s *Service) CompareResults(firstID, secondID string) (map[string]interface{}, error) {
	first, err := s.GetReport(firstID)
	if err != nil {
		return nil, err
	}
	second, err := s.GetReport(secondID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"first":          first,
		"second":         second,
		"pass_rate_diff": second.Result.PassRate - first.Result.PassRate,
		"failed_diff":    second.Result.FailedRecords - first.Result.FailedRecords,
	}, nil
}

// GetFailedRecords 提取检测结果中全部失败行明细
func (s *Service) GetFailedRecords(resultID string) ([]map[string]interface{}, error) {
	var reports []models.QualityReport
	if err := s.db.Where("result_id = ?", resultID).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("查询检测报告失败: %w", err)
	}
	records := make([]map[string]interface{}, 0)
	for _, report := range reports {
		for _, detail := range report.ErrorDetails {
			record := map[string]interface{}{
				"rule_name": report.RuleName,
				"rule_type": report.RuleType,
				"field":     report.FieldName,
			}
			for k, v := range detail {
				record[k] = v
			}
			records = append(records, record)
		}
	}
	return records, nil
}

// GetStatistics 统计近 days 天的检测情况
func (s *Service) GetStatistics(days int) (map[string]interface{}, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	var results []models.QualityResult
	if err := s.db.Where("created_at >= ?", since).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("查询统计数据失败: %w", err)
	}

	byType := make(map[string]int)
	var passRateSum float64
	var totalRecords, failedRecords int64
	for _, r := range results {
		byType[r.CheckType]++
		passRateSum += r.PassRate
		totalRecords += r.TotalRecords
		failedRecords += r.FailedRecords
	}
	avgPassRate := 0.0
	if len(results) > 0 {
		avgPassRate = passRateSum / float64(len(results))
	}
	return map[string]interface{}{
		"days":           days,
		"check_count":    len(results),
		"checks_by_type": byType,
		"avg_pass_rate":  avgPassRate,
		"total_records":  totalRecords,
		"failed_records": failedRecords,
	}, nil
}

// DeleteResult 级联删除检测结果：先删报告再删结果，并清理报告文件
func (s *Service) DeleteResult(resultID string) error {
	var result models.QualityResult
	if err := s.db.First(&result, "id = ?", resultID).Error; err != nil {
		return fmt.Errorf("检测结果 %s 不存在: %w", resultID, err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("result_id = ?", resultID).Delete(&models.QualityReport{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.QualityResult{}, "id = ?", resultID).Error
	})
	if err != nil {
		return fmt.Errorf("删除检测结果失败: %w", err)
	}

	if result.ReportFile != "" {
		if err := os.Remove(result.ReportFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("删除报告文件失败", "file", result.ReportFile, "error", err)
		}
	}
	return nil
}
