/*
 * @module service/textquality/service
 * @description 文本质检服务：井名快速通道 + LLM 批次审核，结果与明细入库
 * @architecture 业务逻辑层 - 文本质检编排
 * @stateFlow 字段映射解析 -> 井名本地校验/LLM分批审核 -> 结论解析 -> 结果事务入库
 * @rules 批次大小默认 100 上限 1000；批次间隔 0.5 秒；LLM 连续失败 3 次后降级全部合格
 * @dependencies gorm.io/gorm, github.com/prometheus/client_golang
 * @refs llm.go, parser.go, wellname.go, knowledge.go
 */

package textquality

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"geodata-quality-service/service/fieldmapping"
	"geodata-quality-service/service/meta"
	"geodata-quality-service/service/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 100
	maxBatchSize     = 1000
	batchInterval    = 500 * time.Millisecond
	llmMaxRetries    = 3
	llmRetryDelay    = time.Second

	// LLM 全部重试失败后的降级响应，经解析层后所有记录按未提及判合格
	degradedResponse = "所有记录均合格"
)

var llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "textquality_llm_requests_total",
	Help: "文本质检LLM请求次数",
}, []string{"status"})

// CheckRequest 文本质检请求
type CheckRequest struct {
	DataSourceName string
	TableName      string
	Fields         []string
	Rows           []map[string]interface{}
	BatchSize      int
}

// Service 文本质检服务
type Service struct {
	db        *gorm.DB
	llm       Completer
	fields    *fieldmapping.Service
	wells     *WellNameChecker
	knowledge *KnowledgeService

	batchInterval time.Duration
	retryDelay    time.Duration
}

// NewService 创建文本质检服务
func NewService(db *gorm.DB, llm Completer, fields *fieldmapping.Service, wells *WellNameChecker, knowledge *KnowledgeService) *Service {
	return &Service{
		db:            db,
		llm:           llm,
		fields:        fields,
		wells:         wells,
		knowledge:     knowledge,
		batchInterval: batchInterval,
		retryDelay:    llmRetryDelay,
	}
}

// RunCheck 执行文本质检并保存结果
func (s *Service) RunCheck(ctx context.Context, req CheckRequest) (*models.QualityResult, error) {
	if len(req.Fields) == 0 {
		return nil, fmt.Errorf("文本质检必须指定检查字段")
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	start := time.Now()
	failedRows := make(map[int]bool)
	reports := make([]models.QualityReport, 0, len(req.Fields))

	for _, field := range req.Fields {
		chineseName := ""
		if s.fields != nil {
			chineseName = s.fields.GetChineseName(field)
		}

		var verdicts []Verdict
		if s.isWellNameField(field, chineseName) {
			verdicts = s.checkWellNames(req.Rows, field)
		} else {
			var err error
			verdicts, err = s.checkWithLLM(ctx, req.Rows, field, chineseName, batchSize)
			if err != nil {
				return nil, err
			}
		}

		var passed, failed int64
		details := make(models.JSONBArray, 0)
		for _, v := range verdicts {
			if v.Passed {
				passed++
				continue
			}
			failed++
			failedRows[v.Index] = true
			details = append(details, models.JSONB{
				"row":     v.Index,
				"value":   cast.ToString(req.Rows[v.Index][field]),
				"message": v.Detail,
			})
		}

		reports = append(reports, models.QualityReport{
			RuleName:     "文本质检-" + field,
			RuleType:     "text_quality",
			FieldName:    field,
			PassedCount:  passed,
			FailedCount:  failed,
			ErrorDetails: details,
		})
	}

	total := int64(len(req.Rows))
	failedCount := int64(len(failedRows))
	passRate := 0.0
	if total > 0 {
		passRate = float64(total-failedCount) / float64(total) * 100
	}

	result := &models.QualityResult{
		DataSource:    req.DataSourceName,
		DataTable:     req.TableName,
		TotalRecords:  total,
		PassedRecords: total - failedCount,
		FailedRecords: failedCount,
		PassRate:      passRate,
		ExecutionTime: time.Since(start).Seconds(),
		CheckType:     meta.CheckTypeTextLLM,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		for i := range reports {
			reports[i].ResultID = result.ID
			if err := tx.Create(&reports[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("保存文本质检结果失败: %w", err)
	}
	result.Reports = reports
	return result, nil
}

// isWellNameField 判断字段是否走井名快速通道
func (s *Service) isWellNameField(field, chineseName string) bool {
	lower := strings.ToLower(field)
	if strings.Contains(lower, "well") && strings.Contains(lower, "name") {
		return true
	}
	return strings.Contains(chineseName, "井名")
}

// checkWellNames 井名本地校验，不调用 LLM
func (s *Service) checkWellNames(rows []map[string]interface{}, field string) []Verdict {
	verdicts := make([]Verdict, 0, len(rows))
	for i, row := range rows {
		value := cast.ToString(row[field])
		ok, msg := s.wells.Check(value)
		verdicts = append(verdicts, Verdict{Index: i, Passed: ok, Detail: msg})
	}
	return verdicts
}

// checkWithLLM 分批调用 LLM 审核字段
func (s *Service) checkWithLLM(ctx context.Context, rows []map[string]interface{}, field, chineseName string, batchSize int) ([]Verdict, error) {
	records := make([]RecordItem, 0, len(rows))
	for i, row := range rows {
		records = append(records, RecordItem{Index: i, Value: cast.ToString(row[field])})
	}

	var specs []string
	if s.knowledge != nil {
		specs = s.knowledge.SpecsFor(field)
		if len(specs) == 0 && chineseName != field {
			specs = s.knowledge.SpecsFor(chineseName)
		}
	}

	verdicts := make([]Verdict, 0, len(records))
	for batchStart := 0; batchStart < len(records); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := batchStart + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[batchStart:end]

		prompt := BuildBatchPrompt(field, chineseName, specs, batch)
		response := s.completeWithRetry(ctx, prompt)
		verdicts = append(verdicts, ParseBatchResponse(response, field, batch)...)

		if end < len(records) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.batchInterval):
			}
		}
	}

	sort.Slice(verdicts, func(i, j int) bool { return verdicts[i].Index < verdicts[j].Index })
	return verdicts, nil
}

// completeWithRetry 带重试的 LLM 调用，重试间隔逐次翻倍，最终失败时降级为全部合格
func (s *Service) completeWithRetry(ctx context.Context, prompt string) string {
	var lastErr error
	delay := s.retryDelay
	for attempt := 1; attempt <= llmMaxRetries; attempt++ {
		response, err := s.llm.Complete(ctx, prompt)
		if err == nil {
			llmRequestsTotal.WithLabelValues("ok").Inc()
			return response
		}
		lastErr = err
		llmRequestsTotal.WithLabelValues("error").Inc()
		slog.Warn("LLM调用失败", "attempt", attempt, "error", err)
		if attempt < llmMaxRetries {
			select {
			case <-ctx.Done():
				return degradedResponse
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	llmRequestsTotal.WithLabelValues("degraded").Inc()
	slog.Error("LLM连续失败，本批次降级为全部合格", "error", lastErr)
	return degradedResponse
}
