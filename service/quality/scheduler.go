/*
 * @module service/quality/scheduler
 * @description 周期性质量检测调度器，按 cron 表达式执行已启用的检测任务
 * @architecture 业务逻辑层 - 任务调度
 * @stateFlow 加载启用的调度配置 -> 注册 cron 任务 -> 执行检测并回写 LastRunAt
 * @rules 单个任务失败只记录日志，不影响其他任务
 * @dependencies github.com/robfig/cron/v3, gorm.io/gorm
 * @refs service.go, service/models/quality.go
 */

package quality

import (
	"context"
	"log/slog"
	"time"

	"geodata-quality-service/service/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Scheduler 周期性质量检测调度器
type Scheduler struct {
	db      *gorm.DB
	quality *Service
	cron    *cron.Cron
}

// NewScheduler 创建调度器
func NewScheduler(db *gorm.DB, quality *Service) *Scheduler {
	return &Scheduler{
		db:      db,
		quality: quality,
		cron:    cron.New(),
	}
}

// Start 加载启用的调度配置并启动调度
func (s *Scheduler) Start() error {
	var schedules []models.QualityCheckSchedule
	if err := s.db.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return err
	}
	for _, schedule := range schedules {
		sched := schedule
		_, err := s.cron.AddFunc(sched.CronExpr, func() {
			s.runSchedule(sched)
		})
		if err != nil {
			slog.Error("注册调度任务失败", "schedule", sched.Name, "cron", sched.CronExpr, "error", err)
			continue
		}
		slog.Info("已注册调度任务", "schedule", sched.Name, "cron", sched.CronExpr, "table", sched.DataTable)
	}
	s.cron.Start()
	return nil
}

// Stop 停止调度并等待执行中的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runSchedule(schedule models.QualityCheckSchedule) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.quality.RunQualityCheck(ctx, schedule.DataSourceID, schedule.DataTable, schedule.LibraryID)
	if err != nil {
		slog.Error("调度检测失败", "schedule", schedule.Name, "table", schedule.DataTable, "error", err)
		return
	}

	now := time.Now()
	err = s.db.Model(&models.QualityCheckSchedule{}).
		Where("id = ?", schedule.ID).
		Update("last_run_at", &now).Error
	if err != nil {
		slog.Warn("更新调度执行时间失败", "schedule", schedule.Name, "error", err)
	}
	slog.Info("调度检测完成", "schedule", schedule.Name, "result_id", result.ID, "pass_rate", result.PassRate)
}

// CreateSchedule 创建调度配置
func (s *Scheduler) CreateSchedule(schedule *models.QualityCheckSchedule) error {
	if _, err := cron.ParseStandard(schedule.CronExpr); err != nil {
		return err
	}
	return s.db.Create(schedule).Error
}

// ListSchedules 查询全部调度配置
func (s *Scheduler) ListSchedules() ([]models.QualityCheckSchedule, error) {
	var schedules []models.QualityCheckSchedule
	err := s.db.Order("created_at DESC").Find(&schedules).Error
	return schedules, err
}

// DeleteSchedule 删除调度配置
func (s *Scheduler) DeleteSchedule(id string) error {
	return s.db.Delete(&models.QualityCheckSchedule{}, "id = ?", id).Error
}
