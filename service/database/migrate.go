/*
 * @module service/database/migrate
 * @description 数据库迁移模块，负责创建和更新服务自身的数据库表结构
 * @architecture 数据访问层 - 迁移管理
 * @stateFlow 应用启动时执行数据库迁移
 * @rules 确保数据库结构与模型定义保持一致
 * @dependencies geodata-quality-service/service/models, gorm.io/gorm
 * @refs service/init.go
 */

package database

import (
	"log"

	"geodata-quality-service/service/models"

	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 数据源与规则库相关表
	err := db.AutoMigrate(
		&models.DataSource{},
		&models.RuleLibrary{},
		&models.RuleVersion{},
	)
	if err != nil {
		return err
	}

	// 质量检测相关表
	err = db.AutoMigrate(
		&models.QualityResult{},
		&models.QualityReport{},
		&models.QualityCheckSchedule{},
	)
	if err != nil {
		return err
	}

	// 文本质检知识库相关表
	err = db.AutoMigrate(
		&models.KnowledgeBase{},
		&models.KnowledgeBaseEntry{},
	)
	if err != nil {
		return err
	}

	// 模型配置与训练相关表
	err = db.AutoMigrate(
		&models.LSTMAnomalyModel{},
		&models.ModelConfig{},
		&models.ModelParameter{},
		&models.TrainingHistory{},
	)
	if err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}
