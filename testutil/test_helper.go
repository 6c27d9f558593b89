/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"geodata-quality-service/service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.DataSource{},
		&models.RuleLibrary{},
		&models.RuleVersion{},
		&models.QualityResult{},
		&models.QualityReport{},
		&models.QualityCheckSchedule{},
		&models.KnowledgeBase{},
		&models.KnowledgeBaseEntry{},
		&models.LSTMAnomalyModel{},
		&models.ModelConfig{},
		&models.ModelParameter{},
		&models.TrainingHistory{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	// 清空所有表的数据
	tables := []string{
		"data_sources",
		"rule_libraries",
		"rule_versions",
		"quality_results",
		"quality_reports",
		"quality_check_schedules",
		"knowledge_bases",
		"knowledge_base_entries",
		"lstm_anomaly_models",
		"model_configs",
		"model_parameters",
		"training_history",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// RuleLibraryOption 规则库选项函数类型
type RuleLibraryOption func(*models.RuleLibrary)

// CreateRuleLibrary 创建测试规则库
func (f *TestDataFactory) CreateRuleLibrary(opts ...RuleLibraryOption) *models.RuleLibrary {
	library := &models.RuleLibrary{
		ID:          generateID("rl"),
		Name:        "测试规则库_" + generateSuffix(),
		Description: "这是一个测试规则库",
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(library)
	}

	err := f.DB.Create(library).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test rule library: %v", err))
	}

	return library
}

// RuleVersionOption 规则版本选项函数类型
type RuleVersionOption func(*models.RuleVersion)

// CreateRuleVersion 创建测试规则版本
func (f *TestDataFactory) CreateRuleVersion(libraryID string, opts ...RuleVersionOption) *models.RuleVersion {
	version := &models.RuleVersion{
		ID:        generateID("rv"),
		LibraryID: libraryID,
		Version:   "current",
		Rules: models.JSONBArray{
			models.JSONB{
				"rule_type": "range",
				"field":     "porosity",
				"name":      "range-porosity",
				"params": map[string]interface{}{
					"min_value": 0.0,
					"max_value": 50.0,
				},
			},
		},
		CreatedBy: "test",
		CreatedAt: time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(version)
	}

	err := f.DB.Create(version).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test rule version: %v", err))
	}

	return version
}

// DataSourceOption 数据源选项函数类型
type DataSourceOption func(*models.DataSource)

// CreateDataSource 创建测试数据源
func (f *TestDataFactory) CreateDataSource(opts ...DataSourceOption) *models.DataSource {
	dataSource := &models.DataSource{
		ID:       generateID("ds"),
		Name:     "测试数据源_" + generateSuffix(),
		DBType:   "postgresql",
		Host:     "localhost",
		Port:     5432,
		Database: "testdb",
		Schema:   "public",
		Username: "testuser",
		Password: "testpass",
		Status:   true,
		IsActive: true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(dataSource)
	}

	err := f.DB.Create(dataSource).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test data source: %v", err))
	}

	return dataSource
}

// QualityResultOption 检测结果选项函数类型
type QualityResultOption func(*models.QualityResult)

// CreateQualityResult 创建测试检测结果
func (f *TestDataFactory) CreateQualityResult(libraryID string, opts ...QualityResultOption) *models.QualityResult {
	result := &models.QualityResult{
		ID:            generateID("qr"),
		RuleLibraryID: &libraryID,
		DataSource:    "测试数据源",
		DataTable:     "well_logging",
		TotalRecords:  100,
		PassedRecords: 95,
		FailedRecords: 5,
		PassRate:      95.0,
		CheckType:     "rule",
		CreatedBy:     "test",
		CreatedAt:     time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(result)
	}

	err := f.DB.Create(result).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test quality result: %v", err))
	}

	return result
}

// LSTMModelOption 序列模型选项函数类型
type LSTMModelOption func(*models.LSTMAnomalyModel)

// CreateLSTMModel 创建测试序列模型配置
func (f *TestDataFactory) CreateLSTMModel(opts ...LSTMModelOption) *models.LSTMAnomalyModel {
	model := &models.LSTMAnomalyModel{
		ID:             generateID("lm"),
		Name:           "测试序列模型_" + generateSuffix(),
		ModelPath:      "/tmp/test_model.json",
		ModelType:      "generic",
		SequenceLength: 20,
		InputSize:      1,
		HiddenSize:     64,
		NumLayers:      2,
		NumClasses:     2,
		Threshold:      0.5,
		IsActive:       true,
	}

	// 应用选项
	for _, opt := range opts {
		opt(model)
	}

	err := f.DB.Create(model).Error
	if err != nil {
		panic(fmt.Sprintf("failed to create test lstm model: %v", err))
	}

	return model
}

// 辅助函数
func generateID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), generateSuffix())
}

func generateSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
}
