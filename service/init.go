/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移与各业务服务装配
 * @architecture 分层架构 - 服务层
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/database/migrate.go
 */

package service

import (
	"fmt"
	"log"
	"os"

	"geodata-quality-service/service/database"
	"geodata-quality-service/service/datasource"
	"geodata-quality-service/service/fieldmapping"
	"geodata-quality-service/service/modelconfig"
	"geodata-quality-service/service/quality"
	"geodata-quality-service/service/rulegen"
	"geodata-quality-service/service/sequence"
	"geodata-quality-service/service/textquality"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB                       *gorm.DB
	GlobalDataSourceService  *datasource.Service
	GlobalRuleGenEngine      *rulegen.Engine
	GlobalLibraryService     *quality.LibraryService
	GlobalQualityService     *quality.Service
	GlobalQualityScheduler   *quality.Scheduler
	GlobalFieldMapping       *fieldmapping.Service
	GlobalWellNameChecker    *textquality.WellNameChecker
	GlobalKnowledgeService   *textquality.KnowledgeService
	GlobalTextQualityService *textquality.Service
	GlobalSequenceService    *sequence.Service
	GlobalModelConfigService *modelconfig.Service
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	GlobalDataSourceService = datasource.NewService(DB, datasource.NewCacheFromEnv())
	GlobalRuleGenEngine = rulegen.NewEngine()
	GlobalLibraryService = quality.NewLibraryService(DB)
	GlobalQualityService = quality.NewService(DB, GlobalDataSourceService, GlobalLibraryService, quality.NewEventPublisherFromEnv())
	GlobalQualityScheduler = quality.NewScheduler(DB, GlobalQualityService)

	// 字段映射表与区块代号表可选加载，缺失时退化为规则映射
	GlobalFieldMapping = fieldmapping.NewService()
	if path := os.Getenv("FIELD_MAPPING_FILE"); path != "" {
		if err := GlobalFieldMapping.LoadWorkbook(path); err != nil {
			log.Printf("加载字段映射表失败: %v", err)
		}
	}
	GlobalWellNameChecker = textquality.NewWellNameChecker()
	if path := os.Getenv("BLOCK_CODE_FILE"); path != "" {
		if err := GlobalWellNameChecker.LoadBlockCodes(path); err != nil {
			log.Printf("加载区块代号表失败: %v", err)
		}
	}

	GlobalKnowledgeService = textquality.NewKnowledgeService(DB)
	GlobalTextQualityService = textquality.NewService(DB, textquality.NewLLMClientFromEnv(),
		GlobalFieldMapping, GlobalWellNameChecker, GlobalKnowledgeService)
	GlobalSequenceService = sequence.NewService(DB)
	GlobalModelConfigService = modelconfig.NewService(DB)

	// 启动周期性质量检测调度
	if err := GlobalQualityScheduler.Start(); err != nil {
		log.Printf("启动质量检测调度器失败: %v", err)
	}
	log.Println("服务初始化完成")
}
