/*
 * @module service/models/datasource
 * @description 数据源模型，描述待检测的外部关系型数据库连接信息
 * @architecture 数据模型层
 * @stateFlow 数据源注册 -> 连接测试 -> 质量检测引用
 * @rules 密码加密存储，连接状态由连接测试维护
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/datasource/, service/quality/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DataSource 外部数据源模型
type DataSource struct {
	ID        string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	DBType    string    `gorm:"type:varchar(20);not null" json:"db_type"` // postgresql, mysql
	Host      string    `gorm:"type:varchar(100);not null" json:"host"`
	Port      int       `gorm:"not null" json:"port"`
	Database  string    `gorm:"type:varchar(100);not null" json:"database"`
	Schema    string    `gorm:"type:varchar(100);default:public" json:"schema"`
	Username  string    `gorm:"type:varchar(50);not null" json:"username"`
	Password  string    `gorm:"type:varchar(500);not null" json:"-"` // 加密后的密文，不对外输出
	Status    bool      `gorm:"default:false" json:"status"`         // 最近一次连接测试结果
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (DataSource) TableName() string {
	return "data_sources"
}

// BeforeCreate 创建前钩子
func (d *DataSource) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Schema == "" {
		d.Schema = "public"
	}
	return nil
}
