/*
 * @module service/datasource/interface
 * @description 外部数据源访问层的接口与公共数据结构定义
 * @architecture 数据访问层 - 接口定义
 * @stateFlow 数据源配置 -> 方言选择 -> 编码协商 -> 查询执行
 * @rules 所有查询接受 context.Context，空结果返回空切片而非错误
 * @dependencies database/sql, geodata-quality-service/service/models
 * @refs postgresql.go, mysql.go, dal.go
 */

package datasource

import (
	"time"

	"geodata-quality-service/service/models"
)

// Dialect 数据库方言接口，屏蔽 PostgreSQL 与 MySQL 在 DSN、
// 标识符引用和目录查询上的差异
type Dialect interface {
	// Name 方言名称，与 models.DataSource.DBType 对应
	Name() string
	// DriverName database/sql 驱动名
	DriverName() string
	// BuildDSN 按指定客户端编码构造连接串，password 为解密后的明文
	BuildDSN(ds *models.DataSource, password, encoding string) string
	// QuoteIdentifier 按需引用标识符
	QuoteIdentifier(name string) string
	// SessionSetupSQL 连接建立后下发的会话级设置语句，无需设置时返回空串
	SessionSetupSQL(encoding string) string
	// ListSchemasSQL 列出 schema 的目录查询，不支持时返回空串
	ListSchemasSQL() (query string)
	// ListTablesSQL 列出表名与表注释
	ListTablesSQL() (query string, args []interface{})
	// ListFieldsSQL 列出字段名、类型、可空性、注释、主键标识与默认值
	ListFieldsSQL(table string) (query string, args []interface{})
	// StddevFunc 样本标准差聚合函数名
	StddevFunc() string
}

// TableInfo 表信息
type TableInfo struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// FieldInfo 字段信息
type FieldInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Comment    string `json:"comment"`
	PrimaryKey bool   `json:"primary_key"`
	Default    string `json:"default"`
}

// Statistics 单字段统计量，非数值字段只有 Count 有效
type Statistics struct {
	Count int64    `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// TagPoint 位号时序数据点
type TagPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// SequencePoint 井参数序列数据点
type SequencePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Row   int       `json:"row"`
}

// 时间字段自动探测候选，按优先级排列
var timeFieldCandidates = []string{
	"date_time_index", "datetime", "timestamp", "time", "date", "update_date",
}
