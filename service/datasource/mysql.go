/*
 * @module service/datasource/mysql
 * @description MySQL 方言实现，基于 go-sql-driver/mysql 驱动
 * @architecture 数据访问层 - 方言实现
 * @stateFlow DSN 构造 -> 连接 -> 目录查询/数据查询
 * @rules 字符集通过 charset 参数下发，标识符使用反引号引用
 * @dependencies github.com/go-sql-driver/mysql, geodata-quality-service/service/models
 * @refs interface.go, dal.go
 */

package datasource

import (
	"fmt"

	"geodata-quality-service/service/models"

	_ "github.com/go-sql-driver/mysql"
)

// mysqlCharsets 编码候选到 MySQL charset 名称的映射
var mysqlCharsets = map[string]string{
	EncodingUTF8:   "utf8mb4",
	EncodingGBK:    "gbk",
	EncodingLatin1: "latin1",
}

// MySQLDialect MySQL 方言
type MySQLDialect struct{}

func (MySQLDialect) Name() string {
	return "mysql"
}

func (MySQLDialect) DriverName() string {
	return "mysql"
}

// BuildDSN 构造 go-sql-driver 连接串，编码通过 charset 参数下发
func (MySQLDialect) BuildDSN(ds *models.DataSource, password, encoding string) string {
	charset, ok := mysqlCharsets[encoding]
	if !ok {
		charset = "utf8mb4"
	}
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=Local",
		ds.Username, password, ds.Host, ds.Port, ds.Database, charset,
	)
}

// SessionSetupSQL MySQL 编码已由 DSN charset 参数覆盖，无会话级设置
func (MySQLDialect) SessionSetupSQL(string) string {
	return ""
}

// QuoteIdentifier 按需使用反引号引用标识符
func (MySQLDialect) QuoteIdentifier(name string) string {
	if !needsQuoting(name) {
		return name
	}
	return quoteWith(name, "`")
}

// ListSchemasSQL MySQL 的 schema 即 database，这里不再额外列出
func (MySQLDialect) ListSchemasSQL() string {
	return ""
}

func (MySQLDialect) ListTablesSQL() (string, []interface{}) {
	query := `SELECT table_name, COALESCE(table_comment, '') AS table_comment
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	return query, nil
}

func (MySQLDialect) ListFieldsSQL(table string) (string, []interface{}) {
	query := `SELECT column_name, column_type,
			is_nullable = 'YES' AS is_nullable,
			COALESCE(column_comment, '') AS column_comment,
			column_key = 'PRI' AS is_primary,
			COALESCE(column_default, '') AS column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
	return query, []interface{}{table}
}

func (MySQLDialect) StddevFunc() string {
	return "STDDEV_SAMP"
}
