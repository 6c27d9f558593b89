/*
 * @module service/datasource/postgresql
 * @description PostgreSQL 方言实现，基于 lib/pq 驱动
 * @architecture 数据访问层 - 方言实现
 * @stateFlow DSN 构造 -> 连接 -> 会话级编码设置 -> 目录查询/数据查询
 * @rules client_encoding 随编码协商变化，标识符使用双引号引用
 * @dependencies github.com/lib/pq, geodata-quality-service/service/models
 * @refs interface.go, dal.go
 */

package datasource

import (
	"fmt"

	"geodata-quality-service/service/models"

	_ "github.com/lib/pq"
)

// pgClientEncodings 编码候选到 PostgreSQL client_encoding 名称的映射
var pgClientEncodings = map[string]string{
	EncodingUTF8:   "UTF8",
	EncodingGBK:    "GBK",
	EncodingLatin1: "LATIN1",
}

// PostgreSQLDialect PostgreSQL 方言
type PostgreSQLDialect struct{}

func (PostgreSQLDialect) Name() string {
	return "postgresql"
}

func (PostgreSQLDialect) DriverName() string {
	return "postgres"
}

// BuildDSN 构造 lib/pq 连接串，编码通过 client_encoding 下发
func (PostgreSQLDialect) BuildDSN(ds *models.DataSource, password, encoding string) string {
	enc, ok := pgClientEncodings[encoding]
	if !ok {
		enc = "UTF8"
	}
	sslmode := "disable"
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s client_encoding=%s",
		ds.Host, ds.Port, ds.Username, password, ds.Database, sslmode, enc,
	)
}

// SessionSetupSQL 连接后再下发一次会话级编码，覆盖服务端 ALTER ROLE 等默认值
func (PostgreSQLDialect) SessionSetupSQL(encoding string) string {
	enc, ok := pgClientEncodings[encoding]
	if !ok {
		enc = "UTF8"
	}
	return fmt.Sprintf("SET client_encoding TO '%s'", enc)
}

// QuoteIdentifier 按需使用双引号引用标识符
func (PostgreSQLDialect) QuoteIdentifier(name string) string {
	if !needsQuoting(name) {
		return name
	}
	return quoteWith(name, `"`)
}

func (PostgreSQLDialect) ListSchemasSQL() string {
	return `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		AND schema_name NOT LIKE 'pg_toast%'
		ORDER BY schema_name`
}

func (PostgreSQLDialect) ListTablesSQL() (string, []interface{}) {
	query := `SELECT c.relname AS table_name,
			COALESCE(obj_description(c.oid), '') AS table_comment
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'r'
		ORDER BY c.relname`
	return query, nil
}

func (PostgreSQLDialect) ListFieldsSQL(table string) (string, []interface{}) {
	query := `SELECT a.attname AS field_name,
			format_type(a.atttypid, a.atttypmod) AS field_type,
			NOT a.attnotnull AS is_nullable,
			COALESCE(col_description(a.attrelid, a.attnum), '') AS field_comment,
			EXISTS (
				SELECT 1 FROM pg_index i
				WHERE i.indrelid = a.attrelid AND i.indisprimary
				AND a.attnum = ANY(i.indkey)
			) AS is_primary,
			COALESCE(pg_get_expr(d.adbin, d.adrelid), '') AS field_default
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		JOIN pg_namespace n ON c.relnamespace = n.oid
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1 AND c.relname = $2
		AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`
	return query, []interface{}{table}
}

func (PostgreSQLDialect) StddevFunc() string {
	return "STDDEV"
}
