/*
 * @module service/datasource/dal
 * @description 外部数据源访问层核心，提供预览、统计、去重、时序与批量读取能力
 * @architecture 数据访问层 - 查询执行
 * @stateFlow 编码协商建连 -> 目录/数据查询 -> 字节列按连接编码解码
 * @rules 字符串字面量转义单引号，标识符按方言引用，空结果返回空切片
 * @dependencies database/sql, github.com/spf13/cast
 * @refs postgresql.go, mysql.go, anomaly.go
 */

package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"geodata-quality-service/service/models"

	"github.com/spf13/cast"
)

const (
	defaultPreviewLimit  = 100
	defaultDistinctLimit = 1000
	defaultTagLimit      = 2000
	maxTagLimit          = 2000
	maxSequenceRows      = 50000

	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Connection 一个已完成编码协商的外部数据源连接
type Connection struct {
	source   *models.DataSource
	dialect  Dialect
	db       *sql.DB
	encoding string
	cache    *Cache
}

// dialectFor 按数据源类型选择方言
func dialectFor(dbType string) (Dialect, error) {
	switch dbType {
	case "postgresql", "postgres":
		return PostgreSQLDialect{}, nil
	case "mysql":
		return MySQLDialect{}, nil
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", dbType)
	}
}

// Open 建立连接，按 utf8 -> gbk -> latin1 顺序协商客户端编码
func Open(ctx context.Context, ds *models.DataSource, password string, cache *Cache) (*Connection, error) {
	dialect, err := dialectFor(ds.DBType)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, enc := range encodingCandidates {
		dsn := dialect.BuildDSN(ds, password, enc)
		db, err := sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			lastErr = err
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			db.Close()
			lastErr = err
			slog.Debug("编码协商失败，尝试下一候选", "source", ds.Name, "encoding", enc, "error", err)
			continue
		}
		if stmt := dialect.SessionSetupSQL(enc); stmt != "" {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				db.Close()
				lastErr = err
				slog.Debug("会话级编码设置失败，尝试下一候选", "source", ds.Name, "encoding", enc, "error", err)
				continue
			}
		}
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		slog.Info("数据源连接成功", "source", ds.Name, "db_type", ds.DBType, "encoding", enc)
		return &Connection{source: ds, dialect: dialect, db: db, encoding: enc, cache: cache}, nil
	}
	return nil, fmt.Errorf("连接数据源 %s 失败: %w", ds.Name, lastErr)
}

// Close 关闭底层连接池
func (c *Connection) Close() error {
	return c.db.Close()
}

// Encoding 当前连接协商出的客户端编码
func (c *Connection) Encoding() string {
	return c.encoding
}

// schemaArg 目录查询使用的 schema 参数，MySQL 下为库名
func (c *Connection) schemaArg() string {
	if c.dialect.Name() == "mysql" {
		return c.source.Database
	}
	if c.source.Schema != "" {
		return c.source.Schema
	}
	return "public"
}

// qualifiedTable 按方言构造带 schema 前缀的表引用
func (c *Connection) qualifiedTable(table string) string {
	quoted := c.dialect.QuoteIdentifier(table)
	if c.dialect.Name() == "mysql" {
		return quoted
	}
	return c.dialect.QuoteIdentifier(c.schemaArg()) + "." + quoted
}

// queryRows 执行查询并泛化扫描为 map 切片，字节列按连接编码解码
func (c *Connection) queryRows(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, []string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("查询执行失败: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("获取列信息失败: %w", err)
	}

	result := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("扫描行数据失败: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = decodeBytes(b)
			} else {
				row[col] = val
			}
		}
		result = append(result, row)
	}
	return result, columns, rows.Err()
}

// ListSchemas 列出可见 schema，仅 PostgreSQL 支持
func (c *Connection) ListSchemas(ctx context.Context) ([]string, error) {
	query := c.dialect.ListSchemasSQL()
	if query == "" {
		return []string{c.source.Database}, nil
	}
	rows, _, err := c.queryRows(ctx, query)
	if err != nil {
		return nil, err
	}
	schemas := make([]string, 0, len(rows))
	for _, row := range rows {
		schemas = append(schemas, cast.ToString(row["schema_name"]))
	}
	return schemas, nil
}

// ListTables 列出当前 schema 下的表及注释
func (c *Connection) ListTables(ctx context.Context) ([]TableInfo, error) {
	if c.cache != nil {
		var cached []TableInfo
		if c.cache.Get(ctx, c.cache.key(c.source.ID, "tables"), &cached) {
			return cached, nil
		}
	}

	query, extra := c.dialect.ListTablesSQL()
	args := append([]interface{}{c.schemaArg()}, extra...)
	rows, _, err := c.queryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	tables := make([]TableInfo, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, TableInfo{
			Name:    cast.ToString(row["table_name"]),
			Comment: cast.ToString(row["table_comment"]),
		})
	}
	if c.cache != nil {
		c.cache.Set(ctx, c.cache.key(c.source.ID, "tables"), tables)
	}
	return tables, nil
}

// ListFields 列出表字段信息
func (c *Connection) ListFields(ctx context.Context, table string) ([]FieldInfo, error) {
	if c.cache != nil {
		var cached []FieldInfo
		if c.cache.Get(ctx, c.cache.key(c.source.ID, "fields", table), &cached) {
			return cached, nil
		}
	}

	query, extra := c.dialect.ListFieldsSQL(table)
	args := append([]interface{}{c.schemaArg()}, extra...)
	raw, cols, err := c.queryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(cols) < 6 {
		return nil, fmt.Errorf("字段目录查询返回列数异常: %d", len(cols))
	}
	fields := make([]FieldInfo, 0, len(raw))
	for _, row := range raw {
		fields = append(fields, FieldInfo{
			Name:       cast.ToString(row[cols[0]]),
			Type:       cast.ToString(row[cols[1]]),
			Nullable:   cast.ToBool(row[cols[2]]),
			Comment:    cast.ToString(row[cols[3]]),
			PrimaryKey: cast.ToBool(row[cols[4]]),
			Default:    cast.ToString(row[cols[5]]),
		})
	}
	if c.cache != nil {
		c.cache.Set(ctx, c.cache.key(c.source.ID, "fields", table), fields)
	}
	return fields, nil
}

// PreviewData 预览表数据，默认 100 行
func (c *Connection) PreviewData(ctx context.Context, table string, limit int) ([]map[string]interface{}, []string, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", c.qualifiedTable(table), limit)
	return c.queryRows(ctx, query)
}

// PreviewDataWithFilter 按字段等值过滤预览，过滤值做单引号转义
func (c *Connection) PreviewDataWithFilter(ctx context.Context, table, field, value string, limit int) ([]map[string]interface{}, []string, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = '%s' LIMIT %d",
		c.qualifiedTable(table), c.dialect.QuoteIdentifier(field), escapeString(value), limit,
	)
	return c.queryRows(ctx, query)
}

// GetStatistics 字段统计量，非数值字段聚合失败时只返回计数
func (c *Connection) GetStatistics(ctx context.Context, table, field string) (*Statistics, error) {
	if c.cache != nil {
		var cached Statistics
		if c.cache.Get(ctx, c.cache.key(c.source.ID, "stats", table, field), &cached) {
			return &cached, nil
		}
	}

	quotedField := c.dialect.QuoteIdentifier(field)
	qualified := c.qualifiedTable(table)

	stats := &Statistics{}
	countQuery := fmt.Sprintf("SELECT COUNT(%s) FROM %s", quotedField, qualified)
	if err := c.db.QueryRowContext(ctx, countQuery).Scan(&stats.Count); err != nil {
		return nil, fmt.Errorf("统计字段计数失败: %w", err)
	}

	if stats.Count > 0 {
		aggQuery := fmt.Sprintf(
			"SELECT AVG(%s), %s(%s), MIN(%s), MAX(%s) FROM %s WHERE %s IS NOT NULL",
			quotedField, c.dialect.StddevFunc(), quotedField, quotedField, quotedField, qualified, quotedField,
		)
		var mean, std, minV, maxV sql.NullFloat64
		if err := c.db.QueryRowContext(ctx, aggQuery).Scan(&mean, &std, &minV, &maxV); err == nil {
			if mean.Valid {
				stats.Mean = &mean.Float64
			}
			if std.Valid {
				stats.Std = &std.Float64
			}
			if minV.Valid {
				stats.Min = &minV.Float64
			}
			if maxV.Valid {
				stats.Max = &maxV.Float64
			}
		} else {
			// 非数值字段聚合报错属预期，保留计数即可
			slog.Debug("数值聚合不可用", "table", table, "field", field, "error", err)
		}
	}

	if c.cache != nil {
		c.cache.Set(ctx, c.cache.key(c.source.ID, "stats", table, field), stats)
	}
	return stats, nil
}

func clampDistinctLimit(limit int) int {
	if limit <= 0 || limit > defaultDistinctLimit {
		return defaultDistinctLimit
	}
	return limit
}

// GetDistinctValues 获取字段非空去重值，上限 1000
func (c *Connection) GetDistinctValues(ctx context.Context, table, field string, limit int) ([]interface{}, error) {
	limit = clampDistinctLimit(limit)
	cacheKey := ""
	if c.cache != nil {
		cacheKey = c.cache.key(c.source.ID, "distinct", table, field, cast.ToString(limit))
		var cached []interface{}
		if c.cache.Get(ctx, cacheKey, &cached) {
			return cached, nil
		}
	}

	quotedField := c.dialect.QuoteIdentifier(field)
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT %d",
		quotedField, c.qualifiedTable(table), quotedField, quotedField, limit,
	)
	rows, cols, err := c.queryRows(ctx, query)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[cols[0]])
	}
	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, values)
	}
	return values, nil
}

// detectTimeField 按候选列表自动探测时间字段
func (c *Connection) detectTimeField(ctx context.Context, table string) (string, error) {
	fields, err := c.ListFields(ctx, table)
	if err != nil {
		return "", err
	}
	byName := make(map[string]bool, len(fields))
	for _, f := range fields {
		byName[strings.ToLower(f.Name)] = true
	}
	for _, candidate := range timeFieldCandidates {
		if byName[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("表 %s 中未找到时间字段", table)
}

// GetTagData 获取位号时序数据
// 按时间倒序取最新 limit 条后再按时间升序返回，limit 上限 2000
func (c *Connection) GetTagData(ctx context.Context, table, tagField string, start, end *time.Time, limit int) ([]TagPoint, error) {
	if limit <= 0 || limit > maxTagLimit {
		limit = defaultTagLimit
	}
	timeField, err := c.detectTimeField(ctx, table)
	if err != nil {
		return nil, err
	}

	quotedTag := c.dialect.QuoteIdentifier(tagField)
	quotedTime := c.dialect.QuoteIdentifier(timeField)
	conditions := []string{fmt.Sprintf("%s IS NOT NULL", quotedTag)}
	if start != nil {
		conditions = append(conditions, fmt.Sprintf("%s >= '%s'", quotedTime, start.Format("2006-01-02 15:04:05")))
	}
	if end != nil {
		conditions = append(conditions, fmt.Sprintf("%s <= '%s'", quotedTime, end.Format("2006-01-02 15:04:05")))
	}
	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s ORDER BY %s DESC LIMIT %d",
		quotedTime, quotedTag, c.qualifiedTable(table),
		strings.Join(conditions, " AND "), quotedTime, limit,
	)
	rows, cols, err := c.queryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	points := make([]TagPoint, 0, len(rows))
	for _, row := range rows {
		ts, err := cast.ToTimeE(row[cols[0]])
		if err != nil {
			continue
		}
		value, err := cast.ToFloat64E(row[cols[1]])
		if err != nil {
			continue
		}
		points = append(points, TagPoint{Time: ts, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

// GetWellParameterSequence 获取单井参数序列，按时间升序，上限 50000 行
func (c *Connection) GetWellParameterSequence(ctx context.Context, table, wellField, wellName, paramField string) ([]SequencePoint, error) {
	timeField, err := c.detectTimeField(ctx, table)
	if err != nil {
		return nil, err
	}

	quotedWell := c.dialect.QuoteIdentifier(wellField)
	quotedParam := c.dialect.QuoteIdentifier(paramField)
	quotedTime := c.dialect.QuoteIdentifier(timeField)
	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s = '%s' AND %s IS NOT NULL ORDER BY %s ASC LIMIT %d",
		quotedTime, quotedParam, c.qualifiedTable(table),
		quotedWell, escapeString(wellName), quotedParam, quotedTime, maxSequenceRows,
	)
	rows, cols, err := c.queryRows(ctx, query)
	if err != nil {
		return nil, err
	}

	points := make([]SequencePoint, 0, len(rows))
	for i, row := range rows {
		value, err := cast.ToFloat64E(row[cols[1]])
		if err != nil {
			continue
		}
		ts, _ := cast.ToTimeE(row[cols[0]])
		points = append(points, SequencePoint{Time: ts, Value: value, Row: i})
	}
	return points, nil
}

// ReadInBatches 按 LIMIT/OFFSET 分批读取全表，fn 返回错误时中止
func (c *Connection) ReadInBatches(ctx context.Context, table string, batchSize int, fn func(rows []map[string]interface{}) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	offset := 0
	for {
		query := fmt.Sprintf(
			"SELECT * FROM %s LIMIT %d OFFSET %d",
			c.qualifiedTable(table), batchSize, offset,
		)
		rows, _, err := c.queryRows(ctx, query)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		if len(rows) < batchSize {
			return nil
		}
		offset += batchSize
	}
}
