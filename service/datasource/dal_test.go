/*
 * @module service/datasource/dal_test
 * @description 数据访问层单元测试：标识符引用、编码解码、方言 DSN 与凭据加解密
 * @architecture 测试层
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs quoting.go, encoding.go, postgresql.go, mysql.go, credentials.go
 */

package datasource

import (
	"testing"

	"geodata-quality-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestNeedsQuoting(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"well_name", false},
		{"porosity2", false},
		{"WellName", true},
		{"well name", true},
		{"temp(°C)", true},
		{"depth-m", true},
		{"a.b", true},
		{"value(avg)", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, needsQuoting(tt.name), tt.name)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	pg := PostgreSQLDialect{}
	my := MySQLDialect{}

	// 小写安全标识符不引用
	assert.Equal(t, "well_name", pg.QuoteIdentifier("well_name"))
	assert.Equal(t, "well_name", my.QuoteIdentifier("well_name"))

	// 特殊字符标识符按方言引用
	assert.Equal(t, `"Temp(°C)"`, pg.QuoteIdentifier("Temp(°C)"))
	assert.Equal(t, "`Temp(°C)`", my.QuoteIdentifier("Temp(°C)"))

	// 内部引用符翻倍
	assert.Equal(t, `"a""b."`, pg.QuoteIdentifier(`a"b.`))
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, "O''Brien", escapeString("O'Brien"))
	assert.Equal(t, "plain", escapeString("plain"))
}

func TestDecodeBytes(t *testing.T) {
	// GBK 编码的"孔隙度"还原为 UTF-8
	gbkBytes, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("孔隙度"))
	require.NoError(t, err)
	assert.Equal(t, "孔隙度", decodeBytes(gbkBytes))

	// 合法 UTF-8 原样保留，不被 latin1 二次解码
	assert.Equal(t, "孔隙度", decodeBytes([]byte("孔隙度")))
	assert.Equal(t, "é A", decodeBytes([]byte("é A")))

	// 既非 UTF-8 也非 GBK 的字节退到 latin1，无损映射
	raw := []byte{0xE9, 0x20, 0x41}
	assert.Equal(t, "é A", decodeBytes(raw))
}

func TestDecodeBytesIdempotent(t *testing.T) {
	// 修复一次之后的输出再次修复不变
	gbkBytes, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("密度"))
	require.NoError(t, err)
	once := decodeBytes(gbkBytes)
	assert.Equal(t, once, decodeBytes([]byte(once)))
}

func TestBuildDSN(t *testing.T) {
	ds := &models.DataSource{
		Host:     "db.example.com",
		Port:     5432,
		Database: "welldata",
		Username: "reader",
	}

	pg := PostgreSQLDialect{}
	dsn := pg.BuildDSN(ds, "secret", EncodingGBK)
	assert.Contains(t, dsn, "host=db.example.com")
	assert.Contains(t, dsn, "client_encoding=GBK")

	ds.Port = 3306
	my := MySQLDialect{}
	dsn = my.BuildDSN(ds, "secret", EncodingUTF8)
	assert.Contains(t, dsn, "tcp(db.example.com:3306)")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestCredentialsRoundTrip(t *testing.T) {
	encrypted, err := EncryptPassword("s3cret!密码")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!密码", encrypted)

	decrypted, err := DecryptPassword(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "s3cret!密码", decrypted)

	// 同一明文两次加密产生不同密文
	again, err := EncryptPassword("s3cret!密码")
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again)

	_, err = DecryptPassword("not base64!!")
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	pg, err := dialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "postgresql", pg.Name())

	my, err := dialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, "mysql", my.Name())

	_, err = dialectFor("oracle")
	assert.Error(t, err)
}

func TestListFieldsSQLIncludesKeyAndDefault(t *testing.T) {
	pgQuery, _ := PostgreSQLDialect{}.ListFieldsSQL("well_log")
	assert.Contains(t, pgQuery, "is_primary")
	assert.Contains(t, pgQuery, "field_default")

	myQuery, _ := MySQLDialect{}.ListFieldsSQL("well_log")
	assert.Contains(t, myQuery, "is_primary")
	assert.Contains(t, myQuery, "column_default")
}

func TestSessionSetupSQL(t *testing.T) {
	pg := PostgreSQLDialect{}
	assert.Equal(t, "SET client_encoding TO 'GBK'", pg.SessionSetupSQL(EncodingGBK))
	assert.Equal(t, "SET client_encoding TO 'UTF8'", pg.SessionSetupSQL(EncodingUTF8))
	// 未知编码回落 UTF8
	assert.Equal(t, "SET client_encoding TO 'UTF8'", pg.SessionSetupSQL("big5"))

	// MySQL 编码由 DSN 覆盖，无会话级语句
	assert.Equal(t, "", MySQLDialect{}.SessionSetupSQL(EncodingGBK))
}

func TestClampDistinctLimit(t *testing.T) {
	assert.Equal(t, 1000, clampDistinctLimit(0))
	assert.Equal(t, 1000, clampDistinctLimit(-5))
	assert.Equal(t, 1000, clampDistinctLimit(5000))
	assert.Equal(t, 200, clampDistinctLimit(200))
}
