package datasource

import (
	"strings"
	"unicode"
)

// needsQuoting 判断标识符是否需要引用
// 包含大写字母或空格、括号、度符号、连字符、点号时必须引用
func needsQuoting(name string) bool {
	for _, r := range name {
		if unicode.IsUpper(r) {
			return true
		}
		switch r {
		case ' ', '(', ')', '°', '-', '.':
			return true
		}
	}
	return false
}

// quoteWith 使用指定引用符包裹标识符，内部引用符翻倍
func quoteWith(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// escapeString SQL 字符串字面量转义，单引号翻倍
func escapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
