/*
 * @module service/datasource/encoding
 * @description 客户端编码候选与字节修复链，兼容 GBK 历史库
 * @architecture 数据访问层
 * @rules 合法 UTF-8 原样保留，GBK 解码出现替换符视为失败，latin1 兜底
 * @dependencies golang.org/x/text
 * @refs dal.go, postgresql.go, mysql.go
 */

package datasource

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// 客户端编码候选，按顺序尝试直至连接成功
const (
	EncodingUTF8   = "utf8"
	EncodingGBK    = "gbk"
	EncodingLatin1 = "latin1"
)

var encodingCandidates = []string{EncodingUTF8, EncodingGBK, EncodingLatin1}

// decodeBytes 将数据库返回的原始字节修复为 UTF-8 字符串
// 已是合法 UTF-8 的字节原样保留（幂等），否则依次尝试 GBK 解码，
// 最后退到 latin1，latin1 对任意字节序列无损
func decodeBytes(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	// x/text 解码器对非法字节输出 U+FFFD 而不报错，出现替换符即视为 GBK 解码失败
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
		return string(out)
	}
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(b); err == nil {
		return string(out)
	}
	return string(b)
}
