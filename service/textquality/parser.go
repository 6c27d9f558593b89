/*
 * @module service/textquality/parser
 * @description LLM 响应分层解析：精确行匹配、宽松编号匹配、存疑复核、未提及默认合格
 * @architecture 业务逻辑层 - 文本质检
 * @stateFlow 精确格式解析 -> 宽松编号解析 -> 提及但无法解析判不合格 -> 未提及判合格
 * @rules 未提及的记录视为未处理默认合格；被提及但无明确结论的记录需人工复核
 * @refs prompt.go, service.go
 */

package textquality

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Verdict 单条记录的质检结论
type Verdict struct {
	Index  int    `json:"index"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// 精确格式：记录{编号}|{字段名}|{结果}|{详细说明}
var exactLineRegex = regexp.MustCompile(`记录(\d+)\s*\|\s*([^|]+)\s*\|\s*(合格|不合格)\s*\|\s*(.*)`)

// 宽松格式：行内出现 记录{编号} 且带有结论
var looseLineRegex = regexp.MustCompile(`记录(\d+)[^\d]*?(不合格|合格)`)

// 编号提及
var mentionRegex = regexp.MustCompile(`记录(\d+)`)

// ParseBatchResponse 解析单批次响应，为每条记录给出结论
func ParseBatchResponse(response, fieldName string, records []RecordItem) []Verdict {
	resolved := make(map[int]Verdict)

	lines := strings.Split(response, "\n")

	// 第一层：精确格式且字段名一致
	for _, line := range lines {
		m := exactLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx := cast.ToInt(m[1])
		if strings.TrimSpace(m[2]) != fieldName {
			continue
		}
		if _, done := resolved[idx]; done {
			continue
		}
		detail := strings.TrimSpace(m[4])
		resolved[idx] = Verdict{Index: idx, Passed: m[3] == "合格", Detail: detail}
	}

	// 第二层：宽松编号匹配
	for _, line := range lines {
		m := looseLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx := cast.ToInt(m[1])
		if _, done := resolved[idx]; done {
			continue
		}
		detail := strings.TrimSpace(line)
		resolved[idx] = Verdict{Index: idx, Passed: m[2] == "合格", Detail: detail}
	}

	// 第三层：被提及但无法解析出结论的编号
	mentioned := make(map[int]bool)
	for _, m := range mentionRegex.FindAllStringSubmatch(response, -1) {
		mentioned[cast.ToInt(m[1])] = true
	}

	verdicts := make([]Verdict, 0, len(records))
	for _, r := range records {
		if v, ok := resolved[r.Index]; ok {
			verdicts = append(verdicts, v)
			continue
		}
		if mentioned[r.Index] {
			verdicts = append(verdicts, Verdict{Index: r.Index, Passed: false, Detail: "检查结论无法解析，需人工复核"})
			continue
		}
		// 第四层：未提及默认合格
		verdicts = append(verdicts, Verdict{Index: r.Index, Passed: true, Detail: "未处理"})
	}
	return verdicts
}
