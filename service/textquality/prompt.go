/*
 * @module service/textquality/prompt
 * @description 文本质检批次提示词构造：角色设定、规范引用、IF-THEN规则语言说明、输出格式与示例
 * @architecture 业务逻辑层 - 文本质检
 * @rules 输出格式固定为 记录{编号}|{字段名}|{结果}|{详细说明}，结果仅取 合格/不合格
 * @refs service.go, parser.go
 */

package textquality

import (
	"fmt"
	"strings"
)

// RecordItem 批次内单条待检记录
type RecordItem struct {
	Index int    // 原始数据行号
	Value string // 待检文本值
}

// BuildBatchPrompt 构造单字段单批次的质检提示词
func BuildBatchPrompt(fieldName, chineseName string, specs []string, records []RecordItem) string {
	var sb strings.Builder

	sb.WriteString("你是一名石油勘探开发领域的数据质量审核专家，负责审核钻井业务数据中文本字段的规范性。\n\n")

	sb.WriteString(fmt.Sprintf("本次审核字段：%s", fieldName))
	if chineseName != "" && chineseName != fieldName {
		sb.WriteString(fmt.Sprintf("（%s）", chineseName))
	}
	sb.WriteString("\n\n")

	if len(specs) > 0 {
		sb.WriteString("该字段适用的质量规范如下：\n")
		for i, spec := range specs {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, spec))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("该字段暂无专项质量规范，请依据石油行业通用数据规范判断：内容应完整、无乱码、无明显录入错误、与字段含义一致。\n\n")
	}

	sb.WriteString("【规则语言理解指南】\n")
	sb.WriteString("质检规范采用IF-THEN结构化逻辑，必须严格按照逻辑执行，不得有主观偏离：\n")
	sb.WriteString("1. 逻辑函数解释：\n")
	sb.WriteString("   - `is_null_or_blank(字段)` = 字段为空、null、NaN或仅包含空格\n")
	sb.WriteString("   - `字段 NOT IN {值1、值2}` = 字段值不在枚举列表中\n")
	sb.WriteString("   - `NOT (大于等于X并且小于等于Y)` = 数值不在[X,Y]范围内\n")
	sb.WriteString("2. 逻辑执行规则：\n")
	sb.WriteString("   - IF条件为真 → 触发错误 → 判定为 不合格\n")
	sb.WriteString("   - IF条件为假 → 不触发错误 → 该条规则通过\n")
	sb.WriteString("   - 多条规则任意一条触发即判 不合格，全部未触发才判 合格\n")
	sb.WriteString("3. 特别注意：数值范围须精确比较并带单位；枚举值须完全匹配；null、空字符串、纯空格都视为空值。\n\n")

	sb.WriteString("审核要求：\n")
	sb.WriteString("1. 逐条审核下列记录，每条记录单独给出结论；\n")
	sb.WriteString("2. 结论只能是 合格 或 不合格；\n")
	sb.WriteString("3. 不合格时必须在详细说明中指出具体问题；\n")
	sb.WriteString("4. 严格按照输出格式逐行输出，不要输出任何其他内容。\n\n")

	sb.WriteString("输出格式（每条记录一行）：\n")
	sb.WriteString(fmt.Sprintf("记录{编号}|%s|{结果}|{详细说明}\n\n", fieldName))

	sb.WriteString("输出示例：\n")
	sb.WriteString(fmt.Sprintf("记录1|%s|合格|内容符合规范\n", fieldName))
	sb.WriteString(fmt.Sprintf("记录2|%s|不合格|存在乱码字符\n", fieldName))
	sb.WriteString(fmt.Sprintf("记录3|%s|不合格|内容与字段含义不符\n", fieldName))
	sb.WriteString(fmt.Sprintf("记录4|%s|合格|描述完整清晰\n\n", fieldName))

	sb.WriteString("待审核记录：\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("记录%d: %s\n", r.Index, r.Value))
	}

	return sb.String()
}
