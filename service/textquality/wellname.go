/*
 * @module service/textquality/wellname
 * @description 井名本地校验快速通道：区块代号白名单优先，其次正则格式校验
 * @architecture 业务逻辑层 - 文本质检
 * @stateFlow 空值判定 -> 白名单前缀放行 -> 正则格式校验
 * @rules 井名字段不经过 LLM；白名单来自区块信息 CSV 的代号列，GBK 编码
 * @dependencies golang.org/x/text/encoding/simplifiedchinese
 * @refs service.go
 */

package textquality

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// 井名格式：油田代号-井口区字母+井号+可选井别标识
var wellNameRegex = regexp.MustCompile(
	`^(?P<oil_field>[A-Z]+\d+(?:-\d+)*)-(?P<wellhead_area>[A-Z])(?P<well_number>\d+)(?P<well_marker>(?:H\d*|M\d*(?:[a-z]\d*)?|P\d+|S\d+)?)$`,
)

// 井名前导字母即区块代号
var wellPrefixRegex = regexp.MustCompile(`^([A-Z]+)`)

// WellNameChecker 井名校验器
type WellNameChecker struct {
	mu        sync.RWMutex
	whitelist map[string]bool
}

// NewWellNameChecker 创建井名校验器
func NewWellNameChecker() *WellNameChecker {
	return &WellNameChecker{whitelist: make(map[string]bool)}
}

// LoadBlockCodes 从区块信息 CSV 加载代号白名单
// 文件为 GBK 编码，取列头为 代号 的列，值统一大写去空白
func (c *WellNameChecker) LoadBlockCodes(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开区块信息文件失败: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, simplifiedchinese.GBK.NewDecoder()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("解析区块信息文件失败: %w", err)
	}
	if len(records) < 2 {
		return fmt.Errorf("区块信息文件内容为空")
	}

	codeCol := -1
	for i, header := range records[0] {
		if strings.Contains(strings.TrimSpace(header), "代号") {
			codeCol = i
			break
		}
	}
	if codeCol < 0 {
		return fmt.Errorf("区块信息文件缺少代号列")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range records[1:] {
		if len(row) <= codeCol {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(row[codeCol]))
		if code != "" {
			c.whitelist[code] = true
		}
	}
	return nil
}

// AddBlockCode 注册单个区块代号
func (c *WellNameChecker) AddBlockCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.whitelist[strings.ToUpper(strings.TrimSpace(code))] = true
}

// Check 校验井名，返回判定与说明
// 白名单前缀命中直接放行，不再做格式校验；否则走正则格式校验
func (c *WellNameChecker) Check(value string) (bool, string) {
	name := strings.ToUpper(strings.TrimSpace(value))
	if name == "" {
		return false, "井名为空"
	}

	if prefix := wellPrefixRegex.FindString(name); prefix != "" {
		c.mu.RLock()
		hit := c.whitelist[prefix]
		c.mu.RUnlock()
		if hit {
			return true, fmt.Sprintf("白名单代号: %s，直接放行", prefix)
		}
	}

	m := wellNameRegex.FindStringSubmatch(name)
	if m == nil {
		return false, fmt.Sprintf("井名格式不符合规范: %s", name)
	}
	explanation := fmt.Sprintf("油田:%s, 井区:%s, 井号:%s",
		m[wellNameRegex.SubexpIndex("oil_field")],
		m[wellNameRegex.SubexpIndex("wellhead_area")],
		m[wellNameRegex.SubexpIndex("well_number")])
	if marker := m[wellNameRegex.SubexpIndex("well_marker")]; marker != "" {
		explanation += fmt.Sprintf(", 标记:%s", marker)
	}
	return true, explanation
}
