/*
 * @module service/fieldmapping/service
 * @description 字段映射注册表：加载业务数据规范工作簿，将库表字段名解析为标准中文名
 * @architecture 业务逻辑层 - 字段映射
 * @stateFlow 工作簿加载 -> 变体注册 -> 精确/变体/模糊逐级解析
 * @rules 列头按子串自动识别（英文/代码/code 与 名称/name）；模糊匹配阈值 0.6
 * @dependencies github.com/xuri/excelize/v2
 * @refs similarity.go, service/textquality/
 */

package fieldmapping

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

const fuzzyThreshold = 0.6

// Mapping 单条字段映射
type Mapping struct {
	Code        string `json:"code"`
	ChineseName string `json:"chinese_name"`
}

// Service 字段映射注册表
type Service struct {
	mu       sync.RWMutex
	exact    map[string]string // 原始代码 -> 中文名
	lower    map[string]string // 小写代码 -> 中文名
	variants map[string]string // 去下划线/连字符变体 -> 中文名
	mappings []Mapping
}

// NewService 创建空注册表
func NewService() *Service {
	return &Service{
		exact:    make(map[string]string),
		lower:    make(map[string]string),
		variants: make(map[string]string),
	}
}

// LoadWorkbook 从业务数据规范工作簿加载映射
// 在首个工作表中按列头子串识别代码列与名称列
func (s *Service) LoadWorkbook(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("打开字段映射工作簿失败: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("字段映射工作簿无工作表")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("读取字段映射工作簿失败: %w", err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("字段映射工作簿内容为空")
	}

	codeCol, nameCol := -1, -1
	for i, header := range rows[0] {
		h := strings.TrimSpace(header)
		lower := strings.ToLower(h)
		if codeCol < 0 && (strings.Contains(h, "英文") || strings.Contains(h, "代码") || strings.Contains(lower, "code")) {
			codeCol = i
		}
		if nameCol < 0 && (strings.Contains(h, "名称") || strings.Contains(lower, "name")) && i != codeCol {
			nameCol = i
		}
	}
	if codeCol < 0 || nameCol < 0 {
		return fmt.Errorf("字段映射工作簿未识别出代码列或名称列")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, row := range rows[1:] {
		if len(row) <= codeCol || len(row) <= nameCol {
			continue
		}
		code := strings.TrimSpace(row[codeCol])
		name := strings.TrimSpace(row[nameCol])
		if code == "" || name == "" {
			continue
		}
		s.registerLocked(code, name)
		count++
	}
	slog.Info("字段映射加载完成", "path", path, "count", count)
	return nil
}

// Register 注册单条映射及其变体
func (s *Service) Register(code, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(code, name)
}

func (s *Service) registerLocked(code, name string) {
	s.exact[code] = name
	s.lower[strings.ToLower(code)] = name
	for _, variant := range codeVariants(code) {
		s.variants[variant] = name
	}
	s.mappings = append(s.mappings, Mapping{Code: code, ChineseName: name})
}

// codeVariants 生成小写、去下划线、去连字符变体
func codeVariants(code string) []string {
	lower := strings.ToLower(code)
	return []string{
		lower,
		strings.ReplaceAll(lower, "_", ""),
		strings.ReplaceAll(lower, "-", ""),
		strings.ReplaceAll(strings.ReplaceAll(lower, "_", ""), "-", ""),
	}
}

// GetChineseName 解析字段中文名：精确 -> 小写 -> 变体 -> 模糊，
// 全部未命中时原样返回字段名
func (s *Service) GetChineseName(field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name, ok := s.exact[field]; ok {
		return name
	}
	if name, ok := s.lower[strings.ToLower(field)]; ok {
		return name
	}
	normalized := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(field), "_", ""), "-", "")
	if name, ok := s.variants[normalized]; ok {
		return name
	}
	if name, ok := s.fuzzyMatchLocked(field); ok {
		return name
	}
	return field
}

// fuzzyMatchLocked 模糊匹配，取最高分且不低于阈值的映射
func (s *Service) fuzzyMatchLocked(field string) (string, bool) {
	bestScore := 0.0
	bestName := ""
	for _, m := range s.mappings {
		score := Similarity(strings.ToLower(field), strings.ToLower(m.Code))
		if score > bestScore {
			bestScore = score
			bestName = m.ChineseName
		}
	}
	if bestScore >= fuzzyThreshold {
		return bestName, true
	}
	return "", false
}

// GetFieldInfo 查询字段映射，未命中返回 false
func (s *Service) GetFieldInfo(field string) (*Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.exact[field]; ok {
		return &Mapping{Code: field, ChineseName: name}, true
	}
	if name, ok := s.lower[strings.ToLower(field)]; ok {
		return &Mapping{Code: field, ChineseName: name}, true
	}
	return nil, false
}

// SearchFields 按关键字搜索映射（代码或中文名包含即命中）
func (s *Service) SearchFields(keyword string) []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyword = strings.ToLower(keyword)
	out := make([]Mapping, 0)
	for _, m := range s.mappings {
		if strings.Contains(strings.ToLower(m.Code), keyword) || strings.Contains(m.ChineseName, keyword) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ruleNameSuffixes 规则类型到中文名后缀
var ruleNameSuffixes = map[string]string{
	"range":                "范围检查",
	"range_2sigma":         "范围检查",
	"range_percentile":     "范围检查",
	"outlier_3sigma":       "异常值检查",
	"outlier_iqr":          "异常值检查",
	"outlier_zscore":       "异常值检查",
	"cluster_kmeans":       "聚类检查",
	"cluster_dbscan":       "聚类检查",
	"cluster_group_ranges": "分组范围检查",
	"depth_interval_stats": "深度分段检查",
	"frequency_analysis":   "频率检查",
	"distribution_check":   "分布检查",
	"correlation_check":    "相关性检查",
	"text_quality":         "文本质检",
}

// GetRuleNameTranslation 生成规则中文名：字段中文名 + 规则类型后缀
func (s *Service) GetRuleNameTranslation(field, ruleType string) string {
	name := s.GetChineseName(field)
	suffix, ok := ruleNameSuffixes[ruleType]
	if !ok {
		suffix = "质量检查"
	}
	return name + suffix
}

// Size 当前注册映射数量
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}
