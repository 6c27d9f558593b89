/*
 * @module service/fieldmapping/similarity
 * @description 字段名模糊匹配打分：字符级最长匹配块相似度与词集 Jaccard 的加权
 * @architecture 业务逻辑层 - 匹配支撑
 * @rules 综合得分 = 0.7·字符相似度 + 0.3·词集Jaccard，阈值 0.6
 * @refs service.go
 */

package fieldmapping

import (
	"strings"
)

// Similarity 综合相似度得分
func Similarity(a, b string) float64 {
	return 0.7*charSimilarity(a, b) + 0.3*wordJaccard(a, b)
}

// charSimilarity 字符级相似度：2M / (len(a)+len(b))，
// M 为全部最长匹配块的字符总数
func charSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 0
	}
	matched := matchedLength(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchedLength 递归求最长公共子串并对两侧剩余部分继续匹配
func matchedLength(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedLength(a[:ai], b[:bi])
	total += matchedLength(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch 求最长公共子串位置与长度
func longestMatch(a, b []rune) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j] 为以 a[i-1]/b[j-1] 结尾的公共子串长度
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > bestSize {
					bestSize = lengths[j]
					bestA = i - bestSize
					bestB = j - bestSize
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return bestA, bestB, bestSize
}

// wordJaccard 词集 Jaccard 相似度，按下划线/连字符/空格切词
func wordJaccard(a, b string) float64 {
	wordsA := splitWords(a)
	wordsB := splitWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// splitWords 切词并统一小写
func splitWords(s string) []string {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return fields
}
