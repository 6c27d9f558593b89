/*
 * @module service/fieldmapping/service_test
 * @description 字段映射注册表单元测试
 * @architecture 测试层
 * @dependencies testing, github.com/stretchr/testify/assert
 * @refs service.go, similarity.go
 */

package fieldmapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	// 同名满分
	assert.Equal(t, 1.0, Similarity("well_name", "well_name"))

	// 近似字段名得分高于阈值
	assert.GreaterOrEqual(t, Similarity("porosity_avg", "porosity"), 0.6)
	assert.GreaterOrEqual(t, Similarity("well-name", "well_name"), 0.6)

	// 无关字段名得分低
	assert.Less(t, Similarity("gamma_ray", "density"), 0.6)
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestWordJaccard(t *testing.T) {
	assert.Equal(t, 1.0, wordJaccard("well_name", "well name"))
	assert.InDelta(t, 2.0/3.0, wordJaccard("well_name", "well_depth_name"), 1e-9)
	assert.Equal(t, 0.0, wordJaccard("porosity", ""))
}

func TestGetChineseNameTiers(t *testing.T) {
	s := NewService()
	s.Register("POROSITY", "孔隙度")
	s.Register("well_name", "井名")
	s.Register("gamma_ray", "自然伽马")

	// 精确命中
	assert.Equal(t, "孔隙度", s.GetChineseName("POROSITY"))
	// 大小写归一
	assert.Equal(t, "孔隙度", s.GetChineseName("porosity"))
	// 去分隔符变体
	assert.Equal(t, "井名", s.GetChineseName("WELLNAME"))
	assert.Equal(t, "自然伽马", s.GetChineseName("gamma-ray"))
	// 模糊匹配
	assert.Equal(t, "孔隙度", s.GetChineseName("porosity_value"))
	// 未命中原样返回
	assert.Equal(t, "unknown_field_xyz", s.GetChineseName("unknown_field_xyz"))
}

func TestGetFieldInfo(t *testing.T) {
	s := NewService()
	s.Register("density", "密度")

	info, ok := s.GetFieldInfo("density")
	assert.True(t, ok)
	assert.Equal(t, "密度", info.ChineseName)

	_, ok = s.GetFieldInfo("missing")
	assert.False(t, ok)
}

func TestSearchFields(t *testing.T) {
	s := NewService()
	s.Register("porosity", "孔隙度")
	s.Register("effe_porosity", "有效孔隙度")
	s.Register("density", "密度")

	results := s.SearchFields("porosity")
	assert.Len(t, results, 2)
	assert.Equal(t, "effe_porosity", results[0].Code)

	results = s.SearchFields("密度")
	assert.Len(t, results, 1)
}

func TestGetRuleNameTranslation(t *testing.T) {
	s := NewService()
	s.Register("porosity", "孔隙度")

	assert.Equal(t, "孔隙度范围检查", s.GetRuleNameTranslation("porosity", "range"))
	assert.Equal(t, "孔隙度异常值检查", s.GetRuleNameTranslation("porosity", "outlier_iqr"))
	assert.Equal(t, "孔隙度质量检查", s.GetRuleNameTranslation("porosity", "something_else"))
}
