package textquality

import (
	"path/filepath"
	"testing"

	"geodata-quality-service/service/models"
	"geodata-quality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeKnowledgeWorkbook 生成知识库工作簿测试文件
func writeKnowledgeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Category", "Variable", "质量规范描述"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "knowledge.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestImportWorkbookAndSpecsFor(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewKnowledgeService(tdb.DB)

	path := writeKnowledgeWorkbook(t, [][]interface{}{
		{"钻井", "well_name", "井名必须符合海上油田命名规范"},
		{"钻井", "remark", "备注内容应完整无乱码"},
		{"钻井", "", "变量为空的行跳过"},
	})

	kb, err := svc.ImportWorkbook("钻井数据规范", path)
	require.NoError(t, err)
	require.NotEmpty(t, kb.ID)

	var count int64
	tdb.DB.Model(&models.KnowledgeBaseEntry{}).Where("knowledge_base_id = ?", kb.ID).Count(&count)
	assert.Equal(t, int64(2), count)

	// 大小写不敏感检索
	specs := svc.SpecsFor("WELL_NAME")
	require.Len(t, specs, 1)
	assert.Equal(t, "井名必须符合海上油田命名规范", specs[0])

	assert.Empty(t, svc.SpecsFor("porosity"))
}

func TestImportWorkbookReplacesSameName(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewKnowledgeService(tdb.DB)

	first := writeKnowledgeWorkbook(t, [][]interface{}{
		{"钻井", "remark", "旧规范"},
	})
	kb1, err := svc.ImportWorkbook("钻井数据规范", first)
	require.NoError(t, err)

	second := writeKnowledgeWorkbook(t, [][]interface{}{
		{"钻井", "remark", "新规范"},
		{"钻井", "well_name", "井名规范"},
	})
	kb2, err := svc.ImportWorkbook("钻井数据规范", second)
	require.NoError(t, err)
	assert.NotEqual(t, kb1.ID, kb2.ID)

	// 同名整体替换，旧条目不再检索得到
	specs := svc.SpecsFor("remark")
	require.Len(t, specs, 1)
	assert.Equal(t, "新规范", specs[0])

	list, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteKnowledgeBase(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewKnowledgeService(tdb.DB)

	path := writeKnowledgeWorkbook(t, [][]interface{}{
		{"钻井", "remark", "规范"},
	})
	kb, err := svc.ImportWorkbook("钻井数据规范", path)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(kb.ID))

	var count int64
	tdb.DB.Model(&models.KnowledgeBaseEntry{}).Count(&count)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, svc.SpecsFor("remark"))
}
