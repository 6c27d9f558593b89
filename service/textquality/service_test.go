/*
 * @module service/textquality/service_test
 * @description 文本质检服务单元测试：井名校验、响应解析、LLM 故障降级
 * @architecture 测试层
 * @stateFlow 构造请求与桩 LLM -> 执行质检 -> 断言结论与入库结果
 * @dependencies testing, github.com/stretchr/testify
 * @refs service.go, wellname.go, parser.go
 */

package textquality

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"geodata-quality-service/service/meta"
	"geodata-quality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter 测试桩，按预设响应或错误应答
type stubCompleter struct {
	response string
	err      error
	calls    int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestWellNameCheck(t *testing.T) {
	checker := NewWellNameChecker()
	checker.AddBlockCode("BZ")

	tests := []struct {
		value  string
		passed bool
		detail string
	}{
		// 白名单前缀命中直接放行，不做格式校验
		{"BZ25-1-A5H", true, "白名单代号: BZ，直接放行"},
		{"BZ-FOO", true, "白名单代号: BZ，直接放行"},
		// 白名单未命中但格式合规，照样通过
		{"XY12-3-B7", true, "油田:XY12-3, 井区:B, 井号:7"},
		{"ABC", false, "井名格式不符合规范: ABC"},
		{"", false, "井名为空"},
		{"  ", false, "井名为空"},
	}
	for _, tt := range tests {
		ok, detail := checker.Check(tt.value)
		assert.Equal(t, tt.passed, ok, tt.value)
		assert.Equal(t, tt.detail, detail, tt.value)
	}
}

func TestWellNameCheckWithoutWhitelist(t *testing.T) {
	// 未加载白名单时只做格式校验
	checker := NewWellNameChecker()
	ok, detail := checker.Check("BZ25-1-A5H")
	assert.True(t, ok)
	assert.Equal(t, "油田:BZ25-1, 井区:A, 井号:5, 标记:H", detail)

	ok, _ = checker.Check("BZ-FOO")
	assert.False(t, ok)
}

func TestWellNameMarkers(t *testing.T) {
	checker := NewWellNameChecker()
	// 输入先统一大写，小写井名等价于大写形式
	valid := []string{"BZ25-1-A5", "bz25-1-a5h", "BZ25-1-A5H2", "BZ25-1-A5M1", "BZ25-1-A5P1", "BZ25-1-A5S3", "BZ25-1-4-A12"}
	for _, name := range valid {
		ok, _ := checker.Check(name)
		assert.True(t, ok, name)
	}
	invalid := []string{"BZ25-1-5A", "BZ-A5", "BZ25-1-A5X1", "BZ25-1-A5M1a2"}
	for _, name := range invalid {
		ok, _ := checker.Check(name)
		assert.False(t, ok, name)
	}
}

func TestBuildBatchPromptStructure(t *testing.T) {
	records := []RecordItem{{Index: 0, Value: "示例内容"}}
	prompt := BuildBatchPrompt("remark", "备注", []string{"内容应完整无乱码"}, records)

	assert.Contains(t, prompt, "【规则语言理解指南】")
	assert.Contains(t, prompt, "IF-THEN")
	assert.Contains(t, prompt, "is_null_or_blank")
	assert.Contains(t, prompt, "记录{编号}|remark|{结果}|{详细说明}")

	// 规则语言说明必须出现在待审核记录之前
	primer := strings.Index(prompt, "【规则语言理解指南】")
	list := strings.Index(prompt, "待审核记录：")
	require.Greater(t, list, primer)
	assert.Contains(t, prompt[list:], "记录0: 示例内容")
}

func TestParseBatchResponseExact(t *testing.T) {
	records := []RecordItem{{Index: 0, Value: "正常描述"}, {Index: 1, Value: "乱码##"}}
	response := "记录0|remark|合格|内容符合规范\n记录1|remark|不合格|存在乱码字符"

	verdicts := ParseBatchResponse(response, "remark", records)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].Passed)
	assert.False(t, verdicts[1].Passed)
	assert.Equal(t, "存在乱码字符", verdicts[1].Detail)
}

func TestParseBatchResponseLoose(t *testing.T) {
	records := []RecordItem{{Index: 0}, {Index: 1}}
	// 字段名不匹配精确层，落入宽松层
	response := "记录0的内容不合格，存在问题\n记录1 合格"

	verdicts := ParseBatchResponse(response, "remark", records)
	require.Len(t, verdicts, 2)
	assert.False(t, verdicts[0].Passed)
	assert.True(t, verdicts[1].Passed)
}

func TestParseBatchResponseMentionedUnresolved(t *testing.T) {
	records := []RecordItem{{Index: 0}, {Index: 1}}
	// 记录0被提及但无结论，记录1未被提及
	response := "记录0的情况比较复杂"

	verdicts := ParseBatchResponse(response, "remark", records)
	require.Len(t, verdicts, 2)
	assert.False(t, verdicts[0].Passed)
	assert.Equal(t, "检查结论无法解析，需人工复核", verdicts[0].Detail)
	assert.True(t, verdicts[1].Passed)
	assert.Equal(t, "未处理", verdicts[1].Detail)
}

func TestRunCheckWithLLM(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	llm := &stubCompleter{response: "记录0|remark|合格|内容符合规范\n记录1|remark|不合格|存在乱码字符"}
	svc := NewService(tdb.DB, llm, nil, NewWellNameChecker(), nil)

	result, err := svc.RunCheck(context.Background(), CheckRequest{
		DataSourceName: "测试数据源",
		TableName:      "drilling_log",
		Fields:         []string{"remark"},
		Rows: []map[string]interface{}{
			{"remark": "正常描述"},
			{"remark": "乱码##"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, meta.CheckTypeTextLLM, result.CheckType)
	assert.Equal(t, int64(2), result.TotalRecords)
	assert.Equal(t, int64(1), result.FailedRecords)
	assert.Equal(t, 50.0, result.PassRate)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "文本质检-remark", result.Reports[0].RuleName)
	assert.Equal(t, 1, llm.calls)
}

func TestRunCheckLLMOutageDegradesToAllPass(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	llm := &stubCompleter{err: fmt.Errorf("connection refused")}
	svc := NewService(tdb.DB, llm, nil, NewWellNameChecker(), nil)
	svc.retryDelay = 10 * time.Millisecond

	start := time.Now()
	result, err := svc.RunCheck(context.Background(), CheckRequest{
		DataSourceName: "测试数据源",
		TableName:      "drilling_log",
		Fields:         []string{"remark"},
		Rows: []map[string]interface{}{
			{"remark": "描述一"},
			{"remark": "描述二"},
		},
	})
	require.NoError(t, err)

	// 降级响应未提及任何记录，全部按合格处理
	assert.Equal(t, int64(2), result.PassedRecords)
	assert.Equal(t, int64(0), result.FailedRecords)
	assert.Equal(t, 100.0, result.PassRate)
	assert.Equal(t, 3, llm.calls)
	// 重试间隔逐次翻倍：10ms + 20ms 为耗时下限
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRunCheckWellNameFastPath(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	llm := &stubCompleter{}
	checker := NewWellNameChecker()
	checker.AddBlockCode("BZ")
	svc := NewService(tdb.DB, llm, nil, checker, nil)

	result, err := svc.RunCheck(context.Background(), CheckRequest{
		DataSourceName: "测试数据源",
		TableName:      "well_header",
		Fields:         []string{"well_name"},
		Rows: []map[string]interface{}{
			{"well_name": "BZ25-1-A5H"},
			{"well_name": "ABC"},
		},
	})
	require.NoError(t, err)

	// 井名字段不经过 LLM
	assert.Equal(t, 0, llm.calls)
	assert.Equal(t, int64(1), result.FailedRecords)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, int64(1), result.Reports[0].FailedCount)
}

func TestRunCheckBatching(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	llm := &stubCompleter{response: "所有记录均合格"}
	svc := NewService(tdb.DB, llm, nil, NewWellNameChecker(), nil)
	svc.batchInterval = time.Millisecond

	rows := make([]map[string]interface{}, 5)
	for i := range rows {
		rows[i] = map[string]interface{}{"remark": fmt.Sprintf("描述%d", i)}
	}

	result, err := svc.RunCheck(context.Background(), CheckRequest{
		DataSourceName: "测试数据源",
		TableName:      "drilling_log",
		Fields:         []string{"remark"},
		Rows:           rows,
		BatchSize:      2,
	})
	require.NoError(t, err)
	// 5 条记录按批次大小 2 拆成 3 批
	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, int64(5), result.PassedRecords)
}
