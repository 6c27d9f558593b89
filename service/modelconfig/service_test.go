package modelconfig

import (
	"testing"

	"geodata-quality-service/service/models"
	"geodata-quality-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCRUD(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	minV, maxV := 1.0, 10.0
	config := &models.ModelConfig{
		Name:      "聚类模型配置",
		ModelType: "clustering",
		ModelName: "kmeans",
		Parameters: []models.ModelParameter{
			{ParamName: "n_clusters", ParamValue: "5", ParamType: "int", MinValue: &minV, MaxValue: &maxV},
		},
	}
	require.NoError(t, svc.CreateConfig(config))
	require.NotEmpty(t, config.ID)

	loaded, err := svc.GetConfig(config.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", loaded.Status)
	require.Len(t, loaded.Parameters, 1)

	updated, err := svc.UpdateConfig(config.ID, map[string]interface{}{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, "active", updated.Status)

	_, err = svc.UpdateConfig(config.ID, map[string]interface{}{"status": "bogus"})
	assert.Error(t, err)

	require.NoError(t, svc.DeleteConfig(config.ID))
	_, err = svc.GetConfig(config.ID)
	assert.Error(t, err)
}

func TestParameterValidation(t *testing.T) {
	tests := []struct {
		name  string
		param models.ModelParameter
		valid bool
	}{
		{"合法整数", models.ModelParameter{ParamName: "epochs", ParamValue: "20", ParamType: "int"}, true},
		{"非整数", models.ModelParameter{ParamName: "epochs", ParamValue: "abc", ParamType: "int"}, false},
		{"合法浮点", models.ModelParameter{ParamName: "eps", ParamValue: "0.5", ParamType: "float"}, true},
		{"合法布尔", models.ModelParameter{ParamName: "shuffle", ParamValue: "true", ParamType: "bool"}, true},
		{"未知类型", models.ModelParameter{ParamName: "x", ParamValue: "1", ParamType: "tensor"}, false},
		{"空参数名", models.ModelParameter{ParamValue: "1", ParamType: "int"}, false},
	}
	for _, tt := range tests {
		err := validateParameter(&tt.param)
		if tt.valid {
			assert.NoError(t, err, tt.name)
		} else {
			assert.Error(t, err, tt.name)
		}
	}

	// 超出取值范围
	maxV := 3.0
	param := models.ModelParameter{ParamName: "n_clusters", ParamValue: "5", ParamType: "int", MaxValue: &maxV}
	err := validateParameter(&param)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "大于最大值")
}

func TestTrainingHistory(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()
	svc := NewService(tdb.DB)

	history := &models.TrainingHistory{
		ModelName:      "孔隙度回归",
		ModelType:      "regression",
		Algorithm:      "random_forest",
		DataSourceID:   "ds-1",
		DataTable:      "well_logging",
		FeatureColumns: models.JSONBStringArray{"depth", "gamma_ray"},
		TargetColumn:   "porosity",
		Metrics:        models.JSONB{"r2": 0.92},
	}
	require.NoError(t, svc.RecordTraining(history))

	// 缺少特征列报错
	bad := &models.TrainingHistory{ModelName: "x", Algorithm: "kmeans"}
	assert.Error(t, svc.RecordTraining(bad))

	list, err := svc.ListTrainingHistory("regression", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	loaded, err := svc.GetTrainingHistory(history.ID)
	require.NoError(t, err)
	assert.Equal(t, "random_forest", loaded.Algorithm)

	require.NoError(t, svc.DeleteTrainingHistory(history.ID))
	list, err = svc.ListTrainingHistory("", 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
