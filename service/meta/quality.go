/*
 * @module service/meta/quality
 * @description 质量检测相关的元数据常量定义
 * @architecture 元数据层
 * @rules 规则类型集合封闭，生成与校验引擎只接受这里列出的类型
 * @refs service/rulegen/, service/rulecheck/
 */

package meta

// 数据源类型
const (
	DBTypePostgreSQL = "postgresql"
	DBTypeMySQL      = "mysql"
)

// 检查类型
const (
	CheckTypeRule     = "rule"
	CheckTypeTextLLM  = "text_llm"
	CheckTypeSequence = "sequence"
)

// 规则类型，生成引擎按类型分发
const (
	RuleTypeRange             = "range"
	RuleTypeRange2Sigma       = "range_2sigma"
	RuleTypeRangePercentile   = "range_percentile"
	RuleTypeManualRange       = "manual_range"
	RuleTypeOutlier3Sigma     = "outlier_3sigma"
	RuleTypeOutlierIQR        = "outlier_iqr"
	RuleTypeOutlierZScore     = "outlier_zscore"
	RuleTypeClusterKMeans     = "cluster_kmeans"
	RuleTypeClusterDBSCAN     = "cluster_dbscan"
	RuleTypeClusterGroupRange = "cluster_group_ranges"
	RuleTypeDepthIntervalStat = "depth_interval_stats"
	RuleTypeFrequency         = "frequency_analysis"
	RuleTypeDistribution      = "distribution_check"
	RuleTypeCorrelation       = "correlation_check"
)

// RuleTypes 全部合法规则类型
var RuleTypes = []string{
	RuleTypeRange,
	RuleTypeRange2Sigma,
	RuleTypeRangePercentile,
	RuleTypeManualRange,
	RuleTypeOutlier3Sigma,
	RuleTypeOutlierIQR,
	RuleTypeOutlierZScore,
	RuleTypeClusterKMeans,
	RuleTypeClusterDBSCAN,
	RuleTypeClusterGroupRange,
	RuleTypeDepthIntervalStat,
	RuleTypeFrequency,
	RuleTypeDistribution,
	RuleTypeCorrelation,
}

// IsValidRuleType 判断规则类型是否合法
func IsValidRuleType(t string) bool {
	for _, rt := range RuleTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// 序列模型类型
const (
	SequenceModelWid     = "wid"
	SequenceModelDepth   = "depth"
	SequenceModelSns     = "sns"
	SequenceModelArc     = "arc"
	SequenceModelGeneric = "generic"
)

// 规则版本号，保存规则时统一使用 current 版本
const RuleVersionCurrent = "current"
