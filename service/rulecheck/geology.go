/*
 * @module service/rulecheck/geology
 * @description 地质参数物理边界与深度区间合理范围计算
 * @architecture 业务逻辑层 - 校验支撑
 * @stateFlow 字段名子串匹配参数族 -> 按方法计算区间边界 -> 物理范围截断
 * @rules effe_porosity 必须先于 porosity 匹配；未命中参数族默认分位数方法并将负下界截断为 0
 * @refs engine.go
 */

package rulecheck

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// geoParameter 地质参数族的物理边界与边界计算方法
type geoParameter struct {
	keyword     string
	physicalMin *float64
	physicalMax *float64
	method      string // percentile, log_percentile
}

func f(v float64) *float64 { return &v }

// 按匹配优先级排列，长关键字在前避免被短关键字抢先命中
var geoParameters = []geoParameter{
	{"effe_porosity", f(0), f(50), "percentile"},
	{"porosity", f(0), f(50), "percentile"},
	{"permeability", f(0), nil, "log_percentile"},
	{"density", f(1), f(4), "percentile"},
	{"resistivity", f(0), nil, "log_percentile"},
	{"gamma_ray", f(0), f(300), "percentile"},
}

// geoParameterFor 按字段名子串匹配地质参数族，未命中返回 nil
func geoParameterFor(field string) *geoParameter {
	lower := strings.ToLower(field)
	for i := range geoParameters {
		if strings.Contains(lower, geoParameters[i].keyword) {
			return &geoParameters[i]
		}
	}
	return nil
}

// intervalBounds 计算单个深度区间的合理取值范围
// 返回下界、上界与实际使用的方法名
func intervalBounds(interval map[string]interface{}, geo *geoParameter) (float64, float64, string) {
	mean := cast.ToFloat64(interval["mean"])
	std := cast.ToFloat64(interval["std"])

	// 未命中参数族时默认按分位数方法取界
	method := "percentile"
	if geo != nil {
		method = geo.method
	}

	var lower, upper float64
	switch method {
	case "log_percentile":
		if mean > 0 && std > 0 {
			logMean := math.Log(mean)
			logStd := std / mean
			lower = math.Exp(logMean - 2*logStd)
			upper = math.Exp(logMean + 2*logStd)
		} else {
			lower = 0
			if mean > 0 {
				upper = mean * 3
			} else {
				upper = 100
			}
		}
	default:
		q05, ok05 := toFloat(interval["q05"])
		q95, ok95 := toFloat(interval["q95"])
		if ok05 && ok95 {
			lower, upper = q05, q95
		} else {
			q25, ok25 := toFloat(interval["q25"])
			q75, ok75 := toFloat(interval["q75"])
			if !ok25 {
				q25 = mean
			}
			if !ok75 {
				q75 = mean
			}
			iqr := q75 - q25
			lower, upper = q25-1.5*iqr, q75+1.5*iqr
		}
	}

	if geo != nil {
		if geo.physicalMin != nil && lower < *geo.physicalMin {
			lower = *geo.physicalMin
		}
		if geo.physicalMax != nil && upper > *geo.physicalMax {
			upper = *geo.physicalMax
		}
	} else if lower < 0 {
		// 未命中参数族的地质量一般仍非负，负下界收到 0
		lower = 0
	}
	return lower, upper, method
}

// toFloat 宽松数值转换，nil 与非数值返回 false
func toFloat(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	parsed, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
