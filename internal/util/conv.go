package util

import "math"

// Round2 四舍五入保留 2 位小数，评分汇总统一用它
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp 将 v 限制在 [min, max] 区间内
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
