package bos

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/fieldmap"
)

// NEC 标准额定电流
var StandardAmpRatings = []int{
	15, 20, 25, 30, 35, 40, 45, 50, 60, 70, 80, 90, 100, 110, 125, 150, 175,
	200, 225, 250, 300, 350, 400, 450, 500, 600,
}

const (
	continuousLoadFactor = 1.25
	defaultMinAmps       = 30
)

// NextStandardRating 不小于 minimum 的最小标准额定值（超出表范围时返回 minimum）
func NextStandardRating(minimum int) int {
	for _, r := range StandardAmpRatings {
		if r >= minimum {
			return r
		}
	}
	return minimum
}

// InverterSizing 按逆变器最大连续输出计算隔离开关的最小额定电流
// 微逆按数量累加；无数据时返回默认 30A。
func InverterSizing(src Source, n int) (int, string) {
	return sizeFor(inverterLoad(src, n))
}

// ParseAmp 解析 "200A" 形式的额定值
func ParseAmp(v string) int {
	s := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(v)), "A")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func inverterLoad(src Source, n int) float64 {
	maxCont := src.Float(fieldmap.InverterMaxContOutput, n)
	if maxCont <= 0 {
		return 0
	}
	if src.String(fieldmap.InverterType, n) == derivation.InverterTypeMicro {
		if qty := src.Int(fieldmap.InverterQuantity, n); qty > 0 {
			return maxCont * float64(qty)
		}
	}
	return maxCont
}

// CombinedInverterSizing 合并系统按各活动子系统输出之和选型
func CombinedInverterSizing(src Source, subsystems []int) (int, string) {
	var total float64
	for _, n := range subsystems {
		total += inverterLoad(src, n)
	}
	return sizeFor(total)
}

func sizeFor(total float64) (int, string) {
	if total <= 0 {
		return defaultMinAmps, "no inverter output data, default 30A"
	}
	total = math.Round(total)
	minimum := int(math.Ceil(total * continuousLoadFactor))
	rating := NextStandardRating(minimum)
	return rating, fmt.Sprintf("%.0fA x 1.25 = %dA, next standard %dA", total, minimum, rating)
}
