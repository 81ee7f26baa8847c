package bos

import (
	"regexp"
	"strings"

	"skyfire-equipment/internal/domain"
)

// 需求表设备名 → 目录标准类型
var equipmentTypeMapping = map[string]string{
	"ac disconnect":            "AC Disconnect",
	"fused ac disconnect":      "Fused AC Disconnect",
	"disconnect":               "AC Disconnect",
	"utility disconnect":       "AC Disconnect",
	"der disconnect":           "AC Disconnect",
	"dg disconnect":            "AC Disconnect",
	"utility pv ac disconnect": "AC Disconnect",
	"pv meter":                 "PV Meter",
	"production meter":         "PV Meter",
	"meter":                    "PV Meter",
	"bi-directional meter":     "Bi-Directional Meter",
	"rapid shutdown":           "Rapid Shutdown Device",
	"combiner box":             "Combiner Box",
	"load center":              "Load Center",
}

// 需要按并网方式区分是否带保险丝的设备
const poiDependentType = "utility pv ac disconnect"

var fusedRequirementPOI = map[string]bool{
	"meter collar adapter":   true,
	"line (supply) side tap": true,
	"load side tap":          true,
}

// 公用事业全称 → 缩写
var utilityAbbrevs = []struct {
	name   string
	abbrev string
}{
	{"arizona public service", "APS"},
	{"salt river project", "SRP"},
	{"tucson electric power", "TEP"},
	{"trico electric cooperative", "TRICO"},
	{"southern california edison co", "SCE"},
	{"southern california edison", "SCE"},
	{"pacific gas & electric co.", "PGE"},
	{"pacific gas & electric", "PGE"},
	{"pacific gas and electric", "PGE"},
	{"nevada energy", "NVE"},
	{"duke", "DUKE"},
	{"public service company of colorado", "Xcel Energy"},
	{"psco (xcel energy)", "Xcel Energy"},
	{"psco", "Xcel Energy"},
	{"xcel energy", "Xcel Energy"},
}

var (
	trailingParen = regexp.MustCompile(`\(([A-Za-z0-9\s]+)\)$`)
	upperAbbrev   = regexp.MustCompile(`^[A-Z]{2,6}$`)
)

// NormalizeEquipmentType 需求表设备名归一化为目录标准类型（未知名称原样返回）
func NormalizeEquipmentType(raw string) string {
	if t, ok := equipmentTypeMapping[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return strings.TrimSpace(raw)
}

// ResolveEquipmentTypeByPOI 需要看并网方式的设备按 POI 决定是否带保险丝
func ResolveEquipmentTypeByPOI(equipmentType, poiType string) string {
	if strings.ToLower(strings.TrimSpace(equipmentType)) == poiDependentType {
		if fusedRequirementPOI[strings.ToLower(strings.TrimSpace(poiType))] {
			return "Fused AC Disconnect"
		}
		return "AC Disconnect"
	}
	return NormalizeEquipmentType(equipmentType)
}

// ExtractUtilityAbbrev 提取末尾括号内的缩写，否则返回去空白后的原值
func ExtractUtilityAbbrev(utility string) string {
	trimmed := strings.TrimSpace(utility)
	if m := trailingParen.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ResolveUtilityAbbrev 公用事业名称 → 查询用缩写
func ResolveUtilityAbbrev(utility string) string {
	if strings.TrimSpace(utility) == "" {
		return ""
	}
	extracted := ExtractUtilityAbbrev(utility)
	if upperAbbrev.MatchString(extracted) {
		return extracted
	}
	normalized := strings.ToLower(strings.TrimSpace(utility))
	for _, u := range utilityAbbrevs {
		if normalized == u.name {
			return u.abbrev
		}
	}
	for _, u := range utilityAbbrevs {
		if strings.Contains(normalized, u.name) || strings.Contains(u.name, normalized) {
			return u.abbrev
		}
	}
	return extracted
}

// RequirementRow 需求表中的一行（bos_1..bos_5 为按顺序的设备名）
type RequirementRow struct {
	Abbrev      string  `json:"abbrev"`
	Utility     string  `json:"utility"`
	State       string  `json:"state"`
	BOS1        *string `json:"bos_1"`
	BOS2        *string `json:"bos_2"`
	BOS3        *string `json:"bos_3"`
	BOS4        *string `json:"bos_4"`
	BOS5        *string `json:"bos_5"`
	Combination *string `json:"combination"`
}

// ParseRequirements 解析 bos_1..bos_5 为有序需求，跳过空列
func ParseRequirements(row RequirementRow) []domain.UtilityRequirement {
	var out []domain.UtilityRequirement
	for i, col := range []*string{row.BOS1, row.BOS2, row.BOS3, row.BOS4, row.BOS5} {
		if col == nil || strings.TrimSpace(*col) == "" {
			continue
		}
		raw := strings.TrimSpace(*col)
		out = append(out, domain.UtilityRequirement{
			Utility:          row.Utility,
			EquipmentType:    raw,
			StandardType:     NormalizeEquipmentType(raw),
			Order:            i + 1,
			RequiresPOICheck: strings.ToLower(raw) == poiDependentType,
		})
	}
	return out
}

// IsOncorOrXcel 需要按并网方式单独加交流隔离开关的公用事业
func IsOncorOrXcel(utility string) bool {
	n := strings.ToLower(strings.TrimSpace(utility))
	return strings.Contains(n, "oncor") || strings.Contains(n, "xcel")
}

// 这些并网方式需要带保险丝的隔离开关
var fusedDisconnectPOI = map[string]bool{
	"Lug Kit":                true,
	"Line Side Connection":   true,
	"Line (Supply) Side Tap": true,
	"Line Side Tap":          true,
}

// POITypes 可选的并网方式
var POITypes = []string{
	"Line Side Tap",
	"Line (Supply) Side Tap",
	"Line Side Connection",
	"Lug Kit",
	"Load Side Tap",
	"Backfeed Breaker",
	"Meter Collar Adapter",
	"Main Breaker Derate",
}

// DisconnectTypeForPOI 并网方式 → 隔离开关类型
func DisconnectTypeForPOI(poiType string) string {
	if fusedDisconnectPOI[strings.TrimSpace(poiType)] {
		return "Fused AC Disconnect"
	}
	return "AC Disconnect"
}
