package fieldmap

import (
	"fmt"
	"strings"
)

// togglePrefix 设备组前缀 → 新/旧切换字段；Toggle 为空表示该前缀被排除（不回写切换字段）。
type togglePrefix struct {
	Prefix string
	Toggle Field
}

// 按前缀长度降序排列，保证长前缀优先匹配（battery_combiner_panel_ 先于 combiner_panel_，
// solar_panel_type2_ 先于 solar_panel_）。
var toggleTable = []togglePrefix{
	{Prefix: "battery_combiner_panel_", Toggle: BatteryCombinerPanelExisting},
	{Prefix: "solar_panel_type2_"},
	{Prefix: "optimizer_type2_", Toggle: OptimizerType2Existing},
	{Prefix: "combiner_panel_", Toggle: CombinerPanelExisting},
	{Prefix: "backup_panel_", Toggle: BackupPanelExisting},
	{Prefix: "solar_panel_", Toggle: SolarPanelExisting},
	{Prefix: "optimizer_", Toggle: OptimizerExisting},
	{Prefix: "inverter_", Toggle: InverterExisting},
	{Prefix: "battery1_", Toggle: Battery1Existing},
	{Prefix: "battery2_", Toggle: Battery2Existing},
	{Prefix: "sms_", Toggle: SMSExisting},
}

// toggles 逻辑字段 → 切换字段，初始化时由前缀表一次性展开
var toggles = expandToggles()

func expandToggles() map[Field]Field {
	out := make(map[Field]Field, len(entries))
	for _, e := range entries {
		toggle, ok := matchPrefix(e.Field)
		if !ok || toggle == "" || toggle == e.Field {
			continue
		}
		out[e.Field] = toggle
	}
	return out
}

func matchPrefix(field Field) (Field, bool) {
	name := string(field)
	for _, p := range toggleTable {
		if strings.HasPrefix(name, p.Prefix) {
			return p.Toggle, true
		}
	}
	return "", false
}

// ToggleFor 字段所属设备组的新/旧切换字段
// 字段本身是切换字段、属于排除前缀或不属于任何组时返回 ok=false。
func ToggleFor(field Field) (Field, bool) {
	t, ok := toggles[field]
	return t, ok
}

// IsToggle 字段是否为某设备组的切换字段
func IsToggle(field Field) bool {
	for _, p := range toggleTable {
		if p.Toggle != "" && p.Toggle == field {
			return true
		}
	}
	return false
}

func validateToggleTable() error {
	for i := 1; i < len(toggleTable); i++ {
		if len(toggleTable[i].Prefix) > len(toggleTable[i-1].Prefix) {
			return fmt.Errorf("toggle prefix %q must precede %q", toggleTable[i].Prefix, toggleTable[i-1].Prefix)
		}
	}
	for _, p := range toggleTable {
		if p.Toggle == "" {
			continue
		}
		e, ok := byField[p.Toggle]
		if !ok {
			return fmt.Errorf("toggle field %s is not mapped", p.Toggle)
		}
		if e.Kind != KindBool || e.LocalDerived {
			return fmt.Errorf("toggle field %s must be a persisted boolean", p.Toggle)
		}
		if !strings.HasPrefix(string(p.Toggle), p.Prefix) {
			return fmt.Errorf("toggle field %s outside its prefix %q", p.Toggle, p.Prefix)
		}
	}
	return nil
}
