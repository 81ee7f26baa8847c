package derivation

import (
	"regexp"
	"strings"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// 逆变器类型
const (
	InverterTypeMicro  = "microinverter"
	InverterTypeString = "inverter"
)

// 不按 1:1 配比的微逆厂家（2:1、4:1 由用户手填）
var multiPanelMicroMakes = map[string]bool{
	"Hoymiles":       true,
	"Hoymiles Power": true,
	"APSystems":      true,
}

func fieldString(v any) string {
	return strings.TrimSpace(domain.AsString(v))
}

// StringInverterQuantityRule 组串逆变器数量固定为 1
type StringInverterQuantityRule struct{}

func (StringInverterQuantityRule) Name() string { return "string_inverter_quantity" }

func (StringInverterQuantityRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.InverterType, fieldmap.InverterMake, fieldmap.SolarPanelQuantity}
}

func (StringInverterQuantityRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	kind := v.String(fieldmap.InverterType, n)
	if kind == "" || kind == InverterTypeMicro {
		return nil
	}
	return []Write{Set(fieldmap.InverterQuantity, n, 1)}
}

// MicroInverterQuantityRule 1:1 微逆数量跟随组件数量
type MicroInverterQuantityRule struct{}

func (MicroInverterQuantityRule) Name() string { return "micro_inverter_quantity" }

func (MicroInverterQuantityRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.InverterType, fieldmap.InverterMake, fieldmap.SolarPanelQuantity}
}

func (MicroInverterQuantityRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if v.String(fieldmap.InverterType, n) != InverterTypeMicro {
		return nil
	}
	manufacturer := v.String(fieldmap.InverterMake, n)
	if manufacturer == "" || multiPanelMicroMakes[manufacturer] {
		return nil
	}
	return []Write{Set(fieldmap.InverterQuantity, n, v.Int(fieldmap.SolarPanelQuantity, n))}
}

// ACIntegratedPanel 内置微逆的交流组件
type ACIntegratedPanel struct {
	PanelMake  string
	PanelModel string
	MicroMake  string
	MicroModel string
}

// ACIntegratedPanels 已知的交流组件（型号末尾功率不同视为同一系列）
var ACIntegratedPanels = []ACIntegratedPanel{
	{
		PanelMake:  "Hanwha Q CELLS",
		PanelModel: "Q.TRON BLK M-G2+/AC 430",
		MicroMake:  "Hanwha Q CELLS",
		MicroModel: "Q.MI.349B-G1",
	},
}

var trailingWattage = regexp.MustCompile(`\s+\d+$`)

// LookupACIntegrated 查找组件对应的内置微逆
func LookupACIntegrated(manufacturer, model string) (ACIntegratedPanel, bool) {
	if manufacturer == "" || model == "" {
		return ACIntegratedPanel{}, false
	}
	for _, p := range ACIntegratedPanels {
		if p.PanelMake == manufacturer && p.PanelModel == model {
			return p, true
		}
	}
	for _, p := range ACIntegratedPanels {
		makeMatches := strings.Contains(manufacturer, p.PanelMake) || strings.Contains(p.PanelMake, manufacturer)
		series := trailingWattage.ReplaceAllString(p.PanelModel, "")
		if makeMatches && strings.Contains(model, series) {
			return p, true
		}
	}
	return ACIntegratedPanel{}, false
}

// ACIntegratedPanelRule 选择交流组件时把逆变器设为对应微逆，数量与组件一致
type ACIntegratedPanelRule struct{}

func (ACIntegratedPanelRule) Name() string { return "ac_integrated_panel" }

func (ACIntegratedPanelRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.SolarPanelMake, fieldmap.SolarPanelModel}
}

func (ACIntegratedPanelRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	p, ok := LookupACIntegrated(v.String(fieldmap.SolarPanelMake, n), v.String(fieldmap.SolarPanelModel, n))
	if !ok {
		return nil
	}
	return []Write{
		Set(fieldmap.InverterType, n, InverterTypeMicro),
		Set(fieldmap.InverterMake, n, p.MicroMake),
		Set(fieldmap.InverterModel, n, p.MicroModel),
		Set(fieldmap.InverterQuantity, n, v.Int(fieldmap.SolarPanelQuantity, n)),
	}
}

// ActivationRule 首次选定逆变器型号时标记子系统类型
type ActivationRule struct{}

func (ActivationRule) Name() string { return "subsystem_activation" }

func (ActivationRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.InverterModel}
}

func (ActivationRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if v.String(fieldmap.InverterModel, n) == "" || v.String(fieldmap.SelectedSystem, n) != "" {
		return nil
	}
	tag := InverterTypeString
	if v.String(fieldmap.InverterType, n) == InverterTypeMicro {
		tag = InverterTypeMicro
	}
	return []Write{Set(fieldmap.SelectedSystem, n, tag)}
}
