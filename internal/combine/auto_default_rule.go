package combine

import (
	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// AutoDefaultRule 作为派生规则运行：任何子系统身份字段变化后，
// 活动子系统达到 2 个且尚未决定合并时写入“不合并”。
type AutoDefaultRule struct{}

func (AutoDefaultRule) Name() string { return "combine_auto_default" }

func (AutoDefaultRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{
		fieldmap.SolarPanelMake,
		fieldmap.InverterMake,
		fieldmap.Battery1Make,
		fieldmap.Battery1Quantity,
		fieldmap.Battery2Quantity,
	}
}

func (AutoDefaultRule) Evaluate(v derivation.View, _ derivation.Trigger) []derivation.Write {
	if !needsAutoDefault(v, len(v.ActiveSubsystems())) {
		return nil
	}
	var out []derivation.Write
	for _, u := range updatesFor(v, domain.CombineDoNotCombine) {
		out = append(out, derivation.Set(u.Field, domain.GlobalIndex, u.Value))
	}
	return out
}
