package derivation

import (
	"strings"

	"skyfire-equipment/internal/fieldmap"
)

// 网关与备份取值
const (
	GatewayBackupGateway2 = "Backup Gateway 2"
	GatewayGateway3       = "Gateway 3"
	BackupNone            = "No Backup"
	ConfigDaisyChain      = "Daisy Chain"
	TeslaMake             = "Tesla"
	SMSEquipmentTypeSMS   = "SMS"
)

// IsTeslaPowerWall 逆变器为 Tesla PowerWall 系列
func IsTeslaPowerWall(manufacturer, model string) bool {
	return strings.Contains(strings.ToLower(manufacturer), "tesla") &&
		strings.Contains(strings.ToLower(model), "powerwall")
}

// PowerWallVariant 根据型号得到电池型号名称
func PowerWallVariant(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "powerwall 3"), strings.Contains(m, "powerwall3"):
		return "PowerWall 3"
	case strings.Contains(m, "powerwall+"), strings.Contains(m, "powerwall +"):
		return "PowerWall+"
	default:
		return "PowerWall"
	}
}

func powerWall(v View, n int) bool {
	return IsTeslaPowerWall(v.String(fieldmap.InverterMake, n), v.String(fieldmap.InverterModel, n))
}

// PowerWallBatteryRule PowerWall 逆变器自动填写电池1：数量 = 扩展包 + 1
type PowerWallBatteryRule struct{}

func (PowerWallBatteryRule) Name() string { return "powerwall_battery" }

func (PowerWallBatteryRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.InverterMake, fieldmap.InverterModel, fieldmap.ExpansionPacks}
}

func (PowerWallBatteryRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if !powerWall(v, n) {
		return nil
	}
	return []Write{
		Set(fieldmap.Battery1Quantity, n, v.Int(fieldmap.ExpansionPacks, n)+1),
		Set(fieldmap.Battery1Model, n, PowerWallVariant(v.String(fieldmap.InverterModel, n))),
		Set(fieldmap.Battery1Make, n, TeslaMake),
	}
}

// gatewaySMS 网关对应的 SMS 型号与设备类型
var gatewaySMS = map[string]struct {
	model         string
	equipmentType string
}{
	GatewayBackupGateway2: {model: GatewayBackupGateway2},
	GatewayGateway3:       {model: GatewayGateway3, equipmentType: SMSEquipmentTypeSMS},
}

// GatewayRule 选择网关时自动填写 SMS；切换离开时清除仍由本规则写入且未被改动的 SMS 字段
type GatewayRule struct{}

func (GatewayRule) Name() string { return "gateway_sms" }

func (GatewayRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.Gateway, fieldmap.InverterMake, fieldmap.InverterModel}
}

func (r GatewayRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if !powerWall(v, n) {
		return nil
	}
	gateway := v.String(fieldmap.Gateway, n)
	var out []Write

	if old, ok := t.Old(fieldmap.Gateway); ok {
		prev, known := gatewaySMS[fieldString(old)]
		if known && fieldString(old) != gateway && r.stillAutoSet(v, n, prev.model) {
			out = append(out,
				r.track(Clear(fieldmap.SMSMake, n)),
				r.track(Clear(fieldmap.SMSModel, n)),
				r.track(Set(fieldmap.SMSExisting, n, false)),
			)
			if prev.equipmentType != "" && v.WrittenBy(fieldmap.SMSEquipmentType, n) == r.Name() {
				out = append(out, r.track(Clear(fieldmap.SMSEquipmentType, n)))
			}
		}
	}

	if cur, ok := gatewaySMS[gateway]; ok {
		out = append(out,
			r.track(Set(fieldmap.SMSMake, n, TeslaMake)),
			r.track(Set(fieldmap.SMSModel, n, cur.model)),
			r.track(Set(fieldmap.SMSExisting, n, false)),
		)
		if cur.equipmentType != "" {
			out = append(out, r.track(Set(fieldmap.SMSEquipmentType, n, cur.equipmentType)))
		}
	}
	return out
}

// stillAutoSet SMS 仍为网关写入的值，且之后没有被用户改写
func (r GatewayRule) stillAutoSet(v View, n int, model string) bool {
	return v.String(fieldmap.SMSMake, n) == TeslaMake &&
		v.String(fieldmap.SMSModel, n) == model &&
		v.WrittenBy(fieldmap.SMSModel, n) == r.Name()
}

func (r GatewayRule) track(w Write) Write {
	w.Track = true
	return w
}

// NoBackupRule 选择“无备份”时清除网关、网关位置以及网关规则写入的 SMS 字段
type NoBackupRule struct{}

func (NoBackupRule) Name() string { return "no_backup" }

func (NoBackupRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.BackupOption, fieldmap.InverterMake, fieldmap.InverterModel}
}

func (NoBackupRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if !powerWall(v, n) || v.String(fieldmap.BackupOption, n) != BackupNone {
		return nil
	}
	out := []Write{
		Clear(fieldmap.Gateway, n),
		Clear(fieldmap.BackupSwitchLocation, n),
	}
	gatewayName := GatewayRule{}.Name()
	model := v.String(fieldmap.SMSModel, n)
	if _, fromGateway := gatewaySMS[model]; fromGateway &&
		v.String(fieldmap.SMSMake, n) == TeslaMake &&
		v.WrittenBy(fieldmap.SMSModel, n) == gatewayName {
		out = append(out,
			Clear(fieldmap.SMSMake, n),
			Clear(fieldmap.SMSModel, n),
			Set(fieldmap.SMSExisting, n, false),
		)
	}
	if v.WrittenBy(fieldmap.SMSEquipmentType, n) == gatewayName {
		out = append(out, Clear(fieldmap.SMSEquipmentType, n))
	}
	return out
}

// DaisyChainRule 有扩展包时电池配置为 Daisy Chain；扩展包归零时撤销
type DaisyChainRule struct{}

func (DaisyChainRule) Name() string { return "expansion_daisy_chain" }

func (DaisyChainRule) Triggers() []fieldmap.Field {
	return []fieldmap.Field{fieldmap.ExpansionPacks, fieldmap.InverterMake, fieldmap.InverterModel}
}

func (DaisyChainRule) Evaluate(v View, t Trigger) []Write {
	n := t.Subsystem
	if !powerWall(v, n) {
		return nil
	}
	packs := v.Int(fieldmap.ExpansionPacks, n)
	current := v.String(fieldmap.Battery1Configuration, n)
	switch {
	case packs > 0:
		return []Write{Set(fieldmap.Battery1Configuration, n, ConfigDaisyChain)}
	case current == ConfigDaisyChain:
		return []Write{Clear(fieldmap.Battery1Configuration, n)}
	}
	return nil
}
