package fieldmap

import (
	"fmt"
	"sort"
	"strings"

	"skyfire-equipment/internal/domain"
)

// Scope 字段作用域
type Scope int

const (
	PerSubsystem Scope = iota
	Global
)

// Entry 字段映射条目
// Template 中的 {n} 替换为子系统编号；Overrides 处理个别编号的历史列名。
// LocalDerived 的字段只保存在内存（来自设备规格），不持久化。
type Entry struct {
	Field        Field
	Scope        Scope
	Kind         Kind
	Template     string
	Overrides    map[int]string
	Invert       bool
	LocalDerived bool
}

func sys(field Field, tpl string, kind Kind) Entry {
	return Entry{Field: field, Scope: PerSubsystem, Kind: kind, Template: tpl}
}

func global(field Field, key string, kind Kind) Entry {
	return Entry{Field: field, Scope: Global, Kind: kind, Template: key}
}

func local(field Field, kind Kind) Entry {
	return Entry{Field: field, Scope: PerSubsystem, Kind: kind, LocalDerived: true}
}

var entries = []Entry{
	{Field: SolarPanelExisting, Kind: KindBool, Template: "sys{n}_solarpanel_existing",
		Overrides: map[int]string{1: "sys1_solar_panel_existing"}},
	sys(SolarPanelMake, "sys{n}_solar_panel_make", KindString),
	sys(SolarPanelModel, "sys{n}_solar_panel_model", KindString),
	sys(SolarPanelQuantity, "sys{n}_solar_panel_qty", KindInt),
	local(SolarPanelWattage, KindFloat),
	local(SolarPanelVoc, KindFloat),

	{Field: SolarPanelType2Existing, Kind: KindBool, Template: "sys{n}_solar_panel_type2_is_new", Invert: true},
	sys(SolarPanelType2Make, "sys{n}_solar_panel_type2_manufacturer", KindString),
	sys(SolarPanelType2Model, "sys{n}_solar_panel_type2_model", KindString),
	sys(SolarPanelType2Quantity, "sys{n}_solar_panel_type2_quantity", KindInt),

	sys(InverterExisting, "sys{n}_micro_inverter_existing", KindBool),
	sys(InverterMake, "sys{n}_micro_inverter_make", KindString),
	sys(InverterModel, "sys{n}_micro_inverter_model", KindString),
	sys(InverterType, "sys{n}_system_type", KindString),
	sys(InverterQuantity, "sys{n}_micro_inverter_qty", KindInt),
	sys(InverterMaxContOutput, "sys{n}_inv_max_continuous_output", KindFloat),
	local(InverterMaxVdc, KindFloat),
	sys(SelectedSystem, "sys{n}_selectedsystem", KindString),

	sys(OptimizerExisting, "sys{n}_optimizer_existing", KindBool),
	sys(OptimizerMake, "sys{n}_optimizer_make", KindString),
	sys(OptimizerModel, "sys{n}_optimizer_model", KindString),
	sys(OptimizerType2Existing, "sys{n}_optimizer_type2_existing", KindBool),
	sys(OptimizerType2Make, "sys{n}_optimizer_type2_make", KindString),
	sys(OptimizerType2Model, "sys{n}_optimizer_type2_model", KindString),

	sys(CombinerPanelExisting, "sys{n}_combiner_existing", KindBool),
	sys(CombinerPanelMake, "sys{n}_combiner_panel_make", KindString),
	sys(CombinerPanelModel, "sys{n}_combiner_panel_model", KindString),
	sys(CombinerPanelBusAmps, "sys{n}_combinerpanel_bus_rating", KindString),

	sys(SMSExisting, "sys{n}_sms_existing", KindBool),
	sys(SMSMake, "sys{n}_sms_make", KindString),
	sys(SMSModel, "sys{n}_sms_model", KindString),
	sys(SMSEquipmentType, "sys{n}_sms_equipment_type", KindString),

	sys(Battery1Existing, "sys{n}_battery1_existing", KindBool),
	sys(Battery1Make, "sys{n}_battery_1_make", KindString),
	sys(Battery1Model, "sys{n}_battery_1_model", KindString),
	sys(Battery1Quantity, "sys{n}_battery_1_qty", KindInt),
	sys(Battery1Configuration, "sys{n}_battery_configuration", KindString),
	sys(Battery2Existing, "sys{n}_battery2_existing", KindBool),
	sys(Battery2Make, "sys{n}_battery_2_make", KindString),
	sys(Battery2Model, "sys{n}_battery_2_model", KindString),
	sys(Battery2Quantity, "sys{n}_battery_2_qty", KindInt),

	sys(BackupOption, "sys{n}_backup_option", KindString),
	sys(Gateway, "sys{n}_teslagatewaytype", KindString),
	sys(BackupSwitchLocation, "sys{n}_backupswitch_location", KindString),
	sys(ExpansionPacks, "sys{n}_tesla_extensions", KindInt),

	sys(BackupPanelExisting, "bls{n}_backuploader_existing", KindBool),
	sys(BackupPanelMake, "bls{n}_backup_load_sub_panel_make", KindString),
	sys(BackupPanelModel, "bls{n}_backup_load_sub_panel_model", KindString),

	sys(BatteryCombinerPanelExisting, "bcp{n}_existing", KindBool),
	sys(BatteryCombinerPanelMake, "bcp{n}_Make", KindString),
	sys(BatteryCombinerPanelModel, "bcp{n}_model", KindString),

	{Field: POIType, Kind: KindString, Template: "sys{n}_ele_method_of_interconnection",
		Overrides: map[int]string{1: "ele_method_of_interconnection"}},
	{Field: POILocation, Kind: KindString, Template: "sys{n}_ele_breaker_location",
		Overrides: map[int]string{1: "ele_breaker_location"}},

	global(Utility, "utility", KindString),
	global(CombineSystems, "ele_combine_systems", KindBool),
	global(CombinePositions, "ele_combine_positions", KindString),
	global(RuleProvenance, "engine_rule_provenance", KindString),
}

type keyRef struct {
	field Field
	index int
}

var (
	byField   = map[Field]*Entry{}
	byKey     = map[string]keyRef{}
	allFields []Field
)

func init() {
	for i := range entries {
		e := &entries[i]
		byField[e.Field] = e
		allFields = append(allFields, e.Field)
	}
	for i := range entries {
		e := &entries[i]
		if e.LocalDerived {
			continue
		}
		if e.Scope == Global {
			byKey[e.Template] = keyRef{field: e.Field, index: domain.GlobalIndex}
			continue
		}
		for n := 1; n <= domain.MaxSubsystems; n++ {
			byKey[e.key(n)] = keyRef{field: e.Field, index: n}
		}
	}
	if err := Validate(); err != nil {
		panic(err)
	}
}

func (e *Entry) key(index int) string {
	if k, ok := e.Overrides[index]; ok {
		return k
	}
	return strings.ReplaceAll(e.Template, "{n}", fmt.Sprint(index))
}

// Lookup 获取字段映射条目
func Lookup(field Field) (Entry, bool) {
	e, ok := byField[field]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// All 所有已知逻辑字段（声明顺序）
func All() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// Parse 解析外部输入的字段名
func Parse(name string) (Field, bool) {
	f := Field(strings.TrimSpace(name))
	_, ok := byField[f]
	return f, ok
}

// IsGlobal 是否项目级字段
func IsGlobal(field Field) bool {
	e, ok := byField[field]
	return ok && e.Scope == Global
}

// IsLocalDerived 是否仅本地派生（不持久化、不产生诊断）
func IsLocalDerived(field Field) bool {
	e, ok := byField[field]
	return ok && e.LocalDerived
}

// KindOf 字段值类型，未知字段按字符串处理
func KindOf(field Field) Kind {
	if e, ok := byField[field]; ok {
		return e.Kind
	}
	return KindString
}

// Resolve 逻辑字段 + 子系统编号 → 持久化键
// 未映射或仅本地的字段返回 ok=false。项目级字段忽略编号。
func Resolve(field Field, index int) (string, bool) {
	e, ok := byField[field]
	if !ok || e.LocalDerived {
		return "", false
	}
	if e.Scope == Global {
		return e.Template, true
	}
	if !domain.ValidSubsystem(index) {
		return "", false
	}
	return e.key(index), true
}

// Reverse 持久化键 → 逻辑字段 + 子系统编号
func Reverse(key string) (Field, int, bool) {
	ref, ok := byKey[key]
	if !ok {
		return "", 0, false
	}
	return ref.field, ref.index, true
}

// ToPersisted 逻辑值 → 持久化值（反转布尔、空字符串写为 null）
func ToPersisted(field Field, value any) any {
	if domain.IsEmpty(value) {
		return nil
	}
	if e, ok := byField[field]; ok && e.Invert {
		return !domain.AsBool(value)
	}
	return value
}

// FromPersisted 持久化值 → 逻辑值（与 ToPersisted 对称）
func FromPersisted(field Field, value any) any {
	if value == nil {
		return nil
	}
	if e, ok := byField[field]; ok && e.Invert {
		return !domain.AsBool(value)
	}
	return value
}

// Coerce 按字段类型归一化外部输入（HTTP/CLI 传入的字符串数字等）
func Coerce(field Field, value any) any {
	if domain.IsEmpty(value) {
		return nil
	}
	switch KindOf(field) {
	case KindInt:
		return domain.AsInt(value)
	case KindFloat:
		return domain.AsFloat(value)
	case KindBool:
		return domain.AsBool(value)
	default:
		if s, ok := value.(string); ok {
			return s
		}
		return domain.AsString(value)
	}
}

// Validate 检查映射表完整性：每个字段恰好一个条目，非本地字段都有模板，
// 持久化键互不冲突，切换组表按前缀长度降序。
func Validate() error {
	seen := map[Field]bool{}
	keys := map[string]Field{}
	for i := range entries {
		e := &entries[i]
		if seen[e.Field] {
			return fmt.Errorf("duplicate field mapping: %s", e.Field)
		}
		seen[e.Field] = true
		if e.LocalDerived {
			continue
		}
		if e.Template == "" {
			return fmt.Errorf("field %s has no persisted key", e.Field)
		}
		if e.Scope == Global {
			if prev, dup := keys[e.Template]; dup {
				return fmt.Errorf("persisted key %s shared by %s and %s", e.Template, prev, e.Field)
			}
			keys[e.Template] = e.Field
			continue
		}
		if !strings.Contains(e.Template, "{n}") {
			return fmt.Errorf("field %s template lacks subsystem placeholder", e.Field)
		}
		for n := 1; n <= domain.MaxSubsystems; n++ {
			k := e.key(n)
			if prev, dup := keys[k]; dup {
				return fmt.Errorf("persisted key %s shared by %s and %s", k, prev, e.Field)
			}
			keys[k] = e.Field
		}
	}
	return validateToggleTable()
}

// PersistedKeys 某子系统的所有持久化键（排序后），用于移除子系统时清空
func PersistedKeys(index int) []string {
	var out []string
	for key, ref := range byKey {
		if ref.index == index && index != domain.GlobalIndex {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
