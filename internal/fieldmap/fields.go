package fieldmap

// Field 逻辑字段标识（表单层使用的名字，与子系统编号无关）
type Field string

// 子系统字段
const (
	SolarPanelExisting Field = "solar_panel_existing"
	SolarPanelMake     Field = "solar_panel_make"
	SolarPanelModel    Field = "solar_panel_model"
	SolarPanelQuantity Field = "solar_panel_quantity"
	SolarPanelWattage  Field = "solar_panel_wattage"
	SolarPanelVoc      Field = "solar_panel_voc"

	SolarPanelType2Existing Field = "solar_panel_type2_existing"
	SolarPanelType2Make     Field = "solar_panel_type2_make"
	SolarPanelType2Model    Field = "solar_panel_type2_model"
	SolarPanelType2Quantity Field = "solar_panel_type2_quantity"

	InverterExisting      Field = "inverter_existing"
	InverterMake          Field = "inverter_make"
	InverterModel         Field = "inverter_model"
	InverterType          Field = "inverter_type"
	InverterQuantity      Field = "inverter_quantity"
	InverterMaxContOutput Field = "inverter_max_cont_output"
	InverterMaxVdc        Field = "inverter_max_vdc"
	SelectedSystem        Field = "selected_system"

	OptimizerExisting      Field = "optimizer_existing"
	OptimizerMake          Field = "optimizer_make"
	OptimizerModel         Field = "optimizer_model"
	OptimizerType2Existing Field = "optimizer_type2_existing"
	OptimizerType2Make     Field = "optimizer_type2_make"
	OptimizerType2Model    Field = "optimizer_type2_model"

	CombinerPanelExisting Field = "combiner_panel_existing"
	CombinerPanelMake     Field = "combiner_panel_make"
	CombinerPanelModel    Field = "combiner_panel_model"
	CombinerPanelBusAmps  Field = "combiner_panel_bus_amps"

	SMSExisting      Field = "sms_existing"
	SMSMake          Field = "sms_make"
	SMSModel         Field = "sms_model"
	SMSEquipmentType Field = "sms_equipment_type"

	Battery1Existing      Field = "battery1_existing"
	Battery1Make          Field = "battery1_make"
	Battery1Model         Field = "battery1_model"
	Battery1Quantity      Field = "battery1_quantity"
	Battery1Configuration Field = "battery1_configuration"
	Battery2Existing      Field = "battery2_existing"
	Battery2Make          Field = "battery2_make"
	Battery2Model         Field = "battery2_model"
	Battery2Quantity      Field = "battery2_quantity"

	BackupOption         Field = "backup_option"
	Gateway              Field = "gateway"
	BackupSwitchLocation Field = "backup_switch_location"
	ExpansionPacks       Field = "expansion_packs"

	BackupPanelExisting Field = "backup_panel_existing"
	BackupPanelMake     Field = "backup_panel_make"
	BackupPanelModel    Field = "backup_panel_model"

	BatteryCombinerPanelExisting Field = "battery_combiner_panel_existing"
	BatteryCombinerPanelMake     Field = "battery_combiner_panel_make"
	BatteryCombinerPanelModel    Field = "battery_combiner_panel_model"

	POIType     Field = "poi_type"
	POILocation Field = "poi_location"
)

// 项目级字段（编号为 0）
const (
	Utility          Field = "utility"
	CombineSystems   Field = "combine_systems"
	CombinePositions Field = "combine_positions"
	RuleProvenance   Field = "rule_provenance"
)

// Kind 字段值类型（用于输入归一化）
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)
