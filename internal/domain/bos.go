package domain

// Section BOS 区段（决定写入哪一组槽位）
type Section string

const (
	SectionUtility  Section = "utility"
	SectionBattery1 Section = "battery1"
	SectionBattery2 Section = "battery2"
	SectionBackup   Section = "backup"
	SectionPostSMS  Section = "postSMS"
	SectionCombine  Section = "combine"
)

// Sections 区段顺序（生成/导出时保持稳定）
var Sections = []Section{
	SectionUtility, SectionBattery1, SectionBattery2, SectionBackup, SectionPostSMS, SectionCombine,
}

// Confidence BOS 项来源
type Confidence string

const (
	ConfidenceUtilityRequired  Confidence = "required-by-utility"
	ConfidenceHardcoded        Confidence = "hardcoded"
	ConfidenceDatabaseFallback Confidence = "database-fallback"
)

// CombinedTarget 合并系统的目标编号
const CombinedTarget = 0

// BOSItem 推荐的 BOS 设备
type BOSItem struct {
	EquipmentType string     `json:"equipment_type"`
	StandardType  string     `json:"standard_type,omitempty"`
	Section       Section    `json:"section"`
	Target        int        `json:"target"` // 子系统编号，0 表示合并系统
	Confidence    Confidence `json:"confidence"`
	Order         int        `json:"order"`
	Required      bool       `json:"required"`
	IsNew         bool       `json:"is_new"`
	PreferredMake string     `json:"preferred_make,omitempty"`
	MinAmpRating  int        `json:"min_amp_rating,omitempty"`
	SizingNote    string     `json:"sizing_note,omitempty"`

	// 目录解析结果
	Make      string  `json:"make,omitempty"`
	Model     string  `json:"model,omitempty"`
	AmpRating float64 `json:"amp_rating,omitempty"`
	Resolved  bool    `json:"resolved"`
	Note      string  `json:"note,omitempty"`
}

// CatalogEquipment 目录中的设备
type CatalogEquipment struct {
	EquipmentType string  `json:"equipment_type"`
	Manufacturer  string  `json:"manufacturer"`
	Model         string  `json:"model"`
	AmpRating     float64 `json:"amp_rating"`
}

// CatalogMatch 目录查询结果
type CatalogMatch struct {
	Status      string             `json:"status"` // matched / unmatched
	Match       *CatalogEquipment  `json:"match,omitempty"`
	Suggestions []CatalogEquipment `json:"suggestions,omitempty"`
}

// Matched 是否精确命中
func (m *CatalogMatch) Matched() bool {
	return m != nil && m.Status == "matched" && m.Match != nil
}

// UtilityRequirement 公用事业公司的 BOS 要求（数据库回退来源）
type UtilityRequirement struct {
	Utility          string `json:"utility"`
	EquipmentType    string `json:"equipment_type"`
	StandardType     string `json:"standard_type"`
	Order            int    `json:"order"`
	RequiresPOICheck bool   `json:"requires_poi_check"`
}
