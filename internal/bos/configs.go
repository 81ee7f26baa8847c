package bos

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"skyfire-equipment/internal/domain"
)

//go:embed utility_configs.yaml
var embeddedUtilityConfigs []byte

// 电流选型方式
const (
	SizingInverter    = "inverter"
	SizingBattery     = "battery"
	SizingBackupPanel = "backup_panel"
	SizingFixed       = "fixed"
	SizingManual      = "manual"
)

// Requirement 硬编码的一条 BOS 要求
type Requirement struct {
	EquipmentType string `yaml:"equipment_type"`
	StandardType  string `yaml:"standard_type"`
	Required      bool   `yaml:"required"`
	Order         int    `yaml:"order"`
	AmpSizing     string `yaml:"amp_sizing"`
	FixedAmp      string `yaml:"fixed_amp"`
	PreferredMake string `yaml:"preferred_make"`
}

// UtilityConfig 单个公用事业的各区段要求
type UtilityConfig struct {
	Code    string        `yaml:"code"`
	Name    string        `yaml:"name"`
	Aliases []string      `yaml:"aliases"`
	Notes   string        `yaml:"notes"`
	Utility []Requirement `yaml:"utility"`
	Battery []Requirement `yaml:"battery"`
	Backup  []Requirement `yaml:"backup"`
	PostSMS []Requirement `yaml:"post_sms"`
	Combine []Requirement `yaml:"combine"`
}

// ForSection 区段对应的要求（按 order 排序）
func (c *UtilityConfig) ForSection(section domain.Section) []Requirement {
	var reqs []Requirement
	switch section {
	case domain.SectionUtility:
		reqs = c.Utility
	case domain.SectionBattery1, domain.SectionBattery2:
		reqs = c.Battery
	case domain.SectionBackup:
		reqs = c.Backup
	case domain.SectionPostSMS:
		reqs = c.PostSMS
	case domain.SectionCombine:
		reqs = c.Combine
	}
	out := make([]Requirement, len(reqs))
	copy(out, reqs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// UtilityConfigs 硬编码配置注册表
type UtilityConfigs struct {
	configs []UtilityConfig
}

// LoadUtilityConfigs 解析 YAML 配置
func LoadUtilityConfigs(data []byte) (*UtilityConfigs, error) {
	var doc struct {
		Utilities []UtilityConfig `yaml:"utilities"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse utility configs: %w", err)
	}
	seen := map[string]bool{}
	for _, c := range doc.Utilities {
		code := strings.ToUpper(c.Code)
		if code == "" {
			return nil, fmt.Errorf("utility config without code: %q", c.Name)
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate utility config %s", code)
		}
		seen[code] = true
	}
	return &UtilityConfigs{configs: doc.Utilities}, nil
}

// DefaultUtilityConfigs 内置配置
func DefaultUtilityConfigs() (*UtilityConfigs, error) {
	return LoadUtilityConfigs(embeddedUtilityConfigs)
}

// Lookup 按代码、全称、别名或解析出的缩写查找（不区分大小写）
func (u *UtilityConfigs) Lookup(utility string) (*UtilityConfig, bool) {
	name := strings.TrimSpace(utility)
	if name == "" {
		return nil, false
	}
	for i := range u.configs {
		c := &u.configs[i]
		if strings.EqualFold(c.Code, name) || strings.EqualFold(c.Name, name) {
			return c, true
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return c, true
			}
		}
	}
	abbrev := ResolveUtilityAbbrev(name)
	for i := range u.configs {
		if strings.EqualFold(u.configs[i].Code, abbrev) {
			return &u.configs[i], true
		}
	}
	return nil, false
}

// Codes 已配置的公用事业代码
func (u *UtilityConfigs) Codes() []string {
	out := make([]string, 0, len(u.configs))
	for _, c := range u.configs {
		out = append(out, c.Code)
	}
	return out
}
