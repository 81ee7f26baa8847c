package fieldmap

import (
	"fmt"
	"regexp"
	"strconv"

	"skyfire-equipment/internal/domain"
)

// BOS 槽位字段属性
const (
	SlotEquipmentType = "equipment_type"
	SlotMake          = "make"
	SlotModel         = "model"
	SlotAmpRating     = "amp_rating"
	SlotIsNew         = "is_new"
)

// SlotAttributes 每个槽位写入的属性
var SlotAttributes = []string{SlotEquipmentType, SlotMake, SlotModel, SlotAmpRating, SlotIsNew}

// combinePosition 合并区段固定使用第 1 个并网位置
const combinePosition = 1

// SlotCount 各区段的槽位数量
func SlotCount(section domain.Section) int {
	if section == domain.SectionUtility {
		return 6
	}
	return 3
}

// SlotPrefix 区段 + 目标子系统 + 槽位 → 槽位键前缀
func SlotPrefix(section domain.Section, target, slot int) (string, error) {
	if slot < 1 || slot > SlotCount(section) {
		return "", fmt.Errorf("%w: slot %d out of range for %s", domain.ErrInvariantViolation, slot, section)
	}
	if section == domain.SectionCombine {
		return fmt.Sprintf("postcombine_%d_%d", combinePosition, slot), nil
	}
	if !domain.ValidSubsystem(target) {
		return "", fmt.Errorf("%w: subsystem %d", domain.ErrInvariantViolation, target)
	}
	switch section {
	case domain.SectionUtility:
		return fmt.Sprintf("bos_sys%d_type%d", target, slot), nil
	case domain.SectionBattery1:
		return fmt.Sprintf("bos_sys%d_battery1_type%d", target, slot), nil
	case domain.SectionBattery2:
		return fmt.Sprintf("bos_sys%d_battery2_type%d", target, slot), nil
	case domain.SectionBackup:
		return fmt.Sprintf("bos_sys%d_backup_type%d", target, slot), nil
	case domain.SectionPostSMS:
		return fmt.Sprintf("post_sms_bos_sys%d_type%d", target, slot), nil
	}
	return "", fmt.Errorf("%w: unknown section %q", domain.ErrInvariantViolation, section)
}

// SlotKey 槽位属性键。合并区段用 existing 代替 is_new（取值相反，见 SlotValue）。
func SlotKey(section domain.Section, target, slot int, attr string) (string, error) {
	prefix, err := SlotPrefix(section, target, slot)
	if err != nil {
		return "", err
	}
	if section == domain.SectionCombine && attr == SlotIsNew {
		attr = "existing"
	}
	return prefix + "_" + attr, nil
}

// SlotValue 槽位属性的持久化值
func SlotValue(section domain.Section, attr string, v any) any {
	if domain.IsEmpty(v) {
		return nil
	}
	if section == domain.SectionCombine && attr == SlotIsNew {
		return !domain.AsBool(v)
	}
	return v
}

var slotKeyPattern = regexp.MustCompile(`^(?:(?:bos_sys([1-4])_(?:battery1_|battery2_|backup_)?|post_sms_bos_sys([1-4])_)type([1-6])|postcombine_([1-3])_([1-3]))_(equipment_type|make|model|amp_rating|is_new|existing)$`)

// IsSlotKey 是否为 BOS 槽位键（可直接写入记录）
func IsSlotKey(key string) bool {
	return slotKeyPattern.MatchString(key)
}

// SlotSubsystem 槽位键所属子系统（合并区段返回 0）
func SlotSubsystem(key string) (int, bool) {
	m := slotKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:3] {
		if g != "" {
			n, _ := strconv.Atoi(g)
			return n, true
		}
	}
	return domain.CombinedTarget, true
}
