package domain

// MaxSubsystems 每个项目最多的子系统数量
const MaxSubsystems = 4

// GlobalIndex 非子系统字段使用的编号
const GlobalIndex = 0

// ValidSubsystem 子系统编号是否在 1..MaxSubsystems
func ValidSubsystem(index int) bool {
	return index >= 1 && index <= MaxSubsystems
}
