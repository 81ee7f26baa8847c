package domain

// CombineDecision 多子系统是否合并到单一并网点
type CombineDecision string

const (
	CombineUndecided    CombineDecision = "undecided"
	CombineYes          CombineDecision = "combine"
	CombineDoNotCombine CombineDecision = "do_not_combine"
)

// DoNotCombineSentinel 写入 ele_combine_positions 的“不合并”标记
const DoNotCombineSentinel = "Do Not"

// Valid 是否为已知取值
func (d CombineDecision) Valid() bool {
	switch d {
	case CombineUndecided, CombineYes, CombineDoNotCombine:
		return true
	}
	return false
}
