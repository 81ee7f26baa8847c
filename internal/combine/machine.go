package combine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
	"skyfire-equipment/internal/state"
)

// Reader 读取合并相关字段
type Reader interface {
	Get(field fieldmap.Field, subsystem int) any
}

// Outcome 状态机一次转换的结果
// NeedsConfirmation 为 true 时 Updates 为空，等待 Confirm/Cancel。
type Outcome struct {
	Decision          domain.CombineDecision `json:"decision"`
	Updates           []state.Update         `json:"-"`
	NeedsConfirmation bool                   `json:"needs_confirmation"`
	Prompt            string                 `json:"prompt,omitempty"`
}

// Decision 当前合并决定（由 ele_combine_systems / ele_combine_positions 推出）
func Decision(v Reader) domain.CombineDecision {
	switch val := v.Get(fieldmap.CombineSystems, domain.GlobalIndex).(type) {
	case bool:
		if val {
			return domain.CombineYes
		}
		return domain.CombineDoNotCombine
	case nil:
		if domain.AsString(v.Get(fieldmap.CombinePositions, domain.GlobalIndex)) == domain.DoNotCombineSentinel {
			return domain.CombineDoNotCombine
		}
		return domain.CombineUndecided
	default:
		if domain.AsBool(val) {
			return domain.CombineYes
		}
		return domain.CombineDoNotCombine
	}
}

// LandingConfigured 是否已配置合并并网位置
func LandingConfigured(v Reader) bool {
	pos := strings.TrimSpace(domain.AsString(v.Get(fieldmap.CombinePositions, domain.GlobalIndex)))
	return pos != "" && pos != domain.DoNotCombineSentinel
}

// Machine 单个项目的合并决定状态机（保存待确认的转换）
type Machine struct {
	pending *domain.CombineDecision
	logger  *zap.Logger
}

// NewMachine 创建状态机
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{logger: logger}
}

// Pending 是否有待确认的转换
func (m *Machine) Pending() bool { return m.pending != nil }

// Request 用户选择合并/不合并
// 已合并且配置了并网位置时改为不合并需要确认（确认后清除位置配置）。
func (m *Machine) Request(v Reader, choice domain.CombineDecision) (Outcome, error) {
	if choice != domain.CombineYes && choice != domain.CombineDoNotCombine {
		return Outcome{}, fmt.Errorf("%w: combine choice %q", domain.ErrInvariantViolation, choice)
	}
	current := Decision(v)
	m.pending = nil
	if choice == current {
		return Outcome{Decision: current}, nil
	}

	if current == domain.CombineYes && choice == domain.CombineDoNotCombine && LandingConfigured(v) {
		m.pending = &choice
		m.logger.Info("combine change requires confirmation")
		return Outcome{
			Decision:          current,
			NeedsConfirmation: true,
			Prompt:            "Switching to do not combine will clear the configured combine positions.",
		}, nil
	}
	return Outcome{Decision: choice, Updates: updatesFor(v, choice)}, nil
}

// Confirm 确认待定的转换
func (m *Machine) Confirm(v Reader) (Outcome, error) {
	if m.pending == nil {
		return Outcome{}, fmt.Errorf("%w: no combine change awaiting confirmation", domain.ErrInvariantViolation)
	}
	choice := *m.pending
	m.pending = nil
	return Outcome{Decision: choice, Updates: updatesFor(v, choice)}, nil
}

// Cancel 放弃待定的转换，状态不变；返回是否确有待定转换
func (m *Machine) Cancel() bool {
	had := m.pending != nil
	m.pending = nil
	return had
}

// OnActiveCountChanged 活动子系统达到 2 个且尚未决定时，自动设为不合并（无需确认）
func (m *Machine) OnActiveCountChanged(v Reader, active int) Outcome {
	if !needsAutoDefault(v, active) {
		return Outcome{Decision: Decision(v)}
	}
	m.logger.Info("second subsystem active, defaulting to do not combine", zap.Int("active", active))
	return Outcome{
		Decision: domain.CombineDoNotCombine,
		Updates:  updatesFor(v, domain.CombineDoNotCombine),
	}
}

// SetLanding 设置合并并网位置（仅在合并时允许）
// positions: 子系统编号 → 并网位置名称
func SetLanding(v Reader, positions map[int]string) (Outcome, error) {
	if Decision(v) != domain.CombineYes {
		return Outcome{}, fmt.Errorf("%w: combine positions require combine decision", domain.ErrInvariantViolation)
	}
	var value any
	if len(positions) > 0 {
		keys := make([]int, 0, len(positions))
		for n := range positions {
			if !domain.ValidSubsystem(n) {
				return Outcome{}, fmt.Errorf("%w: subsystem %d", domain.ErrInvariantViolation, n)
			}
			keys = append(keys, n)
		}
		sort.Ints(keys)
		flat := make(map[string]string, len(keys))
		for _, n := range keys {
			flat[fmt.Sprintf("sys%d", n)] = positions[n]
		}
		b, err := json.Marshal(flat)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to encode combine positions: %w", err)
		}
		value = string(b)
	}
	return Outcome{
		Decision: domain.CombineYes,
		Updates:  []state.Update{{Field: fieldmap.CombinePositions, Value: value}},
	}, nil
}

func needsAutoDefault(v Reader, active int) bool {
	return active >= 2 && Decision(v) == domain.CombineUndecided
}

func updatesFor(v Reader, choice domain.CombineDecision) []state.Update {
	switch choice {
	case domain.CombineYes:
		ups := []state.Update{{Field: fieldmap.CombineSystems, Value: true}}
		if domain.AsString(v.Get(fieldmap.CombinePositions, domain.GlobalIndex)) == domain.DoNotCombineSentinel {
			ups = append(ups, state.Update{Field: fieldmap.CombinePositions, Value: nil})
		}
		return ups
	case domain.CombineDoNotCombine:
		return []state.Update{
			{Field: fieldmap.CombineSystems, Value: false},
			{Field: fieldmap.CombinePositions, Value: domain.DoNotCombineSentinel},
		}
	}
	return nil
}
