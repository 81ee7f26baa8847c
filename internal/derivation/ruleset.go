package derivation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// DefaultMaxPasses 不动点迭代上限
const DefaultMaxPasses = 8

// Ref 字段引用（逻辑字段 + 子系统编号，项目级字段编号为 0）
type Ref struct {
	Field     fieldmap.Field
	Subsystem int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%d", r.Field, r.Subsystem)
}

// Change 一次实际生效的字段变更
type Change struct {
	Ref
	Old any
	New any
}

// Write 规则提出的写入
// Track 为 true 时记录该字段由此规则写入（用于之后判断能否自动清除）。
type Write struct {
	Ref
	Value any
	Track bool
}

// Set 构造写入
func Set(field fieldmap.Field, subsystem int, value any) Write {
	return Write{Ref: Ref{Field: field, Subsystem: subsystem}, Value: value}
}

// Clear 构造清空写入
func Clear(field fieldmap.Field, subsystem int) Write {
	return Set(field, subsystem, nil)
}

// View 规则读取的已结算状态
type View interface {
	Get(field fieldmap.Field, subsystem int) any
	String(field fieldmap.Field, subsystem int) string
	Int(field fieldmap.Field, subsystem int) int
	WrittenBy(field fieldmap.Field, subsystem int) string
	ActiveSubsystems() []int
}

// Trigger 一次规则调用的触发上下文
type Trigger struct {
	Subsystem int
	Changes   []Change
}

// Old 本次触发中字段变更前的值
func (t Trigger) Old(field fieldmap.Field) (any, bool) {
	for _, c := range t.Changes {
		if c.Field == field {
			return c.Old, true
		}
	}
	return nil, false
}

// Rule 派生规则：在触发字段变化后，根据已结算状态给出需要的写入
// Evaluate 内部完成守卫判断；不满足时返回 nil。
type Rule interface {
	Name() string
	Triggers() []fieldmap.Field
	Evaluate(v View, t Trigger) []Write
}

// Applier 应用规则写入，返回实际变更；无变化（no-op）时 ok=false
type Applier func(rule string, w Write) (Change, bool)

// RuleSet 有序规则集，按不动点方式运行
type RuleSet struct {
	rules     []Rule
	triggers  []map[fieldmap.Field]bool
	maxPasses int
	logger    *zap.Logger
}

// NewRuleSet 创建规则集（注册顺序即同一轮内的执行顺序）
func NewRuleSet(maxPasses int, logger *zap.Logger, rules ...Rule) *RuleSet {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := &RuleSet{maxPasses: maxPasses, logger: logger}
	for _, r := range rules {
		rs.Register(r)
	}
	return rs
}

// Register 追加规则
func (rs *RuleSet) Register(r Rule) {
	set := make(map[fieldmap.Field]bool, len(r.Triggers()))
	for _, f := range r.Triggers() {
		set[f] = true
	}
	rs.rules = append(rs.rules, r)
	rs.triggers = append(rs.triggers, set)
}

// Names 已注册规则名
func (rs *RuleSet) Names() []string {
	out := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r.Name())
	}
	return out
}

type invocation struct {
	rule    int
	trigger Trigger
}

// plan 按变更顺序决定本轮的规则调用：同一 (规则, 子系统) 合并为一次调用，
// 以其最早的触发变更排序，同位置按注册顺序。
func (rs *RuleSet) plan(changes []Change) []*invocation {
	var out []*invocation
	index := map[[2]int]*invocation{}
	for _, ch := range changes {
		for i := range rs.rules {
			if !rs.triggers[i][ch.Field] {
				continue
			}
			k := [2]int{i, ch.Subsystem}
			inv, ok := index[k]
			if !ok {
				inv = &invocation{rule: i, trigger: Trigger{Subsystem: ch.Subsystem}}
				index[k] = inv
				out = append(out, inv)
			}
			inv.trigger.Changes = append(inv.trigger.Changes, ch)
		}
	}
	return out
}

// Run 从初始变更出发运行到不动点，返回执行的轮数
// 每轮只处理上一轮产生的变更；超过上限返回 ErrDerivationCycle。
func (rs *RuleSet) Run(v View, changes []Change, apply Applier) (int, error) {
	passes := 0
	pending := changes
	for len(pending) > 0 {
		plan := rs.plan(pending)
		if len(plan) == 0 {
			break
		}
		if passes >= rs.maxPasses {
			return passes, fmt.Errorf("%w after %d passes, still changing: %s",
				domain.ErrDerivationCycle, passes, describe(pending))
		}
		passes++

		var next []Change
		for _, inv := range plan {
			r := rs.rules[inv.rule]
			for _, w := range r.Evaluate(v, inv.trigger) {
				ch, ok := apply(r.Name(), w)
				if !ok {
					continue
				}
				rs.logger.Debug("derived field",
					zap.String("rule", r.Name()),
					zap.String("field", string(ch.Field)),
					zap.Int("subsystem", ch.Subsystem),
					zap.Any("value", ch.New),
				)
				next = append(next, ch)
			}
		}
		pending = next
	}
	return passes, nil
}

// Reconcile 对给定子系统无条件评估所有规则一次，再运行到不动点
// 已结算的状态上应当不产生任何变更。
func (rs *RuleSet) Reconcile(v View, subsystems []int, apply Applier) (int, error) {
	var changes []Change
	for _, n := range subsystems {
		for _, r := range rs.rules {
			for _, w := range r.Evaluate(v, Trigger{Subsystem: n}) {
				if ch, ok := apply(r.Name(), w); ok {
					changes = append(changes, ch)
				}
			}
		}
	}
	if len(changes) == 0 {
		return 1, nil
	}
	passes, err := rs.Run(v, changes, apply)
	return passes + 1, err
}

func describe(changes []Change) string {
	seen := map[Ref]bool{}
	var parts []string
	for _, c := range changes {
		if seen[c.Ref] {
			continue
		}
		seen[c.Ref] = true
		parts = append(parts, c.Ref.String())
		if len(parts) == 5 {
			parts = append(parts, "...")
			break
		}
	}
	return strings.Join(parts, ", ")
}
