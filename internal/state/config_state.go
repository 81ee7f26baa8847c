package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// ConfigState 单个项目的设备配置状态
// 持有持久化记录的内存副本、仅本地的派生字段、子系统可见性和规则写入归属。
// 非并发安全：调用方（ProjectService）按项目串行化。
type ConfigState struct {
	projectID  string
	record     map[string]any
	local      map[derivation.Ref]any
	visible    [domain.MaxSubsystems + 1]bool
	provenance map[derivation.Ref]string
	version    int64
	rules      *derivation.RuleSet
	logger     *zap.Logger
}

// New 创建空状态（子系统1始终可见）
func New(projectID string, rules *derivation.RuleSet, logger *zap.Logger) *ConfigState {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = derivation.NewRuleSet(0, logger)
	}
	s := &ConfigState{
		projectID:  projectID,
		record:     map[string]any{},
		local:      map[derivation.Ref]any{},
		provenance: map[derivation.Ref]string{},
		rules:      rules,
		logger:     logger.With(zap.String("project_id", projectID)),
	}
	s.visible[1] = true
	return s
}

// ProjectID 项目ID
func (s *ConfigState) ProjectID() string { return s.projectID }

// Version 记录版本。本地每个非空批次加一，持久化成功后以存储返回的版本为准。
func (s *ConfigState) Version() int64 { return s.version }

// SyncVersion 采用存储写入后返回的版本
func (s *ConfigState) SyncVersion(v int64) { s.version = v }

// Load 用持久化记录替换内存副本并执行自动可见性
// 可见性只增不减：已被用户添加的子系统不会因为记录为空而隐藏。
func (s *ConfigState) Load(record map[string]any, version int64) {
	s.record = make(map[string]any, len(record))
	for k, v := range record {
		if v == nil {
			continue
		}
		s.record[k] = v
	}
	s.version = version
	s.provenance = decodeProvenance(s.record[provenanceKey()])

	for key, v := range s.record {
		if domain.IsEmpty(v) {
			continue
		}
		if _, n, ok := fieldmap.Reverse(key); ok && domain.ValidSubsystem(n) {
			s.visible[n] = true
			continue
		}
		if n, ok := fieldmap.SlotSubsystem(key); ok && domain.ValidSubsystem(n) {
			s.visible[n] = true
		}
	}
	s.logger.Debug("config state loaded",
		zap.Int("keys", len(s.record)),
		zap.Ints("visible", s.VisibleSubsystems()),
	)
}

// Record 持久化记录的副本
func (s *ConfigState) Record() map[string]any {
	out := make(map[string]any, len(s.record))
	for k, v := range s.record {
		out[k] = v
	}
	return out
}

// Get 读取逻辑字段值（已做反转）
func (s *ConfigState) Get(field fieldmap.Field, subsystem int) any {
	if fieldmap.IsGlobal(field) {
		subsystem = domain.GlobalIndex
	}
	if fieldmap.IsLocalDerived(field) {
		return s.local[derivation.Ref{Field: field, Subsystem: subsystem}]
	}
	key, ok := fieldmap.Resolve(field, subsystem)
	if !ok {
		return nil
	}
	return fieldmap.FromPersisted(field, s.record[key])
}

// String 读取字符串值（去首尾空白）
func (s *ConfigState) String(field fieldmap.Field, subsystem int) string {
	return strings.TrimSpace(domain.AsString(s.Get(field, subsystem)))
}

// Int 读取整数值
func (s *ConfigState) Int(field fieldmap.Field, subsystem int) int {
	return domain.AsInt(s.Get(field, subsystem))
}

// Float 读取浮点值
func (s *ConfigState) Float(field fieldmap.Field, subsystem int) float64 {
	return domain.AsFloat(s.Get(field, subsystem))
}

// Raw 读取持久化键的原始值（BOS 槽位等）
func (s *ConfigState) Raw(key string) any {
	return s.record[key]
}

// WrittenBy 字段最近一次由哪个规则写入（未记录返回空）
func (s *ConfigState) WrittenBy(field fieldmap.Field, subsystem int) string {
	if fieldmap.IsGlobal(field) {
		subsystem = domain.GlobalIndex
	}
	return s.provenance[derivation.Ref{Field: field, Subsystem: subsystem}]
}

// identityFields 任一有值即视为子系统“活动”
var identityFields = []fieldmap.Field{
	fieldmap.SolarPanelMake,
	fieldmap.InverterMake,
	fieldmap.Battery1Make,
}

// IsActive 子系统是否活动
func (s *ConfigState) IsActive(n int) bool {
	for _, f := range identityFields {
		if s.String(f, n) != "" {
			return true
		}
	}
	return s.Int(fieldmap.Battery1Quantity, n) > 0 || s.Int(fieldmap.Battery2Quantity, n) > 0
}

// ActiveSubsystems 活动子系统编号（升序）
func (s *ConfigState) ActiveSubsystems() []int {
	var out []int
	for n := 1; n <= domain.MaxSubsystems; n++ {
		if s.IsActive(n) {
			out = append(out, n)
		}
	}
	return out
}

// VisibleSubsystems 可见子系统编号（升序）
func (s *ConfigState) VisibleSubsystems() []int {
	var out []int
	for n := 1; n <= domain.MaxSubsystems; n++ {
		if s.visible[n] {
			out = append(out, n)
		}
	}
	return out
}

// SetField 写入单个字段
func (s *ConfigState) SetField(field fieldmap.Field, value any, subsystem int) (*Batch, error) {
	return s.BatchSet([]Update{{Field: field, Subsystem: subsystem, Value: value}})
}

// BatchSet 批量写入：先应用全部用户写入，再运行派生规则到不动点，
// 最后统一计算切换字段回写。返回的 Batch 是一个持久化单元。
// 派生失败（不收敛）时内存状态回滚到批次之前。
func (s *ConfigState) BatchSet(updates []Update) (*Batch, error) {
	snap := s.snapshot()
	b := newBatchBuilder()

	var changes []derivation.Change
	for _, u := range updates {
		if u.Key != "" {
			s.applyRaw(u.Key, u.Value, b)
			continue
		}
		ch, ok, err := s.applyUser(u, b)
		if err != nil {
			s.restore(snap)
			return nil, err
		}
		if ok {
			changes = append(changes, ch)
		}
	}

	passes, err := s.rules.Run(s, changes, func(rule string, w derivation.Write) (derivation.Change, bool) {
		return s.apply(w.Ref, w.Value, rule, w.Track, b)
	})
	if err != nil {
		s.restore(snap)
		s.logger.Error("derivation did not settle", zap.Error(err))
		return nil, err
	}
	b.passes = passes

	return s.finish(b), nil
}

// Rederive 对所有可见子系统无条件重新评估规则（已结算状态下应为空批次）
func (s *ConfigState) Rederive() (*Batch, error) {
	snap := s.snapshot()
	b := newBatchBuilder()
	passes, err := s.rules.Reconcile(s, s.VisibleSubsystems(), func(rule string, w derivation.Write) (derivation.Change, bool) {
		return s.apply(w.Ref, w.Value, rule, w.Track, b)
	})
	if err != nil {
		s.restore(snap)
		return nil, err
	}
	b.passes = passes
	return s.finish(b), nil
}

func (s *ConfigState) finish(b *batchBuilder) *Batch {
	s.writebackToggles(b)
	s.flushProvenance(b)

	batch := &Batch{
		ID:      uuid.NewString(),
		Writes:  b.writes,
		Changes: b.changes,
		Toggles: b.toggles,
		Misses:  b.misses,
		Passes:  b.passes,
	}
	if len(b.writes) > 0 {
		s.version++
	}
	batch.Version = s.version
	return batch
}

func (s *ConfigState) applyUser(u Update, b *batchBuilder) (derivation.Change, bool, error) {
	entry, known := fieldmap.Lookup(u.Field)
	if !known {
		s.miss(string(u.Field), u.Subsystem, b)
		return derivation.Change{}, false, nil
	}
	n := u.Subsystem
	if entry.Scope == fieldmap.Global {
		n = domain.GlobalIndex
	} else if !domain.ValidSubsystem(n) {
		return derivation.Change{}, false, fmt.Errorf("%w: subsystem %d out of range 1..%d",
			domain.ErrInvariantViolation, n, domain.MaxSubsystems)
	}
	if entry.Field == fieldmap.RuleProvenance {
		return derivation.Change{}, false, fmt.Errorf("%w: %s is engine-managed", domain.ErrInvariantViolation, u.Field)
	}
	ref := derivation.Ref{Field: u.Field, Subsystem: n}
	ch, ok := s.apply(ref, u.Value, "", false, b)
	if ok && n != domain.GlobalIndex && !s.visible[n] {
		s.visible[n] = true
	}
	return ch, ok, nil
}

// apply 写入一个逻辑字段；值未变化时丢弃（不产生写入，也不触发规则）
func (s *ConfigState) apply(ref derivation.Ref, value any, rule string, track bool, b *batchBuilder) (derivation.Change, bool) {
	value = fieldmap.Coerce(ref.Field, value)
	old := s.Get(ref.Field, ref.Subsystem)
	if domain.Equal(old, value) {
		return derivation.Change{}, false
	}

	if fieldmap.IsLocalDerived(ref.Field) {
		if value == nil {
			delete(s.local, ref)
		} else {
			s.local[ref] = value
		}
	} else {
		key, ok := fieldmap.Resolve(ref.Field, ref.Subsystem)
		if !ok {
			s.miss(string(ref.Field), ref.Subsystem, b)
			return derivation.Change{}, false
		}
		persisted := fieldmap.ToPersisted(ref.Field, value)
		if persisted == nil {
			delete(s.record, key)
		} else {
			s.record[key] = persisted
		}
		b.writes[key] = persisted
	}

	// 被清空的字段不再归属任何规则
	if track && rule != "" && !domain.IsEmpty(value) {
		s.provenance[ref] = rule
	} else {
		delete(s.provenance, ref)
	}

	ch := derivation.Change{Ref: ref, Old: old, New: value}
	b.changes = append(b.changes, ch)
	return ch, true
}

func (s *ConfigState) applyRaw(key string, value any, b *batchBuilder) {
	if !fieldmap.IsSlotKey(key) {
		s.miss(key, 0, b)
		return
	}
	if domain.Equal(s.record[key], value) {
		return
	}
	if domain.IsEmpty(value) {
		delete(s.record, key)
		value = nil
	} else {
		s.record[key] = value
	}
	b.writes[key] = value
	if n, ok := fieldmap.SlotSubsystem(key); ok && domain.ValidSubsystem(n) {
		s.visible[n] = true
	}
}

func (s *ConfigState) miss(field string, subsystem int, b *batchBuilder) {
	b.misses = append(b.misses, MappingMiss{Field: field, Subsystem: subsystem})
	s.logger.Warn("field has no persisted mapping, write dropped",
		zap.String("field", field),
		zap.Int("subsystem", subsystem),
	)
}

type stateSnapshot struct {
	record     map[string]any
	local      map[derivation.Ref]any
	provenance map[derivation.Ref]string
	visible    [domain.MaxSubsystems + 1]bool
}

func (s *ConfigState) snapshot() stateSnapshot {
	snap := stateSnapshot{
		record:     s.Record(),
		local:      make(map[derivation.Ref]any, len(s.local)),
		provenance: make(map[derivation.Ref]string, len(s.provenance)),
		visible:    s.visible,
	}
	for k, v := range s.local {
		snap.local[k] = v
	}
	for k, v := range s.provenance {
		snap.provenance[k] = v
	}
	return snap
}

func (s *ConfigState) restore(snap stateSnapshot) {
	s.record = snap.record
	s.local = snap.local
	s.provenance = snap.provenance
	s.visible = snap.visible
}

func provenanceKey() string {
	key, _ := fieldmap.Resolve(fieldmap.RuleProvenance, domain.GlobalIndex)
	return key
}

// flushProvenance 归属表有变化时随批次一起持久化
func (s *ConfigState) flushProvenance(b *batchBuilder) {
	key := provenanceKey()
	encoded := encodeProvenance(s.provenance)
	if domain.Equal(s.record[key], encoded) {
		return
	}
	if encoded == nil {
		delete(s.record, key)
	} else {
		s.record[key] = encoded
	}
	b.writes[key] = encoded
}

// 归属表持久化格式：{"field@n": "rule"}
func encodeProvenance(p map[derivation.Ref]string) any {
	if len(p) == 0 {
		return nil
	}
	flat := make(map[string]string, len(p))
	for ref, rule := range p {
		flat[ref.String()] = rule
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return string(b)
}

func decodeProvenance(v any) map[derivation.Ref]string {
	out := map[derivation.Ref]string{}
	raw := domain.AsString(v)
	if raw == "" {
		return out
	}
	var flat map[string]string
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return out
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		i := strings.LastIndex(k, "@")
		if i <= 0 {
			continue
		}
		f, ok := fieldmap.Parse(k[:i])
		if !ok {
			continue
		}
		n := domain.AsInt(k[i+1:])
		out[derivation.Ref{Field: f, Subsystem: n}] = flat[k]
	}
	return out
}
