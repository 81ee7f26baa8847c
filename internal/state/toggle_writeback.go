package state

import (
	"go.uber.org/zap"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// ToggleValue 设备组切换字段的当前有效值，未设置时为 false（新设备）
func (s *ConfigState) ToggleValue(toggle fieldmap.Field, subsystem int) bool {
	v := s.Get(toggle, subsystem)
	if v == nil {
		return false
	}
	return domain.AsBool(v)
}

// writebackToggles 批次内每个被写入的设备组字段，都把该组切换字段的当前值一并写入
// （切换字段本身已在批次中时跳过）。每批次只计算一次。
func (s *ConfigState) writebackToggles(b *batchBuilder) {
	written := make(map[derivation.Ref]bool, len(b.changes))
	for _, ch := range b.changes {
		written[ch.Ref] = true
	}

	done := map[derivation.Ref]bool{}
	for _, ch := range b.changes {
		if fieldmap.IsLocalDerived(ch.Field) {
			continue
		}
		toggle, ok := fieldmap.ToggleFor(ch.Field)
		if !ok {
			continue
		}
		ref := derivation.Ref{Field: toggle, Subsystem: ch.Subsystem}
		if written[ref] || done[ref] {
			continue
		}
		done[ref] = true

		key, ok := fieldmap.Resolve(toggle, ch.Subsystem)
		if !ok {
			continue
		}
		persisted := fieldmap.ToPersisted(toggle, s.ToggleValue(toggle, ch.Subsystem))
		s.record[key] = persisted
		b.writes[key] = persisted
		b.toggles = append(b.toggles, key)

		s.logger.Debug("toggle written with group field",
			zap.String("field", string(ch.Field)),
			zap.String("toggle", key),
			zap.Int("subsystem", ch.Subsystem),
		)
	}
}
