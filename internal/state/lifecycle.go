package state

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
)

// AddSubsystem 显示子系统（不产生持久化写入）
func (s *ConfigState) AddSubsystem(n int) error {
	if !domain.ValidSubsystem(n) {
		return fmt.Errorf("%w: subsystem %d out of range 1..%d", domain.ErrInvariantViolation, n, domain.MaxSubsystems)
	}
	s.visible[n] = true
	return nil
}

// RemoveSubsystem 隐藏子系统并把它的所有持久化字段置为 null
// 子系统1不可移除。
func (s *ConfigState) RemoveSubsystem(n int) (*Batch, error) {
	if n == 1 {
		return nil, fmt.Errorf("%w: subsystem 1 cannot be removed", domain.ErrInvariantViolation)
	}
	if !domain.ValidSubsystem(n) {
		return nil, fmt.Errorf("%w: subsystem %d out of range 1..%d", domain.ErrInvariantViolation, n, domain.MaxSubsystems)
	}

	b := newBatchBuilder()
	for _, key := range fieldmap.PersistedKeys(n) {
		if _, present := s.record[key]; present {
			delete(s.record, key)
			b.writes[key] = nil
		}
	}
	prefixes := []string{fmt.Sprintf("bos_sys%d_", n), fmt.Sprintf("post_sms_bos_sys%d_", n)}
	for key := range s.record {
		if !fieldmap.IsSlotKey(key) {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				delete(s.record, key)
				b.writes[key] = nil
			}
		}
	}
	for ref := range s.local {
		if ref.Subsystem == n {
			delete(s.local, ref)
		}
	}
	for ref := range s.provenance {
		if ref.Subsystem == n {
			delete(s.provenance, ref)
		}
	}
	s.visible[n] = false
	s.flushProvenance(b)

	s.logger.Info("subsystem removed", zap.Int("subsystem", n), zap.Int("cleared", len(b.writes)))

	if len(b.writes) > 0 {
		s.version++
	}
	return &Batch{ID: uuid.NewString(), Version: s.version, Writes: b.writes}, nil
}

// Visible 子系统是否可见
func (s *ConfigState) Visible(n int) bool {
	return domain.ValidSubsystem(n) && s.visible[n]
}

var _ derivation.View = (*ConfigState)(nil)
