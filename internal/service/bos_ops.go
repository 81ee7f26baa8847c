package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
	"skyfire-equipment/internal/metrics"
	"skyfire-equipment/internal/notify"
	"skyfire-equipment/internal/repository"
	"skyfire-equipment/internal/state"
)

// DetectBOS 运行 BOS 检测。需要 POI 输入时结果的 NeedsInput 非空，用户取消返回 ErrUserCancelled。
// 检测本身不修改状态，仅持久化本次用到的 POI 回答。
func (s *ProjectService) DetectBOS(ctx context.Context, projectID string, answers []bos.POIAnswer) (*bos.Result, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("%w: bos engine not configured", domain.ErrInvariantViolation)
	}
	var res *bos.Result
	err := s.withSession(ctx, projectID, func(sess *session) error {
		r, err := s.engine.Detect(ctx, sess.state, answers)
		if err != nil {
			if errors.Is(err, domain.ErrUserCancelled) {
				metrics.RecordBOSDetection(bos.SourceUtilitySpecialCase, "cancelled")
			} else {
				metrics.RecordBOSDetection(bos.SourceNone, "error")
			}
			return err
		}
		res = r
		if r.Suspended() {
			metrics.RecordBOSDetection(r.Source, "needs_input")
			return nil
		}
		metrics.RecordBOSDetection(r.Source, "ok")
		sess.lastDetection = r

		updates := poiUpdates(sess.state, r.Answers)
		if len(updates) == 0 {
			return nil
		}
		if _, err := s.apply(ctx, sess, updates, notify.EventConfigChanged); err != nil {
			r.Warnings = append(r.Warnings, "poi answers not saved: "+err.Error())
		}
		return nil
	})
	return res, err
}

// poiUpdates 只写入与已保存值不同的 POI 回答
func poiUpdates(st *state.ConfigState, answers []bos.POIAnswer) []state.Update {
	var updates []state.Update
	for _, a := range answers {
		if a.Cancel {
			continue
		}
		if a.POIType != "" && st.String(fieldmap.POIType, a.Subsystem) != a.POIType {
			updates = append(updates, state.Update{Field: fieldmap.POIType, Subsystem: a.Subsystem, Value: a.POIType})
		}
		if a.POILocation != "" && st.String(fieldmap.POILocation, a.Subsystem) != a.POILocation {
			updates = append(updates, state.Update{Field: fieldmap.POILocation, Subsystem: a.Subsystem, Value: a.POILocation})
		}
	}
	return updates
}

// SlotAssignment BOS 项写入的槽位
type SlotAssignment struct {
	Item   domain.BOSItem `json:"item"`
	Prefix string         `json:"prefix"`
	Slot   int            `json:"slot"`
}

// SkippedItem 未写入的 BOS 项
type SkippedItem struct {
	Item   domain.BOSItem `json:"item"`
	Reason string         `json:"reason"`
}

// AcceptResult 接受 BOS 推荐的结果
type AcceptResult struct {
	*ChangeResult
	Assigned   []SlotAssignment `json:"assigned"`
	Skipped    []SkippedItem    `json:"skipped,omitempty"`
	RevisionID string           `json:"revision_id,omitempty"`
}

// AcceptBOS 把 BOS 项写入各区段的空槽位。items 为空时使用最近一次检测结果。
// 已存在同类型设备的槽位组不重复写入。
func (s *ProjectService) AcceptBOS(ctx context.Context, projectID string, items []domain.BOSItem) (*AcceptResult, error) {
	var res *AcceptResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		if len(items) == 0 {
			if sess.lastDetection == nil || len(sess.lastDetection.Items) == 0 {
				return fmt.Errorf("%w: no bos detection to accept", domain.ErrNotFound)
			}
			items = sess.lastDetection.Items
		}
		assigned, skipped, updates := assignSlots(sess.state, items)
		res = &AcceptResult{Assigned: assigned, Skipped: skipped}
		if len(updates) == 0 {
			res.ChangeResult = &ChangeResult{View: buildView(sess)}
			return nil
		}

		change, err := s.apply(ctx, sess, updates, notify.EventBOSAccepted)
		res.ChangeResult = change
		if err != nil {
			return err
		}
		id, rerr := s.recordAcceptance(ctx, projectID, change.Batch, assigned)
		if rerr != nil {
			s.logger.Warn("bos acceptance revision not recorded", zap.String("project_id", projectID), zap.Error(rerr))
			change.Warnings = append(change.Warnings, "revision not recorded: "+rerr.Error())
		}
		res.RevisionID = id
		sess.lastDetection = nil
		return nil
	})
	return res, err
}

func (s *ProjectService) recordAcceptance(ctx context.Context, projectID string, batch *state.Batch, assigned []SlotAssignment) (string, error) {
	data, err := json.Marshal(map[string]any{
		"batch_id": batch.ID,
		"version":  batch.Version,
		"assigned": assigned,
	})
	if err != nil {
		return "", err
	}
	return s.revisions.CreateRevision(ctx, &repository.Revision{
		ProjectID: projectID,
		Kind:      repository.RevisionKindBOSAccept,
		Data:      data,
		ValidFrom: time.Now().UTC(),
	})
}

// slotReader 读取原始槽位键
type slotReader interface {
	Raw(key string) any
}

// assignSlots 为每个 BOS 项找到所在区段/目标的第一个空槽位
func assignSlots(st slotReader, items []domain.BOSItem) ([]SlotAssignment, []SkippedItem, []state.Update) {
	var (
		assigned []SlotAssignment
		skipped  []SkippedItem
		updates  []state.Update
	)
	taken := map[string]string{}

	occupant := func(section domain.Section, target, slot int) (string, bool) {
		key, err := fieldmap.SlotKey(section, target, slot, fieldmap.SlotEquipmentType)
		if err != nil {
			return "", false
		}
		if t, ok := taken[key]; ok {
			return t, true
		}
		v := st.Raw(key)
		return domain.AsString(v), !domain.IsEmpty(v)
	}

	for _, item := range items {
		target := item.Target
		if item.Section == domain.SectionCombine {
			target = domain.CombinedTarget
		}
		typeName := slotTypeName(item)
		if typeName == "" {
			skipped = append(skipped, SkippedItem{Item: item, Reason: "missing equipment type"})
			continue
		}
		if _, err := fieldmap.SlotPrefix(item.Section, target, 1); err != nil {
			skipped = append(skipped, SkippedItem{Item: item, Reason: err.Error()})
			continue
		}

		free, duplicate := 0, false
		for slot := 1; slot <= fieldmap.SlotCount(item.Section); slot++ {
			existing, used := occupant(item.Section, target, slot)
			if !used {
				if free == 0 {
					free = slot
				}
				continue
			}
			if strings.EqualFold(existing, typeName) {
				duplicate = true
				break
			}
		}
		if duplicate {
			skipped = append(skipped, SkippedItem{Item: item, Reason: "already configured"})
			continue
		}
		if free == 0 {
			skipped = append(skipped, SkippedItem{Item: item, Reason: "no free slot"})
			continue
		}

		prefix, _ := fieldmap.SlotPrefix(item.Section, target, free)
		values := slotValues(item, typeName)
		for _, attr := range fieldmap.SlotAttributes {
			key, _ := fieldmap.SlotKey(item.Section, target, free, attr)
			updates = append(updates, state.Update{Key: key, Value: fieldmap.SlotValue(item.Section, attr, values[attr])})
			if attr == fieldmap.SlotEquipmentType {
				taken[key] = typeName
			}
		}
		assigned = append(assigned, SlotAssignment{Item: item, Prefix: prefix, Slot: free})
	}
	return assigned, skipped, updates
}

func slotTypeName(item domain.BOSItem) string {
	if item.StandardType != "" {
		return item.StandardType
	}
	return item.EquipmentType
}

func slotValues(item domain.BOSItem, typeName string) map[string]any {
	values := map[string]any{
		fieldmap.SlotEquipmentType: typeName,
		fieldmap.SlotMake:          nilIfEmpty(item.Make),
		fieldmap.SlotModel:         nilIfEmpty(item.Model),
		fieldmap.SlotIsNew:         item.IsNew,
	}
	switch {
	case item.AmpRating > 0:
		values[fieldmap.SlotAmpRating] = item.AmpRating
	case item.MinAmpRating > 0:
		values[fieldmap.SlotAmpRating] = float64(item.MinAmpRating)
	default:
		values[fieldmap.SlotAmpRating] = nil
	}
	return values
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
