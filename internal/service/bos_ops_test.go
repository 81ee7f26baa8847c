package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/notify"
	"skyfire-equipment/internal/repository"
)

type rawRecord map[string]any

func (r rawRecord) Raw(key string) any { return r[key] }

func TestAssignSlots_FirstFreeSlot(t *testing.T) {
	rec := rawRecord{"bos_sys1_type1_equipment_type": "PV Meter"}
	items := []domain.BOSItem{
		{EquipmentType: "AC Disconnect", Section: domain.SectionUtility, Target: 1, IsNew: true, Make: "EATON", Model: "DG222URB", AmpRating: 60, Resolved: true},
		{EquipmentType: "Fused AC Disconnect", Section: domain.SectionUtility, Target: 1, IsNew: true, MinAmpRating: 30},
	}

	assigned, skipped, updates := assignSlots(rec, items)
	assert.Empty(t, skipped)
	require.Len(t, assigned, 2)
	assert.Equal(t, "bos_sys1_type2", assigned[0].Prefix)
	assert.Equal(t, "bos_sys1_type3", assigned[1].Prefix)

	writes := map[string]any{}
	for _, u := range updates {
		writes[u.Key] = u.Value
	}
	assert.Equal(t, "AC Disconnect", writes["bos_sys1_type2_equipment_type"])
	assert.Equal(t, "EATON", writes["bos_sys1_type2_make"])
	assert.Equal(t, 60.0, writes["bos_sys1_type2_amp_rating"])
	assert.Equal(t, true, writes["bos_sys1_type2_is_new"])
	assert.Nil(t, writes["bos_sys1_type3_make"])
	assert.Equal(t, 30.0, writes["bos_sys1_type3_amp_rating"])
}

func TestAssignSlots_SkipsDuplicatesAndFullSections(t *testing.T) {
	rec := rawRecord{
		"bos_sys1_battery1_type1_equipment_type": "AC Disconnect",
		"bos_sys1_battery1_type2_equipment_type": "PV Meter",
		"bos_sys1_battery1_type3_equipment_type": "Fused AC Disconnect",
	}
	items := []domain.BOSItem{
		{EquipmentType: "ac disconnect", Section: domain.SectionBattery1, Target: 1},
		{EquipmentType: "Battery Meter", Section: domain.SectionBattery1, Target: 1},
		{EquipmentType: "AC Disconnect", Section: domain.SectionUtility, Target: 7},
		{Section: domain.SectionUtility, Target: 1},
	}

	assigned, skipped, updates := assignSlots(rec, items)
	assert.Empty(t, assigned)
	assert.Empty(t, updates)
	require.Len(t, skipped, 4)
	assert.Equal(t, "already configured", skipped[0].Reason)
	assert.Equal(t, "no free slot", skipped[1].Reason)
	assert.Contains(t, skipped[2].Reason, "subsystem 7")
	assert.Equal(t, "missing equipment type", skipped[3].Reason)
}

func TestAssignSlots_CombineSectionInvertsIsNew(t *testing.T) {
	items := []domain.BOSItem{
		{EquipmentType: "AC Disconnect", Section: domain.SectionCombine, Target: 2, IsNew: true},
		{EquipmentType: "AC Disconnect", Section: domain.SectionCombine, Target: 0, IsNew: false},
	}

	assigned, skipped, updates := assignSlots(rawRecord{}, items)
	require.Len(t, assigned, 1)
	require.Len(t, skipped, 1)
	assert.Equal(t, "postcombine_1_1", assigned[0].Prefix)

	writes := map[string]any{}
	for _, u := range updates {
		writes[u.Key] = u.Value
	}
	assert.Equal(t, false, writes["postcombine_1_1_existing"])
}

func TestDetectBOS_SuspendsThenPersistsPOI(t *testing.T) {
	f := newFixture(t)
	f.seed("p-1", map[string]any{
		"utility":               "Oncor Electric Delivery",
		"sys1_solar_panel_make": "REC",
	})
	ctx := context.Background()

	res, err := f.svc.DetectBOS(ctx, "p-1", nil)
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, 1, res.NeedsInput.Subsystem)

	_, err = f.svc.AcceptBOS(ctx, "p-1", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	res, err = f.svc.DetectBOS(ctx, "p-1", []bos.POIAnswer{{Subsystem: 1, POIType: "Line Side Tap", POILocation: "Main Panel"}})
	require.NoError(t, err)
	require.False(t, res.Suspended())
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Warnings)

	rec := f.record("p-1")
	assert.Equal(t, "Line Side Tap", rec["ele_method_of_interconnection"])
	assert.Equal(t, "Main Panel", rec["ele_breaker_location"])
}

func TestDetectBOS_StoredTypeStillNeedsLocation(t *testing.T) {
	f := newFixture(t)
	f.seed("p-1", map[string]any{
		"utility":                       "Oncor Electric Delivery",
		"sys1_solar_panel_make":         "REC",
		"ele_method_of_interconnection": "Backfeed Breaker",
	})
	ctx := context.Background()

	res, err := f.svc.DetectBOS(ctx, "p-1", nil)
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, []string{"poi_location"}, res.NeedsInput.Missing)
	assert.Equal(t, 0, f.store.writes)

	res, err = f.svc.DetectBOS(ctx, "p-1", []bos.POIAnswer{{Subsystem: 1, POILocation: "Sub Panel"}})
	require.NoError(t, err)
	require.False(t, res.Suspended())
	require.Len(t, res.Items, 1)
	assert.Equal(t, "AC Disconnect", res.Items[0].EquipmentType)

	rec := f.record("p-1")
	assert.Equal(t, "Backfeed Breaker", rec["ele_method_of_interconnection"])
	assert.Equal(t, "Sub Panel", rec["ele_breaker_location"])
}

func TestDetectBOS_Cancel(t *testing.T) {
	f := newFixture(t)
	f.seed("p-1", map[string]any{
		"utility":               "Oncor Electric Delivery",
		"sys1_solar_panel_make": "REC",
	})

	_, err := f.svc.DetectBOS(context.Background(), "p-1", []bos.POIAnswer{{Subsystem: 1, Cancel: true}})
	require.ErrorIs(t, err, domain.ErrUserCancelled)
	assert.Equal(t, 0, f.store.writes)
}

func TestAcceptBOS_UsesLastDetection(t *testing.T) {
	f := newFixture(t)
	f.seed("p-1", map[string]any{
		"utility":                       "Oncor Electric Delivery",
		"sys1_solar_panel_make":         "REC",
		"ele_method_of_interconnection": "Line Side Tap",
		"ele_breaker_location":          "Main Panel",
	})
	ctx := context.Background()

	det, err := f.svc.DetectBOS(ctx, "p-1", nil)
	require.NoError(t, err)
	require.Len(t, det.Items, 1)

	res, err := f.svc.AcceptBOS(ctx, "p-1", nil)
	require.NoError(t, err)
	require.Len(t, res.Assigned, 1)
	assert.Equal(t, "post_sms_bos_sys1_type1", res.Assigned[0].Prefix)
	assert.NotEmpty(t, res.RevisionID)
	assert.Equal(t, "Fused AC Disconnect", res.View.BOS["post_sms_bos_sys1_type1_equipment_type"])

	rec := f.record("p-1")
	assert.Equal(t, "Fused AC Disconnect", rec["post_sms_bos_sys1_type1_equipment_type"])
	assert.Equal(t, true, rec["post_sms_bos_sys1_type1_is_new"])

	events := f.publisher.all()
	require.NotEmpty(t, events)
	assert.Equal(t, notify.EventBOSAccepted, events[len(events)-1].Type)

	revs, total, err := f.svc.Revisions(ctx, "p-1", 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, repository.RevisionKindBOSAccept, revs[0].Kind)
	var data map[string]any
	require.NoError(t, json.Unmarshal(revs[0].Data, &data))
	assert.Contains(t, data, "assigned")

	// 同一推荐再次接受不会重复写入
	res, err = f.svc.AcceptBOS(ctx, "p-1", det.Items)
	require.NoError(t, err)
	assert.Empty(t, res.Assigned)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "already configured", res.Skipped[0].Reason)
}
