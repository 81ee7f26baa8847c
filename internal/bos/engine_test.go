package bos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfire-equipment/internal/domain"
)

func TestDetect_OncorSuspendsForPOIThenResumes(t *testing.T) {
	e := newTestEngine(t, newFakeCatalog(), &fakeRequirements{})
	src := loadState(map[string]any{
		"utility":                         "Oncor Electric Delivery",
		"sys1_micro_inverter_make":        "Enphase",
		"sys1_micro_inverter_model":       "IQ8PLUS-72-2-US",
		"sys1_system_type":                "microinverter",
		"sys1_micro_inverter_qty":         20,
		"sys1_inv_max_continuous_output": 1.21,
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, 1, res.NeedsInput.Subsystem)
	assert.Contains(t, res.NeedsInput.Options, "Line Side Tap")
	assert.Equal(t, []string{"poi_type", "poi_location"}, res.NeedsInput.Missing)
	assert.Empty(t, res.Items)

	res, err = e.Detect(context.Background(), src, []POIAnswer{{Subsystem: 1, POIType: "Line Side Tap", POILocation: "Main Panel"}})
	require.NoError(t, err)
	require.False(t, res.Suspended())
	require.Len(t, res.Items, 1)
	item := res.Items[0]
	assert.Equal(t, "Fused AC Disconnect", item.EquipmentType)
	assert.Equal(t, domain.SectionPostSMS, item.Section)
	assert.Equal(t, domain.ConfidenceUtilityRequired, item.Confidence)
	// 20 x 1.21A = 24A, x 1.25 = 30A
	assert.Equal(t, 30, item.MinAmpRating)
	assert.True(t, item.Resolved)
	assert.Equal(t, "DG221NRB", item.Model)
	assert.Equal(t, SourceUtilitySpecialCase, res.Source)
	assert.Contains(t, res.Summary, "System 1: Fused AC Disconnect")
	assert.Len(t, res.Answers, 1)
}

func TestDetect_XcelUsesStoredPOI(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	src := loadState(map[string]any{
		"utility":                             "Xcel Energy",
		"sys1_solar_panel_make":               "REC",
		"sys2_solar_panel_make":               "REC",
		"ele_method_of_interconnection":       "Backfeed Breaker",
		"ele_breaker_location":                "Main Panel",
		"sys2_ele_method_of_interconnection":  "Lug Kit",
		"sys2_ele_breaker_location":           "Sub Panel",
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "AC Disconnect", res.Items[0].EquipmentType)
	assert.Equal(t, 1, res.Items[0].Target)
	assert.Equal(t, "Fused AC Disconnect", res.Items[1].EquipmentType)
	assert.Equal(t, 2, res.Items[1].Target)
	assert.False(t, res.Items[0].Resolved)
}

func TestDetect_CombinedSystemsOnlyPromptOnce(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	src := loadState(map[string]any{
		"utility":               "Oncor",
		"sys1_solar_panel_make": "REC",
		"sys2_solar_panel_make": "REC",
		"ele_combine_systems":   true,
	})

	res, err := e.Detect(context.Background(), src, []POIAnswer{{Subsystem: 1, POIType: "Load Side Tap", POILocation: "Main Panel"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "AC Disconnect", res.Items[0].EquipmentType)
}

func TestDetect_SuspendsWhenLocationMissing(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	src := loadState(map[string]any{
		"utility":                       "Oncor",
		"sys1_solar_panel_make":         "REC",
		"ele_method_of_interconnection": "Backfeed Breaker",
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Empty(t, res.Items)
	assert.Equal(t, []string{"poi_location"}, res.NeedsInput.Missing)
	assert.Equal(t, "Backfeed Breaker", res.NeedsInput.POIType)

	// 只回答类型、没有位置时仍然挂起
	res, err = e.Detect(context.Background(), src, []POIAnswer{{Subsystem: 1, POIType: "Line Side Tap"}})
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, []string{"poi_location"}, res.NeedsInput.Missing)

	res, err = e.Detect(context.Background(), src, []POIAnswer{{Subsystem: 1, POILocation: "Main Panel"}})
	require.NoError(t, err)
	require.False(t, res.Suspended())
	require.Len(t, res.Items, 1)
	assert.Equal(t, "AC Disconnect", res.Items[0].EquipmentType)
	require.Len(t, res.Answers, 1)
	assert.Equal(t, "Main Panel", res.Answers[0].POILocation)
}

func TestDetect_SuspendsWhenTypeMissing(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	src := loadState(map[string]any{
		"utility":               "Xcel Energy",
		"sys1_solar_panel_make": "REC",
		"ele_breaker_location":  "Main Panel",
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.True(t, res.Suspended())
	assert.Equal(t, []string{"poi_type"}, res.NeedsInput.Missing)
	assert.Equal(t, "Main Panel", res.NeedsInput.POILocation)
}

func TestDetect_CancelAbortsPass(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	src := loadState(map[string]any{"utility": "Oncor", "sys1_solar_panel_make": "REC"})

	res, err := e.Detect(context.Background(), src, []POIAnswer{{Subsystem: 1, Cancel: true}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUserCancelled))
	assert.Nil(t, res)
}

func TestDetect_APSHardcoded(t *testing.T) {
	reqs := &fakeRequirements{}
	e := newTestEngine(t, newFakeCatalog(), reqs)
	src := loadState(map[string]any{
		"utility":                         "Arizona Public Service (APS)",
		"sys1_micro_inverter_make":        "SolarEdge",
		"sys1_micro_inverter_model":       "SE7600H",
		"sys1_system_type":                "inverter",
		"sys1_inv_max_continuous_output": 32,
		"sys1_battery_1_qty":              1,
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceHardcoded, res.Source)
	assert.Zero(t, reqs.calls)
	require.Len(t, res.Items, 4)

	assert.Equal(t, "Uni-Directional Meter", res.Items[0].EquipmentType)
	assert.Equal(t, 200, res.Items[0].MinAmpRating)
	assert.Equal(t, "CENTRON", res.Items[0].Model)

	disconnect := res.Items[1]
	assert.Equal(t, "Uni-Directional Meter Line Side Disconnect", disconnect.EquipmentType)
	assert.Equal(t, 40, disconnect.MinAmpRating)
	// 40A 以上只有 60A 的 EATON
	assert.Equal(t, "DG222URB", disconnect.Model)

	assert.Equal(t, domain.SectionUtility, res.Items[2].Section)
	assert.False(t, res.Items[2].Required)
	assert.Equal(t, domain.SectionBattery1, res.Items[3].Section)
}

func TestDetect_CombineSectionForTwoActive(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	configs, err := LoadUtilityConfigs([]byte(`
utilities:
  - code: TST
    name: Test Utility (TST)
    combine:
      - equipment_type: AC Disconnect
        standard_type: AC Disconnect
        required: true
        order: 1
        amp_sizing: inverter
`))
	require.NoError(t, err)
	e.configs = configs

	src := loadState(map[string]any{
		"utility":                         "TST",
		"sys1_micro_inverter_make":        "SolarEdge",
		"sys1_inv_max_continuous_output": 32,
		"sys2_micro_inverter_make":        "SolarEdge",
		"sys2_inv_max_continuous_output": 16,
	})
	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, domain.SectionCombine, res.Items[0].Section)
	assert.Equal(t, domain.CombinedTarget, res.Items[0].Target)
	// 48A x 1.25 = 60A
	assert.Equal(t, 60, res.Items[0].MinAmpRating)
}

func TestDetect_DatabaseFallback(t *testing.T) {
	reqs := &fakeRequirements{rows: map[string][]domain.UtilityRequirement{
		"Pacific Gas & Electric": {
			{EquipmentType: "PV Meter", StandardType: "PV Meter", Order: 1},
			{EquipmentType: "Utility PV AC Disconnect", StandardType: "AC Disconnect", Order: 2, RequiresPOICheck: true},
		},
	}}
	e := newTestEngine(t, nil, reqs)
	src := loadState(map[string]any{
		"utility":                       "Pacific Gas & Electric",
		"sys1_micro_inverter_make":      "Enphase",
		"sys1_micro_inverter_model":     "IQ8",
		"ele_method_of_interconnection": "Meter Collar Adapter",
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabaseFallback, res.Source)
	require.Len(t, res.Items, 2)
	for _, it := range res.Items {
		assert.Equal(t, 1, it.Target)
		assert.Equal(t, domain.ConfidenceDatabaseFallback, it.Confidence)
	}
	assert.Equal(t, "Fused AC Disconnect", res.Items[1].StandardType)
	assert.Equal(t, 30, res.Items[1].MinAmpRating)
}

func TestDetect_FallbackFailureIsWarning(t *testing.T) {
	e := newTestEngine(t, nil, &fakeRequirements{err: errors.New("timeout")})
	src := loadState(map[string]any{"utility": "Duke Energy", "sys1_solar_panel_make": "REC"})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Items)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "timeout")
}

func TestDetect_CatalogFailureKeepsItemUnresolved(t *testing.T) {
	cat := newFakeCatalog()
	cat.fail["AC Disconnect"] = true
	e := newTestEngine(t, cat, nil)
	src := loadState(map[string]any{
		"utility":                   "SRP",
		"sys1_micro_inverter_make":  "Enphase",
		"sys1_micro_inverter_model": "IQ8",
	})

	res, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.False(t, res.Items[0].Resolved)
	assert.Equal(t, "catalog unavailable", res.Items[0].Note)
	assert.True(t, res.Items[1].Resolved)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], domain.ErrCatalogLookupFailure.Error())
}

func TestDetect_Pure(t *testing.T) {
	e := newTestEngine(t, newFakeCatalog(), &fakeRequirements{})
	record := map[string]any{
		"utility":                         "Tucson Electric Power",
		"sys1_micro_inverter_make":        "Enphase",
		"sys1_micro_inverter_model":       "IQ8",
		"sys1_inv_max_continuous_output": 1.21,
		"sys1_system_type":                "microinverter",
		"sys1_micro_inverter_qty":         12,
		"sys2_battery_1_qty":              2,
		"sys2_battery_1_make":             "Enphase",
	}
	src := loadState(record)
	before := src.Record()

	first, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)
	second, err := e.Detect(context.Background(), src, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, before, src.Record())
	assert.Equal(t, int64(1), src.Version())
}
