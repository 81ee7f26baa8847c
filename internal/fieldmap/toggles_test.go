package fieldmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfire-equipment/internal/domain"
)

func TestToggleFor_LongestPrefixWins(t *testing.T) {
	toggle, ok := ToggleFor(BatteryCombinerPanelMake)
	require.True(t, ok)
	assert.Equal(t, BatteryCombinerPanelExisting, toggle)

	toggle, ok = ToggleFor(CombinerPanelModel)
	require.True(t, ok)
	assert.Equal(t, CombinerPanelExisting, toggle)

	toggle, ok = ToggleFor(OptimizerType2Make)
	require.True(t, ok)
	assert.Equal(t, OptimizerType2Existing, toggle)

	toggle, ok = ToggleFor(OptimizerMake)
	require.True(t, ok)
	assert.Equal(t, OptimizerExisting, toggle)
}

func TestToggleFor_ExcludedPrefix(t *testing.T) {
	for _, f := range []Field{SolarPanelType2Make, SolarPanelType2Model, SolarPanelType2Quantity, SolarPanelType2Existing} {
		_, ok := ToggleFor(f)
		assert.False(t, ok, f)
	}
}

func TestToggleFor_NoSelfPiggyback(t *testing.T) {
	for _, f := range All() {
		toggle, ok := ToggleFor(f)
		if !ok {
			continue
		}
		assert.NotEqual(t, f, toggle, "field %s toggles itself", f)
		_, chained := ToggleFor(toggle)
		assert.False(t, chained, "toggle %s has its own toggle", toggle)
	}
	for _, f := range []Field{SolarPanelExisting, InverterExisting, SMSExisting, Battery1Existing} {
		assert.True(t, IsToggle(f))
		_, ok := ToggleFor(f)
		assert.False(t, ok)
	}
}

func TestToggleFor_UngroupedFields(t *testing.T) {
	for _, f := range []Field{Gateway, ExpansionPacks, BackupOption, Utility, CombineSystems, SelectedSystem} {
		_, ok := ToggleFor(f)
		assert.False(t, ok, f)
	}
}

func TestToggleFor_MatchesPrefixSemantics(t *testing.T) {
	for _, f := range All() {
		toggle, ok := ToggleFor(f)
		if !ok {
			continue
		}
		assert.True(t, strings.HasPrefix(string(f), strings.TrimSuffix(string(toggle), "existing")),
			"%s grouped under %s", f, toggle)
	}
}

func TestSlotKeys(t *testing.T) {
	k, err := SlotKey(domain.SectionUtility, 2, 6, SlotMake)
	require.NoError(t, err)
	assert.Equal(t, "bos_sys2_type6_make", k)

	k, err = SlotKey(domain.SectionBattery2, 1, 1, SlotEquipmentType)
	require.NoError(t, err)
	assert.Equal(t, "bos_sys1_battery2_type1_equipment_type", k)

	k, err = SlotKey(domain.SectionPostSMS, 3, 1, SlotIsNew)
	require.NoError(t, err)
	assert.Equal(t, "post_sms_bos_sys3_type1_is_new", k)

	k, err = SlotKey(domain.SectionCombine, 0, 2, SlotIsNew)
	require.NoError(t, err)
	assert.Equal(t, "postcombine_1_2_existing", k)
	assert.Equal(t, false, SlotValue(domain.SectionCombine, SlotIsNew, true))

	_, err = SlotKey(domain.SectionBattery1, 1, 4, SlotMake)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	_, err = SlotKey(domain.SectionUtility, 5, 1, SlotMake)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	assert.True(t, IsSlotKey("bos_sys1_backup_type2_amp_rating"))
	assert.True(t, IsSlotKey("postcombine_1_3_model"))
	assert.False(t, IsSlotKey("sys1_solar_panel_make"))
	n, ok := SlotSubsystem("post_sms_bos_sys4_type1_make")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	n, ok = SlotSubsystem("postcombine_1_1_make")
	assert.True(t, ok)
	assert.Equal(t, 0, n)
}
