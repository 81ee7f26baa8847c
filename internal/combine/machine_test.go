package combine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/fieldmap"
	"skyfire-equipment/internal/state"
)

func newState(t *testing.T, record map[string]any) *state.ConfigState {
	t.Helper()
	rules := derivation.NewDefaultRuleSet(0, zap.NewNop(), AutoDefaultRule{})
	s := state.New("p-1", rules, zap.NewNop())
	s.Load(record, 1)
	return s
}

func apply(t *testing.T, s *state.ConfigState, o Outcome) *state.Batch {
	t.Helper()
	b, err := s.BatchSet(o.Updates)
	require.NoError(t, err)
	return b
}

func TestDecision_FromFields(t *testing.T) {
	assert.Equal(t, domain.CombineUndecided, Decision(newState(t, nil)))
	assert.Equal(t, domain.CombineYes, Decision(newState(t, map[string]any{"ele_combine_systems": true})))
	assert.Equal(t, domain.CombineDoNotCombine, Decision(newState(t, map[string]any{"ele_combine_systems": false})))
	assert.Equal(t, domain.CombineDoNotCombine, Decision(newState(t, map[string]any{"ele_combine_positions": "Do Not"})))
}

func TestRequest_UndecidedToCombine(t *testing.T) {
	s := newState(t, nil)
	m := NewMachine(zap.NewNop())

	o, err := m.Request(s, domain.CombineYes)
	require.NoError(t, err)
	assert.False(t, o.NeedsConfirmation)
	b := apply(t, s, o)
	assert.Equal(t, true, b.Writes["ele_combine_systems"])
	assert.Equal(t, domain.CombineYes, Decision(s))
}

func TestRequest_InvalidChoice(t *testing.T) {
	m := NewMachine(zap.NewNop())
	_, err := m.Request(newState(t, nil), domain.CombineUndecided)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestRequest_DoNotCombineWithLandingNeedsConfirmation(t *testing.T) {
	s := newState(t, map[string]any{
		"ele_combine_systems":   true,
		"ele_combine_positions": `{"sys1":"Main Panel A"}`,
	})
	m := NewMachine(zap.NewNop())

	o, err := m.Request(s, domain.CombineDoNotCombine)
	require.NoError(t, err)
	assert.True(t, o.NeedsConfirmation)
	assert.Empty(t, o.Updates)
	assert.True(t, m.Pending())
	assert.Equal(t, domain.CombineYes, Decision(s))

	o, err = m.Confirm(s)
	require.NoError(t, err)
	b := apply(t, s, o)
	assert.Equal(t, false, b.Writes["ele_combine_systems"])
	assert.Equal(t, domain.DoNotCombineSentinel, b.Writes["ele_combine_positions"])
	assert.False(t, LandingConfigured(s))
	assert.False(t, m.Pending())
}

func TestRequest_CancelLeavesStateUnchanged(t *testing.T) {
	s := newState(t, map[string]any{
		"ele_combine_systems":   true,
		"ele_combine_positions": `{"sys1":"Main Panel A"}`,
	})
	before := s.Record()
	m := NewMachine(zap.NewNop())

	_, err := m.Request(s, domain.CombineDoNotCombine)
	require.NoError(t, err)
	assert.True(t, m.Cancel())
	assert.Equal(t, before, s.Record())
	assert.False(t, m.Cancel())

	_, err = m.Confirm(s)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestRequest_CombineWithoutLandingSwitchesDirectly(t *testing.T) {
	s := newState(t, map[string]any{"ele_combine_systems": true})
	m := NewMachine(zap.NewNop())
	o, err := m.Request(s, domain.CombineDoNotCombine)
	require.NoError(t, err)
	assert.False(t, o.NeedsConfirmation)
	apply(t, s, o)
	assert.Equal(t, domain.CombineDoNotCombine, Decision(s))

	o, err = m.Request(s, domain.CombineYes)
	require.NoError(t, err)
	b := apply(t, s, o)
	assert.Equal(t, true, b.Writes["ele_combine_systems"])
	v, cleared := b.Writes["ele_combine_positions"]
	assert.True(t, cleared)
	assert.Nil(t, v)
}

func TestAutoDefault_SecondActiveSubsystem(t *testing.T) {
	s := newState(t, map[string]any{"sys1_solar_panel_make": "REC"})
	m := NewMachine(zap.NewNop())

	b, err := s.SetField(fieldmap.InverterMake, "Enphase", 2)
	require.NoError(t, err)
	assert.Equal(t, false, b.Writes["ele_combine_systems"])
	assert.Equal(t, domain.DoNotCombineSentinel, b.Writes["ele_combine_positions"])
	assert.Equal(t, domain.CombineDoNotCombine, Decision(s))
	assert.False(t, m.Pending())
}

func TestAutoDefault_KeepsExplicitDecision(t *testing.T) {
	s := newState(t, map[string]any{"sys1_solar_panel_make": "REC", "ele_combine_systems": true})
	b, err := s.SetField(fieldmap.SolarPanelMake, "REC", 2)
	require.NoError(t, err)
	assert.NotContains(t, b.Writes, "ele_combine_systems")
	assert.Equal(t, domain.CombineYes, Decision(s))
}

func TestOnActiveCountChanged_LoadedUndecidedRecord(t *testing.T) {
	s := newState(t, map[string]any{"sys1_solar_panel_make": "REC", "sys2_solar_panel_make": "REC"})
	m := NewMachine(zap.NewNop())

	o := m.OnActiveCountChanged(s, len(s.ActiveSubsystems()))
	require.Len(t, o.Updates, 2)
	apply(t, s, o)
	assert.Equal(t, domain.CombineDoNotCombine, Decision(s))

	o = m.OnActiveCountChanged(s, 2)
	assert.Empty(t, o.Updates)
}

func TestSetLanding(t *testing.T) {
	s := newState(t, nil)
	_, err := SetLanding(s, map[int]string{1: "Main Panel A"})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	s = newState(t, map[string]any{"ele_combine_systems": true})
	o, err := SetLanding(s, map[int]string{2: "Sub Panel B", 1: "Main Panel A"})
	require.NoError(t, err)
	b := apply(t, s, o)
	assert.Equal(t, `{"sys1":"Main Panel A","sys2":"Sub Panel B"}`, b.Writes["ele_combine_positions"])
	assert.True(t, LandingConfigured(s))

	_, err = SetLanding(s, map[int]string{9: "x"})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}
