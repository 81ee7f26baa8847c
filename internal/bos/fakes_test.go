package bos

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/state"
)

type fakeCatalog struct {
	mu      sync.Mutex
	byType  map[string][]domain.CatalogEquipment
	fail    map[string]bool
	queries []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byType: map[string][]domain.CatalogEquipment{
			"AC Disconnect": {
				{EquipmentType: "AC Disconnect", Manufacturer: "EATON", Model: "DG222URB", AmpRating: 60},
				{EquipmentType: "AC Disconnect", Manufacturer: "EATON", Model: "DG221URB", AmpRating: 30},
				{EquipmentType: "AC Disconnect", Manufacturer: "SQUARE D", Model: "DU221RB", AmpRating: 30},
			},
			"Fused AC Disconnect": {
				{EquipmentType: "Fused AC Disconnect", Manufacturer: "EATON", Model: "DG322NRB", AmpRating: 100},
				{EquipmentType: "Fused AC Disconnect", Manufacturer: "EATON", Model: "DG221NRB", AmpRating: 30},
			},
			"PV Meter": {
				{EquipmentType: "PV Meter", Manufacturer: "ITRON", Model: "CENTRON", AmpRating: 200},
			},
		},
		fail: map[string]bool{},
	}
}

func (f *fakeCatalog) FindEquipment(_ context.Context, equipmentType, manufacturer, model string) (*domain.CatalogMatch, error) {
	f.mu.Lock()
	f.queries = append(f.queries, equipmentType)
	f.mu.Unlock()
	if f.fail[equipmentType] {
		return nil, errors.New("connection refused")
	}
	return &domain.CatalogMatch{Status: "unmatched", Suggestions: f.byType[equipmentType]}, nil
}

type fakeRequirements struct {
	rows  map[string][]domain.UtilityRequirement
	err   error
	calls int
}

func (f *fakeRequirements) Get(_ context.Context, utility string) ([]domain.UtilityRequirement, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[utility], nil
}

func loadState(record map[string]any) *state.ConfigState {
	s := state.New("project-1", nil, zap.NewNop())
	s.Load(record, 1)
	return s
}

func newTestEngine(t interface{ Fatalf(string, ...any) }, cat CatalogLookup, reqs RequirementsLookup) *Engine {
	configs, err := DefaultUtilityConfigs()
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	return NewEngine(configs, cat, reqs, zap.NewNop())
}
