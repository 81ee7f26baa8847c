package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/notify"
	"skyfire-equipment/internal/repository"
)

// flakyStore 可切换为写入失败的存储
type flakyStore struct {
	*repository.MemoryConfigStore
	mu     sync.Mutex
	broken bool
	writes int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryConfigStore: repository.NewMemoryConfigStore()}
}

func (s *flakyStore) setBroken(b bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = b
}

func (s *flakyStore) Write(ctx context.Context, projectID string, partial map[string]any) (int64, error) {
	s.mu.Lock()
	broken := s.broken
	s.writes++
	s.mu.Unlock()
	if broken {
		return 0, errors.New("connection reset by peer")
	}
	return s.MemoryConfigStore.Write(ctx, projectID, partial)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) all() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

type fixture struct {
	svc       *ProjectService
	store     *flakyStore
	publisher *recordingPublisher
	revisions *repository.MemoryRevisionsRepository
}

func newFixture(t interface{ Fatalf(string, ...any) }) *fixture {
	configs, err := bos.DefaultUtilityConfigs()
	if err != nil {
		t.Fatalf("load utility configs: %v", err)
	}
	f := &fixture{
		store:     newFlakyStore(),
		publisher: &recordingPublisher{},
		revisions: repository.NewMemoryRevisionsRepository(),
	}
	f.svc = NewProjectService(Dependencies{
		Store:     f.store,
		Revisions: f.revisions,
		Engine:    bos.NewEngine(configs, nil, nil, zap.NewNop()),
		Publisher: f.publisher,
		MaxPasses: 8,
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *fixture) seed(projectID string, record map[string]any) {
	_, _ = f.store.MemoryConfigStore.Write(context.Background(), projectID, record)
}

func (f *fixture) record(projectID string) map[string]any {
	rec, _, _ := f.store.Read(context.Background(), projectID)
	return rec
}
