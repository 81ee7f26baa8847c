package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/combine"
	"skyfire-equipment/internal/derivation"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/metrics"
	"skyfire-equipment/internal/notify"
	"skyfire-equipment/internal/repository"
	"skyfire-equipment/internal/state"
)

// Dependencies ProjectService 依赖
type Dependencies struct {
	Store     repository.ConfigStore
	Revisions repository.RevisionsRepository
	Engine    *bos.Engine
	Publisher notify.Publisher
	MaxPasses int
	Logger    *zap.Logger
}

// ProjectService 项目设备配置服务
// 每个项目一个会话，会话内的所有操作串行执行。
type ProjectService struct {
	store     repository.ConfigStore
	revisions repository.RevisionsRepository
	engine    *bos.Engine
	publisher notify.Publisher
	maxPasses int
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu            sync.Mutex
	state         *state.ConfigState
	combine       *combine.Machine
	lastDetection *bos.Result
	// unsaved 持久化失败、尚未写入存储的键
	unsaved map[string]any
}

// NewProjectService 创建服务
func NewProjectService(deps Dependencies) *ProjectService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = notify.Nop{}
	}
	revisions := deps.Revisions
	if revisions == nil {
		revisions = repository.NewMemoryRevisionsRepository()
	}
	return &ProjectService{
		store:     deps.Store,
		revisions: revisions,
		engine:    deps.Engine,
		publisher: publisher,
		maxPasses: deps.MaxPasses,
		logger:    logger,
		sessions:  map[string]*session{},
	}
}

// ChangeResult 一次写操作的结果
// 持久化失败时同时返回结果和 ErrPersistenceFailure，内存状态已保留。
type ChangeResult struct {
	Batch    *state.Batch `json:"batch,omitempty"`
	View     *ProjectView `json:"view"`
	Warnings []string     `json:"warnings,omitempty"`
}

func (s *ProjectService) newRuleSet() *derivation.RuleSet {
	return derivation.NewDefaultRuleSet(s.maxPasses, s.logger, combine.AutoDefaultRule{})
}

// withSession 取得（必要时加载）项目会话并在会话锁内执行 fn
func (s *ProjectService) withSession(ctx context.Context, projectID string, fn func(*session) error) error {
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", domain.ErrInvariantViolation)
	}
	s.mu.Lock()
	sess, ok := s.sessions[projectID]
	if !ok {
		sess = &session{}
		s.sessions[projectID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == nil {
		if err := s.load(ctx, projectID, sess); err != nil {
			return err
		}
	}
	return fn(sess)
}

func (s *ProjectService) load(ctx context.Context, projectID string, sess *session) error {
	record, version, err := s.store.Read(ctx, projectID)
	if err != nil {
		s.logger.Error("failed to load project config", zap.String("project_id", projectID), zap.Error(err))
		return fmt.Errorf("%w: read project %s: %v", domain.ErrPersistenceFailure, projectID, err)
	}
	st := state.New(projectID, s.newRuleSet(), s.logger)
	st.Load(record, version)
	sess.state = st
	sess.combine = combine.NewMachine(s.logger.With(zap.String("project_id", projectID)))
	sess.unsaved = map[string]any{}

	// 旧记录可能已有两个活动子系统但从未决定合并
	out := sess.combine.OnActiveCountChanged(st, len(st.ActiveSubsystems()))
	if len(out.Updates) > 0 {
		batch, err := st.BatchSet(out.Updates)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, sess, batch, notify.EventConfigChanged); err != nil {
			s.logger.Warn("combine default not persisted on load", zap.String("project_id", projectID), zap.Error(err))
		}
	}
	s.logger.Info("project config loaded",
		zap.String("project_id", projectID),
		zap.Int64("version", version),
		zap.Int("keys", len(record)),
	)
	return nil
}

// persist 写入批次（连同之前失败未写入的键），成功后发布事件
func (s *ProjectService) persist(ctx context.Context, sess *session, batch *state.Batch, eventType string) error {
	if batch.Empty() && len(sess.unsaved) == 0 {
		return nil
	}
	writes := make(map[string]any, len(sess.unsaved)+len(batch.Writes))
	for k, v := range sess.unsaved {
		writes[k] = v
	}
	for k, v := range batch.Writes {
		writes[k] = v
	}
	projectID := sess.state.ProjectID()

	version, err := s.store.Write(ctx, projectID, writes)
	metrics.RecordPersist(len(writes), err)
	if err != nil {
		sess.unsaved = writes
		s.logger.Error("failed to persist config batch",
			zap.String("project_id", projectID),
			zap.String("batch_id", batch.ID),
			zap.Int("keys", len(writes)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}
	sess.unsaved = map[string]any{}
	sess.state.SyncVersion(version)
	batch.Version = version

	evt := notify.NewEvent(eventType, projectID, batch.ID, batch.Version, batch.Keys())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("config event not published", zap.String("project_id", projectID), zap.Error(err))
	}
	return nil
}

// apply 批量写入并持久化
func (s *ProjectService) apply(ctx context.Context, sess *session, updates []state.Update, eventType string) (*ChangeResult, error) {
	batch, err := sess.state.BatchSet(updates)
	if err != nil {
		if errors.Is(err, domain.ErrDerivationCycle) {
			metrics.RecordDerivationCycle()
		}
		return nil, err
	}
	metrics.RecordDerivation(batch.Passes)
	res := &ChangeResult{Batch: batch}
	for _, m := range batch.Misses {
		metrics.RecordMappingMiss(m.Field)
		res.Warnings = append(res.Warnings, fmt.Sprintf("field %s (subsystem %d) has no persisted mapping, write dropped", m.Field, m.Subsystem))
	}
	perr := s.persist(ctx, sess, batch, eventType)
	res.View = buildView(sess)
	return res, perr
}

// Load 读取项目当前状态
func (s *ProjectService) Load(ctx context.Context, projectID string) (*ProjectView, error) {
	var view *ProjectView
	err := s.withSession(ctx, projectID, func(sess *session) error {
		view = buildView(sess)
		return nil
	})
	return view, err
}

// SetFields 批量写入字段（派生规则和切换字段回写在同一批次内完成）
func (s *ProjectService) SetFields(ctx context.Context, projectID string, updates []state.Update) (*ChangeResult, error) {
	var res *ChangeResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		r, err := s.apply(ctx, sess, updates, notify.EventConfigChanged)
		res = r
		return err
	})
	return res, err
}

// Rederive 对已加载状态重新运行全部规则
func (s *ProjectService) Rederive(ctx context.Context, projectID string) (*ChangeResult, error) {
	var res *ChangeResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		batch, err := sess.state.Rederive()
		if err != nil {
			return err
		}
		res = &ChangeResult{Batch: batch}
		perr := s.persist(ctx, sess, batch, notify.EventConfigChanged)
		res.View = buildView(sess)
		return perr
	})
	return res, err
}

// Flush 重试之前失败的持久化
func (s *ProjectService) Flush(ctx context.Context, projectID string) (*ChangeResult, error) {
	var res *ChangeResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		batch := &state.Batch{Version: sess.state.Version(), Writes: map[string]any{}}
		perr := s.persist(ctx, sess, batch, notify.EventConfigChanged)
		res = &ChangeResult{View: buildView(sess)}
		return perr
	})
	return res, err
}

// AddSubsystem 显示子系统
func (s *ProjectService) AddSubsystem(ctx context.Context, projectID string, n int) (*ProjectView, error) {
	var view *ProjectView
	err := s.withSession(ctx, projectID, func(sess *session) error {
		if err := sess.state.AddSubsystem(n); err != nil {
			return err
		}
		view = buildView(sess)
		return nil
	})
	return view, err
}

// RemoveSubsystem 移除子系统并清空其字段（子系统1不可移除）
func (s *ProjectService) RemoveSubsystem(ctx context.Context, projectID string, n int) (*ChangeResult, error) {
	var res *ChangeResult
	err := s.withSession(ctx, projectID, func(sess *session) error {
		batch, err := sess.state.RemoveSubsystem(n)
		if err != nil {
			return err
		}
		res = &ChangeResult{Batch: batch}
		perr := s.persist(ctx, sess, batch, notify.EventSubsystem)
		res.View = buildView(sess)
		return perr
	})
	return res, err
}

// Evict 丢弃内存会话，下次访问时重新从存储加载
func (s *ProjectService) Evict(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, projectID)
}

// Revisions 项目修订历史
func (s *ProjectService) Revisions(ctx context.Context, projectID string, page, size int) ([]*repository.Revision, int, error) {
	return s.revisions.ListRevisions(ctx, projectID, "", nil, page, size)
}
