package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 事件类型
const (
	EventConfigChanged = "config_changed"
	EventBOSAccepted   = "bos_accepted"
	EventSubsystem     = "subsystem_changed"
)

// Event 配置变更事件（每个成功持久化的批次一条）
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	ProjectID string    `json:"project_id"`
	BatchID   string    `json:"batch_id"`
	Version   int64     `json:"version"`
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent 创建事件
func NewEvent(eventType, projectID, batchID string, version int64, keys []string) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventType,
		ProjectID: projectID,
		BatchID:   batchID,
		Version:   version,
		Keys:      keys,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop 不发布
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi 依次发布到所有目标，汇总错误
type Multi struct {
	publishers []Publisher
	logger     *zap.Logger
}

func NewMulti(logger *zap.Logger, publishers ...Publisher) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{publishers: publishers, logger: logger}
}

func (m *Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			m.logger.Warn("event publish failed",
				zap.String("project_id", evt.ProjectID),
				zap.String("type", evt.Type),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len 发布目标数量
func (m *Multi) Len() int { return len(m.publishers) }
