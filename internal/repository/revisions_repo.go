package repository

import (
	"context"
	"encoding/json"
	"time"
)

// 修订类型
const (
	RevisionKindBOSAccept = "bos_accept"
)

// Revision 项目配置修订快照（对应 project_config_revisions 表）
type Revision struct {
	RevisionID string          `json:"revision_id"`
	ProjectID  string          `json:"project_id"`
	Kind       string          `json:"kind"`
	Data       json.RawMessage `json:"data"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidTo    *time.Time      `json:"valid_to,omitempty"`
}

// RevisionFilters 修订查询过滤器
type RevisionFilters struct {
	StartTime *time.Time
	EndTime   *time.Time
}

// RevisionsRepository 修订 Repository 接口
type RevisionsRepository interface {
	// CreateRevision 创建新修订，同项目同类型的旧修订 valid_to 设为新修订的 valid_from
	CreateRevision(ctx context.Context, rev *Revision) (string, error)

	// GetRevisionAtTime 查询某个时间点生效的修订
	GetRevisionAtTime(ctx context.Context, projectID, kind string, atTime time.Time) (*Revision, error)

	// ListRevisions 修订历史（分页，按 valid_from 倒序）
	ListRevisions(ctx context.Context, projectID, kind string, filters *RevisionFilters, page, size int) ([]*Revision, int, error)
}
