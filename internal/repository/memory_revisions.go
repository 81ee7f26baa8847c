package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyfire-equipment/internal/domain"
)

// MemoryRevisionsRepository 数据库未启用时的修订存储
type MemoryRevisionsRepository struct {
	mu        sync.RWMutex
	revisions []*Revision
}

func NewMemoryRevisionsRepository() *MemoryRevisionsRepository {
	return &MemoryRevisionsRepository{}
}

var _ RevisionsRepository = (*MemoryRevisionsRepository)(nil)

func (r *MemoryRevisionsRepository) CreateRevision(_ context.Context, rev *Revision) (string, error) {
	if rev.ProjectID == "" || rev.Kind == "" || len(rev.Data) == 0 {
		return "", fmt.Errorf("project_id, kind and data are required")
	}
	if rev.ValidFrom.IsZero() {
		rev.ValidFrom = time.Now()
	}
	if rev.RevisionID == "" {
		rev.RevisionID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, old := range r.revisions {
		if old.ProjectID == rev.ProjectID && old.Kind == rev.Kind &&
			(old.ValidTo == nil || old.ValidTo.After(rev.ValidFrom)) {
			t := rev.ValidFrom
			old.ValidTo = &t
		}
	}
	cp := *rev
	r.revisions = append(r.revisions, &cp)
	return rev.RevisionID, nil
}

func (r *MemoryRevisionsRepository) GetRevisionAtTime(_ context.Context, projectID, kind string, atTime time.Time) (*Revision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Revision
	for _, rev := range r.revisions {
		if rev.ProjectID != projectID || rev.Kind != kind || rev.ValidFrom.After(atTime) {
			continue
		}
		if rev.ValidTo != nil && !rev.ValidTo.After(atTime) {
			continue
		}
		if best == nil || rev.ValidFrom.After(best.ValidFrom) {
			best = rev
		}
	}
	if best == nil {
		return nil, fmt.Errorf("revision not found at time %v: %w", atTime, domain.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (r *MemoryRevisionsRepository) ListRevisions(_ context.Context, projectID, kind string, _ *RevisionFilters, page, size int) ([]*Revision, int, error) {
	r.mu.RLock()
	var all []*Revision
	for _, rev := range r.revisions {
		if rev.ProjectID == projectID && (kind == "" || rev.Kind == kind) {
			cp := *rev
			all = append(all, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ValidFrom.After(all[j].ValidFrom) })
	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
