package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyfire-equipment/internal/domain"
)

// PostgresRevisionsRepository 修订 Repository 实现
type PostgresRevisionsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRevisionsRepository 创建修订 Repository
func NewPostgresRevisionsRepository(db *sql.DB) *PostgresRevisionsRepository {
	return &PostgresRevisionsRepository{db: db, now: time.Now}
}

var _ RevisionsRepository = (*PostgresRevisionsRepository)(nil)

const revisionColumns = `
			revision_id::text,
			project_id,
			kind,
			data,
			valid_from,
			valid_to`

func scanRevision(scan func(dest ...any) error) (*Revision, error) {
	var rev Revision
	var data sql.NullString
	var validTo sql.NullTime
	if err := scan(&rev.RevisionID, &rev.ProjectID, &rev.Kind, &data, &rev.ValidFrom, &validTo); err != nil {
		return nil, err
	}
	if data.Valid {
		rev.Data = []byte(data.String)
	}
	if validTo.Valid {
		rev.ValidTo = &validTo.Time
	}
	return &rev, nil
}

// CreateRevision 创建新修订
func (r *PostgresRevisionsRepository) CreateRevision(ctx context.Context, rev *Revision) (string, error) {
	if rev.ProjectID == "" {
		return "", fmt.Errorf("project_id is required")
	}
	if rev.Kind == "" {
		return "", fmt.Errorf("kind is required")
	}
	if len(rev.Data) == 0 {
		return "", fmt.Errorf("data is required")
	}
	if rev.ValidFrom.IsZero() {
		rev.ValidFrom = r.now()
	}
	if rev.RevisionID == "" {
		rev.RevisionID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 关闭旧修订
	closeQuery := `
		UPDATE project_config_revisions
		SET valid_to = $3
		WHERE project_id = $1
			AND kind = $2
			AND (valid_to IS NULL OR valid_to > $3)
	`
	if _, err := tx.ExecContext(ctx, closeQuery, rev.ProjectID, rev.Kind, rev.ValidFrom); err != nil {
		return "", fmt.Errorf("failed to close previous revisions: %w", err)
	}

	insertQuery := `
		INSERT INTO project_config_revisions (revision_id, project_id, kind, data, valid_from, valid_to)
		VALUES ($1, $2, $3, $4::jsonb, $5, NULL)
	`
	if _, err := tx.ExecContext(ctx, insertQuery, rev.RevisionID, rev.ProjectID, rev.Kind, string(rev.Data), rev.ValidFrom); err != nil {
		return "", fmt.Errorf("failed to create revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rev.RevisionID, nil
}

// GetRevisionAtTime 查询某个时间点生效的修订
func (r *PostgresRevisionsRepository) GetRevisionAtTime(ctx context.Context, projectID, kind string, atTime time.Time) (*Revision, error) {
	if projectID == "" || kind == "" {
		return nil, fmt.Errorf("revision: %w", domain.ErrNotFound)
	}

	query := `
		SELECT` + revisionColumns + `
		FROM project_config_revisions
		WHERE project_id = $1
			AND kind = $2
			AND valid_from <= $3
			AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY valid_from DESC
		LIMIT 1
	`
	rev, err := scanRevision(r.db.QueryRowContext(ctx, query, projectID, kind, atTime).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("revision not found at time %v: %w", atTime, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get revision at time: %w", err)
	}
	return rev, nil
}

// ListRevisions 修订历史
func (r *PostgresRevisionsRepository) ListRevisions(ctx context.Context, projectID, kind string, filters *RevisionFilters, page, size int) ([]*Revision, int, error) {
	if projectID == "" {
		return []*Revision{}, 0, nil
	}

	where := []string{"project_id = $1"}
	args := []any{projectID}
	argN := 2
	if kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", argN))
		args = append(args, kind)
		argN++
	}
	if filters != nil {
		if filters.StartTime != nil {
			where = append(where, fmt.Sprintf("valid_from >= $%d", argN))
			args = append(args, *filters.StartTime)
			argN++
		}
		if filters.EndTime != nil {
			where = append(where, fmt.Sprintf("(valid_to IS NULL OR valid_to <= $%d)", argN))
			args = append(args, *filters.EndTime)
			argN++
		}
	}

	queryCount := `
		SELECT COUNT(*)
		FROM project_config_revisions
		WHERE ` + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count revisions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	argsList := append(args, size, offset)
	query := `
		SELECT` + revisionColumns + `
		FROM project_config_revisions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY valid_from DESC
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, query, argsList...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var out []*Revision
	for rows.Next() {
		rev, err := scanRevision(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan revision: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate revisions: %w", err)
	}
	return out, total, nil
}
