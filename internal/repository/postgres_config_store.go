package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// PostgresConfigStore 基于 JSONB 的配置记录存储
type PostgresConfigStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresConfigStore 创建配置记录存储
func NewPostgresConfigStore(db *sql.DB, logger *zap.Logger) *PostgresConfigStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresConfigStore{db: db, logger: logger}
}

// 确保实现了接口
var _ ConfigStore = (*PostgresConfigStore)(nil)

// Read 读取项目记录
func (s *PostgresConfigStore) Read(ctx context.Context, projectID string) (map[string]any, int64, error) {
	if projectID == "" {
		return nil, 0, fmt.Errorf("project_id is required")
	}

	query := `
		SELECT record, version
		FROM project_equipment_configs
		WHERE project_id = $1
	`

	var raw []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read project config: %w", err)
	}

	record := map[string]any{}
	if len(raw) > 0 {
		dec := json.NewDecoder(bytesReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, 0, fmt.Errorf("failed to decode project config: %w", err)
		}
	}
	return normalizeRecord(record), version, nil
}

// Write 合并写入（null 值删除对应键），版本加一
func (s *PostgresConfigStore) Write(ctx context.Context, projectID string, partial map[string]any) (int64, error) {
	if projectID == "" {
		return 0, fmt.Errorf("project_id is required")
	}
	if len(partial) == 0 {
		return 0, fmt.Errorf("partial record is empty")
	}
	payload, err := json.Marshal(partial)
	if err != nil {
		return 0, fmt.Errorf("failed to encode partial record: %w", err)
	}

	query := `
		INSERT INTO project_equipment_configs (project_id, record, version, updated_at)
		VALUES ($1, jsonb_strip_nulls($2::jsonb), 1, NOW())
		ON CONFLICT (project_id) DO UPDATE SET
			record = jsonb_strip_nulls(project_equipment_configs.record || $2::jsonb),
			version = project_equipment_configs.version + 1,
			updated_at = NOW()
		RETURNING version
	`

	var version int64
	if err := s.db.QueryRowContext(ctx, query, projectID, string(payload)).Scan(&version); err != nil {
		s.logger.Error("project config write failed",
			zap.String("project_id", projectID),
			zap.Int("keys", len(partial)),
			zap.Error(err),
		)
		return 0, fmt.Errorf("failed to write project config: %w", err)
	}
	return version, nil
}
