package repository

import "context"

// ConfigStore 项目配置记录存储
// 每个键独立可空：写入 nil 即清除该键。
type ConfigStore interface {
	// Read 读取完整记录；项目不存在时返回空记录和版本 0
	Read(ctx context.Context, projectID string) (map[string]any, int64, error)

	// Write 合并写入部分记录，返回新的存储版本
	Write(ctx context.Context, projectID string, partial map[string]any) (int64, error)
}
