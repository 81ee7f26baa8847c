package domain

import "errors"

// 错误分类，调用方通过 errors.Is 判断
var (
	// ErrMappingMiss 逻辑字段没有持久化映射（记录日志后丢弃该写入，不致命）
	ErrMappingMiss = errors.New("field has no persisted mapping")
	// ErrInvariantViolation 违反不变量（如移除子系统1、子系统编号越界）
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrPersistenceFailure 持久化写入失败（内存状态保留）
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrCatalogLookupFailure 设备目录查询失败（BOS项保持未解析）
	ErrCatalogLookupFailure = errors.New("catalog lookup failure")
	// ErrUserCancelled 用户取消了确认或输入
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrDerivationCycle 派生规则在迭代上限内未收敛
	ErrDerivationCycle = errors.New("derivation did not converge")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("not found")
)
