package httpapi

import "strings"

// Result 统一响应包
// - code: 2000 成功，-1 失败
// - type: 'success' | 'error' | 'warning'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// OkWithWarnings 成功但有告警（如未映射字段被丢弃）
func OkWithWarnings[T any](result T, warnings []string) Result[T] {
	if len(warnings) == 0 {
		return Ok(result)
	}
	return Result[T]{Code: ResultSuccess, Type: "warning", Message: strings.Join(warnings, "; "), Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// FailWith 失败但仍返回当前状态（持久化失败时内存状态已保留）
func FailWith[T any](message string, result T) Result[T] {
	return Result[T]{Code: ResultError, Type: "error", Message: message, Result: result}
}
