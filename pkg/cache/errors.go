package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode 是一个字符串类型，用于表示缓存引擎中所有预定义的错误类别。
type ErrorCode string

const (
	// ErrConfigInvalid 表示缓存配置无效，无法构建缓存实例。
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrCacheFull 表示缓存已满且未配置淘汰策略，无法添加新条目。
	ErrCacheFull ErrorCode = "CACHE_FULL"
	// ErrLoadFailed 表示 GetOrLoad 的加载回调返回了错误。
	ErrLoadFailed ErrorCode = "LOAD_FAILED"
	// ErrCacheClosed 表示缓存已关闭，无法继续操作。
	ErrCacheClosed ErrorCode = "CACHE_CLOSED"
)

// CacheError 是缓存引擎的自定义错误类型。
// 它包含了错误代码、消息、可选的原始错误(cause)和附加上下文信息。
type CacheError struct {
	Code      ErrorCode              `json:"code"`              // 错误的分类代码
	Message   string                 `json:"message"`           // 人类可读的错误信息
	Cause     error                  `json:"-"`                 // 导致此错误的原始错误
	Context   map[string]interface{} `json:"context,omitempty"` // 额外的上下文信息
	Timestamp time.Time              `json:"timestamp"`         // 错误发生的时间戳
}

// Error 实现了 Go 内置的 error 接口。
func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 实现了 Go 1.13+ 的错误包装接口，允许访问被包装的原始错误(Cause)。
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is 实现了错误判断接口，用于判断一个错误是否与目标错误具有相同的错误代码。
func (e *CacheError) Is(target error) bool {
	var cacheErr *CacheError
	if errors.As(target, &cacheErr) {
		return e.Code == cacheErr.Code
	}
	return false
}

// WithContext 为错误附加一个键值对形式的上下文信息。
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewCacheError 创建一个新的 CacheError。
func NewCacheError(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WrapError 将一个已有的 error 包装成一个新的 CacheError。
func WrapError(code ErrorCode, message string, cause error) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// 预定义的常用错误实例
var (
	ErrCapacityExceeded     = NewCacheError(ErrCacheFull, "cache is at capacity and no eviction policy is configured")
	ErrInvalidConfiguration = NewCacheError(ErrConfigInvalid, "invalid cache configuration")
	ErrAlreadyClosed        = NewCacheError(ErrCacheClosed, "cache is closed")
)
