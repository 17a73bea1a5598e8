package utils

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DraftToolsError 是本工具链错误的基础类型
type DraftToolsError struct {
	Message string
	Cause   error
}

// Error 实现error接口
func (e *DraftToolsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap 支持error chain
func (e *DraftToolsError) Unwrap() error {
	return e.Cause
}

// NewError 创建一个新的DraftToolsError
func NewError(message string, cause error) error {
	return &DraftToolsError{
		Message: message,
		Cause:   cause,
	}
}

// SubmissionError 提交远端工作流失败，对该任务是终态，不重试
type SubmissionError struct {
	ItemID string
	Cause  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("任务 %s 提交失败: %v", e.ItemID, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// MalformedTranscriptionError 转录结果违反数据契约（乱序/重叠），对该任务致命
type MalformedTranscriptionError struct {
	Index  int
	Detail string
}

func (e *MalformedTranscriptionError) Error() string {
	return fmt.Sprintf("转录结果格式错误(段落%d): %s", e.Index, e.Detail)
}

// TimingInversionError 停顿区间不合法导致重映射后字幕顺序颠倒
type TimingInversionError struct {
	Index int
}

func (e *TimingInversionError) Error() string {
	return fmt.Sprintf("时间重映射后第%d条字幕发生顺序颠倒，停顿区间不合法", e.Index)
}

// TrimFailure 外部工具裁剪失败，已清理半成品输出
type TrimFailure struct {
	SourcePath string
	Cause      error
}

func (e *TrimFailure) Error() string {
	return fmt.Sprintf("裁剪 %s 失败: %v", e.SourcePath, e.Cause)
}

func (e *TrimFailure) Unwrap() error { return e.Cause }

// IsFatalForItem 判断错误是否为该任务的数据契约类致命错误
func IsFatalForItem(err error) bool {
	var malformed *MalformedTranscriptionError
	var inversion *TimingInversionError
	var trim *TrimFailure
	return errors.As(err, &malformed) || errors.As(err, &inversion) || errors.As(err, &trim)
}

// ErrorHandler 处理错误和重试，可在多个goroutine间共享
type ErrorHandler struct {
	MaxRetries int
	RetryDelay float64

	mu         sync.Mutex
	errorStats map[string]map[string]int // 操作 -> 错误信息 -> 计数
}

// NewErrorHandler 创建新的错误处理器
func NewErrorHandler(maxRetries int, retryDelay float64) *ErrorHandler {
	return &ErrorHandler{
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		errorStats: make(map[string]map[string]int),
	}
}

// Retry 执行函数并在失败时重试
func (h *ErrorHandler) Retry(operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < h.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		h.updateErrorStats(operation, err.Error())

		if attempt < h.MaxRetries-1 {
			delay := h.RetryDelay * float64(attempt+1)
			Warn("操作 %s 失败 (尝试 %d/%d): %s", operation, attempt+1, h.MaxRetries, err)
			Warn("等待 %.1f 秒后重试...", delay)
			time.Sleep(time.Duration(delay * float64(time.Second)))
		}
	}

	return NewError(fmt.Sprintf("操作 %s 重试 %d 次后仍然失败", operation, h.MaxRetries), lastErr)
}

// 更新错误统计
func (h *ErrorHandler) updateErrorStats(operation string, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errorStats[operation] == nil {
		h.errorStats[operation] = make(map[string]int)
	}
	h.errorStats[operation][errMsg]++
}

// GetErrorStats 获取错误统计信息快照
func (h *ErrorHandler) GetErrorStats() map[string]map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := make(map[string]map[string]int, len(h.errorStats))
	for op, counts := range h.errorStats {
		inner := make(map[string]int, len(counts))
		for msg, n := range counts {
			inner[msg] = n
		}
		snapshot[op] = inner
	}
	return snapshot
}
