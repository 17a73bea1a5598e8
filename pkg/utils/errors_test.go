package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftToolsErrorUnwrap(t *testing.T) {
	cause := errors.New("底层错误")
	err := NewError("操作失败", cause)

	assert.Contains(t, err.Error(), "操作失败")
	assert.True(t, errors.Is(err, cause))
}

func TestSubmissionErrorWrapsCause(t *testing.T) {
	cause := errors.New("网络不可达")
	err := &SubmissionError{ItemID: "task_1", Cause: cause}

	assert.Contains(t, err.Error(), "task_1")
	assert.True(t, errors.Is(err, cause))
}

func TestIsFatalForItem(t *testing.T) {
	// 数据契约类错误对该任务致命
	assert.True(t, IsFatalForItem(&MalformedTranscriptionError{Index: 2, Detail: "重叠"}))
	assert.True(t, IsFatalForItem(&TimingInversionError{Index: 1}))
	assert.True(t, IsFatalForItem(&TrimFailure{SourcePath: "a.mp3", Cause: errors.New("裁剪失败")}))

	// 包装后仍能识别
	wrapped := fmt.Errorf("流水线失败: %w", &TimingInversionError{Index: 3})
	assert.True(t, IsFatalForItem(wrapped))

	// 其他错误不算
	assert.False(t, IsFatalForItem(errors.New("随便一个错误")))
	assert.False(t, IsFatalForItem(&SubmissionError{ItemID: "t", Cause: errors.New("x")}))
	assert.False(t, IsFatalForItem(nil))
}

func TestErrorHandlerRetrySucceedsEventually(t *testing.T) {
	handler := NewErrorHandler(3, 0.1)

	attempts := 0
	err := handler.Retry("测试操作", func() error {
		attempts++
		if attempts < 2 {
			return errors.New("暂时失败")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestErrorHandlerRetryExhausted(t *testing.T) {
	handler := NewErrorHandler(2, 0.1)

	err := handler.Retry("测试操作", func() error {
		return errors.New("一直失败")
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "重试 2 次后仍然失败")

	stats := handler.GetErrorStats()
	assert.Equal(t, 2, stats["测试操作"]["一直失败"])
}
