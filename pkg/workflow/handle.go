package workflow

import (
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
)

// HandleState 远端执行句柄的状态机
// Submitted → Polling → {Succeeded | FailedRetryable | FailedFatal}
type HandleState string

const (
	StateSubmitted       HandleState = "submitted"        // 已提交，尚未进入轮询
	StatePolling         HandleState = "polling"          // 轮询中
	StateSucceeded       HandleState = "succeeded"        // 远端执行成功
	StateFailedRetryable HandleState = "failed_retryable" // 重试预算耗尽后放弃
	StateFailedFatal     HandleState = "failed_fatal"     // 命中致命模式，快速失败
)

// ExecutionHandle 一次远端工作流执行的句柄，与WorkItem一一对应
// 提交后仅由PollingMonitor修改状态字段
type ExecutionHandle struct {
	Item       models.WorkItem
	ExecuteID  string
	SubmitTime time.Time

	State      HandleState
	RetryCount int       // 已消耗的重试预算
	PollRounds int       // 已轮询轮数
	LastPoll   time.Time // 最近一次轮询时间
	FailReason string    // 终态失败原因
}

// Terminal 判断句柄是否处于终态
func (h *ExecutionHandle) Terminal() bool {
	switch h.State {
	case StateSucceeded, StateFailedRetryable, StateFailedFatal:
		return true
	}
	return false
}
