package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/coze"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// CompletedRun 远端执行成功后的产出，Output为工作流输出的JSON字符串
type CompletedRun struct {
	Handle *ExecutionHandle
	Output string
}

// MonitorOptions 轮询器参数
type MonitorOptions struct {
	Interval          time.Duration // 轮询周期
	MaxPollConcurrent int           // 单轮内并发查询上限
	MaxPollRounds     int           // Pending状态允许的最大轮数
	MaxRetries        int           // 瞬时失败的重试预算
}

// Monitor 周期性扫描在途任务并查询远端状态
//
// 每个任务恰好产生一次终态：成功写入Completions，失败写入Failures。
// 终态先从在途表移除再对外发送，故不会重复上报。
type Monitor struct {
	runner     coze.WorkflowRunner
	classifier *FatalClassifier
	opts       MonitorOptions

	mu          sync.Mutex
	outstanding map[string]*ExecutionHandle
	submitting  bool // 提交阶段未结束前，在途表清空不代表全部完成

	completions chan CompletedRun
	failures    chan *ExecutionHandle
}

// NewMonitor 创建轮询器，Track提交的任务在Run循环中被扫描
func NewMonitor(runner coze.WorkflowRunner, classifier *FatalClassifier, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.MaxPollConcurrent < 1 {
		opts.MaxPollConcurrent = 1
	}
	return &Monitor{
		runner:      runner,
		classifier:  classifier,
		opts:        opts,
		outstanding: make(map[string]*ExecutionHandle),
		submitting:  true,
		completions: make(chan CompletedRun, 64),
		failures:    make(chan *ExecutionHandle, 64),
	}
}

// Completions 成功任务的输出流，监控结束时关闭
func (m *Monitor) Completions() <-chan CompletedRun {
	return m.completions
}

// Failures 失败任务流（含可重试与致命），监控结束时关闭
func (m *Monitor) Failures() <-chan *ExecutionHandle {
	return m.failures
}

// Track 登记一个已提交的任务
func (m *Monitor) Track(handle *ExecutionHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle.State = StatePolling
	m.outstanding[handle.ExecuteID] = handle
}

// FinishSubmitting 提交阶段结束，此后在途表清空即视为全部完成
func (m *Monitor) FinishSubmitting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitting = false
}

// Outstanding 当前在途任务数
func (m *Monitor) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outstanding)
}

// Run 轮询主循环，阻塞直到全部任务到达终态或ctx取消
//
// 取消在每轮开始处生效，在途查询的结果被丢弃不再上报。
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.completions)
	defer close(m.failures)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	// 首轮立即扫描，不等第一个tick
	for {
		if ctx.Err() != nil {
			utils.Warn("轮询被取消，剩余 %d 个在途任务不再跟踪", m.Outstanding())
			return
		}

		m.sweep(ctx)

		if m.done() {
			utils.Info("全部任务已到达终态，轮询结束")
			return
		}

		select {
		case <-ctx.Done():
			utils.Warn("轮询被取消，剩余 %d 个在途任务不再跟踪", m.Outstanding())
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.submitting && len(m.outstanding) == 0
}

// sweep 扫描一轮：对在途表快照内的每个任务查询一次远端状态
func (m *Monitor) sweep(ctx context.Context) {
	m.mu.Lock()
	handles := make([]*ExecutionHandle, 0, len(m.outstanding))
	for _, h := range m.outstanding {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	if len(handles) == 0 {
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.opts.MaxPollConcurrent)

	for _, handle := range handles {
		wg.Add(1)
		go func(handle *ExecutionHandle) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			m.pollOne(ctx, handle)
		}(handle)
	}

	wg.Wait()
}

// pollOne 查询单个任务并按结果推进状态机
func (m *Monitor) pollOne(ctx context.Context, handle *ExecutionHandle) {
	result, err := m.runner.QueryRunHistory(ctx, handle.ExecuteID)
	handle.LastPoll = time.Now()

	if ctx.Err() != nil {
		// 整体取消，丢弃本次结果
		return
	}

	if err != nil {
		m.handleQueryError(handle, err)
		return
	}

	switch result.Status {
	case coze.StatusSucceeded:
		m.finish(handle, StateSucceeded, "")
		m.completions <- CompletedRun{Handle: handle, Output: result.Output}
		utils.Info("任务 %s 执行成功", handle.Item.ID)

	case coze.StatusFailed:
		if m.classifier.IsFatal(result.ErrorCode, result.ErrorMessage) {
			m.finish(handle, StateFailedFatal, result.ErrorMessage)
			m.failures <- handle
			utils.Error("任务 %s 致命失败: [%s] %s", handle.Item.ID, result.ErrorCode, result.ErrorMessage)
			return
		}
		handle.RetryCount++
		if handle.RetryCount > m.opts.MaxRetries {
			m.finish(handle, StateFailedRetryable, result.ErrorMessage)
			m.failures <- handle
			utils.Error("任务 %s 失败且重试预算耗尽: %s", handle.Item.ID, result.ErrorMessage)
			return
		}
		utils.Warn("任务 %s 远端失败，下一轮继续 (%d/%d): %s",
			handle.Item.ID, handle.RetryCount, m.opts.MaxRetries, result.ErrorMessage)

	case coze.StatusPending:
		handle.PollRounds++
		if m.opts.MaxPollRounds > 0 && handle.PollRounds > m.opts.MaxPollRounds {
			m.finish(handle, StateFailedRetryable, "超过最大轮询次数仍未完成")
			m.failures <- handle
			utils.Error("任务 %s 轮询超限，放弃等待", handle.Item.ID)
			return
		}
		utils.Debug("任务 %s 仍在执行 (第%d轮)", handle.Item.ID, handle.PollRounds)
	}
}

// handleQueryError 查询本身出错：超时与其他瞬时错误分别计入预算
func (m *Monitor) handleQueryError(handle *ExecutionHandle, err error) {
	handle.RetryCount++

	if errors.Is(err, context.DeadlineExceeded) {
		if handle.RetryCount > m.opts.MaxRetries {
			m.finish(handle, StateFailedFatal, "查询连续超时: "+err.Error())
			m.failures <- handle
			utils.Error("任务 %s 查询连续超时，判定为致命失败", handle.Item.ID)
			return
		}
		utils.Warn("任务 %s 查询超时，下一轮重试 (%d/%d)", handle.Item.ID, handle.RetryCount, m.opts.MaxRetries)
		return
	}

	// 传输层错误同样参与快速失败分类（连接类、上游不可达类）
	if m.classifier.IsFatal("", err.Error()) {
		m.finish(handle, StateFailedFatal, "查询错误命中致命模式: "+err.Error())
		m.failures <- handle
		utils.Error("任务 %s 查询错误命中致命模式: %v", handle.Item.ID, err)
		return
	}

	if handle.RetryCount > m.opts.MaxRetries {
		m.finish(handle, StateFailedRetryable, "查询失败: "+err.Error())
		m.failures <- handle
		utils.Error("任务 %s 查询失败且预算耗尽: %v", handle.Item.ID, err)
		return
	}
	utils.Warn("任务 %s 查询失败，下一轮重试 (%d/%d): %v", handle.Item.ID, handle.RetryCount, m.opts.MaxRetries, err)
}

// finish 置终态并从在途表移除，保证每个任务只上报一次
func (m *Monitor) finish(handle *ExecutionHandle, state HandleState, reason string) {
	m.mu.Lock()
	delete(m.outstanding, handle.ExecuteID)
	m.mu.Unlock()

	handle.State = state
	handle.FailReason = reason
}
