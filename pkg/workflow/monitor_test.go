package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/coze"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
)

func testMonitorOptions() MonitorOptions {
	return MonitorOptions{
		Interval:          10 * time.Millisecond,
		MaxPollConcurrent: 4,
		MaxPollRounds:     5,
		MaxRetries:        2,
	}
}

func newHandle(id, executeID string) *ExecutionHandle {
	return &ExecutionHandle{
		Item:      models.WorkItem{ID: id},
		ExecuteID: executeID,
		State:     StateSubmitted,
	}
}

// collectMonitor 运行监控器直到所有句柄终态，返回收到的完成与失败
func collectMonitor(t *testing.T, runner *fakeRunner, opts MonitorOptions,
	handles ...*ExecutionHandle) ([]CompletedRun, []*ExecutionHandle) {

	m := NewMonitor(runner, newTestClassifier(), opts)
	for _, h := range handles {
		m.Track(h)
	}
	m.FinishSubmitting()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go m.Run(ctx)

	var (
		completions []CompletedRun
		failures    []*ExecutionHandle
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for c := range m.Completions() {
			completions = append(completions, c)
		}
	}()
	go func() {
		defer wg.Done()
		for f := range m.Failures() {
			failures = append(failures, f)
		}
	}()
	wg.Wait()

	assert.NoError(t, ctx.Err(), "监控器应在超时前结束")
	return completions, failures
}

func TestMonitorSuccessEmitsOnce(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusPending},
		{Status: coze.StatusSucceeded, Output: `{"audioUrl":"http://a.mp3"}`},
	}

	completions, failures := collectMonitor(t, runner, testMonitorOptions(), newHandle("task_1", "e1"))

	assert.Len(t, completions, 1)
	assert.Empty(t, failures)
	assert.Equal(t, "task_1", completions[0].Handle.Item.ID)
	assert.Equal(t, StateSucceeded, completions[0].Handle.State)
	assert.Equal(t, `{"audioUrl":"http://a.mp3"}`, completions[0].Output)
}

func TestMonitorFastFailOnFatalMessage(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusFailed, ErrorMessage: "connection timed out"},
	}

	start := time.Now()
	completions, failures := collectMonitor(t, runner, testMonitorOptions(), newHandle("task_1", "e1"))

	// 命中致命模式在第一轮内终结，不消耗重试预算
	assert.Empty(t, completions)
	assert.Len(t, failures, 1)
	assert.Equal(t, StateFailedFatal, failures[0].State)
	assert.Equal(t, 0, failures[0].RetryCount)
	assert.Less(t, time.Since(start), 1*time.Second)
	assert.Equal(t, 1, runner.queryCount["e1"])
}

func TestMonitorFastFailOnFatalCode(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusFailed, ErrorCode: "720701001", ErrorMessage: "业务侧描述"},
	}

	_, failures := collectMonitor(t, runner, testMonitorOptions(), newHandle("task_1", "e1"))

	assert.Len(t, failures, 1)
	assert.Equal(t, StateFailedFatal, failures[0].State)
}

func TestMonitorRetryableFailureExhaustsBudget(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusFailed, ErrorMessage: "参数校验失败"},
	}

	opts := testMonitorOptions()
	opts.MaxRetries = 2

	_, failures := collectMonitor(t, runner, opts, newHandle("task_1", "e1"))

	assert.Len(t, failures, 1)
	assert.Equal(t, StateFailedRetryable, failures[0].State)
	// 预算内的失败继续轮询：2次重试 + 终结那一次
	assert.Equal(t, 3, runner.queryCount["e1"])
}

func TestMonitorPendingBeyondRoundBudget(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusPending},
	}

	opts := testMonitorOptions()
	opts.MaxPollRounds = 3

	_, failures := collectMonitor(t, runner, opts, newHandle("task_1", "e1"))

	assert.Len(t, failures, 1)
	assert.Equal(t, StateFailedRetryable, failures[0].State)
	assert.Equal(t, 4, failures[0].PollRounds)
}

func TestMonitorQueryTimeoutBecomesFatal(t *testing.T) {
	runner := newFakeRunner()
	runner.queryErrs["e1"] = fmt.Errorf("发送HTTP请求失败: %w", context.DeadlineExceeded)

	opts := testMonitorOptions()
	opts.MaxRetries = 1

	_, failures := collectMonitor(t, runner, opts, newHandle("task_1", "e1"))

	// 查询连续超时耗尽预算后按致命处理
	assert.Len(t, failures, 1)
	assert.Equal(t, StateFailedFatal, failures[0].State)
}

func TestMonitorMixedBatch(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusSucceeded, Output: `{"audioUrl":"http://a.mp3"}`},
	}
	runner.results["e2"] = []*coze.RunResult{
		{Status: coze.StatusFailed, ErrorMessage: "network unreachable"},
	}
	runner.results["e3"] = []*coze.RunResult{
		{Status: coze.StatusPending},
		{Status: coze.StatusSucceeded, Output: `{"audioUrl":"http://c.mp3"}`},
	}

	completions, failures := collectMonitor(t, runner, testMonitorOptions(),
		newHandle("task_1", "e1"), newHandle("task_2", "e2"), newHandle("task_3", "e3"))

	// 每个句柄恰好产生一次终态
	assert.Len(t, completions, 2)
	assert.Len(t, failures, 1)
	assert.Equal(t, "task_2", failures[0].Item.ID)
}

func TestMonitorCancellationStopsPolling(t *testing.T) {
	runner := newFakeRunner()
	runner.results["e1"] = []*coze.RunResult{
		{Status: coze.StatusPending},
	}

	m := NewMonitor(runner, newTestClassifier(), testMonitorOptions())
	m.Track(newHandle("task_1", "e1"))
	m.FinishSubmitting()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后监控器未退出")
	}

	// 被取消的任务不产生终态
	for range m.Completions() {
		t.Fatal("取消后不应有完成上报")
	}
	for range m.Failures() {
		t.Fatal("取消后不应有失败上报")
	}
	assert.Equal(t, 1, m.Outstanding())
}
