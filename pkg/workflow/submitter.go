package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/coze"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// SubmitOutcome 单个任务的提交结果，Handle和Err二者只有一个非空
type SubmitOutcome struct {
	Item   models.WorkItem
	Handle *ExecutionHandle
	Err    error // *utils.SubmissionError，对该任务是终态
}

// Submitter 批量提交远端工作流，受并发上限约束
type Submitter struct {
	runner        coze.WorkflowRunner
	maxConcurrent int
}

// NewSubmitter 创建提交器
func NewSubmitter(runner coze.WorkflowRunner, maxConcurrent int) *Submitter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Submitter{
		runner:        runner,
		maxConcurrent: maxConcurrent,
	}
}

// Submit 并发提交所有任务，结果按完成顺序写入返回的通道
//
// 最多maxConcurrent个提交调用同时在途，其余排队。
// 每个任务只发起一次网络调用，提交失败立即上报、不重试。
// 所有任务处理完后通道关闭。
func (s *Submitter) Submit(ctx context.Context, items []models.WorkItem) <-chan SubmitOutcome {
	outcomes := make(chan SubmitOutcome, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrent) // 信号量限制并发

	for _, item := range items {
		wg.Add(1)

		go func(item models.WorkItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes <- SubmitOutcome{Item: item, Err: &utils.SubmissionError{ItemID: item.ID, Cause: ctx.Err()}}
				return
			}

			if ctx.Err() != nil {
				outcomes <- SubmitOutcome{Item: item, Err: &utils.SubmissionError{ItemID: item.ID, Cause: ctx.Err()}}
				return
			}

			parameters := map[string]interface{}{
				"content":   item.Content,
				"digitalNo": item.DigitalNo,
				"voiceId":   item.VoiceID,
				"title":     item.Title,
			}

			executeID, err := s.runner.RunWorkflow(ctx, parameters)
			if err != nil {
				utils.Error("任务 %s 提交失败: %v", item.ID, err)
				outcomes <- SubmitOutcome{Item: item, Err: &utils.SubmissionError{ItemID: item.ID, Cause: err}}
				return
			}

			utils.Info("任务 %s 提交成功 -> %s", item.ID, executeID)
			outcomes <- SubmitOutcome{
				Item: item,
				Handle: &ExecutionHandle{
					Item:       item,
					ExecuteID:  executeID,
					SubmitTime: time.Now(),
					State:      StateSubmitted,
				},
			}
		}(item)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}
