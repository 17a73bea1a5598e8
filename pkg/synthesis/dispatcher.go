package synthesis

import (
	"context"
	"sync"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/workflow"
)

// Dispatcher 从完成流中取任务，派发到有上限的本地合成工作池
type Dispatcher struct {
	pipeline   *Pipeline
	maxWorkers int
}

// NewDispatcher 创建派发器
func NewDispatcher(pipeline *Pipeline, maxWorkers int) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		pipeline:   pipeline,
		maxWorkers: maxWorkers,
	}
}

// Run 消费完成流直到其关闭，结果写入results
//
// 取消在派发每个新单元之前检查：已开始的单元跑到结束（不产生半成品
// 草稿），未开始的单元直接记为失败。所有单元结束后关闭results。
func (d *Dispatcher) Run(ctx context.Context, completions <-chan workflow.CompletedRun, results chan<- models.BatchResult) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.maxWorkers)

	for run := range completions {
		if ctx.Err() != nil {
			utils.Warn("任务 %s 因批次取消未派发合成", run.Handle.Item.ID)
			results <- models.BatchResult{
				Item:      run.Handle.Item,
				Status:    models.StatusFailed,
				Reason:    "批次已取消，合成未开始",
				Retryable: true,
			}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(run workflow.CompletedRun) {
			defer wg.Done()
			defer func() { <-sem }()

			// 在途单元不随批次取消中断
			results <- d.pipeline.Process(context.WithoutCancel(ctx), run)
		}(run)
	}

	wg.Wait()
	close(results)
}
