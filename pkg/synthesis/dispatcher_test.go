package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/workflow"
)

func TestDispatcherProcessesAllCompletions(t *testing.T) {
	transcriber := &fakeTranscriber{
		result: &models.TranscriptionResult{
			Cues:     []models.Cue{{Text: "一句", StartTime: 0, EndTime: 2.0}},
			Duration: 2.0,
		},
	}
	f := newPipelineFixture(t, transcriber, false)
	dispatcher := NewDispatcher(f.pipeline, 2)

	completions := make(chan workflow.CompletedRun, 3)
	for i := 1; i <= 3; i++ {
		completions <- completedRun("task_"+string(rune('0'+i)), f.payload())
	}
	close(completions)

	results := make(chan models.BatchResult, 3)
	go dispatcher.Run(context.Background(), completions, results)

	var collected []models.BatchResult
	for r := range results {
		collected = append(collected, r)
	}

	assert.Len(t, collected, 3)
	for _, r := range collected {
		assert.Equal(t, models.StatusCompleted, r.Status)
	}
}

func TestDispatcherCancelledBeforeDispatch(t *testing.T) {
	f := newPipelineFixture(t, &fakeTranscriber{}, false)
	dispatcher := NewDispatcher(f.pipeline, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completions := make(chan workflow.CompletedRun, 2)
	completions <- completedRun("task_1", f.payload())
	completions <- completedRun("task_2", f.payload())
	close(completions)

	results := make(chan models.BatchResult, 2)
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx, completions, results)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("取消后派发器未退出")
	}

	var collected []models.BatchResult
	for r := range results {
		collected = append(collected, r)
	}

	// 未开始的单元直接记为可重试失败，不执行合成
	assert.Len(t, collected, 2)
	for _, r := range collected {
		assert.Equal(t, models.StatusFailed, r.Status)
		assert.True(t, r.Retryable)
		assert.Empty(t, r.OutputPath)
	}
}
