package controller

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/asr"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/coze"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/draft"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/executor"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/export"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/feishu"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/llm"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/synthesis"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/trim"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/workflow"
)

// 处理完成后回写到多维表格的状态值
const (
	statusDone   = "草稿已生成"
	statusFailed = "生成失败"
)

// BatchCoordinator 批处理协调器，串联提交、轮询与本地合成各组件
type BatchCoordinator struct {
	// 配置
	Config *models.Config

	// 处理组件
	Submitter  *workflow.Submitter
	Monitor    *workflow.Monitor
	Dispatcher *synthesis.Dispatcher
	TaskSource *feishu.TaskSource // 为nil表示任务不来自多维表格

	// 上下文控制
	ctx        context.Context
	cancelFunc context.CancelFunc

	// 状态数据
	Stats   models.BatchStatistics
	statsMu sync.Mutex

	// 资源管理
	TempDir string
	cleanup []func()
	mu      sync.Mutex
}

// NewBatchCoordinator 创建批处理协调器，config须已通过验证
func NewBatchCoordinator(config *models.Config) (*BatchCoordinator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	bc := &BatchCoordinator{
		Config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
	}

	tempDir, err := os.MkdirTemp(bc.Config.TempDir, "draft-processor")
	if err != nil {
		// TempDir可能尚不存在，先建再试
		if mkErr := os.MkdirAll(bc.Config.TempDir, 0755); mkErr == nil {
			tempDir, err = os.MkdirTemp(bc.Config.TempDir, "draft-processor")
		}
		if err != nil {
			cancel()
			return nil, fmt.Errorf("创建临时目录失败: %v", err)
		}
	}
	bc.TempDir = tempDir
	bc.addCleanup(func() { os.RemoveAll(tempDir) })

	bc.initComponents()
	bc.setupSignalHandlers()

	return bc, nil
}

// 初始化所有组件
func (bc *BatchCoordinator) initComponents() {
	cfg := bc.Config
	httpTimeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second

	cozeClient := coze.NewClient(cfg.CozeBaseURL, cfg.CozeToken, cfg.CozeWorkflowID, httpTimeout)
	bc.Submitter = workflow.NewSubmitter(cozeClient, cfg.MaxSubmitConcurrent)

	classifier := workflow.NewFatalClassifier(cfg.FatalErrorKeywords, cfg.FatalErrorCodes)
	bc.Monitor = workflow.NewMonitor(cozeClient, classifier, workflow.MonitorOptions{
		Interval:          time.Duration(cfg.PollIntervalSec) * time.Second,
		MaxPollConcurrent: cfg.MaxPollConcurrent,
		MaxPollRounds:     cfg.MaxPollRounds,
		MaxRetries:        cfg.MaxRetries,
	})

	idGen := utils.NewIDGenerator()
	trimmer := trim.NewTrimmer(executor.New(), bc.TempDir, idGen)

	var keyworder *llm.DoubaoClient
	if cfg.ExtractKeyword && cfg.DoubaoToken != "" {
		keyworder = llm.NewDoubaoClient(cfg.DoubaoToken, cfg.DoubaoModel)
	}

	var srtExporter *export.SRTExporter
	if cfg.OutputSRT {
		srtExporter = export.NewSRTExporter(cfg.DraftFolder)
	}

	pipeline := synthesis.NewPipeline(synthesis.PipelineOptions{
		Transcriber: asr.NewVolcengineASR(cfg.VolcAppID, cfg.VolcAccessToken, cfg.VolcBaseURL),
		Trimmer:     trimmer,
		Writer:      draft.NewWriter(cfg.DraftFolder),
		SRTExporter: srtExporter,
		Keyworder:   keyworder,
		IDGen:       idGen,
		TempDir:     bc.TempDir,

		DefaultRemovePauses:     cfg.RemovePauses,
		DefaultMinPauseDuration: cfg.MinPauseDuration,
		DefaultMaxWordGap:       cfg.MaxWordGap,
	})
	bc.Dispatcher = synthesis.NewDispatcher(pipeline, cfg.MaxSynthesisWorkers)

	if cfg.FeishuAppID != "" && cfg.FeishuAppToken != "" {
		client := feishu.NewClient(cfg.FeishuAppID, cfg.FeishuAppSecret)
		bc.TaskSource = feishu.NewTaskSource(client, cfg.FeishuAppToken, cfg.FeishuTableID,
			cfg.FieldMapping, cfg.StatusField)
	}
}

// FetchWorkItems 从多维表格拉取待处理任务
func (bc *BatchCoordinator) FetchWorkItems() ([]models.WorkItem, error) {
	if bc.TaskSource == nil {
		return nil, fmt.Errorf("未配置多维表格任务源")
	}
	return bc.TaskSource.FetchWorkItems(bc.ctx, bc.Config.ReadyStatus)
}

// RunBatch 处理一个批次，阻塞直到所有任务到达终态
func (bc *BatchCoordinator) RunBatch(items []models.WorkItem) []models.BatchResult {
	if len(items) == 0 {
		utils.Warn("批次为空，无任务可处理")
		return nil
	}

	bc.statsMu.Lock()
	bc.Stats = models.BatchStatistics{Total: len(items)}
	bc.statsMu.Unlock()

	startTime := time.Now()
	utils.Info("批次开始: %d 个任务 (提交并发=%d, 合成并发=%d)",
		len(items), bc.Config.MaxSubmitConcurrent, bc.Config.MaxSynthesisWorkers)

	var (
		results   []models.BatchResult
		resultsMu sync.Mutex
	)
	record := func(r models.BatchResult) {
		resultsMu.Lock()
		results = append(results, r)
		resultsMu.Unlock()
	}

	// 内容为空的任务不提交，记为跳过
	pending := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			utils.Warn("任务 %s 内容为空，跳过", item.ID)
			bc.bumpStats(func(s *models.BatchStatistics) { s.Skipped++ })
			record(models.BatchResult{
				Item:   item,
				Status: models.StatusSkipped,
				Reason: "内容为空",
			})
			continue
		}
		pending = append(pending, item)
	}
	if len(pending) == 0 {
		bc.printReport(results, time.Since(startTime))
		return results
	}

	go bc.Monitor.Run(bc.ctx)

	// 提交阶段：成功的进入轮询，失败的直接记为终态。
	// 提交失败的任务从未在远端启动，整批重跑是安全的，不计入致命退出
	go func() {
		for outcome := range bc.Submitter.Submit(bc.ctx, pending) {
			if outcome.Err != nil {
				bc.bumpStats(func(s *models.BatchStatistics) { s.Failed++ })
				record(models.BatchResult{
					Item:      outcome.Item,
					Status:    models.StatusFailed,
					Reason:    outcome.Err.Error(),
					Retryable: true,
				})
				continue
			}
			bc.bumpStats(func(s *models.BatchStatistics) { s.Submitted++; s.Polling++ })
			bc.Monitor.Track(outcome.Handle)
		}
		bc.Monitor.FinishSubmitting()
	}()

	synthResults := make(chan models.BatchResult, len(items))
	go func() {
		bc.Dispatcher.Run(bc.ctx, bc.trackCompletions(bc.Monitor.Completions()), synthResults)
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	// 轮询阶段的失败
	go func() {
		defer wg.Done()
		for handle := range bc.Monitor.Failures() {
			bc.bumpStats(func(s *models.BatchStatistics) { s.Polling--; s.Failed++ })
			record(models.BatchResult{
				Item:      handle.Item,
				Status:    models.StatusFailed,
				Reason:    handle.FailReason,
				Retryable: handle.State == workflow.StateFailedRetryable,
			})
		}
	}()

	// 本地合成的终态
	go func() {
		defer wg.Done()
		for r := range synthResults {
			if r.Status == models.StatusCompleted {
				bc.bumpStats(func(s *models.BatchStatistics) { s.Completed++ })
			} else {
				bc.bumpStats(func(s *models.BatchStatistics) { s.Failed++ })
			}
			record(r)
		}
	}()

	wg.Wait()

	bc.writeBackStatus(results)
	bc.printReport(results, time.Since(startTime))
	return results
}

// trackCompletions 统计远端成功与派发数，透传完成流
func (bc *BatchCoordinator) trackCompletions(in <-chan workflow.CompletedRun) <-chan workflow.CompletedRun {
	out := make(chan workflow.CompletedRun)
	go func() {
		defer close(out)
		for run := range in {
			bc.bumpStats(func(s *models.BatchStatistics) { s.Polling--; s.Succeeded++; s.Dispatched++ })
			out <- run
		}
	}()
	return out
}

// bumpStats 在锁内更新统计
func (bc *BatchCoordinator) bumpStats(update func(*models.BatchStatistics)) {
	bc.statsMu.Lock()
	defer bc.statsMu.Unlock()
	update(&bc.Stats)
}

// Statistics 返回统计快照
func (bc *BatchCoordinator) Statistics() models.BatchStatistics {
	bc.statsMu.Lock()
	defer bc.statsMu.Unlock()
	return bc.Stats
}

// writeBackStatus 把终态回写到多维表格
func (bc *BatchCoordinator) writeBackStatus(results []models.BatchResult) {
	if bc.TaskSource == nil || !bc.Config.UpdateStatus {
		return
	}

	// 回写用独立上下文，批次取消后仍要落状态
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, r := range results {
		if r.Item.RecordID == "" {
			continue
		}
		// 跳过的记录保持原状态，补齐内容后可再次被拉取
		if r.Status == models.StatusSkipped {
			continue
		}
		status := statusFailed
		if r.Status == models.StatusCompleted {
			status = statusDone
		}
		if err := bc.TaskSource.MarkDone(ctx, r.Item.RecordID, status); err != nil {
			utils.Warn("记录 %s 状态回写失败: %v", r.Item.RecordID, err)
		}
	}
}

// printReport 输出批次报告
func (bc *BatchCoordinator) printReport(results []models.BatchResult, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"任务", "标题", "状态", "可重试", "耗时", "输出/原因"})

	for _, r := range results {
		detail := r.OutputPath
		if r.Status != models.StatusCompleted {
			detail = r.Reason
		}
		retryable := ""
		if r.Status == models.StatusFailed {
			if r.Retryable {
				retryable = "是"
			} else {
				retryable = "否"
			}
		}
		t.AppendRow(table.Row{
			r.Item.ID, r.Item.Title, string(r.Status), retryable,
			utils.FormatTimeDuration(r.ProcessTime.Seconds()), detail,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	stats := bc.Statistics()
	fmt.Println()
	if stats.Failed == 0 {
		color.Green("批次完成: %d/%d 成功, 总耗时 %s", stats.Completed, stats.Total,
			utils.FormatTimeDuration(elapsed.Seconds()))
	} else {
		color.Yellow("批次完成: %d 成功, %d 失败, 总耗时 %s", stats.Completed, stats.Failed,
			utils.FormatTimeDuration(elapsed.Seconds()))
	}
}

// HasFatalFailure 批次内是否存在不可重试的失败
func HasFatalFailure(results []models.BatchResult) bool {
	for _, r := range results {
		if r.Status == models.StatusFailed && !r.Retryable {
			return true
		}
	}
	return false
}

// 添加清理函数
func (bc *BatchCoordinator) addCleanup(cleanup func()) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.cleanup = append(bc.cleanup, cleanup)
}

// Cleanup 逆序执行所有清理函数
func (bc *BatchCoordinator) Cleanup() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for i := len(bc.cleanup) - 1; i >= 0; i-- {
		bc.cleanup[i]()
	}
}

// Cancel 取消批次：新一轮轮询与新合成单元不再开始
func (bc *BatchCoordinator) Cancel() {
	bc.cancelFunc()
}

// Context 协调器的根上下文
func (bc *BatchCoordinator) Context() context.Context {
	return bc.ctx
}

// 设置中断处理
func (bc *BatchCoordinator) setupSignalHandlers() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		utils.Info("接收到中断信号，正在停止...")
		bc.cancelFunc()
	}()
}
