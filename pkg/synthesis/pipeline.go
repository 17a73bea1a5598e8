package synthesis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/asr"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/draft"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/export"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/llm"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/pause"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/trim"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/workflow"
)

// PipelineOptions 单个合成单元的流水线依赖与默认参数
type PipelineOptions struct {
	Transcriber asr.Transcriber
	Trimmer     *trim.Trimmer
	Writer      *draft.Writer
	SRTExporter *export.SRTExporter // 为nil则不导出SRT
	Keyworder   *llm.DoubaoClient   // 为nil则跳过关键词高亮
	IDGen       *utils.IDGenerator
	TempDir     string

	// WorkItem未指定时的停顿检测默认值
	DefaultRemovePauses     bool
	DefaultMinPauseDuration float64
	DefaultMaxWordGap       float64
}

// Pipeline 单个任务的本地合成流水线
//
// 解析素材 -> 转录 -> 停顿检测 -> 时间重映射与音频裁剪（并行）-> 草稿组装。
// 每个流水线实例独占自己的临时文件，实例之间不共享可变状态。
type Pipeline struct {
	opts       PipelineOptions
	httpClient *http.Client
	retry      *utils.ErrorHandler
}

// NewPipeline 创建合成流水线
func NewPipeline(opts PipelineOptions) *Pipeline {
	return &Pipeline{
		opts:       opts,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		retry:      utils.NewErrorHandler(3, 1.0),
	}
}

// Process 对一个已完成的远端任务执行完整合成，返回终态结果
func (p *Pipeline) Process(ctx context.Context, run workflow.CompletedRun) models.BatchResult {
	item := run.Handle.Item
	startTime := time.Now()

	outputPath, err := p.synthesize(ctx, item, run.Output)
	result := models.BatchResult{
		Item:        item,
		ProcessTime: time.Since(startTime),
	}

	if err != nil {
		utils.Error("任务 %s 本地合成失败: %v", item.ID, err)
		result.Status = models.StatusFailed
		result.Reason = err.Error()
		result.Retryable = !utils.IsFatalForItem(err)
		return result
	}

	utils.Info("任务 %s 草稿生成完成: %s (耗时 %s)", item.ID, outputPath, utils.FormatTimeDuration(result.ProcessTime.Seconds()))
	result.Status = models.StatusCompleted
	result.OutputPath = outputPath
	return result
}

// synthesize 执行合成主流程
func (p *Pipeline) synthesize(ctx context.Context, item models.WorkItem, output string) (string, error) {
	payload, err := ParsePayload(output)
	if err != nil {
		return "", err
	}

	// 下载配音音频到独占的临时文件；
	// 最终音频在组装时迁入草稿目录，此处的defer只清理留在临时目录的中间产物
	audioPath := filepath.Join(p.opts.TempDir, p.opts.IDGen.NextFilename("audio", ".mp3"))
	err = p.retry.Retry("下载音频", func() error {
		return p.download(ctx, payload.AudioURL, audioPath)
	})
	if err != nil {
		return "", fmt.Errorf("下载音频失败: %w", err)
	}
	defer os.Remove(audioPath)

	// 转录用于停顿检测与字幕
	transcription, err := p.opts.Transcriber.Transcribe(ctx, payload.AudioURL)
	if err != nil {
		return "", fmt.Errorf("音频转录失败: %w", err)
	}

	cues := transcription.Cues
	finalAudio := audioPath

	if p.removePauses(item) {
		minPause, maxGap := p.pauseThresholds(item)

		pauses, err := pause.DetectPauses(transcription, minPause, maxGap)
		if err != nil {
			return "", fmt.Errorf("停顿检测失败: %w", err)
		}

		if len(pauses) > 0 {
			utils.Info("任务 %s 检测到 %d 段停顿, 共 %.2f 秒",
				item.ID, len(pauses), pause.TotalPauseDuration(pauses))

			trimmedPath := filepath.Join(p.opts.TempDir, p.opts.IDGen.NextFilename("trimmed", ".mp3"))

			// 时间重映射与音频裁剪互不依赖，并行执行
			var wg sync.WaitGroup
			var remapErr, trimErr error
			var remapped []models.Cue

			wg.Add(2)
			go func() {
				defer wg.Done()
				entries, err := pause.RemapCues(transcription.Cues, pauses)
				if err != nil {
					remapErr = err
					return
				}
				remapped = pause.ApplyRemap(transcription.Cues, entries)
			}()
			go func() {
				defer wg.Done()
				_, trimErr = p.opts.Trimmer.Trim(ctx, audioPath, pauses, trimmedPath)
			}()
			wg.Wait()

			if remapErr != nil {
				os.Remove(trimmedPath)
				return "", fmt.Errorf("时间重映射失败: %w", remapErr)
			}
			if trimErr != nil {
				return "", fmt.Errorf("音频裁剪失败: %w", trimErr)
			}

			cues = remapped
			finalAudio = trimmedPath
			defer os.Remove(trimmedPath)
		}
	}

	return p.assembleDraft(ctx, item, payload, finalAudio, cues)
}

// assembleDraft 组装并保存草稿工程
func (p *Pipeline) assembleDraft(ctx context.Context, item models.WorkItem, payload *Payload,
	audioPath string, cues []models.Cue) (string, error) {

	duration, err := p.opts.Trimmer.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("读取音频时长失败: %w", err)
	}

	// 草稿名从项目名派生，附加唯一后缀避免并发冲突
	name := p.opts.IDGen.Next(draftBaseName(item))

	// 草稿引用的音频必须在临时目录清理后仍然存在，先迁入草稿目录
	materialPath, err := p.persistMaterial(audioPath, name)
	if err != nil {
		return "", err
	}

	handle := p.opts.Writer.Create(name)

	audioTrack := handle.AddTrack(draft.TrackAudio)
	if err := handle.AddClip(audioTrack, materialPath, 0, duration); err != nil {
		return "", err
	}

	if payload.VideoURL != "" {
		videoTrack := handle.AddTrack(draft.TrackVideo)
		if err := handle.AddClip(videoTrack, payload.VideoURL, 0, duration); err != nil {
			return "", err
		}
	}

	textTrack := handle.AddTrack(draft.TrackText)
	for _, cue := range cues {
		if err := handle.AddText(textTrack, cue.Text, cue.StartTime, cue.EndTime); err != nil {
			return "", err
		}
	}

	// 关键词高亮是增强项，失败不影响草稿生成
	if p.opts.Keyworder != nil {
		keywords, err := p.opts.Keyworder.ExtractKeywords(ctx, payload.Content, 10)
		if err != nil {
			utils.Warn("任务 %s 关键词提取失败, 跳过高亮: %v", item.ID, err)
		} else {
			handle.SetKeywords(keywords)
		}
	}

	outputPath, err := p.opts.Writer.Save(handle)
	if err != nil {
		return "", err
	}

	if p.opts.SRTExporter != nil {
		if _, err := p.opts.SRTExporter.ExportSRT(cues, name); err != nil {
			utils.Warn("任务 %s SRT导出失败: %v", item.ID, err)
		}
	}

	return outputPath, nil
}

// persistMaterial 把最终音频迁入草稿工程目录并返回新路径
func (p *Pipeline) persistMaterial(audioPath, draftName string) (string, error) {
	dir := p.opts.Writer.ProjectDir(draftName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建草稿目录失败: %w", err)
	}

	destPath := filepath.Join(dir, filepath.Base(audioPath))
	if err := os.Rename(audioPath, destPath); err != nil {
		// 临时目录与草稿目录跨分区时rename会失败，退化为复制，源文件交给上层defer清理
		if copyErr := utils.CopyFile(audioPath, destPath); copyErr != nil {
			return "", fmt.Errorf("迁移音频素材失败: %w", copyErr)
		}
	}
	return destPath, nil
}

// download 下载远端文件到本地路径
func (p *Pipeline) download(ctx context.Context, url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("创建临时目录失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP错误: %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

// removePauses WorkItem显式开启时生效，否则跟随默认配置
func (p *Pipeline) removePauses(item models.WorkItem) bool {
	return item.RemovePauses || p.opts.DefaultRemovePauses
}

// pauseThresholds 返回停顿检测阈值，未指定时用默认值
func (p *Pipeline) pauseThresholds(item models.WorkItem) (float64, float64) {
	minPause := item.MinPauseDuration
	if minPause <= 0 {
		minPause = p.opts.DefaultMinPauseDuration
	}
	maxGap := item.MaxWordGap
	if maxGap <= 0 {
		maxGap = p.opts.DefaultMaxWordGap
	}
	return minPause, maxGap
}

// draftBaseName 草稿名前缀，优先项目名，其次标题
func draftBaseName(item models.WorkItem) string {
	if item.ProjectName != "" {
		return item.ProjectName
	}
	if item.Title != "" {
		return item.Title
	}
	return "draft"
}
