package trim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/executor"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// Trimmer 调用外部媒体工具移除音频中的停顿区间
type Trimmer struct {
	exec    executor.Executor
	tempDir string
	idGen   *utils.IDGenerator
}

// NewTrimmer 创建裁剪器，tempDir用于存放每段裁剪的中间文件
func NewTrimmer(exec executor.Executor, tempDir string, idGen *utils.IDGenerator) *Trimmer {
	os.MkdirAll(tempDir, 0755)
	return &Trimmer{
		exec:    exec,
		tempDir: tempDir,
		idGen:   idGen,
	}
}

// KeepIntervals 计算停顿区间在[0, duration]上的补集，即需要保留的段落
// 输入区间须互不重叠且按开始时间升序（PauseDetector的输出契约）
func KeepIntervals(duration float64, pauses []models.PauseInterval) []models.PauseInterval {
	var keeps []models.PauseInterval

	cursor := 0.0
	for _, p := range pauses {
		if p.Start > cursor {
			keeps = append(keeps, models.PauseInterval{Start: cursor, End: p.Start})
		}
		if p.End > cursor {
			cursor = p.End
		}
	}

	if cursor < duration {
		keeps = append(keeps, models.PauseInterval{Start: cursor, End: duration})
	}

	return keeps
}

// Duration 通过ffprobe获取媒体时长（秒）
func (t *Trimmer) Duration(ctx context.Context, path string) (float64, error) {
	output, err := t.exec.Execute(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("获取媒体时长失败: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(output), "%f", &duration); err != nil {
		return 0, fmt.Errorf("解析媒体时长失败: %w", err)
	}

	return duration, nil
}

// Trim 移除sourcePath中的停顿区间，把保留的段落按顺序拼接写入outputPath
//
// 任一子段落裁剪失败都会中止整个流程并清理半成品输出；
// 所有中间文件在成功或失败路径上都会被删除。
func (t *Trimmer) Trim(ctx context.Context, sourcePath string, pauses []models.PauseInterval, outputPath string) (string, error) {
	// 无停顿时直接复制源文件
	if len(pauses) == 0 {
		if err := utils.CopyFile(sourcePath, outputPath); err != nil {
			return "", &utils.TrimFailure{SourcePath: sourcePath, Cause: err}
		}
		utils.Debug("无停顿区间，直接复制: %s", outputPath)
		return outputPath, nil
	}

	duration, err := t.Duration(ctx, sourcePath)
	if err != nil {
		return "", &utils.TrimFailure{SourcePath: sourcePath, Cause: err}
	}

	keeps := KeepIntervals(duration, pauses)
	if len(keeps) == 0 {
		return "", &utils.TrimFailure{SourcePath: sourcePath, Cause: fmt.Errorf("停顿区间覆盖了整个音频")}
	}

	// 中间片段放进独立的临时目录，退出时整体删除
	segmentDir := filepath.Join(t.tempDir, t.idGen.Next("trim"))
	if err := os.MkdirAll(segmentDir, 0755); err != nil {
		return "", &utils.TrimFailure{SourcePath: sourcePath, Cause: err}
	}
	defer os.RemoveAll(segmentDir)

	ext := filepath.Ext(sourcePath)
	segmentPaths := make([]string, 0, len(keeps))

	for i, keep := range keeps {
		segmentPath := filepath.Join(segmentDir, fmt.Sprintf("seg_%03d%s", i, ext))

		_, err := t.exec.Execute(ctx, "ffmpeg",
			"-y",
			"-i", sourcePath,
			"-ss", fmt.Sprintf("%.3f", keep.Start),
			"-to", fmt.Sprintf("%.3f", keep.End),
			"-c", "copy",
			segmentPath,
		)
		if err != nil {
			os.Remove(outputPath)
			return "", &utils.TrimFailure{
				SourcePath: sourcePath,
				Cause:      fmt.Errorf("片段 %d (%.3f-%.3f) 裁剪失败: %w", i+1, keep.Start, keep.End, err),
			}
		}

		segmentPaths = append(segmentPaths, segmentPath)
	}

	if err := t.concatSegments(ctx, segmentDir, segmentPaths, outputPath); err != nil {
		os.Remove(outputPath)
		return "", &utils.TrimFailure{SourcePath: sourcePath, Cause: err}
	}

	utils.Info("停顿移除完成: %s，保留 %d 个段落，移除 %.2f 秒",
		filepath.Base(outputPath), len(keeps), duration-totalDuration(keeps))

	return outputPath, nil
}

// concatSegments 用concat demuxer按顺序拼接片段
func (t *Trimmer) concatSegments(ctx context.Context, segmentDir string, segmentPaths []string, outputPath string) error {
	var list strings.Builder
	for _, p := range segmentPaths {
		fmt.Fprintf(&list, "file '%s'\n", p)
	}

	listPath := filepath.Join(segmentDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("写入拼接列表失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	_, err := t.exec.Execute(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("片段拼接失败: %w", err)
	}

	return nil
}

func totalDuration(intervals []models.PauseInterval) float64 {
	var total float64
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}
