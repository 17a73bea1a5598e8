package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// SRTExporter 负责将重映射后的字幕导出为SRT文件
type SRTExporter struct {
	OutputFolder string
}

// NewSRTExporter 创建一个新的SRT导出器
func NewSRTExporter(outputFolder string) *SRTExporter {
	return &SRTExporter{
		OutputFolder: outputFolder,
	}
}

// GenerateSRTContent 生成SRT格式内容
func (e *SRTExporter) GenerateSRTContent(cues []models.Cue) string {
	var srtLines []string

	index := 0
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}

		index++
		srtLines = append(srtLines, fmt.Sprintf("%d", index))
		srtLines = append(srtLines, fmt.Sprintf("%s --> %s",
			utils.FormatSRTTime(cue.StartTime), utils.FormatSRTTime(cue.EndTime)))
		srtLines = append(srtLines, text)
		srtLines = append(srtLines, "") // 空行分隔
	}

	return strings.Join(srtLines, "\n")
}

// ExportSRT 导出SRT字幕文件，name用作文件名（不含扩展名）
func (e *SRTExporter) ExportSRT(cues []models.Cue, name string) (string, error) {
	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile := filepath.Join(e.OutputFolder, name+".srt")
	content := e.GenerateSRTContent(cues)

	if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("写入SRT文件失败: %w", err)
	}

	utils.Info("SRT字幕已导出: %s (%d 条)", outputFile, strings.Count(content, "-->"))
	return outputFile, nil
}
