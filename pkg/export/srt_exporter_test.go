package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
)

func TestGenerateSRTContent(t *testing.T) {
	exporter := NewSRTExporter(t.TempDir())

	cues := []models.Cue{
		{Text: "第一句", StartTime: 0, EndTime: 2.0},
		{Text: "第二句", StartTime: 2.0, EndTime: 3.2},
	}

	content := exporter.GenerateSRTContent(cues)
	lines := strings.Split(content, "\n")

	assert.Equal(t, "1", lines[0])
	assert.Equal(t, "00:00:00,000 --> 00:00:02,000", lines[1])
	assert.Equal(t, "第一句", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "2", lines[4])
	assert.Equal(t, "00:00:02,000 --> 00:00:03,200", lines[5])
}

func TestGenerateSRTContentSkipsEmptyText(t *testing.T) {
	exporter := NewSRTExporter(t.TempDir())

	cues := []models.Cue{
		{Text: "  ", StartTime: 0, EndTime: 1.0},
		{Text: "有内容", StartTime: 1.0, EndTime: 2.0},
	}

	content := exporter.GenerateSRTContent(cues)
	// 空文本被跳过，序号连续
	assert.True(t, strings.HasPrefix(content, "1\n"))
	assert.Contains(t, content, "有内容")
	assert.NotContains(t, content, "2\n00:")
}

func TestExportSRTWritesFile(t *testing.T) {
	folder := t.TempDir()
	exporter := NewSRTExporter(folder)

	cues := []models.Cue{{Text: "你好", StartTime: 0.5, EndTime: 1.5}}

	outputFile, err := exporter.ExportSRT(cues, "测试草稿")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "测试草稿.srt"), outputFile)

	data, err := os.ReadFile(outputFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "00:00:00,500 --> 00:00:01,500")
}
