package pause

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

func TestRemapCuesBasic(t *testing.T) {
	cues := []models.Cue{
		{Text: "第一句", StartTime: 0, EndTime: 2.0},
		{Text: "第二句", StartTime: 2.8, EndTime: 4.0},
	}
	intervals := []models.PauseInterval{{Start: 2.0, End: 2.8}}

	entries, err := RemapCues(cues, intervals)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)

	// 第一句不受影响
	assert.InDelta(t, 0.0, entries[0].NewStart, 1e-9)
	assert.InDelta(t, 2.0, entries[0].NewEnd, 1e-9)

	// 第二句整体前移0.8秒
	assert.InDelta(t, 2.0, entries[1].NewStart, 1e-9)
	assert.InDelta(t, 3.2, entries[1].NewEnd, 1e-9)
}

func TestRemapCuesPreservesDuration(t *testing.T) {
	cues := []models.Cue{
		{Text: "甲", StartTime: 0.5, EndTime: 2.3},
		{Text: "乙", StartTime: 3.0, EndTime: 5.7},
		{Text: "丙", StartTime: 7.0, EndTime: 9.15},
	}
	intervals := []models.PauseInterval{
		{Start: 2.3, End: 3.0},
		{Start: 5.7, End: 7.0},
	}

	entries, err := RemapCues(cues, intervals)
	assert.NoError(t, err)

	for i, entry := range entries {
		original := entry.OriginalEnd - entry.OriginalStart
		remapped := entry.NewEnd - entry.NewStart
		assert.InDelta(t, original, remapped, 1e-9, "第%d条字幕时长应保持不变", i)
	}
}

func TestRemapCuesEmptyIntervals(t *testing.T) {
	cues := []models.Cue{
		{Text: "甲", StartTime: 0, EndTime: 1.0},
		{Text: "乙", StartTime: 1.5, EndTime: 2.5},
	}

	// 无停顿时重映射是恒等变换
	entries, err := RemapCues(cues, nil)
	assert.NoError(t, err)
	for _, entry := range entries {
		assert.InDelta(t, entry.OriginalStart, entry.NewStart, 1e-9)
		assert.InDelta(t, entry.OriginalEnd, entry.NewEnd, 1e-9)
	}
}

func TestRemapCuesPartialOverlap(t *testing.T) {
	// 区间与字幕开始时间部分重叠，只扣除重叠到开始时间的部分
	cues := []models.Cue{
		{Text: "甲", StartTime: 3.0, EndTime: 5.0},
	}
	intervals := []models.PauseInterval{{Start: 2.0, End: 4.0}}

	entries, err := RemapCues(cues, intervals)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, entries[0].NewStart, 1e-9)
	assert.InDelta(t, 4.0, entries[0].NewEnd, 1e-9)
}

func TestRemapCuesInversion(t *testing.T) {
	// 重复计入的重叠区间导致后一条字幕被移到前一条之前
	cues := []models.Cue{
		{Text: "甲", StartTime: 10.0, EndTime: 11.0},
		{Text: "乙", StartTime: 12.0, EndTime: 13.0},
	}
	intervals := []models.PauseInterval{
		{Start: 10.5, End: 12.0},
		{Start: 10.5, End: 12.0},
	}

	_, err := RemapCues(cues, intervals)
	assert.Error(t, err)
	var inversion *utils.TimingInversionError
	assert.ErrorAs(t, err, &inversion)
	assert.Equal(t, 1, inversion.Index)
}

func TestApplyRemap(t *testing.T) {
	cues := []models.Cue{
		{Text: "第一句", StartTime: 0, EndTime: 2.0},
		{Text: "第二句", StartTime: 2.8, EndTime: 4.0},
	}
	entries, err := RemapCues(cues, []models.PauseInterval{{Start: 2.0, End: 2.8}})
	assert.NoError(t, err)

	remapped := ApplyRemap(cues, entries)
	assert.Len(t, remapped, 2)
	assert.Equal(t, "第二句", remapped[1].Text)
	assert.InDelta(t, 2.0, remapped[1].StartTime, 1e-9)
	assert.InDelta(t, 3.2, remapped[1].EndTime, 1e-9)
}
