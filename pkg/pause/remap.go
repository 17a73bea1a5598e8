package pause

import (
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// 浮点比较容差
const timeEpsilon = 1e-9

// RemapCues 根据停顿移除区间重新计算字幕时间
//
// 每条字幕的新开始时间 = 原开始时间 - 它之前被移除的总时长，
// 其中"之前"包括完全早于该字幕的区间，以及与字幕开始时间部分重叠的区间
// 截止到开始时间的部分。字幕时长严格保持不变。
//
// 若停顿区间集合不合法导致重映射后字幕顺序颠倒，立即返回
// TimingInversionError，而不是静默重排。
func RemapCues(cues []models.Cue, intervals []models.PauseInterval) ([]models.RemapEntry, error) {
	entries := make([]models.RemapEntry, 0, len(cues))

	prevStart := -1.0
	for i, cue := range cues {
		removed := removedBefore(intervals, cue.StartTime)

		newStart := cue.StartTime - removed
		if newStart < 0 {
			newStart = 0
		}
		newEnd := newStart + cue.Duration()

		if i > 0 && newStart < prevStart-timeEpsilon {
			return nil, &utils.TimingInversionError{Index: i}
		}
		prevStart = newStart

		entries = append(entries, models.RemapEntry{
			OriginalStart: cue.StartTime,
			OriginalEnd:   cue.EndTime,
			NewStart:      newStart,
			NewEnd:        newEnd,
		})
	}

	return entries, nil
}

// removedBefore 计算时间点t之前被移除的总时长
func removedBefore(intervals []models.PauseInterval, t float64) float64 {
	var total float64
	for _, p := range intervals {
		switch {
		case p.End <= t:
			total += p.Duration()
		case p.Start < t:
			total += t - p.Start
		}
	}
	return total
}

// ApplyRemap 把重映射结果套回字幕，返回新时间轴上的字幕列表
func ApplyRemap(cues []models.Cue, entries []models.RemapEntry) []models.Cue {
	remapped := make([]models.Cue, 0, len(cues))
	for i, cue := range cues {
		if i >= len(entries) {
			break
		}
		remapped = append(remapped, models.Cue{
			Text:      cue.Text,
			StartTime: entries[i].NewStart,
			EndTime:   entries[i].NewEnd,
		})
	}
	return remapped
}
