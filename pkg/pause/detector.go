package pause

import (
	"fmt"
	"sort"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// mergeTolerance 相邻停顿区间合并容差（秒）
const mergeTolerance = 0.1

// DetectPauses 从转录结果中检测需要移除的停顿区间
//
// minPauseDuration: 相邻段落间隙达到该值才算停顿（秒，必须大于0）
// maxWordGap: 段落内逐字间隙达到该值才算停顿（秒，不能为负）
//
// 只检测段落/单词之间的间隙，音频开头和结尾的静音不计入，
// 避免截掉刻意保留的前奏和收尾。
// 返回的区间互不重叠且按开始时间升序。
func DetectPauses(result *models.TranscriptionResult, minPauseDuration, maxWordGap float64) ([]models.PauseInterval, error) {
	if minPauseDuration <= 0 {
		return nil, fmt.Errorf("minPauseDuration 必须大于0: %f", minPauseDuration)
	}
	if maxWordGap < 0 {
		return nil, fmt.Errorf("maxWordGap 不能为负数: %f", maxWordGap)
	}

	if result == nil || len(result.Cues) == 0 {
		return nil, nil
	}

	if err := validateCues(result.Cues); err != nil {
		return nil, err
	}

	var intervals []models.PauseInterval

	for i, cue := range result.Cues {
		// 段落之间的停顿
		if i > 0 {
			prev := result.Cues[i-1]
			gap := cue.StartTime - prev.EndTime
			if gap >= minPauseDuration {
				intervals = append(intervals, models.PauseInterval{Start: prev.EndTime, End: cue.StartTime})
			}
		}

		// 段落内逐字时间戳之间的停顿
		if maxWordGap > 0 {
			for j := 0; j < len(cue.Words)-1; j++ {
				gap := cue.Words[j+1].StartTime - cue.Words[j].EndTime
				if gap >= maxWordGap {
					intervals = append(intervals, models.PauseInterval{
						Start: cue.Words[j].EndTime,
						End:   cue.Words[j+1].StartTime,
					})
				}
			}
		}
	}

	merged := mergeIntervals(intervals)

	utils.Debug("检测到 %d 个停顿区间（合并前 %d 个）", len(merged), len(intervals))

	return merged, nil
}

// validateCues 校验段落有序且不重叠，违反契约直接报错而不是静默纠正
func validateCues(cues []models.Cue) error {
	for i, cue := range cues {
		if cue.EndTime < cue.StartTime {
			return &utils.MalformedTranscriptionError{
				Index:  i,
				Detail: fmt.Sprintf("结束时间 %.3f 早于开始时间 %.3f", cue.EndTime, cue.StartTime),
			}
		}
		if i > 0 {
			prev := cues[i-1]
			if cue.StartTime < prev.StartTime {
				return &utils.MalformedTranscriptionError{
					Index:  i,
					Detail: fmt.Sprintf("开始时间 %.3f 早于前一段落 %.3f，段落乱序", cue.StartTime, prev.StartTime),
				}
			}
			if cue.StartTime < prev.EndTime {
				return &utils.MalformedTranscriptionError{
					Index:  i,
					Detail: fmt.Sprintf("开始时间 %.3f 与前一段落结束时间 %.3f 重叠", cue.StartTime, prev.EndTime),
				}
			}
		}
	}
	return nil
}

// mergeIntervals 合并相邻或重叠的停顿区间，结果按开始时间升序
func mergeIntervals(intervals []models.PauseInterval) []models.PauseInterval {
	if len(intervals) == 0 {
		return nil
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})

	merged := []models.PauseInterval{intervals[0]}
	for _, cur := range intervals[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+mergeTolerance {
			if cur.End > last.End {
				last.End = cur.End
			}
		} else {
			merged = append(merged, cur)
		}
	}

	return merged
}

// TotalPauseDuration 计算停顿区间的总时长
func TotalPauseDuration(intervals []models.PauseInterval) float64 {
	var total float64
	for _, p := range intervals {
		total += p.Duration()
	}
	return total
}
