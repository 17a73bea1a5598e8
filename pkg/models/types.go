package models

import "time"

// Cue 表示一条字幕/识别文本段落，时间单位为秒
type Cue struct {
	Text      string  `json:"text"`            // 文本内容
	StartTime float64 `json:"start_time"`      // 开始时间（秒）
	EndTime   float64 `json:"end_time"`        // 结束时间（秒）
	Words     []Cue   `json:"words,omitempty"` // 逐字时间戳（可选）
}

// Duration 返回段落时长（秒）
func (c Cue) Duration() float64 {
	return c.EndTime - c.StartTime
}

// TranscriptionResult 一次音频转录的完整结果，按开始时间升序排列
type TranscriptionResult struct {
	Cues     []Cue   `json:"cues"`     // 有序段落列表
	Duration float64 `json:"duration"` // 音频总时长（秒）
}

// PauseInterval 表示一段需要移除的停顿区间，End > Start
type PauseInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration 返回区间时长（秒）
func (p PauseInterval) Duration() float64 {
	return p.End - p.Start
}

// RemapEntry 停顿移除后的时间映射，每条字幕对应一条
// 不变量：NewEnd-NewStart == OriginalEnd-OriginalStart（时长保持）
type RemapEntry struct {
	OriginalStart float64 `json:"original_start"`
	OriginalEnd   float64 `json:"original_end"`
	NewStart      float64 `json:"new_start"`
	NewEnd        float64 `json:"new_end"`
}

// WorkItem 一条待处理的视频生成任务，组装后不再修改
type WorkItem struct {
	ID          string `json:"id"`           // 任务唯一ID
	RecordID    string `json:"record_id"`    // 多维表格记录ID（用于状态回写）
	Content     string `json:"content"`      // 内容文案
	Title       string `json:"title"`        // 标题
	ProjectName string `json:"project_name"` // 草稿项目名称（批次内唯一）
	DigitalNo   string `json:"digital_no"`   // 数字人编号
	VoiceID     string `json:"voice_id"`     // 声音ID
	Account     string `json:"account"`      // 所属账号

	// 停顿移除配置
	RemovePauses     bool    `json:"remove_pauses"`      // 是否移除停顿
	MinPauseDuration float64 `json:"min_pause_duration"` // 最小停顿时长（秒）
	MaxWordGap       float64 `json:"max_word_gap"`       // 单词间最大间隔（秒）
}

// BatchStatus 任务终态
type BatchStatus string

const (
	StatusCompleted BatchStatus = "completed" // 草稿生成成功
	StatusFailed    BatchStatus = "failed"    // 处理失败
	StatusSkipped   BatchStatus = "skipped"   // 跳过（内容为空等）
)

// BatchResult 每个WorkItem的终态记录，只写一次
type BatchResult struct {
	Item        WorkItem      `json:"item"`
	Status      BatchStatus   `json:"status"`
	OutputPath  string        `json:"output_path,omitempty"` // 草稿文件路径
	Reason      string        `json:"reason,omitempty"`      // 失败原因
	Retryable   bool          `json:"retryable"`             // 失败是否可重试
	ProcessTime time.Duration `json:"process_time_ms"`
}
