package models

// BatchStatistics 批次级运行统计，供外部观察
type BatchStatistics struct {
	Total      int `json:"total"`      // 任务总数
	Submitted  int `json:"submitted"`  // 提交成功数
	Polling    int `json:"polling"`    // 轮询中数量
	Succeeded  int `json:"succeeded"`  // 远端执行成功数
	Failed     int `json:"failed"`     // 失败数（含快速失败）
	Skipped    int `json:"skipped"`    // 跳过数（内容为空等）
	Dispatched int `json:"dispatched"` // 已进入合成数
	Completed  int `json:"completed"`  // 草稿生成完成数
}
