package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload 远端工作流成功后输出的素材清单
type Payload struct {
	AudioURL string `json:"audioUrl"` // 数字人配音音频
	VideoURL string `json:"videoUrl"` // 数字人视频素材
	Content  string `json:"content"`  // 文案
	Title    string `json:"title"`    // 标题
}

// ParsePayload 解析工作流输出的JSON字符串
func ParsePayload(output string) (*Payload, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, fmt.Errorf("工作流输出为空")
	}

	var p Payload
	if err := json.Unmarshal([]byte(output), &p); err != nil {
		return nil, fmt.Errorf("解析工作流输出失败: %w", err)
	}
	if p.AudioURL == "" {
		return nil, fmt.Errorf("工作流输出缺少audioUrl字段")
	}
	return &p, nil
}
