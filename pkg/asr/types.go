package asr

import (
	"context"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
)

// Transcriber 定义语音识别服务接口
type Transcriber interface {
	// Transcribe 对远端音频URL执行识别，阻塞直到完成或失败
	Transcribe(ctx context.Context, fileURL string) (*models.TranscriptionResult, error)
}

// wordResp 词级时间戳，时间单位毫秒
type wordResp struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
}

// utteranceResp 句级识别结果
type utteranceResp struct {
	Text      string     `json:"text"`
	StartTime int64      `json:"start_time"`
	EndTime   int64      `json:"end_time"`
	Words     []wordResp `json:"words"`
}

// queryResp 查询接口的响应体
type queryResp struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Duration   int64           `json:"duration"`
	Utterances []utteranceResp `json:"utterances"`
}

// submitResp 提交接口的响应体
type submitResp struct {
	ID      string `json:"id"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
