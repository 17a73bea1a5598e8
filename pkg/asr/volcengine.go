package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

const (
	// defaultASRBaseURL 火山引擎录音文件识别基础URL
	defaultASRBaseURL = "https://openspeech.bytedance.com/api/v1/vc"

	// queryInterval 查询间隔
	queryInterval = 5 * time.Second

	// maxWaitTime 识别最大等待时间
	maxWaitTime = 300 * time.Second
)

// VolcengineASR 火山引擎语音识别客户端，实现Transcriber接口
type VolcengineASR struct {
	baseURL     string
	appID       string
	accessToken string
	language    string
	httpClient  *http.Client
}

// NewVolcengineASR 创建火山引擎ASR客户端
func NewVolcengineASR(appID, accessToken, baseURL string) *VolcengineASR {
	if baseURL == "" {
		baseURL = defaultASRBaseURL
	}
	return &VolcengineASR{
		baseURL:     strings.TrimRight(baseURL, "/"),
		appID:       appID,
		accessToken: accessToken,
		language:    "zh-CN",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Transcribe 提交音频URL并等待识别完成，返回句级与词级时间戳
func (v *VolcengineASR) Transcribe(ctx context.Context, fileURL string) (*models.TranscriptionResult, error) {
	utils.Info("提交音频识别任务: %s", fileURL)

	jobID, err := v.submit(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("提交识别任务失败: %w", err)
	}
	utils.Info("识别任务提交成功, 任务ID: %s", jobID)

	resp, err := v.waitForCompletion(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("等待识别结果失败: %w", err)
	}

	result := parseQueryResp(resp)
	utils.Info("识别完成, 共 %d 段语音, 总时长 %.2f 秒", len(result.Cues), result.Duration)
	return result, nil
}

// submit 提交识别任务，返回任务ID
func (v *VolcengineASR) submit(ctx context.Context, fileURL string) (string, error) {
	params := url.Values{}
	params.Set("appid", v.appID)
	params.Set("language", v.language)
	params.Set("use_itn", "True")
	params.Set("use_capitalize", "True")
	params.Set("max_lines", "1")
	params.Set("words_per_line", "10")

	payload, err := json.Marshal(map[string]string{"url": fileURL})
	if err != nil {
		return "", fmt.Errorf("JSON编码失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		v.baseURL+"/submit?"+params.Encode(), strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer; "+v.accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP错误: %d, %s", resp.StatusCode, string(body))
	}

	var result submitResp
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("解析JSON响应失败: %w", err)
	}
	if result.Message != "Success" {
		return "", fmt.Errorf("任务提交被拒绝: code=%d, message=%s", result.Code, result.Message)
	}
	if result.ID == "" {
		return "", fmt.Errorf("响应中缺少任务ID")
	}

	return result.ID, nil
}

// query 查询一次识别结果
func (v *VolcengineASR) query(ctx context.Context, jobID string) (*queryResp, error) {
	params := url.Values{}
	params.Set("appid", v.appID)
	params.Set("id", jobID)

	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer; "+v.accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP错误: %d, %s", resp.StatusCode, string(body))
	}

	var result queryResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return &result, nil
}

// waitForCompletion 轮询等待识别完成
//
// code为0且utterances非空表示完成，code非0表示远端识别失败。
func (v *VolcengineASR) waitForCompletion(ctx context.Context, jobID string) (*queryResp, error) {
	deadline := time.Now().Add(maxWaitTime)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := v.query(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if result.Code != 0 {
			return nil, fmt.Errorf("识别失败: code=%d, message=%s", result.Code, result.Message)
		}
		if len(result.Utterances) > 0 {
			return result, nil
		}

		utils.Debug("识别进行中, %v 后重试", queryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(queryInterval):
		}
	}

	return nil, fmt.Errorf("识别等待超时 (%v)", maxWaitTime)
}

// parseQueryResp 把接口响应转换为内部转录结构，时间从毫秒转为秒
func parseQueryResp(resp *queryResp) *models.TranscriptionResult {
	result := &models.TranscriptionResult{
		Cues:     make([]models.Cue, 0, len(resp.Utterances)),
		Duration: float64(resp.Duration) / 1000.0,
	}

	for _, u := range resp.Utterances {
		cue := models.Cue{
			Text:      strings.TrimSpace(u.Text),
			StartTime: float64(u.StartTime) / 1000.0,
			EndTime:   float64(u.EndTime) / 1000.0,
		}
		for _, w := range u.Words {
			cue.Words = append(cue.Words, models.Cue{
				Text:      w.Text,
				StartTime: float64(w.StartTime) / 1000.0,
				EndTime:   float64(w.EndTime) / 1000.0,
			})
		}
		result.Cues = append(result.Cues, cue)
		if cue.EndTime > result.Duration {
			result.Duration = cue.EndTime
		}
	}

	return result
}
