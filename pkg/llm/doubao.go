package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// DoubaoClient 封装对豆包（Volces Ark）聊天接口的访问，用于关键词提取
type DoubaoClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	HttpClient *http.Client
}

// ChatMessage 表示聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 表示对API的请求
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse 表示API的响应
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewDoubaoClient 创建一个新的豆包API客户端
func NewDoubaoClient(apiKey, model string) *DoubaoClient {
	if model == "" {
		model = "doubao-1-5-pro-32k-250115"
	}
	return &DoubaoClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://ark.cn-beijing.volces.com",
		HttpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const keywordSystemPrompt = "你是一个专业的关键词提取专家。请从给定的文本中提取最重要的%d个关键词，用于视频字幕高亮显示。\n\n要求：\n1. 提取有意义的词汇，如名词、动词、形容词\n2. 避免提取助词、介词、连词等功能词\n3. 避免提取不完整的词组片段\n4. 关键词长度在2-4个字之间\n5. 优先提取核心概念和重要动作\n6. 只返回关键词列表，用逗号分隔，不要其他说明文字"

// ExtractKeywords 从文本中提取关键词，用于字幕高亮
func (c *DoubaoClient) ExtractKeywords(ctx context.Context, text string, maxKeywords int) ([]string, error) {
	if maxKeywords <= 0 {
		maxKeywords = 10
	}

	requestBody := ChatRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: fmt.Sprintf(keywordSystemPrompt, maxKeywords)},
			{Role: "user", Content: "请从以下文本中提取关键词：" + text},
		},
		MaxTokens:   200,
		Temperature: 0.3,
	}

	jsonBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := c.BaseURL + "/api/v3/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	utils.Debug("发送关键词提取请求到 %s", url)
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("API响应中没有结果")
	}

	keywords := parseKeywordList(response.Choices[0].Message.Content, maxKeywords)
	utils.Info("关键词提取完成, 共 %d 个", len(keywords))
	return keywords, nil
}

// parseKeywordList 解析逗号分隔的关键词列表，兼容中英文逗号
func parseKeywordList(content string, max int) []string {
	content = strings.ReplaceAll(content, "，", ",")
	parts := strings.Split(content, ",")

	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		kw := strings.TrimSpace(p)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}
