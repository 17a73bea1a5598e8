package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// ExecuteStatus 远端工作流执行状态
type ExecuteStatus string

const (
	StatusPending   ExecuteStatus = "pending"   // 执行中或尚无执行记录
	StatusSucceeded ExecuteStatus = "succeeded" // 执行成功
	StatusFailed    ExecuteStatus = "failed"    // 执行失败
)

// RunResult 单次轮询返回的执行状态
type RunResult struct {
	Status       ExecuteStatus
	Output       string // 成功时的输出JSON字符串
	ErrorCode    string // 失败时的错误码
	ErrorMessage string // 失败时的错误信息
}

// APIError 接口层错误（code非0），错误码和信息供快速失败分类使用
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Coze接口错误 code=%s: %s", e.Code, e.Msg)
}

// WorkflowRunner 远端工作流执行服务接口
type WorkflowRunner interface {
	// RunWorkflow 异步提交工作流，返回执行ID
	RunWorkflow(ctx context.Context, parameters map[string]interface{}) (string, error)
	// QueryRunHistory 查询一次执行的状态
	QueryRunHistory(ctx context.Context, executeID string) (*RunResult, error)
}

// Client Coze工作流HTTP客户端
type Client struct {
	baseURL    string
	token      string
	workflowID string
	httpClient *http.Client
}

// NewClient 创建客户端，timeout是单次网络调用的超时
func NewClient(baseURL, token, workflowID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		workflowID: workflowID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RunWorkflow 异步提交工作流，返回execute_id
func (c *Client) RunWorkflow(ctx context.Context, parameters map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"workflow_id": c.workflowID,
		"parameters":  parameters,
		"is_async":    true,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("JSON编码失败: %w", err)
	}

	url := c.baseURL + "/v1/workflow/run"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	var result struct {
		Code      json.Number `json:"code"`
		Msg       string      `json:"msg"`
		ExecuteID string      `json:"execute_id"`
		DebugURL  string      `json:"debug_url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("解析JSON响应失败: %w", err)
	}

	if result.ExecuteID == "" {
		return "", &APIError{Code: result.Code.String(), Msg: result.Msg}
	}

	if result.DebugURL != "" {
		utils.Debug("工作流调试URL: %s", result.DebugURL)
	}

	return result.ExecuteID, nil
}

// QueryRunHistory 查询一次执行的状态
func (c *Client) QueryRunHistory(ctx context.Context, executeID string) (*RunResult, error) {
	url := fmt.Sprintf("%s/v1/workflows/%s/run_histories/%s", c.baseURL, c.workflowID, executeID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	var result struct {
		Code json.Number `json:"code"`
		Msg  string      `json:"msg"`
		Data []struct {
			ExecuteStatus string `json:"execute_status"`
			Output        string `json:"output"`
			ErrorCode     string `json:"error_code"`
			ErrorMessage  string `json:"error_message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析JSON响应失败: %w", err)
	}

	if result.Code.String() != "0" {
		return nil, &APIError{Code: result.Code.String(), Msg: result.Msg}
	}

	// 暂无执行记录，继续等待
	if len(result.Data) == 0 {
		return &RunResult{Status: StatusPending}, nil
	}

	record := result.Data[0]
	switch record.ExecuteStatus {
	case "Success":
		if record.Output == "" {
			return &RunResult{
				Status:       StatusFailed,
				ErrorMessage: "工作流完成但无输出数据",
			}, nil
		}
		return &RunResult{Status: StatusSucceeded, Output: record.Output}, nil
	case "Failed":
		return &RunResult{
			Status:       StatusFailed,
			ErrorCode:    record.ErrorCode,
			ErrorMessage: record.ErrorMessage,
		}, nil
	default:
		// Running或其他未知状态都按执行中处理
		return &RunResult{Status: StatusPending}, nil
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}
