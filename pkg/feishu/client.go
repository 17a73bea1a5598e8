package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

const defaultBaseURL = "https://open.feishu.cn/open-apis"

// Record 多维表格中的一条记录
type Record struct {
	RecordID string                 `json:"record_id"`
	Fields   map[string]interface{} `json:"fields"`
}

// Client 飞书开放平台客户端，负责租户令牌获取与多维表格读写
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
	retry      *utils.ErrorHandler

	mu          sync.Mutex
	tenantToken string
	tokenExpire time.Time
}

// NewClient 创建飞书客户端
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      utils.NewErrorHandler(3, 1.0),
	}
}

// getTenantAccessToken 获取租户访问令牌，带本地缓存
func (c *Client) getTenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tenantToken != "" && time.Now().Before(c.tokenExpire) {
		return c.tenantToken, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	// 令牌获取失败会让整批任务拉不下来，网络抖动时重试几次
	err := c.retry.Retry("获取租户令牌", func() error {
		return c.doJSON(ctx, "POST", c.baseURL+"/auth/v3/tenant_access_token/internal", "", payload, &result)
	})
	if err != nil {
		return "", fmt.Errorf("获取租户令牌失败: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("获取租户令牌失败: code=%d, msg=%s", result.Code, result.Msg)
	}

	c.tenantToken = result.TenantAccessToken
	// 提前5分钟过期，避免边界失效
	c.tokenExpire = time.Now().Add(time.Duration(result.Expire-300) * time.Second)
	return c.tenantToken, nil
}

// doJSON 发送JSON请求并解析响应
func (c *Client) doJSON(ctx context.Context, method, url, token string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP错误: %d, %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}

// FilterCondition 多维表格查询过滤条件
type FilterCondition struct {
	Conjunction string            `json:"conjunction"`
	Conditions  []FilterCriterion `json:"conditions"`
}

// FilterCriterion 单个过滤条件
type FilterCriterion struct {
	FieldName string   `json:"field_name"`
	Operator  string   `json:"operator"`
	Value     []string `json:"value"`
}

// StatusFilter 构建按状态列等值筛选的过滤条件
func StatusFilter(statusField, statusValue string) *FilterCondition {
	return &FilterCondition{
		Conjunction: "and",
		Conditions: []FilterCriterion{
			{FieldName: statusField, Operator: "is", Value: []string{statusValue}},
		},
	}
}

// searchPage 查询一页记录
func (c *Client) searchPage(ctx context.Context, appToken, tableID string,
	filter *FilterCondition, pageToken string) ([]Record, string, bool, error) {

	token, err := c.getTenantAccessToken(ctx)
	if err != nil {
		return nil, "", false, err
	}

	body := map[string]interface{}{
		"page_size": 100,
	}
	if pageToken != "" {
		body["page_token"] = pageToken
	}
	if filter != nil {
		body["filter"] = filter
	}
	payload, _ := json.Marshal(body)

	url := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/search", c.baseURL, appToken, tableID)

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Items     []Record `json:"items"`
			PageToken string   `json:"page_token"`
			HasMore   bool     `json:"has_more"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, "POST", url, token, payload, &result); err != nil {
		return nil, "", false, err
	}
	if result.Code != 0 {
		return nil, "", false, fmt.Errorf("查询记录失败: code=%d, msg=%s", result.Code, result.Msg)
	}

	return result.Data.Items, result.Data.PageToken, result.Data.HasMore, nil
}

// GetAllRecords 分页拉取满足过滤条件的全部记录
func (c *Client) GetAllRecords(ctx context.Context, appToken, tableID string, filter *FilterCondition) ([]Record, error) {
	var all []Record
	pageToken := ""

	for {
		items, next, hasMore, err := c.searchPage(ctx, appToken, tableID, filter, pageToken)
		if err != nil {
			// 过滤条件可能与表结构不匹配，回退到全量拉取
			if filter != nil {
				utils.Warn("按条件查询失败，回退到全量拉取: %v", err)
				return c.GetAllRecords(ctx, appToken, tableID, nil)
			}
			return nil, err
		}

		all = append(all, items...)
		if !hasMore || next == "" {
			break
		}
		pageToken = next
	}

	utils.Info("从多维表格拉取到 %d 条记录", len(all))
	return all, nil
}

// UpdateRecordFields 更新单条记录的若干字段
func (c *Client) UpdateRecordFields(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) error {
	token, err := c.getTenantAccessToken(ctx)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{"fields": fields})
	url := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/%s", c.baseURL, appToken, tableID, recordID)

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := c.doJSON(ctx, "PUT", url, token, payload, &result); err != nil {
		return err
	}
	if result.Code != 0 {
		return fmt.Errorf("更新记录失败: code=%d, msg=%s", result.Code, result.Msg)
	}

	utils.Debug("记录 %s 已更新字段: %v", recordID, fields)
	return nil
}

// UpdateRecordStatus 回写单条记录的状态列
func (c *Client) UpdateRecordStatus(ctx context.Context, appToken, tableID, recordID, statusField, status string) error {
	return c.UpdateRecordFields(ctx, appToken, tableID, recordID, map[string]interface{}{
		statusField: status,
	})
}
