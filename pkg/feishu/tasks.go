package feishu

import (
	"context"
	"fmt"
	"strings"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// TaskSource 把多维表格记录转换为待处理任务，并负责状态回写
type TaskSource struct {
	client       *Client
	appToken     string
	tableID      string
	fieldMapping map[string]string
	statusField  string
}

// NewTaskSource 创建任务源
func NewTaskSource(client *Client, appToken, tableID string, fieldMapping map[string]string, statusField string) *TaskSource {
	if fieldMapping == nil {
		fieldMapping = map[string]string{}
	}
	if statusField == "" {
		statusField = "状态"
	}
	return &TaskSource{
		client:       client,
		appToken:     appToken,
		tableID:      tableID,
		fieldMapping: fieldMapping,
		statusField:  statusField,
	}
}

// FetchWorkItems 拉取状态为readyStatus的记录并转换为WorkItem列表
func (s *TaskSource) FetchWorkItems(ctx context.Context, readyStatus string) ([]models.WorkItem, error) {
	var filter *FilterCondition
	if readyStatus != "" {
		filter = StatusFilter(s.statusField, readyStatus)
	}

	records, err := s.client.GetAllRecords(ctx, s.appToken, s.tableID, filter)
	if err != nil {
		return nil, fmt.Errorf("拉取任务记录失败: %w", err)
	}

	// 内容为空的记录照常返回，由批处理协调器记为跳过
	items := make([]models.WorkItem, 0, len(records))
	for i, record := range records {
		items = append(items, s.recordToWorkItem(record, i))
	}

	utils.Info("共转换出 %d 个任务", len(items))
	return items, nil
}

// recordToWorkItem 按字段映射把一条记录转换为WorkItem
func (s *TaskSource) recordToWorkItem(record Record, index int) models.WorkItem {
	get := func(logical, fallback string) string {
		fieldName := s.fieldMapping[logical]
		if fieldName == "" {
			fieldName = fallback
		}
		return fieldText(record.Fields[fieldName])
	}

	return models.WorkItem{
		ID:          fmt.Sprintf("task_%d_%s", index+1, record.RecordID),
		RecordID:    record.RecordID,
		Title:       get("title", "标题"),
		Content:     get("content", "内容"),
		ProjectName: get("project_name", "项目名称"),
		DigitalNo:   get("digital_no", "数字人编号"),
		VoiceID:     get("voice_id", "声音ID"),
		Account:     get("account", "账号"),
	}
}

// MarkDone 处理完成后回写记录状态
func (s *TaskSource) MarkDone(ctx context.Context, recordID, status string) error {
	return s.client.UpdateRecordStatus(ctx, s.appToken, s.tableID, recordID, s.statusField, status)
}

// fieldText 提取字段的文本值
//
// 多维表格的文本列可能返回字符串，也可能返回富文本片段数组。
func fieldText(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		var sb strings.Builder
		for _, part := range v {
			if m, ok := part.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return strings.TrimSpace(sb.String())
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	default:
		return ""
	}
}
