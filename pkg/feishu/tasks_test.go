package feishu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldText(t *testing.T) {
	// 普通字符串
	assert.Equal(t, "你好", fieldText(" 你好 "))

	// 富文本片段数组
	rich := []interface{}{
		map[string]interface{}{"text": "第一段"},
		map[string]interface{}{"text": "第二段"},
	}
	assert.Equal(t, "第一段第二段", fieldText(rich))

	// 数字列
	assert.Equal(t, "42", fieldText(float64(42)))

	// 缺失或未知类型
	assert.Equal(t, "", fieldText(nil))
	assert.Equal(t, "", fieldText(map[string]interface{}{}))
}

func TestRecordToWorkItemFieldMapping(t *testing.T) {
	source := NewTaskSource(nil, "app", "table", map[string]string{
		"title":   "视频标题",
		"content": "文案内容",
	}, "状态")

	record := Record{
		RecordID: "rec123",
		Fields: map[string]interface{}{
			"视频标题":  "今天聊聊理财",
			"文案内容":  "年轻人要学会享受生活",
			"项目名称":  "理财频道",
			"数字人编号": "d01",
			"声音ID":  "v88",
		},
	}

	item := source.recordToWorkItem(record, 0)
	assert.Equal(t, "task_1_rec123", item.ID)
	assert.Equal(t, "rec123", item.RecordID)
	assert.Equal(t, "今天聊聊理财", item.Title)
	assert.Equal(t, "年轻人要学会享受生活", item.Content)
	// 未在映射中的逻辑字段回退到默认列名
	assert.Equal(t, "理财频道", item.ProjectName)
	assert.Equal(t, "d01", item.DigitalNo)
	assert.Equal(t, "v88", item.VoiceID)
}

func TestStatusFilter(t *testing.T) {
	filter := StatusFilter("状态", "视频草稿生成")

	assert.Equal(t, "and", filter.Conjunction)
	assert.Len(t, filter.Conditions, 1)
	assert.Equal(t, "状态", filter.Conditions[0].FieldName)
	assert.Equal(t, "is", filter.Conditions[0].Operator)
	assert.Equal(t, []string{"视频草稿生成"}, filter.Conditions[0].Value)
}
