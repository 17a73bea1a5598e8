package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config 表示批处理器的完整配置，进程启动时加载一次，之后不再修改
type Config struct {
	// 草稿输出
	DraftFolder string `json:"draft_folder"` // 剪映草稿文件夹路径
	TempDir     string `json:"temp_dir"`     // 临时素材目录
	OutputSRT   bool   `json:"output_srt"`   // 是否同时导出SRT字幕

	// Coze工作流
	CozeBaseURL    string `json:"coze_base_url"`    // Coze API地址
	CozeToken      string `json:"coze_token"`       // Coze API令牌
	CozeWorkflowID string `json:"coze_workflow_id"` // 工作流ID

	// 火山引擎ASR
	VolcAppID       string `json:"volc_app_id"`       // 火山应用ID
	VolcAccessToken string `json:"volc_access_token"` // 火山访问令牌
	VolcBaseURL     string `json:"volc_base_url"`     // ASR API地址

	// 豆包关键词提取（可选）
	DoubaoToken    string `json:"doubao_token"`    // 方舟API令牌，为空则跳过关键词高亮
	DoubaoModel    string `json:"doubao_model"`    // 模型名称
	ExtractKeyword bool   `json:"extract_keyword"` // 是否提取字幕关键词

	// 飞书多维表格
	FeishuAppID     string            `json:"feishu_app_id"`
	FeishuAppSecret string            `json:"feishu_app_secret"`
	FeishuAppToken  string            `json:"feishu_app_token"`
	FeishuTableID   string            `json:"feishu_table_id"`
	FieldMapping    map[string]string `json:"field_mapping"`   // 逻辑字段 -> 表格字段名
	StatusField     string            `json:"status_field"`    // 状态列名
	ReadyStatus     string            `json:"ready_status"`    // 待处理状态值
	UpdateStatus    bool              `json:"update_status"`   // 处理完成后是否回写状态

	// 并发与轮询
	MaxSubmitConcurrent int     `json:"max_submit_concurrent"` // 提交最大并发数
	MaxPollConcurrent   int     `json:"max_poll_concurrent"`   // 单次轮询扫描最大并发数
	MaxSynthesisWorkers int     `json:"max_synthesis_workers"` // 本地合成最大并发数
	PollIntervalSec     int     `json:"poll_interval_sec"`     // 轮询间隔（秒）
	MaxPollRounds       int     `json:"max_poll_rounds"`       // 单任务最大轮询轮数
	MaxRetries          int     `json:"max_retries"`           // 单任务轮询失败重试预算
	HTTPTimeoutSec      int     `json:"http_timeout_sec"`      // 单次网络调用超时（秒）
	RetryDelay          float64 `json:"retry_delay"`           // 重试延迟（秒）

	// 停顿移除默认值（WorkItem未指定时生效）
	RemovePauses     bool    `json:"remove_pauses"`
	MinPauseDuration float64 `json:"min_pause_duration"` // 最小停顿时长（秒）
	MaxWordGap       float64 `json:"max_word_gap"`       // 单词间最大间隔（秒）

	// 快速失败分类（可配置白名单，上游错误文本不是稳定契约）
	FatalErrorKeywords []string `json:"fatal_error_keywords"`
	FatalErrorCodes    []string `json:"fatal_error_codes"`

	// 日志
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// ConfigValidationError 表示配置验证错误
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("配置验证错误: %s - %s", e.Field, e.Message)
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		DraftFolder: "./drafts",
		TempDir:     "./temp_materials",
		OutputSRT:   true,

		CozeBaseURL: "https://api.coze.cn",
		VolcBaseURL: "https://openspeech.bytedance.com/api/v1/vc",
		DoubaoModel: "doubao-1-5-pro-32k-250115",

		StatusField:  "状态",
		ReadyStatus:  "视频草稿生成",
		UpdateStatus: true,

		MaxSubmitConcurrent: 16,
		MaxPollConcurrent:   8,
		MaxSynthesisWorkers: 4,
		PollIntervalSec:     30,
		MaxPollRounds:       20,
		MaxRetries:          3,
		HTTPTimeoutSec:      30,
		RetryDelay:          1.0,

		RemovePauses:     true,
		MinPauseDuration: 0.2,
		MaxWordGap:       0.8,

		// 默认白名单来自线上观察到的不可自愈错误，可在配置文件中覆盖
		FatalErrorKeywords: []string{"timeout", "timed out", "access plugin", "server error", "connection", "network"},
		FatalErrorCodes:    []string{"720701001", "720701002"},

		LogLevel: "INFO",
	}
}

// Validate 验证配置是否有效
func (c *Config) Validate() error {
	if c.DraftFolder == "" {
		return &ConfigValidationError{"DraftFolder", "不能为空"}
	}

	if c.MaxSubmitConcurrent < 1 || c.MaxSubmitConcurrent > 64 {
		return &ConfigValidationError{"MaxSubmitConcurrent", "必须在1-64之间"}
	}

	if c.MaxPollConcurrent < 1 || c.MaxPollConcurrent > 64 {
		return &ConfigValidationError{"MaxPollConcurrent", "必须在1-64之间"}
	}

	if c.MaxSynthesisWorkers < 1 || c.MaxSynthesisWorkers > 16 {
		return &ConfigValidationError{"MaxSynthesisWorkers", "必须在1-16之间"}
	}

	if c.PollIntervalSec < 1 || c.PollIntervalSec > 600 {
		return &ConfigValidationError{"PollIntervalSec", "必须在1-600秒之间"}
	}

	if c.MaxPollRounds < 1 || c.MaxPollRounds > 200 {
		return &ConfigValidationError{"MaxPollRounds", "必须在1-200之间"}
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return &ConfigValidationError{"MaxRetries", "必须在1-10之间"}
	}

	if c.MinPauseDuration <= 0 {
		return &ConfigValidationError{"MinPauseDuration", "必须大于0"}
	}

	if c.MaxWordGap < 0 {
		return &ConfigValidationError{"MaxWordGap", "不能为负数"}
	}

	if c.RetryDelay < 0.1 || c.RetryDelay > 10.0 {
		return &ConfigValidationError{"RetryDelay", "必须在0.1-10.0秒之间"}
	}

	return nil
}

// LoadFromFile 从文件加载配置
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("读取配置文件失败: %v", err)
		return err
	}

	err = json.Unmarshal(data, c)
	if err != nil {
		logrus.Errorf("解析配置文件失败: %v", err)
		return err
	}

	if err := c.Validate(); err != nil {
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// SaveToFile 保存配置到文件
func (c *Config) SaveToFile(path string) error {
	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.Errorf("创建目录失败: %v", err)
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		logrus.Errorf("序列化配置失败: %v", err)
		return err
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		logrus.Errorf("写入配置文件失败: %v", err)
		return err
	}

	return nil
}
