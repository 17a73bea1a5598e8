package models

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// 验证默认值是否正确设置
	assert.Equal(t, "./drafts", config.DraftFolder)
	assert.Equal(t, 16, config.MaxSubmitConcurrent)
	assert.Equal(t, 4, config.MaxSynthesisWorkers)
	assert.Equal(t, 30, config.PollIntervalSec)
	assert.Equal(t, 20, config.MaxPollRounds)
	assert.Equal(t, 3, config.MaxRetries)
	assert.True(t, config.RemovePauses)
	assert.InDelta(t, 0.2, config.MinPauseDuration, 1e-9)
	assert.InDelta(t, 0.8, config.MaxWordGap, 1e-9)
	assert.NotEmpty(t, config.FatalErrorKeywords)
	assert.NotEmpty(t, config.FatalErrorCodes)
	assert.Contains(t, config.FatalErrorKeywords, "timeout")
	assert.Contains(t, config.FatalErrorCodes, "720701001")
}

func TestConfigValidate(t *testing.T) {
	// 测试有效配置
	config := NewDefaultConfig()
	err := config.Validate()
	assert.NoError(t, err)

	// 测试无效的MaxSubmitConcurrent
	config.MaxSubmitConcurrent = 0
	err = config.Validate()
	assert.Error(t, err)
	configErr, ok := err.(*ConfigValidationError)
	assert.True(t, ok)
	assert.Equal(t, "MaxSubmitConcurrent", configErr.Field)

	// 恢复有效值并测试另一个字段
	config.MaxSubmitConcurrent = 16
	config.MinPauseDuration = 0
	err = config.Validate()
	assert.Error(t, err)
	configErr, ok = err.(*ConfigValidationError)
	assert.True(t, ok)
	assert.Equal(t, "MinPauseDuration", configErr.Field)

	config.MinPauseDuration = 0.2
	config.PollIntervalSec = 0
	err = config.Validate()
	assert.Error(t, err)

	config.PollIntervalSec = 30
	config.MaxWordGap = -0.5
	err = config.Validate()
	assert.Error(t, err)
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempFile := "./test_config.json"
	defer os.Remove(tempFile)

	originalConfig := NewDefaultConfig()
	originalConfig.DraftFolder = "./test_drafts"
	originalConfig.MaxSynthesisWorkers = 8
	originalConfig.FatalErrorKeywords = []string{"custom fatal"}

	err := originalConfig.SaveToFile(tempFile)
	assert.NoError(t, err)

	loadedConfig := NewDefaultConfig()
	err = loadedConfig.LoadFromFile(tempFile)
	assert.NoError(t, err)

	assert.Equal(t, "./test_drafts", loadedConfig.DraftFolder)
	assert.Equal(t, 8, loadedConfig.MaxSynthesisWorkers)
	assert.Equal(t, []string{"custom fatal"}, loadedConfig.FatalErrorKeywords)
}

func TestConfigLoadInvalid(t *testing.T) {
	tempFile := "./test_bad_config.json"
	defer os.Remove(tempFile)

	// 超出范围的并发配置应在加载时被拒绝
	assert.NoError(t, os.WriteFile(tempFile, []byte(`{"max_submit_concurrent": 999}`), 0644))

	config := NewDefaultConfig()
	err := config.LoadFromFile(tempFile)
	assert.Error(t, err)
}
