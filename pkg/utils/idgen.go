package utils

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator 生成并发安全的唯一标识，用于临时文件名和草稿项目名
// 唯一性由三部分保证：粗粒度时间戳 + 单调计数器 + 随机后缀，
// 永远不单独依赖用户提供的字段
type IDGenerator struct {
	counter uint64

	// 可注入的时钟和随机源，便于测试提供确定序列
	now    func() time.Time
	suffix func() string
}

// NewIDGenerator 创建ID生成器
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		now: time.Now,
		suffix: func() string {
			return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		},
	}
}

// NewIDGeneratorWith 使用指定时钟和后缀源创建生成器，测试用
func NewIDGeneratorWith(now func() time.Time, suffix func() string) *IDGenerator {
	return &IDGenerator{now: now, suffix: suffix}
}

// Next 生成带前缀的唯一标识，如 audio_20260826143000_42_1a2b3c4d
func (g *IDGenerator) Next(prefix string) string {
	n := atomic.AddUint64(&g.counter, 1)
	ts := g.now().Format("20060102150405")
	return fmt.Sprintf("%s_%s_%d_%s", prefix, ts, n, g.suffix())
}

// NextFilename 生成唯一文件名，扩展名需带点号
func (g *IDGenerator) NextFilename(prefix, ext string) string {
	return g.Next(prefix) + ext
}
