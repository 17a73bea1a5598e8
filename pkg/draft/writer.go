package draft

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// TrackKind 轨道类型
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
	TrackText  TrackKind = "text"
)

// Clip 轨道上的一个片段，时间单位秒
type Clip struct {
	Path  string  `json:"path,omitempty"`
	Text  string  `json:"text,omitempty"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Track 草稿中的一条轨道
type Track struct {
	Kind  TrackKind `json:"kind"`
	Clips []Clip    `json:"clips"`
}

// Project 一个草稿工程的完整内容
type Project struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
	Tracks   []*Track `json:"tracks"`
}

// Handle 草稿实例句柄
//
// 同一句柄上的所有结构变更经内部锁串行化，
// 不同句柄之间完全独立、无共享锁。
type Handle struct {
	mu      sync.Mutex
	project Project
	saved   bool
}

// Writer 草稿工程写入器，把草稿落盘为工程目录下的JSON文件
type Writer struct {
	folder string
}

// NewWriter 创建写入器，folder为草稿根目录
func NewWriter(folder string) *Writer {
	return &Writer{folder: folder}
}

// ProjectDir 返回指定草稿的工程目录路径（可能尚未创建）
func (w *Writer) ProjectDir(name string) string {
	return filepath.Join(w.folder, name)
}

// Create 创建一个新草稿实例，name须全局唯一
func (w *Writer) Create(name string) *Handle {
	return &Handle{
		project: Project{
			Name:   name,
			Tracks: make([]*Track, 0, 3),
		},
	}
}

// AddTrack 追加一条轨道并返回其索引
func (h *Handle) AddTrack(kind TrackKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.project.Tracks = append(h.project.Tracks, &Track{
		Kind:  kind,
		Clips: make([]Clip, 0, 8),
	})
	return len(h.project.Tracks) - 1
}

// AddClip 向指定轨道追加媒体片段
func (h *Handle) AddClip(track int, path string, start, end float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if track < 0 || track >= len(h.project.Tracks) {
		return fmt.Errorf("轨道索引越界: %d", track)
	}
	h.project.Tracks[track].Clips = append(h.project.Tracks[track].Clips, Clip{
		Path:  path,
		Start: start,
		End:   end,
	})
	return nil
}

// AddText 向指定轨道追加文本片段（字幕）
func (h *Handle) AddText(track int, text string, start, end float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if track < 0 || track >= len(h.project.Tracks) {
		return fmt.Errorf("轨道索引越界: %d", track)
	}
	h.project.Tracks[track].Clips = append(h.project.Tracks[track].Clips, Clip{
		Text:  text,
		Start: start,
		End:   end,
	})
	return nil
}

// SetKeywords 写入关键词列表（用于字幕高亮）
func (h *Handle) SetKeywords(keywords []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.project.Keywords = keywords
}

// Save 把草稿落盘，返回工程文件路径
//
// 已保存的句柄再次Save会报错，保证不产生半成品覆盖。
func (w *Writer) Save(h *Handle) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.saved {
		return "", fmt.Errorf("草稿 %s 已保存过", h.project.Name)
	}

	dir := w.ProjectDir(h.project.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建草稿目录失败: %w", err)
	}

	outputPath := filepath.Join(dir, "draft_content.json")
	if err := utils.SaveJSONFile(outputPath, &h.project); err != nil {
		return "", fmt.Errorf("保存草稿文件失败: %w", err)
	}

	h.saved = true
	utils.Info("草稿 %s 已保存: %s", h.project.Name, outputPath)
	return outputPath, nil
}
