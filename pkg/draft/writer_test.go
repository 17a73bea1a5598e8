package draft

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

func TestWriterSaveProducesProjectFile(t *testing.T) {
	folder := t.TempDir()
	writer := NewWriter(folder)

	handle := writer.Create("测试草稿_001")
	audioTrack := handle.AddTrack(TrackAudio)
	assert.NoError(t, handle.AddClip(audioTrack, "/tmp/a.mp3", 0, 12.5))

	textTrack := handle.AddTrack(TrackText)
	assert.NoError(t, handle.AddText(textTrack, "第一句", 0, 2.0))

	outputPath, err := writer.Save(handle)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, "测试草稿_001", "draft_content.json"), outputPath)

	var project Project
	assert.NoError(t, utils.LoadJSONFile(outputPath, &project))
	assert.Equal(t, "测试草稿_001", project.Name)
	assert.Len(t, project.Tracks, 2)
	assert.Equal(t, TrackAudio, project.Tracks[0].Kind)
	assert.Equal(t, "第一句", project.Tracks[1].Clips[0].Text)
}

func TestWriterDoubleSaveRejected(t *testing.T) {
	writer := NewWriter(t.TempDir())
	handle := writer.Create("once")

	_, err := writer.Save(handle)
	assert.NoError(t, err)

	_, err = writer.Save(handle)
	assert.Error(t, err)
}

func TestHandleAddClipBounds(t *testing.T) {
	writer := NewWriter(t.TempDir())
	handle := writer.Create("bounds")

	assert.Error(t, handle.AddClip(0, "/tmp/a.mp3", 0, 1))
	assert.Error(t, handle.AddText(-1, "文本", 0, 1))
}

func TestHandleConcurrentMutationSerialized(t *testing.T) {
	writer := NewWriter(t.TempDir())
	handle := writer.Create("concurrent")
	track := handle.AddTrack(TrackText)

	// 多协程向同一草稿实例追加片段，内部锁保证不丢数据
	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				start := float64(w*perWorker + i)
				assert.NoError(t, handle.AddText(track, fmt.Sprintf("t%d_%d", w, i), start, start+1))
			}
		}(w)
	}
	wg.Wait()

	handle.mu.Lock()
	count := len(handle.project.Tracks[track].Clips)
	handle.mu.Unlock()
	assert.Equal(t, workers*perWorker, count)
}

func TestWriterIndependentHandles(t *testing.T) {
	writer := NewWriter(t.TempDir())

	// 不同句柄互不影响，可并行保存
	var wg sync.WaitGroup
	paths := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle := writer.Create(fmt.Sprintf("draft_%d", i))
			handle.AddTrack(TrackAudio)
			path, err := writer.Save(handle)
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		assert.NotEmpty(t, p)
		assert.False(t, seen[p], "草稿路径重复: %s", p)
		seen[p] = true
	}
}
