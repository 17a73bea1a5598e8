package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

// BatchHandler 收到新批次文件时被调用
type BatchHandler interface {
	OnBatchFile(filePath string, items []models.WorkItem)
}

// BatchWatcher 监控任务批次文件夹
//
// 文件夹中出现新的*.json批次文件（WorkItem数组）时触发处理，
// 写入抖动通过去抖定时器吸收。
type BatchWatcher struct {
	watcher      *fsnotify.Watcher
	folderPath   string
	handler      BatchHandler
	debounceTime time.Duration
	pendingFiles map[string]*time.Timer
	mutex        sync.Mutex
	stopChan     chan struct{}
}

// NewBatchWatcher 创建批次文件监控器
func NewBatchWatcher(folderPath string, handler BatchHandler, debounceTime time.Duration) (*BatchWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &BatchWatcher{
		watcher:      watcher,
		folderPath:   folderPath,
		handler:      handler,
		debounceTime: debounceTime,
		pendingFiles: make(map[string]*time.Timer),
		stopChan:     make(chan struct{}),
	}, nil
}

// Start 开始监控批次文件夹
func (w *BatchWatcher) Start() error {
	if err := os.MkdirAll(w.folderPath, 0755); err != nil {
		return fmt.Errorf("创建文件夹失败: %w", err)
	}

	if err := w.watcher.Add(w.folderPath); err != nil {
		return fmt.Errorf("添加监控文件夹失败: %w", err)
	}

	go w.watchLoop()

	utils.Info("开始监控批次文件夹: %s", w.folderPath)
	return nil
}

// Stop 停止监控
func (w *BatchWatcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()
	utils.Info("停止监控批次文件夹: %s", w.folderPath)

	w.mutex.Lock()
	defer w.mutex.Unlock()
	for _, timer := range w.pendingFiles {
		timer.Stop()
	}
}

// watchLoop 监控循环
func (w *BatchWatcher) watchLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			utils.Error("监控批次文件夹时出错: %v", err)
		}
	}
}

// 处理文件事件
func (w *BatchWatcher) handleFileEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	filePath := event.Name
	if !isBatchFile(filePath) {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if timer, exists := w.pendingFiles[filePath]; exists {
		timer.Stop()
	}
	w.pendingFiles[filePath] = time.AfterFunc(w.debounceTime, func() {
		w.processFile(filePath)
	})

	utils.Debug("检测到批次文件变化: %s", filePath)
}

// isBatchFile 只关心常规的JSON文件
func isBatchFile(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil || fileInfo.IsDir() {
		return false
	}
	return strings.ToLower(filepath.Ext(filePath)) == ".json"
}

// processFile 去抖结束后解析并上报批次
func (w *BatchWatcher) processFile(filePath string) {
	w.mutex.Lock()
	delete(w.pendingFiles, filePath)
	w.mutex.Unlock()

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return
	}

	var items []models.WorkItem
	if err := utils.LoadJSONFile(filePath, &items); err != nil {
		utils.Error("解析批次文件失败: %s - %v", filePath, err)
		return
	}
	if len(items) == 0 {
		utils.Warn("批次文件为空: %s", filePath)
		return
	}

	utils.Info("批次文件就绪: %s (%d 个任务)", filePath, len(items))
	if w.handler != nil {
		w.handler.OnBatchFile(filePath, items)
	}
}
