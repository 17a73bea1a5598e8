package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/draft-gen-cli/draft-processor/internal/controller"
	"github.com/ccp-p/draft-gen-cli/draft-processor/internal/watcher"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/models"
	"github.com/ccp-p/draft-gen-cli/draft-processor/pkg/utils"
)

var (
	configFile   = flag.String("config", "", "配置文件路径")
	batchFile    = flag.String("batch", "", "本地批次文件路径（WorkItem数组JSON），为空则从多维表格拉取")
	watchDir     = flag.String("watch", "", "监控模式：监控该目录下的批次文件")
	maxSubmit    = flag.Int("max-submit", 0, "提交最大并发数（覆盖配置）")
	maxSynthesis = flag.Int("max-synthesis", 0, "本地合成最大并发数（覆盖配置）")
	pollInterval = flag.Int("poll-interval", 0, "轮询间隔秒数（覆盖配置）")
	include      = flag.String("include", "", "只处理这些任务ID，逗号分隔")
	exclude      = flag.String("exclude", "", "跳过这些任务ID，逗号分隔")
	logLevel     = flag.String("log-level", "INFO", "日志级别 (VERBOSE, INFO, WARN)")
	logFile      = flag.String("log-file", "", "日志文件路径")
)

func main() {
	flag.Parse()

	// .env中的令牌优先注入环境，配置文件可引用
	if err := godotenv.Load(); err == nil {
		logrus.Debug("已加载.env文件")
	}

	if err := utils.InitLogger(*logLevel, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	printWelcome()

	config := loadConfig()

	bc, err := controller.NewBatchCoordinator(config)
	if err != nil {
		color.Red("初始化失败: %v", err)
		os.Exit(1)
	}
	defer bc.Cleanup()

	if !checkDependencies() {
		logrus.Fatal("缺少必要的依赖项，无法继续")
	}

	if *watchDir != "" {
		if err := runWatchMode(bc); err != nil {
			color.Red("监控模式失败: %v", err)
			os.Exit(1)
		}
		return
	}

	items, err := loadWorkItems(bc)
	if err != nil {
		color.Red("加载任务失败: %v", err)
		os.Exit(1)
	}

	items = filterItems(items)
	if len(items) == 0 {
		utils.Info("没有待处理的任务，程序退出")
		return
	}

	fmt.Printf("\n共 %d 个待处理任务\n", len(items))

	results := bc.RunBatch(items)
	if controller.HasFatalFailure(results) {
		os.Exit(1)
	}
}

// runWatchMode 监控批次目录，收到新批次文件时顺序处理
func runWatchMode(bc *controller.BatchCoordinator) error {
	handler := &batchHandler{bc: bc}
	w, err := watcher.NewBatchWatcher(*watchDir, handler, 2*time.Second)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	color.Cyan("监控模式已启动，等待批次文件进入 %s ...", *watchDir)
	<-bc.Context().Done()
	return nil
}

// batchHandler 把监控到的批次交给协调器
type batchHandler struct {
	bc *controller.BatchCoordinator
}

func (h *batchHandler) OnBatchFile(filePath string, items []models.WorkItem) {
	items = filterItems(items)
	if len(items) == 0 {
		return
	}
	results := h.bc.RunBatch(items)
	if controller.HasFatalFailure(results) {
		color.Red("批次 %s 存在不可重试的失败", filePath)
	}
}

// loadWorkItems 从本地批次文件或多维表格加载任务
func loadWorkItems(bc *controller.BatchCoordinator) ([]models.WorkItem, error) {
	if *batchFile != "" {
		var items []models.WorkItem
		if err := utils.LoadJSONFile(*batchFile, &items); err != nil {
			return nil, fmt.Errorf("读取批次文件失败: %w", err)
		}
		utils.Info("从批次文件加载 %d 个任务: %s", len(items), *batchFile)
		return items, nil
	}
	return bc.FetchWorkItems()
}

// filterItems 应用include/exclude任务ID过滤
func filterItems(items []models.WorkItem) []models.WorkItem {
	includeSet := parseIDList(*include)
	excludeSet := parseIDList(*exclude)

	filtered := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if len(includeSet) > 0 && !includeSet[item.ID] {
			continue
		}
		if excludeSet[item.ID] {
			utils.Info("任务 %s 被排除", item.ID)
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func parseIDList(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// loadConfig 组装最终配置：默认值 <- 配置文件 <- 环境变量 <- 命令行参数
func loadConfig() *models.Config {
	fmt.Print("加载配置... ")

	config := models.NewDefaultConfig()

	if *configFile != "" {
		if err := config.LoadFromFile(*configFile); err != nil {
			color.Red("失败")
			logrus.Fatalf("加载配置文件失败: %v", err)
		}
		color.Green("成功")
	} else {
		color.Yellow("未指定配置文件，使用默认配置")
	}

	loadTokensFromEnv(config)

	if *maxSubmit > 0 {
		config.MaxSubmitConcurrent = *maxSubmit
	}
	if *maxSynthesis > 0 {
		config.MaxSynthesisWorkers = *maxSynthesis
	}
	if *pollInterval > 0 {
		config.PollIntervalSec = *pollInterval
	}

	if err := config.Validate(); err != nil {
		logrus.Fatalf("配置无效: %v", err)
	}
	return config
}

// loadTokensFromEnv 环境变量兜底填充各服务令牌
func loadTokensFromEnv(config *models.Config) {
	if config.CozeToken == "" {
		config.CozeToken = os.Getenv("COZE_TOKEN")
	}
	if config.VolcAccessToken == "" {
		config.VolcAccessToken = os.Getenv("VOLC_ACCESS_TOKEN")
	}
	if config.DoubaoToken == "" {
		config.DoubaoToken = os.Getenv("DOUBAO_TOKEN")
	}
	if config.FeishuAppSecret == "" {
		config.FeishuAppSecret = os.Getenv("FEISHU_APP_SECRET")
	}
}

func printWelcome() {
	fmt.Println()
	color.Cyan("================================")
	color.Cyan("   剪映草稿批量生成 - Go 版本   ")
	color.Cyan("================================")
	fmt.Println()
}

func checkDependencies() bool {
	fmt.Print("检查系统依赖... ")

	if !utils.CheckFFmpeg() || !utils.CheckFFprobe() {
		color.Red("失败")
		logrus.Error("未检测到FFmpeg/FFprobe，请确保已安装并添加到系统路径")
		return false
	}

	color.Green("通过")
	return true
}
