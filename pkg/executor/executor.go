package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor 外部命令执行接口，抽象出来便于测试注入假实现
type Executor interface {
	// Execute 执行外部命令并返回标准输出
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

type implExecutor struct{}

// New 创建命令执行器
func New() Executor {
	return &implExecutor{}
}

// Execute 执行外部命令，失败时把stderr带进错误信息方便排查
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("命令 %s 执行失败: %w, stderr: %s", name, err, stderrStr)
		}
		return "", fmt.Errorf("命令 %s 执行失败: %w", name, err)
	}

	return stdout.String(), nil
}
