package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/AhmedAbubaker98/GitInsight/config"
)

// Extractor 仓库内容抽取。实现负责获取仓库并返回拼接好的文本，
// 返回的错误信息会原样写入任务的 error_message。
type Extractor interface {
	Extract(ctx context.Context, jobID, repoURL string) (string, error)
}

// GitExtractor 基于 git 浅克隆的抽取实现
type GitExtractor struct {
	cfg config.CloneConfig
}

func NewGitExtractor(cfg config.CloneConfig) *GitExtractor {
	return &GitExtractor{cfg: cfg}
}

// Extract 克隆、体积检查、解析、拼接，全程使用任务独立的临时目录
func (e *GitExtractor) Extract(ctx context.Context, jobID, repoURL string) (string, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		return "", err
	}

	dest := GetTempDir(e.cfg.TempDir, jobID)
	defer func() {
		if err := CleanupRepo(dest); err != nil {
			log.Printf("Job %s: failed to cleanup clone dir %s: %v", jobID, dest, err)
		}
	}()

	if err := CloneRepoWithRetry(ctx, repoURL, dest, e.cfg.TimeoutSeconds, e.cfg.MaxRetries); err != nil {
		return "", err
	}

	if err := CheckRepoSize(dest, e.cfg.MaxRepoBytes); err != nil {
		return "", err
	}

	parsed, err := ParseRepo(dest)
	if err != nil {
		return "", &CloneError{
			UserMessage: "解析仓库内容失败",
			RawError:    err,
		}
	}

	text := parsed.BuildAnalysisText()
	if text == "" {
		return "", &CloneError{
			UserMessage: "仓库中没有可分析的文本内容",
			RawError:    fmt.Errorf("no readable content in %s", repoURL),
		}
	}

	return text, nil
}
