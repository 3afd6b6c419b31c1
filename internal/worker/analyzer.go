package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/gemini"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
)

// Analyzer stage-2 AI 分析器。不直接写任务存储：进度和终态都通过
// 结果队列交给 result consumer 统一落库，存储写入方只有两个。
type Analyzer struct {
	resultQueue *queue.Queue
	summarizer  gemini.Summarizer
	timeout     time.Duration
}

func NewAnalyzer(resultQueue *queue.Queue, summarizer gemini.Summarizer, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Analyzer{
		resultQueue: resultQueue,
		summarizer:  summarizer,
		timeout:     timeout,
	}
}

// Analyze 处理一条 stage-2 消息
func (a *Analyzer) Analyze(ctx context.Context, payload []byte) error {
	msg, err := queue.DecodeAnalyzeMessage(payload)
	if err != nil {
		log.Printf("Dropping malformed analyze message: %v", err)
		return nil
	}

	// 先报告进入 analyzing，让轮询方看到阶段推进
	progress := &queue.ResultMessage{
		ID:     msg.ID,
		Status: model.StatusAnalyzing,
	}
	if err := a.resultQueue.Push(ctx, progress); err != nil {
		return fmt.Errorf("failed to report analyzing for job %s: %w", msg.ID, err)
	}

	log.Printf("Job %s: generating summary from %d bytes", msg.ID, len(msg.ExtractedContent))

	sumCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	summary, err := a.summarizer.Summarize(sumCtx, msg.ExtractedContent, msg.Params)

	var result *queue.ResultMessage
	if err != nil {
		log.Printf("Job %s: summary generation failed: %v", msg.ID, err)
		result = &queue.ResultMessage{
			ID:           msg.ID,
			Status:       model.StatusFailed,
			ErrorMessage: "AI 摘要生成失败，请稍后重试",
		}
	} else {
		result = &queue.ResultMessage{
			ID:             msg.ID,
			Status:         model.StatusCompleted,
			SummaryContent: summary,
		}
	}

	if err := a.resultQueue.Push(ctx, result); err != nil {
		return fmt.Errorf("failed to report result for job %s: %w", msg.ID, err)
	}

	log.Printf("Job %s: result %s reported", msg.ID, result.Status)
	return nil
}
