package worker

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
)

// ResultConsumer 结果消费者，结果队列的唯一读取方。所有写入都走带状态
// 守卫的更新，因此同一条结果消息投递多少次效果都一样。
type ResultConsumer struct {
	jobRepo *repository.JobRepository
}

func NewResultConsumer(jobRepo *repository.JobRepository) *ResultConsumer {
	return &ResultConsumer{jobRepo: jobRepo}
}

// Consume 处理一条结果消息
func (c *ResultConsumer) Consume(payload []byte) error {
	msg, err := queue.DecodeResultMessage(payload)
	if err != nil {
		log.Printf("Dropping malformed result message: %v", err)
		return nil
	}

	switch msg.Status {
	case model.StatusCompleted:
		err = c.jobRepo.MarkCompleted(msg.ID, msg.SummaryContent)
	case model.StatusFailed:
		err = c.jobRepo.MarkFailed(msg.ID, msg.ErrorMessage)
	case model.StatusAnalyzing:
		err = c.jobRepo.TransitionStatus(msg.ID, msg.Status)
	default:
		// 结果队列只承载 analyzing 进度和终态
		log.Printf("Job %s: unexpected result status %s, dropping", msg.ID, msg.Status)
		return nil
	}

	switch {
	case errors.Is(err, repository.ErrStaleTransition):
		// 迟到的进度或重复的终态，静默丢弃
		log.Printf("Job %s: stale result %s ignored", msg.ID, msg.Status)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Printf("Job %s: no matching record for result %s", msg.ID, msg.Status)
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply result %s for job %s: %w", msg.Status, msg.ID, err)
	}

	log.Printf("Job %s: status -> %s", msg.ID, msg.Status)
	return nil
}
