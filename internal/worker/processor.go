package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
)

// Processor stage-1 仓库处理器：领取 ProcessMessage，抽取仓库文本，
// 成功则交给 AI 分析队列，失败则直接把任务标记为 failed。
// 返回 nil 表示消息可以 Ack（包括主动丢弃的情况），返回非 nil 表示
// 处理被打断，消息留待重投。
type Processor struct {
	jobRepo       *repository.JobRepository
	analysisQueue *queue.Queue
	extractor     Extractor
}

func NewProcessor(jobRepo *repository.JobRepository, analysisQueue *queue.Queue, extractor Extractor) *Processor {
	return &Processor{
		jobRepo:       jobRepo,
		analysisQueue: analysisQueue,
		extractor:     extractor,
	}
}

// Process 处理一条 stage-1 消息
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	msg, err := queue.DecodeProcessMessage(payload)
	if err != nil {
		log.Printf("Dropping malformed process message: %v", err)
		return nil
	}

	err = p.jobRepo.TransitionStatus(msg.ID, model.StatusProcessing)
	switch {
	case errors.Is(err, repository.ErrStaleTransition):
		// 重复投递撞上已推进或已终态的任务，丢弃
		log.Printf("Job %s: redundant delivery, job already advanced", msg.ID)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Printf("Job %s: no matching record, dropping message", msg.ID)
		return nil
	case err != nil:
		return fmt.Errorf("failed to mark job %s processing: %w", msg.ID, err)
	}

	log.Printf("Job %s: extracting %s", msg.ID, msg.RepoURL)

	text, err := p.extractor.Extract(ctx, msg.ID, msg.RepoURL)
	if err != nil {
		return p.failJob(msg.ID, err)
	}

	analyzeMsg := &queue.AnalyzeMessage{
		ID:               msg.ID,
		ExtractedContent: text,
		Params:           msg.Params,
	}
	if err := p.analysisQueue.Push(ctx, analyzeMsg); err != nil {
		// 交接失败不终结任务，留给可见性超时重投
		return fmt.Errorf("failed to hand off job %s to analysis queue: %w", msg.ID, err)
	}

	log.Printf("Job %s: extracted %d bytes, handed off to analysis queue", msg.ID, len(text))
	return nil
}

// failJob 把抽取失败写成任务终态，用户可读消息入库，原始错误进日志
func (p *Processor) failJob(jobID string, cause error) error {
	userMsg := cause.Error()
	var ce *CloneError
	if errors.As(cause, &ce) {
		userMsg = ce.UserMessage
		log.Printf("Job %s: extraction failed: %v", jobID, ce.RawError)
	} else {
		log.Printf("Job %s: extraction failed: %v", jobID, cause)
	}

	err := p.jobRepo.MarkFailed(jobID, userMsg)
	switch {
	case errors.Is(err, repository.ErrStaleTransition):
		log.Printf("Job %s: already terminal, failure not recorded", jobID)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Printf("Job %s: no matching record while recording failure", jobID)
		return nil
	case err != nil:
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	return nil
}
