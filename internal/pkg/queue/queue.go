package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
)

// ErrMalformedMessage 消息缺少可解析的任务 ID，只记日志后丢弃，
// 不会作用到任何任务上
var ErrMalformedMessage = errors.New("malformed queue message")

// ProcessMessage stage-1 消息：待克隆解析的仓库
type ProcessMessage struct {
	ID      string               `json:"id"`
	RepoURL string               `json:"repo_url"`
	Params  model.AnalysisParams `json:"params"`
}

// AnalyzeMessage stage-2 消息：已抽取的仓库文本
type AnalyzeMessage struct {
	ID               string               `json:"id"`
	ExtractedContent string               `json:"extracted_content"`
	Params           model.AnalysisParams `json:"params"`
}

// ResultMessage 结果消息：analyzing 进度或 completed/failed 终态
type ResultMessage struct {
	ID             string          `json:"id"`
	Status         model.JobStatus `json:"status"`
	SummaryContent string          `json:"summary_content,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// Queue 基于 Redis list 的至少一次投递队列。
// Pop 把消息原子地搬到 processing list 并登记可见性截止时间；消费者
// 处理完必须 Ack，超过截止时间未 Ack 的消息由 RequeueExpired 重新投递。
type Queue struct {
	client     *redis.Client
	queueName  string
	visibility time.Duration
}

func NewQueue(client *redis.Client, queueName string, visibility time.Duration) *Queue {
	if visibility <= 0 {
		visibility = 10 * time.Minute
	}
	return &Queue{
		client:     client,
		queueName:  queueName,
		visibility: visibility,
	}
}

func (q *Queue) processingKey() string {
	return q.queueName + ":processing"
}

func (q *Queue) pendingKey() string {
	return q.queueName + ":pending"
}

// Push 将消息加入队列
func (q *Queue) Push(ctx context.Context, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取一条消息（阻塞）。消息同时被搬入 processing list，
// 截止时间记录在 pending zset 里。超时无消息返回 (nil, nil)。
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	payload, err := q.client.BRPopLPush(ctx, q.queueName, q.processingKey(), timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无任务
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	deadline := time.Now().Add(q.visibility)
	if err := q.client.ZAdd(ctx, q.pendingKey(), &redis.Z{
		Score:  float64(deadline.Unix()),
		Member: payload,
	}).Err(); err != nil {
		return nil, fmt.Errorf("failed to record pending deadline: %w", err)
	}

	return []byte(payload), nil
}

// Ack 确认消息已处理完成，从 processing list 和 pending zset 移除
func (q *Queue) Ack(ctx context.Context, payload []byte) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, payload)
	pipe.ZRem(ctx, q.pendingKey(), payload)
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired 把超过可见性截止时间仍未 Ack 的消息放回主队列，
// 并回收 processing list 里没有截止时间记录的孤儿消息。
// 消费者对重复投递是幂等的，所以宁可重投也不丢消息。
func (q *Queue) RequeueExpired(ctx context.Context, now time.Time, batch int64) (int, error) {
	expired, err := q.requeueExpiredPending(ctx, now, batch)
	if err != nil {
		return expired, err
	}

	orphans, err := q.requeueOrphans(ctx, batch)
	return expired + orphans, err
}

func (q *Queue) requeueExpiredPending(ctx context.Context, now time.Time, batch int64) (int, error) {
	payloads, err := q.client.ZRangeByScore(ctx, q.pendingKey(), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.Unix()),
		Offset: 0,
		Count:  batch,
	}).Result()
	if err != nil || len(payloads) == 0 {
		return 0, err
	}

	pipe := q.client.TxPipeline()
	for _, payload := range payloads {
		pipe.LPush(ctx, q.queueName, payload)
		pipe.LRem(ctx, q.processingKey(), 1, payload)
		pipe.ZRem(ctx, q.pendingKey(), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return len(payloads), nil
}

// requeueOrphans 回收搬进 processing list 后没来得及登记截止时间的
// 消息（消费者在 Pop 的两步之间崩溃会留下这种条目），否则它们永远
// 不会被重投。刚被 Pop 还未登记的在途消息也可能被误判重投一次，
// 消费端幂等，重复无害。
func (q *Queue) requeueOrphans(ctx context.Context, batch int64) (int, error) {
	payloads, err := q.client.LRange(ctx, q.processingKey(), 0, batch-1).Result()
	if err != nil || len(payloads) == 0 {
		return 0, err
	}

	moved := 0
	for _, payload := range payloads {
		err := q.client.ZScore(ctx, q.pendingKey(), payload).Err()
		if err == nil {
			continue // 截止时间还在，属于正常在途消息
		}
		if err != redis.Nil {
			return moved, err
		}

		pipe := q.client.TxPipeline()
		pipe.LPush(ctx, q.queueName, payload)
		pipe.LRem(ctx, q.processingKey(), 1, payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return moved, err
		}
		moved++
	}

	return moved, nil
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}

// DecodeProcessMessage 解析 stage-1 消息
func DecodeProcessMessage(data []byte) (*ProcessMessage, error) {
	var msg ProcessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return nil, ErrMalformedMessage
	}
	return &msg, nil
}

// DecodeAnalyzeMessage 解析 stage-2 消息
func DecodeAnalyzeMessage(data []byte) (*AnalyzeMessage, error) {
	var msg AnalyzeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return nil, ErrMalformedMessage
	}
	return &msg, nil
}

// DecodeResultMessage 解析结果消息
func DecodeResultMessage(data []byte) (*ResultMessage, error) {
	var msg ResultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.ID == "" || !msg.Status.Valid() {
		return nil, ErrMalformedMessage
	}
	return &msg, nil
}
