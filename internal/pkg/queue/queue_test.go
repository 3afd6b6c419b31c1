package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testParams() model.AnalysisParams {
	return model.AnalysisParams{
		Language:     "en",
		Length:       "medium",
		Technicality: "technical",
	}
}

func TestNewQueue(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)

	assert.NotNil(t, q)
	assert.Equal(t, "test_queue", q.queueName)
	assert.Equal(t, time.Minute, q.visibility)
}

func TestQueue_PushPop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)
	ctx := context.Background()

	t.Run("push then pop returns same message", func(t *testing.T) {
		msg := &ProcessMessage{
			ID:      "job-1",
			RepoURL: "https://github.com/user/repo",
			Params:  testParams(),
		}
		require.NoError(t, q.Push(ctx, msg))

		payload, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, payload)

		decoded, err := DecodeProcessMessage(payload)
		require.NoError(t, err)
		assert.Equal(t, "job-1", decoded.ID)
		assert.Equal(t, "https://github.com/user/repo", decoded.RepoURL)
		assert.Equal(t, "en", decoded.Params.Language)
	})

	t.Run("fifo order", func(t *testing.T) {
		q2 := NewQueue(client, "fifo_queue", time.Minute)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, q2.Push(ctx, &ProcessMessage{ID: id, RepoURL: "https://example.com/r"}))
		}

		for _, want := range []string{"a", "b", "c"} {
			payload, err := q2.Pop(ctx, time.Second)
			require.NoError(t, err)
			msg, err := DecodeProcessMessage(payload)
			require.NoError(t, err)
			assert.Equal(t, want, msg.ID)
		}
	})
}

func TestQueue_PopMovesToProcessing(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &ProcessMessage{ID: "job-1", RepoURL: "https://example.com/r"}))

	payload, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)

	// 主队列空了，消息在 processing list 和 pending zset 里
	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	processing, err := client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)

	pending, err := client.ZCard(ctx, q.pendingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	// Ack 后全部清空
	require.NoError(t, q.Ack(ctx, payload))

	processing, _ = client.LLen(ctx, q.processingKey()).Result()
	assert.Equal(t, int64(0), processing)
	pending, _ = client.ZCard(ctx, q.pendingKey()).Result()
	assert.Equal(t, int64(0), pending)
}

func TestQueue_RequeueExpired(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &ProcessMessage{ID: "job-1", RepoURL: "https://example.com/r"}))

	payload, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, payload)

	t.Run("before deadline nothing is requeued", func(t *testing.T) {
		n, err := q.RequeueExpired(ctx, time.Now(), 100)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("after deadline message goes back to the main queue", func(t *testing.T) {
		n, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 100)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)

		// 重投后可以再次消费到同一条消息
		redelivered, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		msg, err := DecodeProcessMessage(redelivered)
		require.NoError(t, err)
		assert.Equal(t, "job-1", msg.ID)
	})
}

func TestQueue_OrphanedProcessingEntryIsRequeued(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &ProcessMessage{ID: "job-1", RepoURL: "https://example.com/r"}))

	// 消费者在消息搬进 processing list 之后、登记截止时间之前崩溃：
	// pending zset 里没有这条消息的任何记录
	moved, err := client.BRPopLPush(ctx, q.queueName, q.processingKey(), time.Second).Result()
	require.NoError(t, err)
	require.NotEmpty(t, moved)

	pending, err := client.ZCard(ctx, q.pendingKey()).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)

	// 即便还没到任何截止时间，孤儿消息也会被回收重投
	n, err := q.RequeueExpired(ctx, time.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	processing, err := client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)

	payload, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	msg, err := DecodeProcessMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.ID)
}

func TestQueue_AckedMessageIsNotRedelivered(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue", time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &ProcessMessage{ID: "job-1", RepoURL: "https://example.com/r"}))

	payload, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, payload))

	n, err := q.RequeueExpired(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDecodeProcessMessage(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		data, _ := json.Marshal(&ProcessMessage{ID: "job-1", RepoURL: "https://example.com/r"})
		msg, err := DecodeProcessMessage(data)
		require.NoError(t, err)
		assert.Equal(t, "job-1", msg.ID)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeProcessMessage([]byte("not json"))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := DecodeProcessMessage([]byte(`{"repo_url":"https://example.com/r"}`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}

func TestDecodeAnalyzeMessage(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		data, _ := json.Marshal(&AnalyzeMessage{ID: "job-1", ExtractedContent: "content"})
		msg, err := DecodeAnalyzeMessage(data)
		require.NoError(t, err)
		assert.Equal(t, "content", msg.ExtractedContent)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := DecodeAnalyzeMessage([]byte(`{"extracted_content":"x"}`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}

func TestDecodeResultMessage(t *testing.T) {
	t.Run("valid completed result", func(t *testing.T) {
		data, _ := json.Marshal(&ResultMessage{
			ID:             "job-1",
			Status:         model.StatusCompleted,
			SummaryContent: "<p>summary</p>",
		})
		msg, err := DecodeResultMessage(data)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, msg.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := DecodeResultMessage([]byte(`{"id":"job-1","status":"bogus"}`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := DecodeResultMessage([]byte(`{"status":"completed"}`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})
}
