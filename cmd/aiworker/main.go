package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/database"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/gemini"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化 Redis，AI worker 不直接写数据库
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Gemini 客户端
	client, err := gemini.NewClient(&cfg.Gemini)
	if err != nil {
		log.Fatalf("Failed to init gemini client: %v", err)
	}

	// 初始化队列
	visibility := time.Duration(cfg.Queue.VisibilitySeconds) * time.Second
	analysisQueue := queue.NewQueue(rdb, cfg.Queue.AIAnalysisQueue, visibility)
	resultQueue := queue.NewQueue(rdb, cfg.Queue.ResultQueue, visibility)

	// 创建分析器
	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
	analyzer := worker.NewAnalyzer(resultQueue, client, timeout)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("AI worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					payload, err := analysisQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop message: %v", workerID, err)
						continue
					}

					if payload == nil {
						continue
					}

					if err := analyzer.Analyze(ctx, payload); err != nil {
						log.Printf("Worker %d: analysis interrupted: %v", workerID, err)
						continue
					}

					if err := analysisQueue.Ack(ctx, payload); err != nil {
						log.Printf("Worker %d: failed to ack message: %v", workerID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("AI worker shutdown complete")
}
