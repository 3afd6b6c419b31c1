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
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
	"github.com/AhmedAbubaker98/GitInsight/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化队列
	visibility := time.Duration(cfg.Queue.VisibilitySeconds) * time.Second
	repoQueue := queue.NewQueue(rdb, cfg.Queue.RepoProcessingQueue, visibility)
	analysisQueue := queue.NewQueue(rdb, cfg.Queue.AIAnalysisQueue, visibility)

	// 创建处理器
	jobRepo := repository.NewJobRepository(db)
	extractor := worker.NewGitExtractor(cfg.Clone)
	processor := worker.NewProcessor(jobRepo, analysisQueue, extractor)

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

	log.Printf("Repo worker started, max workers: %d", cfg.Queue.MaxWorkers)

	// 启动 worker 循环
	for i := 0; i < cfg.Queue.MaxWorkers; i++ {
		go func(workerID int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					payload, err := repoQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop message: %v", workerID, err)
						continue
					}

					if payload == nil {
						continue // 超时，继续等待
					}

					if err := processor.Process(ctx, payload); err != nil {
						// 不 Ack，等可见性超时后重投
						log.Printf("Worker %d: processing interrupted: %v", workerID, err)
						continue
					}

					if err := repoQueue.Ack(ctx, payload); err != nil {
						log.Printf("Worker %d: failed to ack message: %v", workerID, err)
					}
				}
			}
		}(i)
	}

	// 等待 context 取消
	<-ctx.Done()
	log.Println("Repo worker shutdown complete")
}
