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

	// 初始化结果队列
	visibility := time.Duration(cfg.Queue.VisibilitySeconds) * time.Second
	resultQueue := queue.NewQueue(rdb, cfg.Queue.ResultQueue, visibility)

	// 创建消费者。结果应用是幂等的，单实例即可，多实例也安全。
	jobRepo := repository.NewJobRepository(db)
	consumer := worker.NewResultConsumer(jobRepo)

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

	log.Println("Result consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Result consumer shutdown complete")
			return
		default:
			payload, err := resultQueue.Pop(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Failed to pop result: %v", err)
				continue
			}

			if payload == nil {
				continue
			}

			if err := consumer.Consume(payload); err != nil {
				log.Printf("Failed to apply result: %v", err)
				continue
			}

			if err := resultQueue.Ack(ctx, payload); err != nil {
				log.Printf("Failed to ack result: %v", err)
			}
		}
	}
}
