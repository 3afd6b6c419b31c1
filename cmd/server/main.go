package main

import (
	"fmt"
	"log"
	"time"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/api"
	"github.com/AhmedAbubaker98/GitInsight/internal/api/handler"
	"github.com/AhmedAbubaker98/GitInsight/internal/database"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/oauth"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
	"github.com/AhmedAbubaker98/GitInsight/internal/service"
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

	// 初始化 stage-1 队列
	visibility := time.Duration(cfg.Queue.VisibilitySeconds) * time.Second
	repoQueue := queue.NewQueue(rdb, cfg.Queue.RepoProcessingQueue, visibility)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// 初始化 Service
	stateStore := oauth.NewStateStore(rdb)
	authService := service.NewAuthService(userRepo, stateStore, cfg)
	analysisService := service.NewAnalysisService(jobRepo, repoQueue)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	userHandler := handler.NewUserHandler(authService)

	// 初始化 Router
	router := api.NewRouter(authHandler, analysisHandler, userHandler, cfg)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
