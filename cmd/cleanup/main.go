package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/database"
	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
)

// worker 崩溃会漏删克隆目录，超过这个年龄的一律清掉
const staleCloneDirAge = time.Hour

// 维护进程：周期性把超过可见性截止时间仍未确认的消息放回队列，
// 并给长时间卡在非终态的任务兜底收尾。重投加上兜底超时一起构成
// 重复投递的上界：任务最终要么完成要么失败，不会无限重投。
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	visibility := time.Duration(cfg.Queue.VisibilitySeconds) * time.Second
	queues := []*queue.Queue{
		queue.NewQueue(rdb, cfg.Queue.RepoProcessingQueue, visibility),
		queue.NewQueue(rdb, cfg.Queue.AIAnalysisQueue, visibility),
		queue.NewQueue(rdb, cfg.Queue.ResultQueue, visibility),
	}

	jobRepo := repository.NewJobRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	interval := time.Duration(cfg.Cleanup.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Cleanup started, interval: %v, max job age: %dh",
		interval, cfg.Cleanup.MaxJobAgeHours)

	for {
		select {
		case <-ctx.Done():
			log.Println("Cleanup shutdown complete")
			return
		case <-ticker.C:
			requeueExpired(ctx, queues, int64(cfg.Cleanup.RequeueBatchSize))
			reapStuckJobs(db, jobRepo, cfg.Cleanup.MaxJobAgeHours)
			sweepStaleCloneDirs(cfg.Clone.TempDir)
		}
	}
}

// requeueExpired 处理所有队列里超时未确认的消息
func requeueExpired(ctx context.Context, queues []*queue.Queue, batch int64) {
	now := time.Now()
	for _, q := range queues {
		n, err := q.RequeueExpired(ctx, now, batch)
		if err != nil {
			log.Printf("Failed to requeue expired messages: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("Requeued %d expired messages", n)
		}
	}
}

// reapStuckJobs 给超龄的非终态任务收尾。消息可能已经彻底丢失
// （比如被判定为畸形后丢弃），没有这一步这些任务会永远停在中间状态。
func reapStuckJobs(db *gorm.DB, jobRepo *repository.JobRepository, maxAgeHours int) {
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	var jobs []model.AnalysisJob
	err := db.Where("status NOT IN ? AND created_at < ?",
		[]model.JobStatus{model.StatusCompleted, model.StatusFailed}, cutoff).
		Find(&jobs).Error
	if err != nil {
		log.Printf("Failed to query stuck jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if err := jobRepo.MarkFailed(job.ID, "任务处理超时，请重新提交"); err != nil {
			log.Printf("Job %s: failed to reap: %v", job.ID, err)
			continue
		}
		log.Printf("Job %s: reaped after %dh stuck in %s", job.ID, maxAgeHours, job.Status)
	}
}

// sweepStaleCloneDirs 清理 worker 崩溃后残留的克隆临时目录
func sweepStaleCloneDirs(baseDir string) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		log.Printf("Failed to read clone temp dir %s: %v", baseDir, err)
		return
	}

	cleaned := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "gitinsight_") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= staleCloneDirAge {
			continue
		}

		dirPath := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			log.Printf("Failed to remove stale clone dir %s: %v", dirPath, err)
			continue
		}
		cleaned++
	}
	if cleaned > 0 {
		log.Printf("Removed %d stale clone dirs", cleaned)
	}
}
