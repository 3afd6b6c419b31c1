package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/model/dto"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/queue"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
	"github.com/AhmedAbubaker98/GitInsight/internal/worker"
)

var (
	ErrJobNotFound    = errors.New("分析任务不存在")
	ErrJobPermission  = errors.New("无权访问此分析任务")
	ErrInvalidRepoURL = errors.New("无效的仓库地址")
)

// AnalysisService 提交网关与状态查询。
// 提交时先落库再入队，入队失败则删除刚创建的记录，保证不会留下
// 永远停在 queued 的孤儿任务。
type AnalysisService struct {
	jobRepo   *repository.JobRepository
	repoQueue *queue.Queue
}

func NewAnalysisService(jobRepo *repository.JobRepository, repoQueue *queue.Queue) *AnalysisService {
	return &AnalysisService{
		jobRepo:   jobRepo,
		repoQueue: repoQueue,
	}
}

// Submit 提交仓库分析任务
func (s *AnalysisService) Submit(ctx context.Context, ownerID *string, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	repoURL := strings.TrimSpace(req.RepoURL)
	// 网关与 worker 用同一套校验，避免收下注定克隆失败的地址
	if err := worker.ValidateRepoURL(repoURL); err != nil {
		return nil, ErrInvalidRepoURL
	}

	job := &model.AnalysisJob{
		OwnerID: ownerID,
		RepoURL: repoURL,
		Params:  normalizeParams(req.Params),
		Status:  model.StatusQueued,
	}

	if err := s.jobRepo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	msg := &queue.ProcessMessage{
		ID:      job.ID,
		RepoURL: job.RepoURL,
		Params:  job.Params,
	}
	if err := s.repoQueue.Push(ctx, msg); err != nil {
		// 回滚，避免孤儿任务
		if delErr := s.jobRepo.Delete(job.ID); delErr != nil {
			return nil, fmt.Errorf("failed to enqueue job %s and rollback failed: %v (enqueue error: %w)", job.ID, delErr, err)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &dto.CreateAnalysisResponse{
		ID:     job.ID,
		Status: string(job.Status),
	}, nil
}

// GetStatus 查询任务状态。任务 ID 本身即访问凭证，游客也能轮询
// 自己提交的任务。
func (s *AnalysisService) GetStatus(jobID string) (*dto.AnalysisStatusResponse, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return buildStatusResponse(job), nil
}

// History 获取当前用户的历史任务
func (s *AnalysisService) History(ownerID string) ([]*dto.HistoryItem, error) {
	jobs, err := s.jobRepo.ListByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.HistoryItem, len(jobs))
	for i, job := range jobs {
		items[i] = &dto.HistoryItem{
			ID:        job.ID,
			RepoURL:   job.RepoURL,
			Status:    string(job.Status),
			Params:    paramsMap(job.Params),
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
		}
	}
	return items, nil
}

// HistoryDetail 获取历史任务详情，校验归属
func (s *AnalysisService) HistoryDetail(ownerID, jobID string) (*dto.AnalysisStatusResponse, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if job.OwnerID == nil || *job.OwnerID != ownerID {
		return nil, ErrJobPermission
	}

	return buildStatusResponse(job), nil
}

func buildStatusResponse(job *model.AnalysisJob) *dto.AnalysisStatusResponse {
	return &dto.AnalysisStatusResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		RepoURL:        job.RepoURL,
		Params:         paramsMap(job.Params),
		SummaryContent: job.SummaryContent,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}
}

func paramsMap(p model.AnalysisParams) map[string]string {
	return map[string]string{
		"language":     p.Language,
		"length":       p.Length,
		"technicality": p.Technicality,
	}
}

func normalizeParams(req dto.AnalysisParamsRequest) model.AnalysisParams {
	p := model.AnalysisParams{
		Language:     req.Language,
		Length:       req.Length,
		Technicality: req.Technicality,
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.Length == "" {
		p.Length = "medium"
	}
	if p.Technicality == "" {
		p.Technicality = "technical"
	}
	return p
}
