package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
)

// ErrStaleTransition 任务当前状态不允许本次变更（已终态或已推进到
// 更后面的阶段），本次变更被丢弃
var ErrStaleTransition = errors.New("stale job status transition")

// transitionGuards 每个推进目标允许的当前状态。状态机只进不退：
// 重复投递可以原地重放同一状态，但不能把任务拉回上一阶段。
var transitionGuards = map[model.JobStatus][]model.JobStatus{
	model.StatusProcessing: {model.StatusQueued, model.StatusProcessing},
	model.StatusAnalyzing:  {model.StatusProcessing, model.StatusAnalyzing},
}

// 终态写入允许的当前状态
var activeStatuses = []model.JobStatus{
	model.StatusQueued,
	model.StatusProcessing,
	model.StatusAnalyzing,
}

// JobRepository 任务状态存储，是整个流水线唯一的共享可变状态。
// 所有状态变更都是把守卫条件写进 WHERE 的单条 UPDATE，并发读取只会
// 看到变更前或变更后的完整记录。
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create 创建任务记录，生成全局唯一 ID 并置为 queued
func (r *JobRepository) Create(job *model.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.StatusQueued
	}
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id string) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Delete 删除任务记录。仅供网关在入队失败时回滚，保证不会留下
// 永远无人处理的孤儿任务。
func (r *JobRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.AnalysisJob{}).Error
}

// ListByOwner 获取用户的历史任务，按创建时间倒序，最多 50 条
func (r *JobRepository) ListByOwner(ownerID string) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(50).
		Find(&jobs).Error
	return jobs, err
}

// TransitionStatus 推进任务到下一个非终态状态。
// 守卫条件写在 WHERE 里，因此检查与更新是同一条原子语句：任务当前
// 状态不在允许的前驱里（已终态或已推进）返回 ErrStaleTransition，
// 任务不存在返回 gorm.ErrRecordNotFound。
func (r *JobRepository) TransitionStatus(id string, status model.JobStatus) error {
	allowed, ok := transitionGuards[status]
	if !ok {
		return fmt.Errorf("status %s is not a valid transition target", status)
	}
	return r.guardedUpdate(id, allowed, map[string]interface{}{
		"status": status,
	})
}

// MarkCompleted 终态：写入摘要内容
func (r *JobRepository) MarkCompleted(id string, summary string) error {
	return r.guardedUpdate(id, activeStatuses, map[string]interface{}{
		"status":          model.StatusCompleted,
		"summary_content": summary,
	})
}

// MarkFailed 终态：写入错误信息
func (r *JobRepository) MarkFailed(id string, errMsg string) error {
	return r.guardedUpdate(id, activeStatuses, map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": errMsg,
	})
}

func (r *JobRepository) guardedUpdate(id string, allowed []model.JobStatus, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	res := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 没有命中行：区分任务不存在和守卫条件不满足
	var count int64
	if err := r.db.Model(&model.AnalysisJob{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleTransition
}
