package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	nano := time.Now().UnixNano()
	email := fmt.Sprintf("test_%d@example.com", nano)
	user := &model.User{
		GithubID:  fmt.Sprintf("%d", nano),
		Username:  fmt.Sprintf("testuser_%d", nano%10000),
		Email:     &email,
		AvatarURL: "https://github.com/avatar.png",
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithGithubID 设置 GitHub ID
func WithGithubID(githubID string) func(*model.User) {
	return func(u *model.User) {
		u.GithubID = githubID
	}
}

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, status model.JobStatus, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		ID:      uuid.NewString(),
		RepoURL: "https://github.com/example/repo",
		Params: model.AnalysisParams{
			Language:     "en",
			Length:       "medium",
			Technicality: "technical",
		},
		Status: status,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithOwner 设置任务归属
func WithOwner(ownerID string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.OwnerID = &ownerID
	}
}

// WithRepoURL 设置仓库 URL
func WithRepoURL(url string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.RepoURL = url
	}
}

// WithSummary 设置摘要内容
func WithSummary(summary string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.SummaryContent = summary
	}
}
