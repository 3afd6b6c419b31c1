package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus 任务状态机状态
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusAnalyzing  JobStatus = "analyzing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal 终态任务不再接受任何状态变更
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid 校验状态字符串是否合法
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// AnalysisParams 摘要生成参数，创建后不可变
type AnalysisParams struct {
	Language     string `json:"language"`
	Length       string `json:"length"`
	Technicality string `json:"technicality"`
}

func (p AnalysisParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *AnalysisParams) Scan(value interface{}) error {
	if value == nil {
		*p = AnalysisParams{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return errors.New("unsupported type for AnalysisParams")
}

// AnalysisJob 一次仓库分析任务，ID 是所有队列消息的关联键
type AnalysisJob struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	OwnerID        *string        `gorm:"size:50;index" json:"-"` // GitHub 用户 ID，游客为空
	RepoURL        string         `gorm:"size:500;not null" json:"repo_url"`
	Params         AnalysisParams `gorm:"type:json" json:"params"`
	Status         JobStatus      `gorm:"size:20;default:queued;index" json:"status"`
	SummaryContent string         `gorm:"type:text" json:"summary_content,omitempty"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}
