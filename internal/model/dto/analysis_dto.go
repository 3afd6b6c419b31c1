package dto

// AnalysisParamsRequest 摘要生成参数
type AnalysisParamsRequest struct {
	Language     string `json:"language" binding:"omitempty,oneof=en ar de es fr zh"`
	Length       string `json:"length" binding:"omitempty,oneof=small medium large"`
	Technicality string `json:"technicality" binding:"omitempty,oneof=non-technical technical expert"`
}

// CreateAnalysisRequest 提交仓库分析请求
type CreateAnalysisRequest struct {
	RepoURL string                `json:"repository_reference" binding:"required,max=500"`
	Params  AnalysisParamsRequest `json:"parameters"`
}

// CreateAnalysisResponse 提交仓库分析响应
type CreateAnalysisResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AnalysisStatusResponse 任务状态快照
type AnalysisStatusResponse struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	RepoURL        string            `json:"repository_reference"`
	Params         map[string]string `json:"parameters"`
	SummaryContent string            `json:"summary_content,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

// HistoryItem 历史记录列表项
type HistoryItem struct {
	ID        string            `json:"id"`
	RepoURL   string            `json:"repository_reference"`
	Status    string            `json:"status"`
	Params    map[string]string `json:"parameters"`
	CreatedAt string            `json:"created_at"`
}
