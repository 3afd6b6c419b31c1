package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AhmedAbubaker98/GitInsight/internal/api/middleware"
	"github.com/AhmedAbubaker98/GitInsight/internal/model/dto"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/response"
	"github.com/AhmedAbubaker98/GitInsight/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Submit 提交仓库分析
// POST /api/v1/analyses
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req dto.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	// 游客 ownerID 为空，任务不关联历史记录
	var ownerID *string
	if userID, ok := middleware.GetUserID(c); ok {
		id := strconv.FormatInt(userID, 10)
		ownerID = &id
	}

	resp, err := h.analysisService.Submit(c.Request.Context(), ownerID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRepoURL):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "已提交分析", resp)
}

// GetStatus 轮询任务状态
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.ParamError(c, "无效的任务ID")
		return
	}

	status, err := h.analysisService.GetStatus(jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, status)
}

// History 获取历史任务列表
// GET /api/v1/history
func (h *AnalysisHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.analysisService.History(strconv.FormatInt(userID, 10))
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// HistoryDetail 获取历史任务详情
// GET /api/v1/history/:id
func (h *AnalysisHandler) HistoryDetail(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID := c.Param("id")
	if jobID == "" {
		response.ParamError(c, "无效的任务ID")
		return
	}

	detail, err := h.analysisService.HistoryDetail(strconv.FormatInt(userID, 10), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrJobPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}
