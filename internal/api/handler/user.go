package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/internal/api/middleware"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/response"
	"github.com/AhmedAbubaker98/GitInsight/internal/service"
)

type UserHandler struct {
	authService *service.AuthService
}

func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
	}
}

// Me 获取当前登录用户信息
// GET /api/v1/user/me
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "用户不存在")
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, user)
}
