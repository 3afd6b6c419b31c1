package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/response"
	"github.com/AhmedAbubaker98/GitInsight/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// GithubAuth 跳转到 GitHub 授权页
// GET /api/v1/auth/github
func (h *AuthHandler) GithubAuth(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")

	authURL, err := h.authService.GetGithubAuthURL(c.Request.Context(), redirectURI)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// GithubCallback 处理 GitHub OAuth 回调
// GET /api/v1/auth/github/callback
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.ParamError(c, "缺少 code 或 state 参数")
		return
	}

	resp, redirectURI, err := h.authService.GithubCallback(c.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOAuthState):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	// 有前端跳转地址时带 token 跳回，否则直接返回 JSON
	if redirectURI != "" {
		c.Redirect(http.StatusFound, redirectURI+"?token="+url.QueryEscape(resp.Token))
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}
