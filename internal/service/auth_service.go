package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/model"
	"github.com/AhmedAbubaker98/GitInsight/internal/model/dto"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/jwt"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/oauth"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
)

var ErrInvalidOAuthState = errors.New("无效或已过期的 state 参数")

// AuthService GitHub OAuth 登录。登录不是使用前提，游客可以直接
// 提交分析，登录只用于关联历史记录。
type AuthService struct {
	userRepo    *repository.UserRepository
	stateStore  *oauth.StateStore
	githubOAuth *oauth.GithubOAuth
	cfg         *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, stateStore *oauth.StateStore, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		stateStore: stateStore,
		githubOAuth: oauth.NewGithubOAuth(
			cfg.OAuth.Github.ClientID,
			cfg.OAuth.Github.ClientSecret,
			cfg.OAuth.Github.RedirectURI,
		),
		cfg: cfg,
	}
}

// GetGithubAuthURL 生成 GitHub 授权 URL，state 存入 Redis 防 CSRF
func (s *AuthService) GetGithubAuthURL(ctx context.Context, redirectURI string) (string, error) {
	state, err := s.stateStore.GenerateState(ctx, redirectURI)
	if err != nil {
		return "", err
	}
	return s.githubOAuth.GetAuthURL(state), nil
}

// GithubCallback 处理 GitHub OAuth 回调。按 GitHub ID 创建或更新
// 本地用户，返回 JWT 和登录前记录的跳转地址。
func (s *AuthService) GithubCallback(ctx context.Context, code, state string) (*dto.LoginResponse, string, error) {
	redirectURI, err := s.stateStore.ValidateState(ctx, state)
	if err != nil {
		return nil, "", ErrInvalidOAuthState
	}

	token, err := s.githubOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange code: %w", err)
	}

	githubUser, err := s.githubOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get github user: %w", err)
	}

	githubIDStr := fmt.Sprintf("%d", githubUser.ID)

	user, err := s.userRepo.GetByGithubID(githubIDStr)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}

	if user == nil {
		user = &model.User{
			GithubID:  githubIDStr,
			Username:  githubUser.Login,
			AvatarURL: githubUser.AvatarURL,
		}
		if githubUser.Email != "" {
			user.Email = &githubUser.Email
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, "", fmt.Errorf("failed to create user: %w", err)
		}
	} else {
		// 每次登录同步 GitHub 侧的资料变更
		user.Username = githubUser.Login
		user.AvatarURL = githubUser.AvatarURL
		if githubUser.Email != "" {
			user.Email = &githubUser.Email
		}
		if err := s.userRepo.Update(user); err != nil {
			return nil, "", err
		}
	}

	jwtToken, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, "", err
	}

	resp := &dto.LoginResponse{
		Token: jwtToken,
		User:  buildUserInfo(user),
	}
	return resp, redirectURI, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	return s.userRepo.GetByID(id)
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
	}
	if user.Email != nil {
		info.Email = *user.Email
	}
	return info
}
