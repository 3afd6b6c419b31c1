package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBase = "https://api.github.com"

// GithubUser GitHub 用户资料，只保留登录关联需要的字段
type GithubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type GithubOAuth struct {
	config  *oauth2.Config
	apiBase string
}

func NewGithubOAuth(clientID, clientSecret, redirectURI string) *GithubOAuth {
	return &GithubOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			// read:user 拉取资料，user:email 拉取主邮箱
			Scopes:   []string{"read:user", "user:email"},
			Endpoint: github.Endpoint,
		},
		apiBase: githubAPIBase,
	}
}

// GetAuthURL 获取 GitHub 授权 URL
func (g *GithubOAuth) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange 用授权码换取 access token
func (g *GithubOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(ctx, code)
}

// GetUser 获取 GitHub 用户资料。公开邮箱可能为空，这时再查一次主邮箱；
// 邮箱查不到不阻塞登录。
func (g *GithubOAuth) GetUser(ctx context.Context, token *oauth2.Token) (*GithubUser, error) {
	client := g.config.Client(ctx, token)

	var user GithubUser
	if err := g.getJSON(client, "/user", &user); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	if user.Email == "" {
		user.Email = g.primaryEmail(client)
	}

	return &user, nil
}

// primaryEmail 返回主邮箱，没有标记主邮箱时退回第一个，失败返回空串
func (g *GithubOAuth) primaryEmail(client *http.Client) string {
	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := g.getJSON(client, "/user/emails", &emails); err != nil || len(emails) == 0 {
		return ""
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email
		}
	}
	return emails[0].Email
}

func (g *GithubOAuth) getJSON(client *http.Client, path string, v interface{}) error {
	resp, err := client.Get(g.apiBase + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github api %s: %s", path, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
