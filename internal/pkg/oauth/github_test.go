package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewGithubOAuth(t *testing.T) {
	g := NewGithubOAuth("client-id", "client-secret", "http://localhost/callback")

	assert.Equal(t, "client-id", g.config.ClientID)
	assert.Equal(t, "client-secret", g.config.ClientSecret)
	assert.Equal(t, "http://localhost/callback", g.config.RedirectURL)

	// 需要 read:user 拉取资料，user:email 拉取主邮箱
	require.Len(t, g.config.Scopes, 2)
	assert.Equal(t, "read:user", g.config.Scopes[0])
	assert.Equal(t, "user:email", g.config.Scopes[1])
}

func TestGithubOAuth_GetAuthURL(t *testing.T) {
	g := NewGithubOAuth("test-client-id", "secret", "http://example.com/callback")

	url := g.GetAuthURL("test-state")
	assert.Contains(t, url, "github.com")
	assert.Contains(t, url, "client_id=test-client-id")
	assert.Contains(t, url, "state=test-state")
	assert.Contains(t, url, "redirect_uri=")

	// state 逐请求不同
	assert.NotEqual(t, g.GetAuthURL("state-1"), g.GetAuthURL("state-2"))
}

// githubStub 指向本地假 GitHub API 的客户端
func githubStub(t *testing.T, handler http.HandlerFunc) *GithubOAuth {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewGithubOAuth("client", "secret", "http://localhost/callback")
	g.apiBase = server.URL
	return g
}

func profileHandler(user map[string]interface{}, emails []map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			json.NewEncoder(w).Encode(user)
		case "/user/emails":
			json.NewEncoder(w).Encode(emails)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestGithubOAuth_GetUser(t *testing.T) {
	ctx := context.Background()
	token := &oauth2.Token{AccessToken: "test-token"}

	t.Run("profile with public email", func(t *testing.T) {
		g := githubStub(t, profileHandler(map[string]interface{}{
			"id":         555,
			"login":      "mockuser",
			"email":      "mock@example.com",
			"avatar_url": "https://example.com/avatar.png",
		}, nil))

		user, err := g.GetUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(555), user.ID)
		assert.Equal(t, "mockuser", user.Login)
		assert.Equal(t, "mock@example.com", user.Email)
		assert.Equal(t, "https://example.com/avatar.png", user.AvatarURL)
	})

	t.Run("hidden email falls back to the primary one", func(t *testing.T) {
		g := githubStub(t, profileHandler(
			map[string]interface{}{"id": 1, "login": "private"},
			[]map[string]interface{}{
				{"email": "old@example.com", "primary": false},
				{"email": "main@example.com", "primary": true},
			}))

		user, err := g.GetUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "main@example.com", user.Email)
	})

	t.Run("no primary email uses the first one", func(t *testing.T) {
		g := githubStub(t, profileHandler(
			map[string]interface{}{"id": 2, "login": "unmarked"},
			[]map[string]interface{}{
				{"email": "first@example.com", "primary": false},
				{"email": "second@example.com", "primary": false},
			}))

		user, err := g.GetUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "first@example.com", user.Email)
	})

	t.Run("no emails at all still logs in", func(t *testing.T) {
		g := githubStub(t, profileHandler(
			map[string]interface{}{"id": 3, "login": "noemail"}, nil))

		user, err := g.GetUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "noemail", user.Login)
		assert.Empty(t, user.Email)
	})

	t.Run("api error surfaces", func(t *testing.T) {
		g := githubStub(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
		})

		_, err := g.GetUser(ctx, token)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Bad credentials")
	})
}
