package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/oauth"
	"github.com/AhmedAbubaker98/GitInsight/internal/pkg/response"
	"github.com/AhmedAbubaker98/GitInsight/internal/repository"
	"github.com/AhmedAbubaker98/GitInsight/internal/service"
	"github.com/AhmedAbubaker98/GitInsight/internal/testutil"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	client := setupTestRedis(t)

	userRepo := repository.NewUserRepository(db)
	stateStore := oauth.NewStateStore(client)

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:      "test-secret-key-for-testing",
			ExpireHours: 24,
		},
		OAuth: config.OAuthConfig{
			Github: config.GithubOAuthConfig{
				ClientID:     "test-client-id",
				ClientSecret: "test-client-secret",
				RedirectURI:  "http://localhost:8080/api/v1/auth/github/callback",
			},
		},
	}

	authService := service.NewAuthService(userRepo, stateStore, cfg)
	handler := NewAuthHandler(authService)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return handler, cleanup
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func TestAuthHandler_GithubAuth(t *testing.T) {
	handler, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/auth/github", handler.GithubAuth)

	w := performRequest(router, "GET", "/auth/github?redirect_uri=http%3A%2F%2Flocalhost%3A3000%2Flogin", nil)

	assert.Equal(t, http.StatusFound, w.Code)

	location := w.Header().Get("Location")
	assert.Contains(t, location, "github.com")
	assert.Contains(t, location, "client_id=test-client-id")
	assert.Contains(t, location, "state=")
}

func TestAuthHandler_GithubCallback_MissingParams(t *testing.T) {
	handler, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/auth/github/callback", handler.GithubCallback)

	t.Run("missing code", func(t *testing.T) {
		w := performRequest(router, "GET", "/auth/github/callback?state=abc", nil)
		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeParamError, resp.Code)
	})

	t.Run("missing state", func(t *testing.T) {
		w := performRequest(router, "GET", "/auth/github/callback?code=abc", nil)
		resp := parseResponse(t, w)
		assert.Equal(t, response.CodeParamError, resp.Code)
	})
}

func TestAuthHandler_GithubCallback_InvalidState(t *testing.T) {
	handler, cleanup := setupAuthHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/auth/github/callback", handler.GithubCallback)

	w := performRequest(router, "GET", "/auth/github/callback?code=abc&state=never-issued", nil)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
