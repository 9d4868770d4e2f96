package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/dto"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	rg.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.JSON(http.StatusOK, body)
	})
}

func TestRouterSetup(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RouterOption
		path    string
		status  int
		version string
	}{
		{"default version", nil, "/api/v1/ping", http.StatusOK, "v1"},
		{"custom version", []RouterOption{WithAPIVersion("v2")}, "/api/v2/ping", http.StatusOK, "v2"},
		{"wrong version", []RouterOption{WithAPIVersion("v2")}, "/api/v1/ping", http.StatusNotFound, "v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			r := NewRouter(engine, tt.opts...)
			r.Register(pingRoutes{}).Setup()
			assert.Equal(t, tt.version, r.apiVersion)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(EngineOptions{
		HTTP: config.HTTPConfig{
			MaxBodySize:      64,
			CORSAllowOrigins: []string{"https://desk.example.com"},
		},
		ServiceName: "tms",
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	NewRouter(engine).Register(pingRoutes{}).Setup()

	t.Run("chain sets request id and security headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("Origin", "https://desk.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown route uses the envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), resp.Error.RequestID)
	})

	t.Run("body limit applies", func(t *testing.T) {
		body := `{"note":"` + strings.Repeat("a", 100) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineOptions{
		HTTP:   config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}},
		Logger: zap.NewNop(),
	})
	assert.Error(t, err)
}
