package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guild-portal/backend/internal/auth"
	"github.com/guild-portal/backend/internal/models"
	"github.com/guild-portal/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jwtSvc *auth.JWTService) *gin.Engine {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/open", OptionalJWT(jwtSvc), func(c *gin.Context) {
		id, role, ok := CurrentAccount(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "ok": ok})
	})
	r.GET("/member", JWT(jwtSvc), func(c *gin.Context) { response.Done(c) })
	r.GET("/admin", JWT(jwtSvc), RequireRole(models.RoleAdmin), func(c *gin.Context) { response.Done(c) })
	return r
}

func do(t *testing.T, r http.Handler, path, token string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body response.Body
	if w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &body)
	}
	return w, body
}

func TestAuthGates(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	r := newRouter(jwtSvc)

	member, err := jwtSvc.Generate(uuid.New(), "m@example.org", models.RoleMember)
	require.NoError(t, err)
	admin, err := jwtSvc.Generate(uuid.New(), "a@example.org", models.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   string
	}{
		{"member route without token", "/member", "", http.StatusUnauthorized, response.CodeUnauthenticated},
		{"member route with garbage", "/member", "not-a-jwt", http.StatusUnauthorized, response.CodeUnauthenticated},
		{"member route with member", "/member", member, http.StatusOK, ""},
		{"admin route with member", "/admin", member, http.StatusForbidden, response.CodeForbidden},
		{"admin route with admin", "/admin", admin, http.StatusOK, ""},
		{"admin route anonymous", "/admin", "", http.StatusUnauthorized, response.CodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, r, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	r := newRouter(jwtSvc)

	w, _ := do(t, r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	w, _ = do(t, r, "/open", "bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	id := uuid.New()
	token, err := jwtSvc.Generate(id, "m@example.org", models.RoleMember)
	require.NoError(t, err)
	w, _ = do(t, r, "/open", token)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://portal.example.org"))
	r.GET("/x", func(c *gin.Context) { response.Done(c) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://portal.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://portal.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
