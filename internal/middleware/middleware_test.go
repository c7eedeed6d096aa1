package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"kalyekart-order-service/internal/service"
)

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateToken(ctx context.Context, token string) (*service.AuthUser, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthUser), args.Error(1)
}

func newRouter(v TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", AuthMiddleware(v))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString(CtxUserID), "admin": c.GetBool(CtxIsAdmin)})
	})
	authed.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	v := new(MockValidator)
	v.On("ValidateToken", mock.Anything, "good").Return(&service.AuthUser{ID: "u1", Enabled: true}, nil)
	v.On("ValidateToken", mock.Anything, "admin").Return(&service.AuthUser{ID: "a1", Permissions: []string{"admin"}, Enabled: true}, nil)
	v.On("ValidateToken", mock.Anything, "bad").Return(nil, service.ErrInvalidToken)
	r := newRouter(v)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer bad").Code)

	w := do(r, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","admin":false}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer good").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", "Bearer admin").Code)
}
