package ginmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func newAuthedRouter(adminOnly bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", Auth(testSecret))
	if adminOnly {
		group.Use(AdminOnly())
	}
	group.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func authedRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken(t *testing.T) {
	token, err := NewToken(testSecret, "u1", "customer", time.Hour)
	require.NoError(t, err)

	w := authedRequest(newAuthedRouter(false), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
}

func TestAuth_MissingOrBadToken(t *testing.T) {
	r := newAuthedRouter(false)

	assert.Equal(t, http.StatusUnauthorized, authedRequest(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, authedRequest(r, "garbage").Code)

	wrongKey, err := NewToken([]byte("other-secret"), "u1", "customer", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, authedRequest(r, wrongKey).Code)

	expired, err := NewToken(testSecret, "u1", "customer", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, authedRequest(r, expired).Code)
}

func TestAdminOnly(t *testing.T) {
	r := newAuthedRouter(true)

	admin, err := NewToken(testSecret, "u1", RoleAdmin, time.Hour)
	require.NoError(t, err)
	customer, err := NewToken(testSecret, "u2", "customer", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, authedRequest(r, admin).Code)
	assert.Equal(t, http.StatusForbidden, authedRequest(r, customer).Code)
}
