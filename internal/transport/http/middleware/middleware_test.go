package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sam-assistant/internal/pkg/jwtutil"
)

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/admin", AuthJWT("secret"), func(c *gin.Context) {
		id, ok := OperatorID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	return r
}

func TestAuthJWT(t *testing.T) {
	valid, err := jwtutil.GenerateToken("secret", time.Hour, 9, "ops")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	router := newProtectedRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error"`)
			} else {
				assert.JSONEq(t, `{"id":9}`, rec.Body.String())
			}
		})
	}
}
