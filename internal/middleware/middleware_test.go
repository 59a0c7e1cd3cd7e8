// internal/middleware/middleware_test.go
package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/utils"
)

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(I18nMiddleware("en"))
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := utils.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "roles": utils.GetRolesFromContext(c)})
	})
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newTestRouter(AuthRequired())

	assert.Equal(t, http.StatusUnauthorized, serve(r).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Bearer garbage").Code)

	token, err := utils.GenerateJWT(7, "reader@example.com", []string{"member"}, 1)
	require.NoError(t, err)

	w := serve(r, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"roles":["member"]}`, w.Body.String())
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newTestRouter(AuthRequired(), AdminRequired())

	member, err := utils.GenerateJWT(7, "reader@example.com", []string{"member"}, 1)
	require.NoError(t, err)
	admin, err := utils.GenerateJWT(1, "librarian@example.com", []string{"member", "admin"}, 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, serve(r, "Authorization", "Bearer "+member).Code)
	assert.Equal(t, http.StatusOK, serve(r, "Authorization", "Bearer "+admin).Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(rate.Limit(0.001), 2)
	defer limiter.Stop()
	r := newTestRouter(limiter.Middleware())

	assert.Equal(t, http.StatusOK, serve(r).Code)
	assert.Equal(t, http.StatusOK, serve(r).Code)

	w := serve(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(RequestID())

	w := serve(r)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	supplied := "0b0fb3a8-7c8e-4a36-9a43-b1d2d4c2f1aa"
	w = serve(r, RequestIDHeader, supplied)
	assert.Equal(t, supplied, w.Header().Get(RequestIDHeader))

	w = serve(r, RequestIDHeader, "not a uuid")
	assert.NotEqual(t, "not a uuid", w.Header().Get(RequestIDHeader))
}

func TestResolveLanguage(t *testing.T) {
	cases := map[string]string{
		"":                        "en",
		"zh-TW,zh;q=0.9,en;q=0.8": "zh_TW",
		"fr-FR,en-US;q=0.8":       "en",
		"de":                      "en",
		"ja, zh-Hant;q=0.5":       "zh_TW",
	}
	for header, expected := range cases {
		assert.Equal(t, expected, resolveLanguage(header, "en"), header)
	}
}

func TestExtractResource(t *testing.T) {
	assert.Equal(t, "borrowing-requests", extractResourceType("/v1/borrowing-requests/12/cancel"))
	assert.Equal(t, "borrowing-items", extractResourceType("/v1/admin/borrowing-items/4/return"))
	assert.Equal(t, "health", extractResourceType("/health"))

	id := extractResourceID("/v1/admin/borrowing-requests/12/approve")
	require.NotNil(t, id)
	assert.Equal(t, uint(12), *id)
	assert.Nil(t, extractResourceID("/v1/borrowing-requests/my"))
}

type auditSink struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *auditSink) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func newAuditRouter(sink *auditSink) (*gin.Engine, *bool) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	reached := new(bool)

	r := gin.New()
	r.Use(I18nMiddleware("en"), AuditLog(sink, logger))
	r.POST("/v1/auth/login", func(c *gin.Context) {
		*reached = true
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/v1/borrowing-requests", AuthRequired(), func(c *gin.Context) {
		*reached = true
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	return r, reached
}

func post(r *gin.Engine, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuditLogRecordsAuthenticatedAndSuccessfulRequests(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	sink := &auditSink{}
	r, _ := newAuditRouter(sink)

	token, err := utils.GenerateJWT(7, "reader@example.com", []string{"member"}, 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, post(r, "/v1/borrowing-requests", `{"book_ids":[1]}`, token).Code)
	assert.Equal(t, http.StatusOK, post(r, "/v1/auth/login", `{"email":"reader@example.com","password":"secret"}`, "").Code)

	require.Len(t, sink.entries, 2)
	require.NotNil(t, sink.entries[0].UserID)
	assert.Equal(t, uint(7), *sink.entries[0].UserID)
	assert.Equal(t, "POST /v1/borrowing-requests", sink.entries[0].Action)
	assert.Contains(t, sink.entries[0].NewValues, "book_ids")

	assert.Nil(t, sink.entries[1].UserID)
	assert.Contains(t, sink.entries[1].NewValues, "email")
	assert.NotContains(t, sink.entries[1].NewValues, "password")
}

func TestAuditLogSkipsRejectedAnonymousRequests(t *testing.T) {
	sink := &auditSink{}
	r, reached := newAuditRouter(sink)

	w := post(r, "/v1/borrowing-requests", `{"book_ids":[1]}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, *reached)
	assert.Empty(t, sink.entries)
}

func TestAuditLogRejectsOversizedBodies(t *testing.T) {
	sink := &auditSink{}
	r, reached := newAuditRouter(sink)

	body := `{"email":"` + strings.Repeat("a", MaxAuditedBodyBytes) + `"}`
	w := post(r, "/v1/auth/login", body, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "PAYLOAD_TOO_LARGE")
	assert.False(t, *reached)
	assert.Empty(t, sink.entries)
}
