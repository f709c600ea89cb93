package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/services"
)

type fakeAuthService struct {
	services.AuthService

	rd        *requestdata.RequestData
	lastToken string
}

func (f *fakeAuthService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	f.lastToken = tokenString
	if f.rd == nil {
		return ctx, services.ErrInvalidToken
	}
	return requestdata.WithRequestData(ctx, f.rd), nil
}

func newTestRouter(t *testing.T, auth *fakeAuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	am := NewAuthMiddleware(log, auth)

	router := gin.New()
	protected := router.Group("/", am.RequireAuth())
	protected.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	protected.GET("/partner-only", am.RequirePartner(), func(c *gin.Context) { c.Status(http.StatusOK) })
	protected.GET("/staff-only", am.RequireStaff(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func get(router *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	auth := &fakeAuthService{rd: &requestdata.RequestData{UserID: uuid.New()}}
	router := newTestRouter(t, auth)

	if rec := get(router, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=401 got=%d", rec.Code)
	}
	if rec := get(router, "/me", "Bearer good-token"); rec.Code != http.StatusOK {
		t.Fatalf("valid token: want=200 got=%d", rec.Code)
	}
	if auth.lastToken != "good-token" {
		t.Fatalf("token passed to auth service: want=good-token got=%q", auth.lastToken)
	}

	auth.rd = nil
	if rec := get(router, "/me", "Bearer rejected"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("rejected token: want=401 got=%d", rec.Code)
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	auth := &fakeAuthService{rd: &requestdata.RequestData{UserID: uuid.New()}}
	router := newTestRouter(t, auth)

	if rec := get(router, "/me?token=ws-token", ""); rec.Code != http.StatusOK {
		t.Fatalf("query token: want=200 got=%d", rec.Code)
	}
	if auth.lastToken != "ws-token" {
		t.Fatalf("token passed to auth service: want=ws-token got=%q", auth.lastToken)
	}
}

func TestRequirePartner(t *testing.T) {
	auth := &fakeAuthService{rd: &requestdata.RequestData{UserID: uuid.New()}}
	router := newTestRouter(t, auth)

	// Authenticated but no partner link and not staff.
	if rec := get(router, "/partner-only", "Bearer t"); rec.Code != http.StatusForbidden {
		t.Fatalf("no partner: want=403 got=%d", rec.Code)
	}

	auth.rd.PartnerID = uuid.New()
	if rec := get(router, "/partner-only", "Bearer t"); rec.Code != http.StatusOK {
		t.Fatalf("partner user: want=200 got=%d", rec.Code)
	}

	// Staff without a partner link pass through for admin tooling.
	auth.rd.PartnerID = uuid.Nil
	auth.rd.IsStaff = true
	if rec := get(router, "/partner-only", "Bearer t"); rec.Code != http.StatusOK {
		t.Fatalf("staff user: want=200 got=%d", rec.Code)
	}
}

func TestRequireStaff(t *testing.T) {
	auth := &fakeAuthService{rd: &requestdata.RequestData{UserID: uuid.New(), PartnerID: uuid.New()}}
	router := newTestRouter(t, auth)

	if rec := get(router, "/staff-only", "Bearer t"); rec.Code != http.StatusForbidden {
		t.Fatalf("partner user: want=403 got=%d", rec.Code)
	}

	auth.rd.IsStaff = true
	if rec := get(router, "/staff-only", "Bearer t"); rec.Code != http.StatusOK {
		t.Fatalf("staff user: want=200 got=%d", rec.Code)
	}
}
