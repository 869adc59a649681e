package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/telecoop/backoffice/internal/auth/domain"
	"github.com/telecoop/backoffice/internal/auth/session"
	"github.com/telecoop/backoffice/internal/config"
)

type fakeAuthService struct {
	sendOTPCalls int
	lastSendOTP  authdomain.SendOTPRequest
	sendOTPErr   error

	verifyCalls int
	lastVerify  authdomain.VerifyOTPRequest
	verifyErr   error

	authCalls int
	lastToken string
	authErr   error
	session   *authdomain.Session
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	_ = ctx
	_ = req
	return nil, nil
}

func (f *fakeAuthService) SendOTP(ctx context.Context, req authdomain.SendOTPRequest) error {
	_ = ctx
	f.sendOTPCalls++
	f.lastSendOTP = req
	return f.sendOTPErr
}

func (f *fakeAuthService) VerifyOTP(ctx context.Context, req authdomain.VerifyOTPRequest) (*authdomain.LoginResult, error) {
	_ = ctx
	f.verifyCalls++
	f.lastVerify = req
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &authdomain.LoginResult{
		Session:   &authdomain.SessionView{Metadata: map[string]any{"email": req.Email}},
		RawToken:  "raw-session-token",
		ExpiresAt: time.Now().Add(12 * time.Hour),
	}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	_ = ctx
	f.lastToken = rawToken
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	_ = ctx
	f.authCalls++
	f.lastToken = rawToken
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.session, nil
}

func (f *fakeAuthService) UserByID(ctx context.Context, id snowflake.ID) (*authdomain.User, error) {
	_ = ctx
	_ = id
	return nil, authdomain.ErrUserNotFound
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, userID string, newPassword string) error {
	_ = ctx
	_ = userID
	_ = newPassword
	return nil
}

func newAuthTestServer(svc *fakeAuthService) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	srv := &Server{
		authsvc:  svc,
		sessions: session.NewManager(config.Config{}),
	}
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	return srv, router
}

func TestSendOTPTrimsEmail(t *testing.T) {
	svc := &fakeAuthService{}
	srv, router := newAuthTestServer(svc)
	router.POST("/internal/auth/send-otp", srv.SendOTP)

	body := `{"email":"  admin@telecoop.test  ","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/auth/send-otp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.sendOTPCalls != 1 {
		t.Fatalf("expected 1 SendOTP call, got %d", svc.sendOTPCalls)
	}
	if svc.lastSendOTP.Email != "admin@telecoop.test" {
		t.Fatalf("expected trimmed email, got %q", svc.lastSendOTP.Email)
	}
}

func TestSendOTPRejectsBadCredentials(t *testing.T) {
	svc := &fakeAuthService{sendOTPErr: authdomain.ErrInvalidCredentials}
	srv, router := newAuthTestServer(svc)
	router.POST("/internal/auth/send-otp", srv.SendOTP)

	body := `{"email":"admin@telecoop.test","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/auth/send-otp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestVerifyOTPSetsSessionCookie(t *testing.T) {
	svc := &fakeAuthService{}
	srv, router := newAuthTestServer(svc)
	router.POST("/internal/auth/verify-otp", srv.VerifyOTP)

	body := `{"email":"admin@telecoop.test","code":" 123456 "}`
	req := httptest.NewRequest(http.MethodPost, "/internal/auth/verify-otp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastVerify.Code != "123456" {
		t.Fatalf("expected trimmed code, got %q", svc.lastVerify.Code)
	}

	cookie := resp.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, session.DefaultCookieName+"=raw-session-token") {
		t.Fatalf("expected session cookie in response, got %q", cookie)
	}
	if !strings.Contains(cookie, "HttpOnly") {
		t.Fatalf("expected HttpOnly cookie, got %q", cookie)
	}
}

func TestVerifyOTPExpiredCodeReturnsUnauthorized(t *testing.T) {
	svc := &fakeAuthService{verifyErr: authdomain.ErrOTPExpired}
	srv, router := newAuthTestServer(svc)
	router.POST("/internal/auth/verify-otp", srv.VerifyOTP)

	body := `{"email":"admin@telecoop.test","code":"000000"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/auth/verify-otp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if resp.Header().Get("Set-Cookie") != "" {
		t.Fatal("expected no cookie on failed verification")
	}
}

func TestAuthRequiredRejectsMissingCookie(t *testing.T) {
	svc := &fakeAuthService{}
	srv, router := newAuthTestServer(svc)
	router.GET("/api/protected", srv.AuthRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if svc.authCalls != 0 {
		t.Fatal("expected the auth service not to be called without a cookie")
	}
}

func TestAuthRequiredForwardsUserID(t *testing.T) {
	userID := snowflake.ID(987654321)
	svc := &fakeAuthService{session: &authdomain.Session{ID: 1, UserID: userID}}
	srv, router := newAuthTestServer(svc)

	var seenUserID string
	router.GET("/api/protected", srv.AuthRequired(), func(c *gin.Context) {
		seenUserID = c.GetString(contextUserIDKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "raw-session-token"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastToken != "raw-session-token" {
		t.Fatalf("expected raw token forwarded, got %q", svc.lastToken)
	}
	if seenUserID != userID.String() {
		t.Fatalf("expected user id %s in request context, got %q", userID, seenUserID)
	}
}

func TestAuthRequiredRejectsExpiredSession(t *testing.T) {
	svc := &fakeAuthService{authErr: authdomain.ErrSessionExpired}
	srv, router := newAuthTestServer(svc)
	router.GET("/api/protected", srv.AuthRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "stale-token"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}
