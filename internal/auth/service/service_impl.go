package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/telecoop/backoffice/internal/auth/domain"
	"github.com/telecoop/backoffice/internal/auth/password"
	"github.com/telecoop/backoffice/internal/clock"
	"github.com/telecoop/backoffice/internal/observability/metrics"
	"github.com/telecoop/backoffice/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	otpLength = 6
	otpTTL    = 5 * time.Minute

	minPasswordLength = 8
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	OTPRepo     domain.OTPRepository
	SessionRepo domain.SessionRepository
	Email       email.Provider
	Metrics     *metrics.Metrics
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	otpRepo     domain.OTPRepository
	sessionRepo domain.SessionRepository
	email       email.Provider
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		otpRepo:     p.OTPRepo,
		sessionRepo: p.SessionRepo,
		email:       p.Email,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindOne(ctx, domain.User{Email: addr}); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = domain.RoleOperator
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(addr)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:                  s.genID.Generate(),
		Email:               addr,
		DisplayName:         displayName,
		PasswordHash:        &hashed,
		Role:                role,
		IsDefault:           false,
		LastPasswordChanged: &now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) SendOTP(ctx context.Context, req domain.SendOTPRequest) error {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindOne(ctx, domain.User{Email: addr})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Same error whether the email or the password is wrong.
			return domain.ErrInvalidCredentials
		}
		return err
	}

	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if user.Role != domain.RoleAdmin {
		return domain.ErrNotAllowed
	}

	if err := s.otpRepo.DeleteForEmail(ctx, addr); err != nil {
		return err
	}

	code, err := newOTPCode()
	if err != nil {
		return err
	}
	codeHash, err := password.Hash(code)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	otp := &domain.EmailOTP{
		ID:        s.genID.Generate(),
		Email:     addr,
		OTPHash:   codeHash,
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}
	if err := s.otpRepo.CreateOTP(ctx, otp); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"<h2>Your Telecoop OTP</h2><h1>%s</h1><p>Expires in 5 minutes</p><p>If you did not request this, please ignore.</p>",
		code,
	)
	if err := s.email.Send(ctx, []string{addr}, "Your Telecoop OTP Code", body); err != nil {
		return err
	}

	s.metrics.RecordOTPIssued(ctx)
	s.log.Info("auth.otp.sent", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *Service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.LoginResult, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrOTPExpired
	}
	code := strings.TrimSpace(req.Code)
	if len(code) != otpLength {
		s.metrics.RecordOTPVerified(ctx, "invalid")
		return nil, domain.ErrOTPExpired
	}

	now := s.clock.Now()
	record, err := s.otpRepo.LatestActive(ctx, addr, now)
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.metrics.RecordOTPVerified(ctx, "expired")
		return nil, domain.ErrOTPExpired
	}

	if !password.Verify(code, record.OTPHash) {
		s.metrics.RecordOTPVerified(ctx, "invalid")
		return nil, domain.ErrOTPExpired
	}

	if err := s.otpRepo.DeleteOTP(ctx, record.ID); err != nil {
		return nil, err
	}

	user, err := s.repo.FindOne(ctx, domain.User{Email: addr})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.metrics.RecordOTPVerified(ctx, "ok")
	s.log.Info("auth.login", zap.String("user_id", user.ID.String()))

	return &domain.LoginResult{
		Session: &domain.SessionView{
			Metadata: map[string]any{
				"user_id":      user.ID.String(),
				"display_name": user.DisplayName,
				"email":        user.Email,
				"role":         string(user.Role),
				"is_default":   user.IsDefault,
			},
		},
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Service) UserByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, userID string, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < minPasswordLength {
		return domain.ErrInvalidCredentials
	}

	id, err := snowflake.ParseString(userID)
	if err != nil {
		return err
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	fields := map[string]any{
		"password_hash":         hashed,
		"last_password_changed": &now,
		"is_default":            false,
		"updated_at":            now,
	}

	return s.repo.UpdateFields(ctx, id, fields)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return email
}

func newOTPCode() (string, error) {
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
