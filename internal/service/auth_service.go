package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/pkg/util"
)

const (
	maxNameLength     = 50
	maxLanguageLength = 10
	minPasswordLength = 6

	// 重置令牌有效期
	resetTokenTTL = 10 * time.Minute
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int) (*model.User, error)
	FindByRefreshToken(ctx context.Context, hash string) (*model.User, error)
	FindByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

type AuthService struct {
	users     UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(users UserRepository, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AuthService) SetClock(now func() time.Time) { s.now = now }

// Session 登录态：JWT 访问令牌 + 一次性刷新令牌
type Session struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// DetailsInput nil 字段表示不修改
type DetailsInput struct {
	Name  *string
	Email *string
}

type PreferencesInput struct {
	Theme    string
	Language string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(name string) error {
	switch {
	case name == "":
		return model.Invalid("Please add a name")
	case utf8.RuneCountInString(name) > maxNameLength:
		return model.Invalid("Name cannot be more than %d characters", maxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return model.Invalid("Please add an email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Invalid("Please add a valid email")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.Invalid("Password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// issueSession 签发访问令牌并轮换刷新令牌，u 上的其他改动一并写回
func (s *AuthService) issueSession(ctx context.Context, u *model.User) (*Session, error) {
	access, err := util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	refresh, digest, err := util.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	u.RefreshTokenHash = &digest
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) findUser(ctx context.Context, userID int) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotFound("User not found")
	}
	return u, err
}

// Register creates a new user and opens a session for it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if err := validateName(name); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, model.Invalid("Please add an email")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, model.Conflict("User already exists")
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Preferences:  model.DefaultPreferences(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			// 并发注册同一邮箱
			return nil, model.Conflict("User already exists")
		}
		return nil, err
	}

	sess, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered", zap.Int("user_id", u.ID))
	return sess, nil
}

// Login checks user credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.Invalid("Please provide an email and password")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotAuthorized("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		s.logger.Info("Login rejected", zap.Int("user_id", u.ID))
		return nil, model.NotAuthorized("Invalid credentials")
	}
	return s.issueSession(ctx, u)
}

// Refresh exchanges a refresh token for a new token pair. The old refresh token stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, model.Invalid("No refresh token provided")
	}

	u, err := s.users.FindByRefreshToken(ctx, util.HashToken(refreshToken))
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotAuthorized("Invalid refresh token")
	}
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, u)
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID int) (*model.User, error) {
	return s.findUser(ctx, userID)
}

// UpdateDetails changes name and/or email.
func (s *AuthService) UpdateDetails(ctx context.Context, userID int, in DetailsInput) (*model.User, error) {
	if in.Name == nil && in.Email == nil {
		return nil, model.Invalid("Please provide fields to update")
	}

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		u.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		u.Email = email
	}

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, model.Conflict("User already exists")
		}
		return nil, err
	}
	s.logger.Info("User details updated", zap.Int("user_id", u.ID))
	return u, nil
}

// UpdatePassword verifies the current password, stores the new one and opens a fresh session.
func (s *AuthService) UpdatePassword(ctx context.Context, userID int, current, next string) (*Session, error) {
	if current == "" || next == "" {
		return nil, model.Invalid("Please provide current and new password")
	}

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !util.CheckPassword(current, u.PasswordHash) {
		return nil, model.NotAuthorized("Current password is incorrect")
	}
	if err := validatePassword(next); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(next)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash

	s.logger.Info("Password updated", zap.Int("user_id", u.ID))
	return s.issueSession(ctx, u)
}

// UpdatePreferences 只修改提供了的字段
func (s *AuthService) UpdatePreferences(ctx context.Context, userID int, in PreferencesInput) (*model.Preferences, error) {
	theme := strings.TrimSpace(in.Theme)
	language := strings.TrimSpace(in.Language)
	if theme == "" && language == "" {
		return nil, model.Invalid("Please provide preferences to update")
	}
	if theme != "" && theme != model.ThemeLight && theme != model.ThemeDark {
		return nil, model.Invalid("Theme must be either %s or %s", model.ThemeLight, model.ThemeDark)
	}
	if utf8.RuneCountInString(language) > maxLanguageLength {
		return nil, model.Invalid("Language cannot be more than %d characters", maxLanguageLength)
	}

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if theme != "" {
		u.Preferences.Theme = theme
	}
	if language != "" {
		u.Preferences.Language = language
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return &u.Preferences, nil
}

// ForgotPassword issues a reset token. There is no mail delivery, so the plain token goes back to the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", model.NotFound("No user with that email")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return "", model.NotFound("No user with that email")
	}
	if err != nil {
		return "", err
	}

	token, digest, err := util.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	expires := s.now().UTC().Add(resetTokenTTL)
	u.ResetTokenHash = &digest
	u.ResetTokenExpires = &expires
	if err := s.users.Update(ctx, u); err != nil {
		return "", err
	}

	s.logger.Info("Password reset requested", zap.Int("user_id", u.ID))
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, password string) (*Session, error) {
	u, err := s.users.FindByResetToken(ctx, util.HashToken(resetToken), s.now().UTC())
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.Invalid("Invalid or expired token")
	}
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.ResetTokenHash = nil
	u.ResetTokenExpires = nil

	s.logger.Info("Password reset", zap.Int("user_id", u.ID))
	return s.issueSession(ctx, u)
}

// Logout revokes the stored refresh token. Access tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	u.RefreshTokenHash = nil
	return s.users.Update(ctx, u)
}
