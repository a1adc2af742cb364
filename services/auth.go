package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/krshsl/interviewcoach/backend/models"
	"github.com/krshsl/interviewcoach/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessCookie    = "access_token"
	refreshCookie   = "refresh_token"
	permanentCookie = "permanent_token"

	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes and GenerateFromPassword rejects it
	maxPasswordLength = 72
)

type AuthService struct {
	repo            UserStore
	mailer          Mailer
	clock           clockwork.Clock
	jwtSecret       []byte
	secureCookies   bool
	baseURL         string
	accessExpiry    time.Duration
	refreshExpiry   time.Duration
	permanentExpiry time.Duration
	resetExpiry     time.Duration
}

type CookieClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	User           *models.User `json:"user"`
	AccessToken    string       `json:"access_token,omitempty"`
	RefreshToken   string       `json:"refresh_token,omitempty"`
	PermanentToken string       `json:"permanent_token,omitempty"`
}

type AuthOptions struct {
	JWTSecret     string
	SecureCookies bool
	BaseURL       string
	Mailer        Mailer
	Clock         clockwork.Clock
}

func NewAuthService(repo UserStore, opts AuthOptions) *AuthService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{}
	}
	return &AuthService{
		repo:            repo,
		mailer:          opts.Mailer,
		clock:           opts.Clock,
		jwtSecret:       []byte(opts.JWTSecret),
		secureCookies:   opts.SecureCookies,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		accessExpiry:    15 * time.Minute,
		refreshExpiry:   7 * 24 * time.Hour,  // 7 days
		permanentExpiry: 30 * 24 * time.Hour, // 30 days
		resetExpiry:     time.Hour,
	}
}

// generateSecureToken generates a cryptographically secure random token
func (s *AuthService) generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for secure storage
func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return validationError("password must be at most %d bytes", maxPasswordLength)
	}
	return nil
}

// Login authenticates user and creates tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, unauthorizedError("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, unauthorizedError("invalid credentials")
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// Register creates a new user and signs them in
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*AuthResponse, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationError("a valid email is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if len(fullName) > 100 {
		return nil, validationError("full name must be at most 100 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		FullName: fullName,
		Role:     "user",
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictError("an account with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.sendBestEffort(ctx, Message{
		Kind:    "welcome",
		To:      user.Email,
		Subject: "Welcome to Interview Coach",
		Body:    fmt.Sprintf("Hi %s,\n\nYour account is ready. Pick a topic and start your first practice interview.\n", displayName(user)),
	})

	slog.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

func displayName(user *models.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Email
}

// RefreshToken generates a new access token using refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	tokenRecord, err := s.repo.GetRefreshToken(ctx, s.hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if tokenRecord == nil || !tokenRecord.ExpiresAt.After(s.clock.Now()) {
		return nil, unauthorizedError("invalid refresh token")
	}

	return s.reissueAccess(ctx, tokenRecord.UserID, "refresh")
}

// VerifyPermanentToken verifies permanent token and generates new access token
func (s *AuthService) VerifyPermanentToken(ctx context.Context, permanentToken string) (*AuthResponse, error) {
	tokenRecord, err := s.repo.GetPermanentToken(ctx, s.hashToken(permanentToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get permanent token: %w", err)
	}
	if tokenRecord == nil {
		return nil, unauthorizedError("invalid permanent token")
	}

	return s.reissueAccess(ctx, tokenRecord.UserID, "permanent")
}

func (s *AuthService) reissueAccess(ctx context.Context, userID, via string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, unauthorizedError("user not found")
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	slog.Info("Access token reissued", "user_id", user.ID, "via", via)
	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
	}, nil
}

// Logout invalidates all tokens for the user
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAllUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}

	slog.Info("User logged out", "user_id", userID)
	return nil
}

// RequestPasswordReset e-mails a single-use reset token to a known address.
// Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		slog.Info("Password reset requested for unknown email")
		return nil
	}

	token, err := s.generateSecureToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	record := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     s.hashToken(token),
		ExpiresAt: s.clock.Now().Add(s.resetExpiry),
	}
	if err := s.repo.CreatePasswordResetToken(ctx, record); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	s.sendBestEffort(ctx, Message{
		Kind:    "password_reset",
		To:      user.Email,
		Subject: "Reset your Interview Coach password",
		Body: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in one hour.\n\n%s/reset-password?token=%s\n\nIf you did not ask for this, ignore this e-mail.\n",
			displayName(user), s.baseURL, token),
	})

	slog.Info("Password reset token issued", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes every session.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}

	record, err := s.repo.GetPasswordResetToken(ctx, s.hashToken(token))
	if err != nil {
		return fmt.Errorf("failed to get reset token: %w", err)
	}
	now := s.clock.Now()
	if record == nil || record.UsedAt != nil || !now.Before(record.ExpiresAt) {
		return validationError("reset token is invalid or expired")
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return validationError("reset token is invalid or expired")
	}

	if err := s.setPassword(ctx, user, password); err != nil {
		return err
	}
	if err := s.repo.MarkPasswordResetTokenUsed(ctx, record.ID, now); err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if err := s.repo.DeleteAllUserTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	slog.Info("Password reset", "user_id", user.ID)
	return nil
}

// ChangePassword replaces the password of an authenticated user
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return validationError("current password is incorrect")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, next); err != nil {
		return err
	}

	slog.Info("Password changed", "user_id", user.ID)
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *AuthService) sendBestEffort(ctx context.Context, msg Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("Failed to send e-mail", "error", err, "kind", msg.Kind, "to", msg.To)
	}
}

// VerifyAccessToken verifies and extracts user from access token
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*models.User, error) {
	claims := &CookieClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	// Get user from database to ensure they still exist
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// generateAccessToken creates a short-lived access token
func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := &CookieClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// issueTokens creates and stores a full token set for user
func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	permanentToken, err := s.generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate permanent token: %w", err)
	}

	if err := s.storeTokens(ctx, user.ID, refreshToken, permanentToken); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	return &AuthResponse{
		User:           user,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		PermanentToken: permanentToken,
	}, nil
}

// storeTokens stores refresh and permanent tokens in database
func (s *AuthService) storeTokens(ctx context.Context, userID, refreshToken, permanentToken string) error {
	refreshTokenRecord := &models.RefreshToken{
		UserID:    userID,
		Token:     s.hashToken(refreshToken),
		ExpiresAt: s.clock.Now().Add(s.refreshExpiry),
	}
	if err := s.repo.CreateRefreshToken(ctx, refreshTokenRecord); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	permanentTokenRecord := &models.PermanentToken{
		UserID: userID,
		Token:  s.hashToken(permanentToken),
	}
	if err := s.repo.CreatePermanentToken(ctx, permanentTokenRecord); err != nil {
		return fmt.Errorf("failed to store permanent token: %w", err)
	}

	return nil
}

func (s *AuthService) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// SetAuthCookies sets HTTP-only cookies. Empty tokens leave the existing cookie untouched.
func (s *AuthService) SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken, permanentToken string) {
	if accessToken != "" {
		http.SetCookie(w, s.cookie(accessCookie, accessToken, int(s.accessExpiry.Seconds())))
	}
	if refreshToken != "" {
		http.SetCookie(w, s.cookie(refreshCookie, refreshToken, int(s.refreshExpiry.Seconds())))
	}
	if permanentToken != "" {
		http.SetCookie(w, s.cookie(permanentCookie, permanentToken, int(s.permanentExpiry.Seconds())))
	}
}

// ClearAuthCookies clears all authentication cookies
func (s *AuthService) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie, permanentCookie} {
		http.SetCookie(w, s.cookie(name, "", -1))
	}
}

// GetTokenFromCookie extracts token from request cookies
func (s *AuthService) GetTokenFromCookie(r *http.Request, cookieName string) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Authenticate resolves the user from the access, refresh or permanent cookie, in that order.
// A fresh access cookie is written when a fallback token was used.
func (s *AuthService) Authenticate(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	if accessToken := s.GetTokenFromCookie(r, accessCookie); accessToken != "" {
		if user, err := s.VerifyAccessToken(r.Context(), accessToken); err == nil {
			return user, true
		}
	}

	if refreshToken := s.GetTokenFromCookie(r, refreshCookie); refreshToken != "" {
		if resp, err := s.RefreshToken(r.Context(), refreshToken); err == nil {
			s.SetAuthCookies(w, resp.AccessToken, "", "")
			return resp.User, true
		}
	}

	if permanentToken := s.GetTokenFromCookie(r, permanentCookie); permanentToken != "" {
		if resp, err := s.VerifyPermanentToken(r.Context(), permanentToken); err == nil {
			s.SetAuthCookies(w, resp.AccessToken, "", "")
			return resp.User, true
		}
	}

	return nil, false
}

// Middleware for cookie-based authentication
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.Authenticate(w, r)
		if !ok {
			writeError(w, r, unauthorizedError("authentication required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
