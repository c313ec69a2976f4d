package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/chirpy-labs/chirpy-push/internal/config"
	"github.com/chirpy-labs/chirpy-push/internal/model"
	"github.com/chirpy-labs/chirpy-push/internal/storage"
)

// Token roles.
const (
	RoleAccount = "account"
	RoleAdmin   = "admin"
)

// AuthService issues dashboard session tokens and handles operator login.
type AuthService struct {
	store        storage.Store
	adminEnabled bool
	username     string
	password     string
	secret       []byte
	ephemeral    bool
	sessionTTL   time.Duration
	now          func() time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService builds AuthService from config.
func NewAuthService(cfg *config.Config, store storage.Store) *AuthService {
	authCfg := cfg.Auth
	username := strings.TrimSpace(authCfg.AdminUsername)
	if username == "" {
		username = "admin"
	}
	password := strings.TrimSpace(authCfg.AdminPassword)
	if password == "" {
		password = "admin123"
	}
	secret := []byte(strings.TrimSpace(authCfg.JWTSecret))
	ephemeral := false
	if isWeakSecret(string(secret)) {
		// per-process secret; sessions end on restart
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
		ephemeral = true
	}
	ttl := authCfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		store:        store,
		adminEnabled: authCfg.AdminEnabled,
		username:     username,
		password:     password,
		secret:       secret,
		ephemeral:    ephemeral,
		sessionTTL:   ttl,
		now:          time.Now,
	}
}

// weakSecrets are values shipped in sample configs. Signing with them would
// let anyone who knows an account id mint its session.
var weakSecrets = map[string]struct{}{
	"change-me-secret":      {},
	"chirpy-default-secret": {},
	"changeme":              {},
	"secret":                {},
}

func isWeakSecret(secret string) bool {
	if secret == "" {
		return true
	}
	_, ok := weakSecrets[strings.ToLower(secret)]
	return ok
}

// EphemeralSecret reports whether tokens are signed with a random
// per-process secret because none usable was configured.
func (a *AuthService) EphemeralSecret() bool {
	return a.ephemeral
}

// AdminEnabled reports whether the operator endpoints are reachable.
func (a *AuthService) AdminEnabled() bool {
	return a != nil && a.adminEnabled
}

// Session is a dashboard login result.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login exchanges a master API key for a session token.
func (a *AuthService) Login(ctx context.Context, apiKey string) (*Session, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, newError(ErrValidation, "apiKey is required")
	}
	account, err := a.store.AccountByKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "Invalid API key")
		}
		return nil, err
	}
	token, expires, err := a.IssueSession(account)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, AccountID: account.ID, Email: account.Email, ExpiresAt: expires}, nil
}

// IssueSession returns a session token standing in for the account's API key.
func (a *AuthService) IssueSession(account *model.Account) (string, time.Time, error) {
	return a.issue(account.ID, RoleAccount)
}

// ParseSession validates a session token and returns its account id.
func (a *AuthService) ParseSession(token string) (string, error) {
	claims, err := a.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Role != RoleAccount || claims.Subject == "" {
		return "", errors.New("not a session token")
	}
	return claims.Subject, nil
}

// AdminLogin validates operator credentials and returns an admin token.
func (a *AuthService) AdminLogin(username, password string) (string, error) {
	if !a.AdminEnabled() {
		return "", newError(ErrForbidden, "admin access disabled")
	}
	if !a.matchUsername(username) || !a.matchPassword(password) {
		return "", newError(ErrUnauthorized, "invalid username or password")
	}
	token, _, err := a.issue(a.username, RoleAdmin)
	return token, err
}

// ValidateAdmin parses an admin token.
func (a *AuthService) ValidateAdmin(token string) (*Claims, error) {
	if !a.AdminEnabled() {
		return nil, newError(ErrForbidden, "admin access disabled")
	}
	claims, err := a.parse(token)
	if err != nil || claims.Role != RoleAdmin {
		return nil, newError(ErrUnauthorized, "invalid admin token")
	}
	return claims, nil
}

func (a *AuthService) issue(subject, role string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.sessionTTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (a *AuthService) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (a *AuthService) matchUsername(input string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(input)), []byte(a.username)) == 1
}

func (a *AuthService) matchPassword(input string) bool {
	if strings.HasPrefix(a.password, "$2a$") || strings.HasPrefix(a.password, "$2b$") || strings.HasPrefix(a.password, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(input)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(input), []byte(a.password)) == 1
}
