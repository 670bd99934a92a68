package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired signals a well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals any signature or format failure.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// placeholderSecrets are signing secrets that must never reach production.
var placeholderSecrets = map[string]bool{
	"secret":    true,
	"changeme":  true,
	"change-me": true,
	"password":  true,
	"dev":       true,
	"devsecret": true,
	"default":   true,
	"test":      true,
}

// TokenConfig carries the signing configuration, read once at construction.
type TokenConfig struct {
	Secret            string
	Algorithm         string // HS256, HS384 or HS512; defaults to HS256
	ExpirationMinutes int    // defaults to 60
	Production        bool   // placeholder secrets are fatal when set
}

// TokenConfigFromEnv builds a TokenConfig from JWT_SECRET, JWT_ALGORITHM,
// JWT_EXPIRATION_MINUTES and APP_ENV.
func TokenConfigFromEnv() TokenConfig {
	cfg := TokenConfig{
		Secret:    os.Getenv("JWT_SECRET"),
		Algorithm: os.Getenv("JWT_ALGORITHM"),
	}
	if v := os.Getenv("JWT_EXPIRATION_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ExpirationMinutes = n
		}
	}
	cfg.Production = os.Getenv("APP_ENV") == "production"
	return cfg
}

// Claims is the validated content of a session token.
type Claims struct {
	UserID    string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// TokenService issues and validates signed, time-bounded session tokens.
// Validity is purely a function of signature and timestamp; there is no
// server-side session state and no early revocation.
type TokenService struct {
	secret   []byte
	method   *jwt.SigningMethodHMAC
	ttl      time.Duration
	now      func() time.Time
	warnings []string
}

// NewTokenService validates the configuration and builds the service.
// An empty secret is always fatal; a known placeholder secret is fatal in
// production and recorded as a warning otherwise.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: JWT secret is required")
	}

	var warnings []string
	if placeholderSecrets[cfg.Secret] {
		if cfg.Production {
			return nil, fmt.Errorf("auth: placeholder JWT secret %q rejected in production", cfg.Secret)
		}
		warnings = append(warnings, fmt.Sprintf("auth: placeholder JWT secret %q in use; replace before production", cfg.Secret))
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	minutes := cfg.ExpirationMinutes
	if minutes == 0 {
		minutes = 60
	}
	if minutes < 0 {
		return nil, fmt.Errorf("auth: expiration must be positive, got %d", minutes)
	}

	return &TokenService{
		secret:   []byte(cfg.Secret),
		method:   method,
		ttl:      time.Duration(minutes) * time.Minute,
		now:      time.Now,
		warnings: warnings,
	}, nil
}

// WithClock overrides the time source, used by tests to force expiry.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Warnings returns non-fatal configuration findings for the caller to log.
func (s *TokenService) Warnings() []string {
	return s.warnings
}

// Issue produces a signed token asserting the collaborator's identity and role.
func (s *TokenService) Issue(c Collaborator) (string, error) {
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: c.ID,
		Email:  c.Email,
		Role:   c.Role,
	}

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiration and returns the claim set.
// The only failure modes are ErrTokenExpired and ErrTokenInvalid; parser
// internals never cross this boundary.
func (s *TokenService) Validate(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrTokenInvalid
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return Claims{}, ErrTokenInvalid
	}

	out := Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Authorize validates the token and checks its role against the allowed set.
// Validation errors propagate unchanged; a valid token with a role outside
// the set yields (false, nil).
func (s *TokenService) Authorize(tokenString string, allowed ...Role) (bool, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return false, err
	}
	for _, role := range allowed {
		if claims.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func signingMethod(name string) (*jwt.SigningMethodHMAC, error) {
	switch name {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", name)
	}
}
