package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillsenselab/loaderkit/errors"
)

// TokenGuardConfig configures the JWT validator.
type TokenGuardConfig struct {
	// Secret is the HMAC signing secret.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Issuer, when set, is enforced during validation.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// AccessTokenTTL is the lifetime of issued tokens.
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" mapstructure:"access_token_ttl"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *TokenGuardConfig) ApplyDefaults() {
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
}

// Validate checks the configuration for invalid values.
func (c *TokenGuardConfig) Validate() error {
	if c.Secret == "" {
		return errors.MissingField("token_guard.secret")
	}
	if len(c.Secret) < 16 {
		return errors.InvalidInput("token_guard.secret", "must be at least 16 bytes")
	}
	return nil
}

// Claims are the token claims TokenGuard issues and verifies.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// TokenGuard issues and verifies HMAC-signed bearer tokens.
type TokenGuard struct {
	cfg TokenGuardConfig
}

// NewTokenGuard creates a TokenGuard from the given config.
func NewTokenGuard(cfg TokenGuardConfig) (*TokenGuard, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenGuard{cfg: cfg}, nil
}

// Issue creates a signed token for the subject with the given scopes.
func (g *TokenGuard) Issue(subject string, scopes ...string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.AccessTokenTTL)),
		},
		Scopes: scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify validates a token string and returns its claims. The "Bearer "
// prefix is stripped if present.
func (g *TokenGuard) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if g.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// HasScope reports whether the claims carry the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
