package security

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims — клеймы access-токена auth-сервиса.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name   string  `json:"name,omitempty"`
	Role   string  `json:"role,omitempty"`
	Email  string  `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type JWTConfig struct {
	PublicKey *rsa.PublicKey // RS256, если задан
	Secret    []byte         // HS256 иначе
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// JWTAuthenticator проверяет access-токен сам, без доверия заголовкам.
type JWTAuthenticator struct {
	cfg    JWTConfig
	method jwt.SigningMethod
}

func NewJWTAuthenticator(cfg JWTConfig) (*JWTAuthenticator, error) {
	a := &JWTAuthenticator{cfg: cfg}
	switch {
	case cfg.PublicKey != nil:
		a.method = jwt.SigningMethodRS256
	case len(cfg.Secret) > 0:
		a.method = jwt.SigningMethodHS256
	default:
		return nil, fmt.Errorf("jwt: public key or secret required")
	}
	return a, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	raw := BearerToken(r)
	if raw == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	claims, err := a.ParseAndValidate(raw)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, ErrInvalidSubject)
	}
	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return domain.Identity{
		ID:        claims.Subject,
		Name:      name,
		Role:      claims.Role,
		Email:     claims.Email,
		AvatarURL: claims.Avatar,
	}, nil
}

func (a *JWTAuthenticator) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		if a.cfg.PublicKey != nil {
			return a.cfg.PublicKey, nil
		}
		return a.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
