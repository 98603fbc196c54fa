package security

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"

	// для websocket: браузер не умеет слать заголовки при апгрейде
	QueryAccessToken = "access_token"
)

// Authenticator достаёт уже проверенную личность из запроса.
type Authenticator interface {
	Authenticate(r *http.Request) (domain.Identity, error)
}

// HeaderAuthenticator доверяет заголовкам X-User-*, которые проставляет api-gateway.
// Требует Bearer-токен, но сам его не проверяет.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	if BearerToken(r) == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing %s", ErrUnauthenticated, HeaderUserID)
	}
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = id
	}
	return domain.Identity{
		ID:    id,
		Name:  name,
		Role:  strings.TrimSpace(r.Header.Get(HeaderUserRole)),
		Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
	}, nil
}

// BearerToken — токен из Authorization: Bearer ..., либо из ?access_token=.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && len(auth) > 7 {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryAccessToken))
}
