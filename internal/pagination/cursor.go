// Package pagination — keyset-курсоры для постраничной истории (created_at, id).
package pagination

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/goccy/go-json"
)

var ErrInvalidCursor = fmt.Errorf("%w: invalid cursor", domain.ErrValidation)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: empty position", ErrInvalidCursor)
	}
	return &c, nil
}

// Before reports whether (at, id) sorts strictly before the cursor position.
func (c *Cursor) Before(at time.Time, id string) bool {
	return at.Before(c.CreatedAt) || (at.Equal(c.CreatedAt) && id < c.ID)
}

// ClampLimit приводит размер страницы к [1, MaxPageSize].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Next возвращает курсор следующей страницы, если страница заполнена целиком.
func Next(pageLen, limit int, lastAt time.Time, lastID string) string {
	if pageLen < limit || pageLen == 0 {
		return ""
	}
	s, err := EncodeCursor(Cursor{CreatedAt: lastAt, ID: lastID})
	if err != nil {
		return ""
	}
	return s
}
