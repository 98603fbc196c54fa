package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ToHTTP: доменная ошибка -> статус и короткий код для тела ответа.
func ToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, code := ToHTTP(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(ctx).ErrorContext(ctx, "handler."+op, "err", err)
		msg = domain.ErrStore.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
