package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

type ChannelAPI interface {
	CreateChannel(ctx context.Context, who domain.Identity, in service.CreateChannelInput) (*domain.Channel, error)
	GetChannel(ctx context.Context, who domain.Identity, id string) (*domain.Channel, error)
	ListChannels(ctx context.Context, who domain.Identity) ([]domain.Channel, error)
	ArchiveChannel(ctx context.Context, who domain.Identity, id string) error
	DirectChannel(ctx context.Context, who domain.Identity, otherID string) (*domain.Channel, error)
	SystemChannel(ctx context.Context, who domain.Identity, contextType, contextID string) (*domain.Channel, error)
	AddMember(ctx context.Context, who domain.Identity, channelID string, in service.AddMemberInput) (*domain.Member, error)
	RemoveMember(ctx context.Context, who domain.Identity, channelID, userID string) error
	ListMembers(ctx context.Context, who domain.Identity, channelID string) ([]domain.Member, error)
	MarkRead(ctx context.Context, who domain.Identity, channelID string) error
	ListNotifications(ctx context.Context, who domain.Identity, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, who domain.Identity, id string) error
}

type ChatAPI interface {
	SendMessage(ctx context.Context, who domain.Identity, channelID, text string, parentID *string) (*domain.Message, error)
	EditMessage(ctx context.Context, who domain.Identity, messageID, text string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, who domain.Identity, messageID string) error
	GetMessage(ctx context.Context, who domain.Identity, messageID string) (*domain.Message, error)
	ListMessages(ctx context.Context, who domain.Identity, channelID, before string, limit int) ([]domain.Message, string, error)
	AddReaction(ctx context.Context, who domain.Identity, messageID, emoji string) (*domain.ReactionSummary, error)
	RemoveReaction(ctx context.Context, who domain.Identity, messageID, emoji string) error
	AddAttachment(ctx context.Context, who domain.Identity, messageID string, in service.AttachmentInput) (*domain.Attachment, error)
	DeleteAttachment(ctx context.Context, who domain.Identity, attachmentID string) error
	Typing(ctx context.Context, who domain.Identity, channelID string) ([]domain.TypingUser, error)
}

// Handler — тонкий REST-слой: разбор запроса, вызов сервиса, ответ.
type Handler struct {
	channels ChannelAPI
	chat     ChatAPI
	validate *validator.Validate
}

func NewHandler(channels ChannelAPI, chat ChatAPI) *Handler {
	return &Handler{channels: channels, chat: chat, validate: validator.New()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decode читает тело и прогоняет его через validator.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json", domain.ErrValidation)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", domain.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func identity(r *http.Request) domain.Identity {
	who, _ := httpmw.IdentityFromCtx(r.Context())
	return who
}

func queryLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad limit", domain.ErrValidation)
	}
	return n, nil
}

// GET /channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	list, err := h.channels.ListChannels(r.Context(), identity(r))
	if err != nil {
		writeError(r.Context(), w, "ListChannels", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.Channel]{Items: list})
}

// POST /channels
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "CreateChannel", err)
		return
	}
	ch, err := h.channels.CreateChannel(r.Context(), identity(r), service.CreateChannelInput{
		Name:        req.Name,
		Kind:        domain.ChannelKind(req.Kind),
		ContextType: req.ContextType,
		ContextID:   req.ContextID,
	})
	if err != nil {
		writeError(r.Context(), w, "CreateChannel", err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

// POST /channels/direct
func (h *Handler) DirectChannel(w http.ResponseWriter, r *http.Request) {
	var req DirectChannelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "DirectChannel", err)
		return
	}
	ch, err := h.channels.DirectChannel(r.Context(), identity(r), req.UserID)
	if err != nil {
		writeError(r.Context(), w, "DirectChannel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// POST /channels/system
func (h *Handler) SystemChannel(w http.ResponseWriter, r *http.Request) {
	var req SystemChannelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "SystemChannel", err)
		return
	}
	ch, err := h.channels.SystemChannel(r.Context(), identity(r), req.ContextType, req.ContextID)
	if err != nil {
		writeError(r.Context(), w, "SystemChannel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// GET /channels/{id}
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channels.GetChannel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, "GetChannel", err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// DELETE /channels/{id} архивирует канал.
func (h *Handler) ArchiveChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.ArchiveChannel(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, "ArchiveChannel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /channels/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := h.channels.ListMembers(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, "ListMembers", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.Member]{Items: list})
}

// POST /channels/{id}/members
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "AddMember", err)
		return
	}
	m, err := h.channels.AddMember(r.Context(), identity(r), chi.URLParam(r, "id"), service.AddMemberInput{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		Role:        domain.MemberRole(req.Role),
	})
	if err != nil {
		writeError(r.Context(), w, "AddMember", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// DELETE /channels/{id}/members/{userID}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.channels.RemoveMember(r.Context(), identity(r), chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(r.Context(), w, "RemoveMember", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /channels/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.MarkRead(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, "MarkRead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /channels/{id}/messages?before=&limit=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(r.Context(), w, "ListMessages", err)
		return
	}
	list, next, err := h.chat.ListMessages(r.Context(), identity(r), chi.URLParam(r, "id"), r.URL.Query().Get("before"), limit)
	if err != nil {
		writeError(r.Context(), w, "ListMessages", err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesPage{Items: list, NextCursor: next})
}

// POST /channels/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "SendMessage", err)
		return
	}
	msg, err := h.chat.SendMessage(r.Context(), identity(r), chi.URLParam(r, "id"), req.Text, req.ParentID)
	if err != nil {
		writeError(r.Context(), w, "SendMessage", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// GET /channels/{id}/typing
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	users, err := h.chat.Typing(r.Context(), identity(r), channelID)
	if err != nil {
		writeError(r.Context(), w, "Typing", err)
		return
	}
	writeJSON(w, http.StatusOK, TypingResponse{ChannelID: channelID, Users: users})
}

// GET /messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.chat.GetMessage(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, "GetMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// PUT /messages/{id}
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req EditMessageRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "EditMessage", err)
		return
	}
	msg, err := h.chat.EditMessage(r.Context(), identity(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(r.Context(), w, "EditMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// DELETE /messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteMessage(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, "DeleteMessage", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /messages/{id}/reactions
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	var req ReactionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "AddReaction", err)
		return
	}
	sum, err := h.chat.AddReaction(r.Context(), identity(r), chi.URLParam(r, "id"), req.Emoji)
	if err != nil {
		writeError(r.Context(), w, "AddReaction", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// DELETE /messages/{id}/reactions/{emoji}
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	emoji, err := url.PathUnescape(chi.URLParam(r, "emoji"))
	if err != nil {
		writeError(r.Context(), w, "RemoveReaction", fmt.Errorf("%w: bad emoji", domain.ErrValidation))
		return
	}
	if err := h.chat.RemoveReaction(r.Context(), identity(r), chi.URLParam(r, "id"), emoji); err != nil {
		writeError(r.Context(), w, "RemoveReaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /messages/{id}/attachments: только метаданные, сам файл уже лежит в хранилище.
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var req AttachmentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, "AddAttachment", err)
		return
	}
	a, err := h.chat.AddAttachment(r.Context(), identity(r), chi.URLParam(r, "id"), service.AttachmentInput{
		FileName:    req.FileName,
		Size:        req.Size,
		MimeType:    req.MimeType,
		StoragePath: req.StoragePath,
	})
	if err != nil {
		writeError(r.Context(), w, "AddAttachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DELETE /attachments/{id}
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteAttachment(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, "DeleteAttachment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /notifications?unread=&limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(r.Context(), w, "ListNotifications", err)
		return
	}
	unread := false
	if s := strings.TrimSpace(r.URL.Query().Get("unread")); s != "" {
		if unread, err = strconv.ParseBool(s); err != nil {
			writeError(r.Context(), w, "ListNotifications", fmt.Errorf("%w: bad unread flag", domain.ErrValidation))
			return
		}
	}
	list, err := h.channels.ListNotifications(r.Context(), identity(r), unread, limit)
	if err != nil {
		writeError(r.Context(), w, "ListNotifications", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.Notification]{Items: list})
}

// POST /notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.channels.MarkNotificationRead(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, "MarkNotificationRead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
