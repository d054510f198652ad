package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/parley-im/parley/internal/api"
	"github.com/parley-im/parley/internal/auth"
	"github.com/parley-im/parley/internal/journal"
	"github.com/parley-im/parley/internal/registry"
)

// Pauser controls and reports the responder's pause state.
type Pauser interface {
	Pause()
	Resume()
	Paused() bool
}

// MemoryAdmin exposes the memory operations the operator may perform:
// clearing a scope's history and planting long-term notes.
type MemoryAdmin interface {
	Wipe(ctx context.Context, scope string) error
	Remember(ctx context.Context, scope, content string) error
}

// CooldownAdmin lifts and inspects per-scope reply cooldowns.
type CooldownAdmin interface {
	Remaining(ctx context.Context, scope string) time.Duration
	Reset(ctx context.Context, scope string) error
}

// ConversationEnder drops a scope's held-conversation marker so the bot
// stops replying without a fresh trigger.
type ConversationEnder interface {
	EndConversation(ctx context.Context, scope string)
}

// RoomJoiner enters a groupchat room on the live XMPP session.
type RoomJoiner interface {
	JoinRoom(roomJID, nick string) error
}

// ExchangeReader reads journaled exchanges.
type ExchangeReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Exchange, error)
	CountByOutcome(ctx context.Context, hours int) (map[string]int64, error)
}

// Handler serves the admin API: operator login plus runtime control over the
// responder, the channel registry, the ignore list, and stored memory.
type Handler struct {
	passwordHash  string
	jwt           *auth.JWTManager
	pauser        Pauser
	registry      *registry.Service
	memory        MemoryAdmin
	exchanges     ExchangeReader
	cooldowns     CooldownAdmin
	conversations ConversationEnder
	rooms         RoomJoiner
	providers     []string
	validate      *validator.Validate
}

func NewHandler(
	passwordHash string,
	jwt *auth.JWTManager,
	pauser Pauser,
	reg *registry.Service,
	memory MemoryAdmin,
	exchanges ExchangeReader,
	cooldowns CooldownAdmin,
	conversations ConversationEnder,
	rooms RoomJoiner,
	providers []string,
) *Handler {
	return &Handler{
		passwordHash:  passwordHash,
		jwt:           jwt,
		pauser:        pauser,
		registry:      reg,
		memory:        memory,
		exchanges:     exchanges,
		cooldowns:     cooldowns,
		conversations: conversations,
		rooms:         rooms,
		providers:     providers,
		validate:      validator.New(),
	}
}

type loginRequest struct {
	Password string `json:"password" validate:"required,min=1"`
}

// Login exchanges the operator password for an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		api.HandleError(w, api.ErrForbidden)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := auth.ComparePassword(h.passwordHash, req.Password); err != nil {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.Generate()
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, token)
}

// Status reports pause state and the configured provider order.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{
		"paused":    h.pauser.Paused(),
		"providers": h.providers,
	})
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.pauser.Pause()
	api.JSONMessage(w, http.StatusOK, "responder paused")
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.pauser.Resume()
	api.JSONMessage(w, http.StatusOK, "responder resumed")
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.registry.Channels())
}

type channelRequest struct {
	JID  string `json:"jid" validate:"required,contains=@"`
	Nick string `json:"nick"`
}

func (h *Handler) ActivateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := h.registry.ActivateChannel(r.Context(), req.JID, req.Nick); err != nil {
		api.HandleError(w, err)
		return
	}

	// Join the room on the live session too; reconnects pick it up from the
	// registry either way.
	if h.rooms != nil {
		if err := h.rooms.JoinRoom(req.JID, req.Nick); err != nil {
			slog.Warn("joining activated room", "room", req.JID, "error", err)
		}
	}
	api.JSONMessage(w, http.StatusOK, "channel activated")
}

// DeactivateChannel stops replies in a channel. With ?purge=true the channel
// is dropped from the registry entirely.
func (h *Handler) DeactivateChannel(w http.ResponseWriter, r *http.Request) {
	jid := chi.URLParam(r, "jid")

	if r.URL.Query().Get("purge") == "true" {
		if err := h.registry.RemoveChannel(r.Context(), jid); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				api.HandleError(w, api.NewNotFoundError("channel not registered"))
				return
			}
			api.HandleError(w, err)
			return
		}
		api.JSONMessage(w, http.StatusOK, "channel removed")
		return
	}

	if err := h.registry.DeactivateChannel(r.Context(), jid); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			api.HandleError(w, api.NewNotFoundError("channel not registered"))
			return
		}
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "channel deactivated")
}

func (h *Handler) ListIgnored(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.registry.Ignored())
}

type ignoreRequest struct {
	JID    string `json:"jid" validate:"required,min=1"`
	Reason string `json:"reason"`
}

func (h *Handler) IgnoreUser(w http.ResponseWriter, r *http.Request) {
	var req ignoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := h.registry.IgnoreUser(r.Context(), req.JID, req.Reason); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "user ignored")
}

func (h *Handler) UnignoreUser(w http.ResponseWriter, r *http.Request) {
	jid := chi.URLParam(r, "jid")
	if err := h.registry.UnignoreUser(r.Context(), jid); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			api.HandleError(w, api.NewNotFoundError("user not on ignore list"))
			return
		}
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "user unignored")
}

type wipeRequest struct {
	Scope string `json:"scope" validate:"required,min=1"`
}

// WipeMemory clears short-term and long-term memory for one scope.
func (h *Handler) WipeMemory(w http.ResponseWriter, r *http.Request) {
	var req wipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := h.memory.Wipe(r.Context(), req.Scope); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "memory wiped")
}

type noteRequest struct {
	Scope   string `json:"scope" validate:"required,min=1"`
	Content string `json:"content" validate:"required,min=1"`
}

// RememberNote plants a long-term note for a scope, letting the operator
// seed facts the bot should recall later.
func (h *Handler) RememberNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := h.memory.Remember(r.Context(), req.Scope, req.Content); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "note stored")
}

type scopeRequest struct {
	Scope string `json:"scope" validate:"required,min=1"`
}

// ReleaseScope lifts a scope's cooldown and drops its held conversation,
// returning it to a clean untriggered state.
func (h *Handler) ReleaseScope(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ErrValidation)
		return
	}

	if err := h.cooldowns.Reset(r.Context(), req.Scope); err != nil {
		api.HandleError(w, err)
		return
	}
	h.conversations.EndConversation(r.Context(), req.Scope)
	api.JSONMessage(w, http.StatusOK, "scope released")
}

// ScopeStatus reports a scope's cooldown state.
func (h *Handler) ScopeStatus(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		api.HandleError(w, api.NewBadRequestError("scope query parameter is required"))
		return
	}

	remaining := h.cooldowns.Remaining(r.Context(), scope)
	api.JSON(w, http.StatusOK, map[string]any{
		"scope":                scope,
		"cooling_down":         remaining > 0,
		"cooldown_remaining_s": int(remaining / time.Second),
	})
}

// RecentExchanges returns the latest journaled turns.
func (h *Handler) RecentExchanges(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	exchanges, err := h.exchanges.Recent(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, exchanges)
}

// ExchangeStats aggregates outcomes over the last 24 hours.
func (h *Handler) ExchangeStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.exchanges.CountByOutcome(r.Context(), 24)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, counts)
}
