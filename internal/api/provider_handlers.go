package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/health-first-scheduling/internal/auth"
	"github.com/hackgods/health-first-scheduling/internal/provider"
)

type ProviderService interface {
	Register(ctx context.Context, reg provider.Registration) (*provider.Provider, error)
	Get(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type AuthService interface {
	auth.Authenticator
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

type providerHandler struct {
	providers ProviderService
	auth      AuthService
	errors    errorWriter
}

func (h *providerHandler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	reg, err := req.Registration()
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	p, err := h.providers.Register(r.Context(), reg)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "provider registered, pending verification", toProviderResponse(p))
}

func (h *providerHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.write(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errors.write(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "login successful", LoginResponse{
		AccessToken: res.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(res.ExpiresAt).Seconds()),
		Provider:    toProviderResponse(res.Provider),
	})
}

func (h *providerHandler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		h.errors.write(w, r, auth.ErrTokenRejected)
		return
	}
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "logged out", nil)
}

func (h *providerHandler) me(w http.ResponseWriter, r *http.Request) {
	id, err := currentProvider(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	p, err := h.providers.Get(r.Context(), id)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", toProviderResponse(p))
}

func (h *providerHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "provider_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	p, err := h.providers.Get(r.Context(), id)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", toProviderResponse(p))
}

// deactivate lets a provider close their own account.
func (h *providerHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	current, err := currentProvider(r)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	id, err := pathUUID(r, "provider_id")
	if err != nil {
		h.errors.write(w, r, err)
		return
	}
	if id != current {
		writeError(w, http.StatusForbidden, "forbidden", "providers can only deactivate their own account", nil)
		return
	}

	if err := h.providers.Deactivate(r.Context(), id); err != nil {
		h.errors.write(w, r, err)
		return
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		if err := h.auth.Logout(r.Context(), claims); err != nil {
			h.errors.log.Warn().Err(err).Str("provider_id", id.String()).Msg("failed to revoke token after deactivation")
		}
	}
	writeData(w, http.StatusOK, "provider deactivated", nil)
}
