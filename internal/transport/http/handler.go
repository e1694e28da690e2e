package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"keyward/internal/identity/models"
	"keyward/internal/identity/service"
	"keyward/internal/platform/middleware"
)

// IdentityService is the surface the transport needs from the core.
type IdentityService interface {
	Register(ctx context.Context, clientKey string, req models.RegisterRequest) (*service.RegisterResult, error)
	Login(ctx context.Context, clientKey string, req models.LoginRequest) (*service.LoginResult, error)
	ChangePassword(ctx context.Context, clientKey, identityID string, req models.ChangePasswordRequest) error
	ChangeUsername(ctx context.Context, clientKey, identityID string, req models.ChangeUsernameRequest) error
	Profile(ctx context.Context, identityID string) (*service.Profile, error)
	ValidateToken(ctx context.Context, token string) (string, error)
}

// Handler delegates to the identity service.
type Handler struct {
	identity IdentityService
}

func NewHandler(identity IdentityService) *Handler {
	return &Handler{identity: identity}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	IdentityID string `json:"identity_id"`
	Token      string `json:"token"`
}

type registerResponse struct {
	IdentityID string    `json:"identity_id"`
	Token      string    `json:"token"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.identity.Register(r.Context(), middleware.ClientKey(r), models.RegisterRequest{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		IdentityID: result.IdentityID,
		Token:      result.Token,
		CreatedAt:  result.CreatedAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.identity.Login(r.Context(), middleware.ClientKey(r), models.LoginRequest{
		Identifier: req.Email,
		Password:   req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{IdentityID: result.IdentityID, Token: result.Token})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	err := h.identity.ChangePassword(r.Context(), middleware.ClientKey(r), middleware.IdentityID(r.Context()), models.ChangePasswordRequest{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type changeUsernameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) handleChangeUsername(w http.ResponseWriter, r *http.Request) {
	var req changeUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	err := h.identity.ChangeUsername(r.Context(), middleware.ClientKey(r), middleware.IdentityID(r.Context()), models.ChangeUsernameRequest{
		Username: req.Username,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type profileResponse struct {
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstname"`
	LastName   string    `json:"lastname"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.identity.Profile(r.Context(), middleware.IdentityID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		IdentityID: profile.IdentityID,
		Email:      profile.Email,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		CreatedAt:  profile.CreatedAt,
		UpdatedAt:  profile.UpdatedAt,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
