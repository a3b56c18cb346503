package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/almahub/backend/internal/identity"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
)

type AuthHandler struct {
	provider identity.Provider
	issuer   identity.TokenIssuer
	profiles *profile.Repository
	log      *zap.Logger
}

// NewAuthHandler wires registration and login. issuer may be nil when the
// provider does not mint its own tokens (Firebase clients fetch theirs
// directly).
func NewAuthHandler(provider identity.Provider, issuer identity.TokenIssuer, profiles *profile.Repository, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		issuer:   issuer,
		profiles: profiles,
		log:      log,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := h.provider.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountExists):
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email already registered"))
		case errors.Is(err, identity.ErrWeakCredential):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Password does not meet requirements"))
		default:
			h.log.Error("sign-up failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create account"))
		}
		return
	}

	// Role selection during registration creates the profile document; the
	// account is not fully onboarded without one.
	role := models.DefaultRole
	if req.Role != "" {
		role, _ = models.ParseRole(req.Role)
	}
	doc := models.NewProfileDocument(id.UID, id.Email, id.DisplayName, role, req.Fields)
	if _, err := h.profiles.Create(ctx, id.UID, doc); err != nil {
		h.log.Error("profile create failed", zap.String("uid", id.UID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create profile"))
		return
	}

	resp := models.AuthResponse{Profile: models.DecodeProfile(doc)}
	if h.issuer != nil {
		token, err := h.issuer.Token(id.UID)
		if err != nil {
			h.log.Error("token mint failed", zap.String("uid", id.UID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
			return
		}
		resp.Token = token
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := h.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) || errors.Is(err, identity.ErrBadCredential) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
			return
		}
		h.log.Error("sign-in failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Login failed"))
		return
	}

	doc, err := h.profiles.Fetch(ctx, id.UID)
	if err != nil {
		h.log.Error("profile fetch failed", zap.String("uid", id.UID), zap.Error(err))
	}
	if doc == nil {
		// Authenticated account with no document yet: synthesize the default.
		doc = models.NewProfileDocument(id.UID, id.Email, id.DisplayName, models.DefaultRole, nil)
		if _, err := h.profiles.Create(ctx, id.UID, doc); err != nil {
			h.log.Warn("default profile persistence failed", zap.String("uid", id.UID), zap.Error(err))
		}
	}

	resp := models.AuthResponse{Profile: models.DecodeProfile(doc)}
	if h.issuer != nil {
		token, err := h.issuer.Token(id.UID)
		if err != nil {
			h.log.Error("token mint failed", zap.String("uid", id.UID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
			return
		}
		resp.Token = token
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// A failed remote sign-out never blocks the client from logging out.
	if err := h.provider.SignOut(ctx); err != nil {
		h.log.Warn("remote sign-out failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Logged out"}))
}
