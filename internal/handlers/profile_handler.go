package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
)

type ProfileHandler struct {
	profiles *profile.Repository
	log      *zap.Logger
}

func NewProfileHandler(profiles *profile.Repository, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, log: log}
}

// GetProfile returns the caller's profile, synthesizing the default document
// when none exists yet.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	email := middleware.GetUserEmail(r.Context())

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	doc, err := h.profiles.Fetch(ctx, userID)
	if err != nil {
		h.log.Error("profile fetch failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}
	if doc == nil {
		doc = models.NewProfileDocument(userID, email, "", models.DefaultRole, nil)
		if _, err := h.profiles.Create(ctx, userID, doc); err != nil {
			h.log.Warn("default profile persistence failed", zap.String("uid", userID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.DecodeProfile(doc)))
}

// UpdateProfile merge-writes the posted fields: present fields overwrite,
// absent fields persist.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var partial models.Document
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	// Identity and role fields have dedicated endpoints.
	delete(partial, models.FieldUID)
	delete(partial, models.FieldRole)

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	doc, err := h.profiles.Update(ctx, userID, partial)
	if err != nil {
		h.log.Error("profile update failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update profile"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.DecodeProfile(doc)))
}

type updateRoleRequest struct {
	Role   string          `json:"role"`
	Fields models.Document `json:"fields"`
}

// UpdateRole merges a new role plus role-specific fields into the profile.
func (h *ProfileHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Role must be student, teacher or department"))
		return
	}

	partial := req.Fields.Clone()
	if partial == nil {
		partial = models.Document{}
	}
	partial[models.FieldRole] = string(role)
	delete(partial, models.FieldUID)

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	doc, err := h.profiles.Update(ctx, userID, partial)
	if err != nil {
		h.log.Error("role update failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update role"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.DecodeProfile(doc)))
}

// PublicProfile is the profile view safe to share with other authenticated
// users: no contact details beyond email, no open extensions.
type PublicProfile struct {
	UID         string      `json:"uid"`
	DisplayName string      `json:"displayName"`
	Role        models.Role `json:"role"`
	PhotoURL    string      `json:"photoURL,omitempty"`
}

func (h *ProfileHandler) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	targetID := chi.URLParam(r, "userId")
	if targetID == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing userId"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	doc, err := h.profiles.Fetch(ctx, targetID)
	if err != nil || doc == nil {
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Profile not found"))
		return
	}

	prof := models.DecodeProfile(doc)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(PublicProfile{
		UID:         prof.UID,
		DisplayName: prof.DisplayName,
		Role:        prof.Role,
		PhotoURL:    prof.PhotoURL,
	}))
}
