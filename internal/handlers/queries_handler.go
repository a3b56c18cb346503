package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
	"github.com/almahub/backend/internal/profile"
	"github.com/almahub/backend/internal/queries"
)

type QueriesHandler struct {
	queriesService *queries.Service
	profiles       *profile.Repository
	log            *zap.Logger
}

func NewQueriesHandler(queriesService *queries.Service, profiles *profile.Repository, log *zap.Logger) *QueriesHandler {
	return &QueriesHandler{
		queriesService: queriesService,
		profiles:       profiles,
		log:            log,
	}
}

func (h *QueriesHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	posts, err := h.queriesService.List(ctx, limit)
	if err != nil {
		h.log.Error("query list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list queries"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(posts))
}

func (h *QueriesHandler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.CreateQueryRequest
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

	author, role := h.authorInfo(r, userID)
	post, err := h.queriesService.Create(ctx, userID, author, role, &req)
	if err != nil {
		h.log.Error("query create failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create post"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(post))
}

func (h *QueriesHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	postID := chi.URLParam(r, "queryId")

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	post, err := h.queriesService.ToggleLike(ctx, userID, postID)
	if err != nil {
		if err == queries.ErrPostNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Post not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update like"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(post))
}

func (h *QueriesHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	postID := chi.URLParam(r, "queryId")

	var req models.CommentRequest
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

	author, _ := h.authorInfo(r, userID)
	post, err := h.queriesService.AddComment(ctx, userID, author, postID, &req)
	if err != nil {
		if err == queries.ErrPostNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Post not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to add comment"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(post))
}

// authorInfo resolves display name and role for attribution, best effort.
func (h *QueriesHandler) authorInfo(r *http.Request, userID string) (string, string) {
	ctx, cancel := contextWithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := h.profiles.Fetch(ctx, userID)
	if err != nil || doc == nil {
		return middleware.GetUserEmail(r.Context()), ""
	}
	author := doc.DisplayName()
	if author == "" {
		author = doc.Email()
	}
	return author, string(doc.Role())
}
