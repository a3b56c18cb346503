package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/almahub/backend/internal/media"
	"github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
)

type MediaHandler struct {
	mediaService *media.Service
	maxSizeMB    int64
}

func NewMediaHandler(mediaService *media.Service, maxSizeMB int64) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		maxSizeMB:    maxSizeMB,
	}
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	// Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxSizeMB * 1024 * 1024); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File too large or invalid form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("No file provided"))
		return
	}
	defer file.Close()

	response, err := h.mediaService.Upload(userID, header.Filename, file)
	if err != nil {
		if err == media.ErrInvalidType {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File type not allowed"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload file"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(response))
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	fileID := chi.URLParam(r, "fileId")

	err := h.mediaService.Delete(userID, fileID)
	if err != nil {
		if err == media.ErrFileNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("File not found"))
			return
		}
		if err == media.ErrUnauthorized {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to delete this file"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete file"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "File deleted successfully"}))
}
