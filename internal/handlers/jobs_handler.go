package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/almahub/backend/internal/jobs"
	"github.com/almahub/backend/internal/middleware"
	"github.com/almahub/backend/internal/models"
)

type JobsHandler struct {
	jobsService *jobs.Service
	log         *zap.Logger
}

func NewJobsHandler(jobsService *jobs.Service, log *zap.Logger) *JobsHandler {
	return &JobsHandler{jobsService: jobsService, log: log}
}

// ListJobs supports q (title/company search), location, type, page and limit
// query parameters.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := models.JobFilter{
		Query:    q.Get("q"),
		Location: q.Get("location"),
		Type:     q.Get("type"),
		Page:     page,
		Limit:    limit,
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result, err := h.jobsService.List(ctx, filter)
	if err != nil {
		h.log.Error("job list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list jobs"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(result))
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	job, err := h.jobsService.GetByID(ctx, jobID)
	if err != nil {
		if err == jobs.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Job not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to get job"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(job))
}

func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.CreateJobRequest
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

	job, err := h.jobsService.Create(ctx, userID, &req)
	if err != nil {
		h.log.Error("job create failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create job"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(job))
}

func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	jobID := chi.URLParam(r, "jobId")

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.jobsService.Delete(ctx, userID, jobID)
	if err != nil {
		if err == jobs.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Job not found"))
			return
		}
		if err == jobs.ErrUnauthorized {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to delete this job"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete job"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Job deleted"}))
}

func (h *JobsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	jobID := chi.URLParam(r, "jobId")

	var req models.ApplyRequest
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

	app, err := h.jobsService.Apply(ctx, userID, jobID, &req)
	if err != nil {
		if err == jobs.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Job not found"))
			return
		}
		if err == jobs.ErrAlreadyApplied {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Already applied to this job"))
			return
		}
		h.log.Error("job apply failed", zap.String("uid", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to submit application"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(app))
}

func (h *JobsHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	jobID := chi.URLParam(r, "jobId")

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	apps, err := h.jobsService.ListApplications(ctx, userID, jobID)
	if err != nil {
		if err == jobs.ErrJobNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Job not found"))
			return
		}
		if err == jobs.ErrUnauthorized {
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Only the poster can view applications"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list applications"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(apps))
}
