package handler

import (
	"errors"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/quizreel/api/internal/model"
	"github.com/quizreel/api/internal/service"
	"github.com/quizreel/api/internal/store"
	"github.com/quizreel/api/pkg/response"
)

type VideoHandler struct {
	service   *service.VideoService
	validator *validator.Validate
}

func NewVideoHandler(svc *service.VideoService, v *validator.Validate) *VideoHandler {
	return &VideoHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/videos/generate. Validation happens here,
// before the pipeline is reached; a rejected submission never creates a
// job. On success the response carries the job ID immediately — all
// generation runs behind it.
func (h *VideoHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateVideoJob(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/videos/status/:jobId
func (h *VideoHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Download handles GET /api/videos/download/:jobId. SendFile serves the
// video with byte-range support so players can scrub.
func (h *VideoHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	path, err := h.service.VideoFilePath(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.NotFound(c, "Video not ready")
	}

	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filepath.Base(path)+`"`)
	return c.SendFile(path)
}

// Asset handles GET /api/videos/assets/:jobId/:filename — intermediate
// images and narration for a live job, resolved strictly inside that
// job's directory.
func (h *VideoHandler) Asset(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	filename := c.Params("filename")
	if jobID == "" || filename == "" {
		return response.ValidationError(c, "Job ID and filename are required", nil)
	}

	path, err := h.service.AssetPath(jobID, filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Asset not found")
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return c.SendFile(path)
}

// Delete handles DELETE /api/videos/:jobId — explicit cleanup of a
// job's files and record ahead of the retention sweep.
func (h *VideoHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.service.CleanupJob(jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
