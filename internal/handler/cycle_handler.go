package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
	"github.com/noah-isme/sma-enroll-api/pkg/response"
)

type cycleService interface {
	Current(ctx context.Context) (*models.CycleSettings, error)
	Normalize(ctx context.Context) error
	OpenEnrollment(ctx context.Context, req dto.OpenEnrollmentRequest) (*models.CycleSettings, error)
	Reset(ctx context.Context) (*models.CycleSettings, error)
}

// CycleHandler exposes the enrollment-cycle endpoints.
type CycleHandler struct {
	service cycleService
}

// NewCycleHandler builds a new handler.
func NewCycleHandler(service cycleService) *CycleHandler {
	return &CycleHandler{service: service}
}

// Current godoc
// @Summary Get the current enrollment cycle state
// @Tags Cycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cycle [get]
func (h *CycleHandler) Current(c *gin.Context) {
	settings, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCycleResponse(settings), nil)
}

// Open godoc
// @Summary Open the enrollment window for the active semester
// @Tags Cycle
// @Accept json
// @Produce json
// @Param payload body dto.OpenEnrollmentRequest true "Open enrollment payload"
// @Success 200 {object} response.Envelope
// @Router /cycle/open [post]
func (h *CycleHandler) Open(c *gin.Context) {
	var req dto.OpenEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid open enrollment payload"))
		return
	}
	settings, err := h.service.OpenEnrollment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCycleResponse(settings), nil)
}

// Normalize godoc
// @Summary Advance the cycle against wall-clock time
// @Tags Cycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cycle/normalize [post]
func (h *CycleHandler) Normalize(c *gin.Context) {
	if err := h.service.Normalize(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	settings, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCycleResponse(settings), nil)
}

// Reset godoc
// @Summary Reset the cycle to its default state
// @Tags Cycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cycle/reset [post]
func (h *CycleHandler) Reset(c *gin.Context) {
	settings, err := h.service.Reset(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCycleResponse(settings), nil)
}
