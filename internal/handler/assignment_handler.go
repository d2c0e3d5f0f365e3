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

type assignmentService interface {
	AssignStudentToSection(ctx context.Context, req dto.AssignSectionRequest) (*models.Section, error)
}

// AssignmentHandler exposes section assignment.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Assign godoc
// @Summary Assign a student to a section
// @Description Places the student into an open section for the program and
// @Description semester, creating a new section with a generated schedule when
// @Description none has room. Retry on a CAPACITY_EXCEEDED response.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignSectionRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	section, err := h.service.AssignStudentToSection(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AssignSectionResponse{
		SectionID:   section.ID,
		SectionName: section.Name,
	}, nil)
}
