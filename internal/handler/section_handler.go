package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enroll-api/internal/models"
	"github.com/noah-isme/sma-enroll-api/internal/service"
	"github.com/noah-isme/sma-enroll-api/pkg/response"
)

type sectionLister interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error)
}

type timetableService interface {
	Get(ctx context.Context, sectionID string) (*service.Timetable, error)
	Export(ctx context.Context, sectionID, format string) ([]byte, string, error)
}

// SectionHandler exposes section listing and timetable endpoints.
type SectionHandler struct {
	sections   sectionLister
	timetables timetableService
}

// NewSectionHandler builds a new handler.
func NewSectionHandler(sections sectionLister, timetables timetableService) *SectionHandler {
	return &SectionHandler{sections: sections, timetables: timetables}
}

// List godoc
// @Summary List sections
// @Tags Sections
// @Produce json
// @Param program query string false "Program filter"
// @Param academic_year query string false "Academic year filter"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	filter := models.SectionFilter{
		Program:      c.Query("program"),
		AcademicYear: c.Query("academic_year"),
		Page:         1,
		PageSize:     20,
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && limit > 0 {
		filter.PageSize = limit
	}

	sections, total, err := h.sections.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, sections, pagination)
}

// Timetable godoc
// @Summary Get a section's weekly timetable
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/timetable [get]
func (h *SectionHandler) Timetable(c *gin.Context) {
	timetable, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// ExportTimetable godoc
// @Summary Export a section's timetable as CSV or PDF
// @Tags Sections
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Section ID"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Router /sections/{id}/timetable/export [get]
func (h *SectionHandler) ExportTimetable(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.timetables.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("timetable-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
