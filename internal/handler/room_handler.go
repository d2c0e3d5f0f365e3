package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
	"github.com/noah-isme/sma-enroll-api/pkg/response"
)

type roomRepository interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Room, error)
	Create(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error
}

// RoomHandler exposes the room pool.
type RoomHandler struct {
	db       *sqlx.DB
	rooms    roomRepository
	validate *validator.Validate
}

// NewRoomHandler builds a new handler.
func NewRoomHandler(db *sqlx.DB, rooms roomRepository) *RoomHandler {
	return &RoomHandler{db: db, rooms: rooms, validate: validator.New()}
}

// List godoc
// @Summary List bookable rooms
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *RoomHandler) List(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context(), h.db)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Create godoc
// @Summary Register a room
// @Description Adds a room to the pool considered by schedule generation.
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body dto.CreateRoomRequest true "Room payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}

	room := models.Room{
		Name:         req.Name,
		Capacity:     req.Capacity,
		Availability: req.Availability,
	}
	if err := h.rooms.Create(c.Request.Context(), h.db, &room); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}
