package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

type roomRepositoryMock struct {
	rooms   []models.Room
	listErr error
	created *models.Room
}

func (m *roomRepositoryMock) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Room, error) {
	return m.rooms, m.listErr
}

func (m *roomRepositoryMock) Create(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error {
	room.ID = "room-1"
	m.created = room
	return nil
}

func TestRoomHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRepo := &roomRepositoryMock{
		rooms: []models.Room{{ID: "room-1", Name: "ROOM 1", Capacity: 40}},
	}
	handler := NewRoomHandler(nil, mockRepo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/rooms", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.Room `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ROOM 1", body.Data[0].Name)
}

func TestRoomHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRepo := &roomRepositoryMock{}
	handler := NewRoomHandler(nil, mockRepo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"name":"LAB A","capacity":30}`
	c.Request, _ = http.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockRepo.created)
	assert.Equal(t, "LAB A", mockRepo.created.Name)
	assert.Equal(t, 30, mockRepo.created.Capacity)
}

func TestRoomHandlerCreateRejectsZeroCapacity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockRepo := &roomRepositoryMock{}
	handler := NewRoomHandler(nil, mockRepo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	payload := `{"name":"LAB B","capacity":0}`
	c.Request, _ = http.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mockRepo.created)
}
