package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// RoomRepository handles persistence of rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns all rooms ordered by name.
func (r *RoomRepository) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Room, error) {
	const query = `SELECT id, name, capacity, availability, created_at FROM rooms ORDER BY name ASC`
	var rooms []models.Room
	if err := sqlx.SelectContext(ctx, exec, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Count returns the number of rooms.
func (r *RoomRepository) Count(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	const query = `SELECT COUNT(*) FROM rooms`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return count, nil
}

// Create persists a room record.
func (r *RoomRepository) Create(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rooms (id, name, capacity, availability, created_at)
        VALUES (:id, :name, :capacity, :availability, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}
