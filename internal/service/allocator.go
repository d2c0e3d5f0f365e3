package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

type bookingReader interface {
	ListBookedRoomIDs(ctx context.Context, exec sqlx.ExtContext, day, slot int) ([]string, error)
}

// RoomAllocator picks a free room for a day/slot window. Rooms are scanned in
// the caller-provided order so allocation stays deterministic across runs.
type RoomAllocator struct {
	meetings bookingReader
	logger   *zap.Logger
}

// NewRoomAllocator constructs a RoomAllocator.
func NewRoomAllocator(meetings bookingReader, logger *zap.Logger) *RoomAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomAllocator{meetings: meetings, logger: logger}
}

// FindFreeRoom returns the first candidate room that declares itself available
// for the window and has no meeting booked in it. It returns (nil, nil) when
// every room is taken.
func (a *RoomAllocator) FindFreeRoom(ctx context.Context, exec sqlx.ExtContext, day, slot int, candidates []models.Room) (*models.Room, error) {
	bookedIDs, err := a.meetings.ListBookedRoomIDs(ctx, exec, day, slot)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]struct{}, len(bookedIDs))
	for _, id := range bookedIDs {
		booked[id] = struct{}{}
	}
	for i := range candidates {
		room := &candidates[i]
		if !room.AvailableAt(day, slot) {
			continue
		}
		if _, taken := booked[room.ID]; taken {
			continue
		}
		return room, nil
	}
	a.logger.Debug("no free room for window", zap.Int("day", day), zap.Int("slot", slot))
	return nil, nil
}
