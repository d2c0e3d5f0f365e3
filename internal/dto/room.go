package dto

import "github.com/jmoiron/sqlx/types"

// CreateRoomRequest registers a room in the bookable pool. Availability is an
// optional JSON map of weekday numbers to open period indexes; absent means
// the room is open for every window.
type CreateRoomRequest struct {
	Name         string         `json:"name" validate:"required"`
	Capacity     int            `json:"capacity" validate:"required,gt=0"`
	Availability types.JSONText `json:"availability,omitempty"`
}
