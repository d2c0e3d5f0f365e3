package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Meeting is one weekly (course, room, day, slot) occurrence of a section.
// DayOfWeek runs 1 (Monday) through 5 (Friday) and Slot runs 1 through 5.
// Unique on (room_id, day_of_week, slot) and (section_id, day_of_week, slot).
type Meeting struct {
	ID          string    `db:"id" json:"id"`
	SectionID   string    `db:"section_id" json:"section_id"`
	CourseCode  string    `db:"course_code" json:"course_code"`
	RoomID      string    `db:"room_id" json:"room_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	Slot        int       `db:"slot" json:"slot"`
	DisplayTime string    `db:"display_time" json:"display_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MeetingDetail enriches Meeting with the room name for timetable views.
type MeetingDetail struct {
	Meeting
	RoomName string `db:"room_name" json:"room_name"`
}

// RoomWindow is one (day, slot) pair in a room's availability set.
type RoomWindow struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}

// Room is a bookable room. An empty availability set means the room is
// available every slot.
type Room struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Capacity     int            `db:"capacity" json:"capacity"`
	Availability types.JSONText `db:"availability" json:"availability,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AvailableAt reports whether the room admits the given (day, slot). Malformed
// availability payloads are treated as always-available.
func (r *Room) AvailableAt(day, slot int) bool {
	if len(r.Availability) == 0 {
		return true
	}
	var windows []RoomWindow
	if err := json.Unmarshal(r.Availability, &windows); err != nil {
		return true
	}
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Day == day && w.Slot == slot {
			return true
		}
	}
	return false
}
