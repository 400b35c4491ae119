package models

import "github.com/google/uuid"

// RoomEvent holds the minimal info the historian needs about something that
// happened in a room: lifecycle changes and turn actions.
type RoomEvent struct {
	ID          uuid.UUID              `json:"id"`
	GameID      string                 `json:"game_id"`
	ActionIndex int                    `json:"action_index"`
	ActorID     string                 `json:"actor_id,omitempty"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// Room lifecycle action types. Turn actions use their wire event names.
const (
	ActionRoomCreated   = "room_created"
	ActionRoomDestroyed = "room_destroyed"
)
