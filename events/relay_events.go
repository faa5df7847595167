package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when a connection creates a new room.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection is bound into a room.
type UserJoinedEvent struct {
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Timestamp time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a binding is removed by leave or close.
type UserLeftEvent struct {
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageRelayedEvent is emitted after a chat message has been fanned out.
type MessageRelayedEvent struct {
	RoomID    string    `json:"room_id"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"relay",
		"RoomCreated",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"relay",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"relay",
		"UserLeft",
		"v1",
	)

	MessageRelayedV1 = helper.EventDefinition[MessageRelayedEvent](
		"relay",
		"MessageRelayed",
		"v1",
	)
)
