package relay

import "time"

// Action describes a member history entry.
type Action string

const (
	ActionJoined Action = "joined"
	ActionLeft   Action = "left"
)

// User is the binding between one live connection and one room.
type User struct {
	Name     string    `json:"name"`
	Emoji    string    `json:"emoji"`
	Room     string    `json:"room"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MemberSnapshot is the lightweight view of a room occupant sent to clients.
type MemberSnapshot struct {
	Name     string    `json:"name"`
	Emoji    string    `json:"emoji"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ChatMessage is one relayed message. Immutable once appended to a room.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Emoji     string    `json:"emoji"`
}

// MemberActivity is one join/leave audit entry. Append-only.
type MemberActivity struct {
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Room is one broadcast domain. Members is recomputed from the connection
// registry on every membership change; Messages and MemberHistory are
// append-only in event order.
type Room struct {
	ID            string           `json:"id"`
	Members       []MemberSnapshot `json:"members"`
	Messages      []ChatMessage    `json:"messages"`
	MemberHistory []MemberActivity `json:"memberHistory"`
}
