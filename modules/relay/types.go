package relay

import (
	"encoding/json"
	"errors"
	"time"

	domain "github.com/example/room-relay/domain/relay"
)

// Store errors.
var (
	ErrRoomExists   = errors.New("room already exists")
	ErrAlreadyBound = errors.New("connection already bound to a room")
)

// ConnID is the opaque connection handle issued at accept time. The core
// never touches the socket itself; the hub maps ConnID back to a transport
// connection.
type ConnID string

// Sender delivers one encoded frame to one connection. Delivery is
// best-effort and must not block; the return value reports whether the frame
// was accepted for delivery.
type Sender interface {
	Send(id ConnID, data []byte) bool
}

// Envelope is the {type, payload} frame exchanged over the wire.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound envelope types.
const (
	TypeCreateRoom = "createRoom"
	TypeJoinRoom   = "joinRoom"
	TypeChat       = "chat"
	TypeLeaveRoom  = "leaveRoom"
)

// Outbound envelope types.
const (
	TypeRoomCreated  = "roomCreated"
	TypeRoomJoined   = "roomJoined"
	TypeError        = "error"
	TypeNewMessage   = "newMessage"
	TypeMemberUpdate = "memberUpdate"
	TypeUserJoined   = "userJoined"
	TypeUserLeft     = "userLeft"
)

// JoinRoomPayload is the inbound payload for joinRoom.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// ChatPayload is the inbound payload for chat.
type ChatPayload struct {
	Message string `json:"message"`
}

// IdentityPayload is the outbound payload for roomCreated and roomJoined:
// the caller's assigned identity plus the full room snapshot at that instant.
type IdentityPayload struct {
	RoomID string       `json:"roomId"`
	Name   string       `json:"name"`
	Emoji  string       `json:"emoji"`
	Room   *domain.Room `json:"room"`
}

// ErrorPayload is the outbound payload for error envelopes.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MemberUpdatePayload is the outbound payload for memberUpdate: always a full
// membership snapshot, never a delta.
type MemberUpdatePayload struct {
	Members     []domain.MemberSnapshot `json:"members"`
	MemberCount int                     `json:"memberCount"`
}

// PresencePayload is the outbound payload for userJoined and userLeft.
type PresencePayload struct {
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomStore owns the room-id -> room mapping. It does no locking of its own:
// all access is serialized by the Router's event mutex.
type RoomStore struct {
	rooms       map[string]*domain.Room
	maxMessages int // 0 means never evict
}

// NewRoomStore creates a room store. maxMessages caps the per-room message
// log; 0 keeps every message for the process lifetime.
func NewRoomStore(maxMessages int) *RoomStore {
	return &RoomStore{
		rooms:       make(map[string]*domain.Room),
		maxMessages: maxMessages,
	}
}

// Create inserts an empty room under id.
func (s *RoomStore) Create(id string) (*domain.Room, error) {
	if _, exists := s.rooms[id]; exists {
		return nil, ErrRoomExists
	}
	room := &domain.Room{
		ID:            id,
		Members:       []domain.MemberSnapshot{},
		Messages:      []domain.ChatMessage{},
		MemberHistory: []domain.MemberActivity{},
	}
	s.rooms[id] = room
	return room, nil
}

// Get returns the room for id.
func (s *RoomStore) Get(id string) (*domain.Room, bool) {
	room, ok := s.rooms[id]
	return room, ok
}

// Exists reports whether a room with id is present.
func (s *RoomStore) Exists(id string) bool {
	_, ok := s.rooms[id]
	return ok
}

// Count returns the number of rooms.
func (s *RoomStore) Count() int {
	return len(s.rooms)
}

// AppendMessage appends msg to the room's log, trimming to maxMessages when
// a cap is set.
func (s *RoomStore) AppendMessage(id string, msg domain.ChatMessage) {
	room, ok := s.rooms[id]
	if !ok {
		return
	}
	room.Messages = append(room.Messages, msg)
	if s.maxMessages > 0 && len(room.Messages) > s.maxMessages {
		room.Messages = room.Messages[len(room.Messages)-s.maxMessages:]
	}
}

// AppendActivity appends one join/leave entry to the room's audit trail.
// The trail is never capped or reordered.
func (s *RoomStore) AppendActivity(id string, activity domain.MemberActivity) {
	room, ok := s.rooms[id]
	if !ok {
		return
	}
	room.MemberHistory = append(room.MemberHistory, activity)
}

// RecomputeMembers replaces the room's member list with a fresh snapshot.
func (s *RoomStore) RecomputeMembers(id string, members []domain.MemberSnapshot) {
	room, ok := s.rooms[id]
	if !ok {
		return
	}
	room.Members = members
}

// Snapshot returns a deep copy of the room, safe to hand out past the
// Router's mutex.
func (s *RoomStore) Snapshot(id string) (*domain.Room, bool) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	cp := &domain.Room{
		ID:            room.ID,
		Members:       make([]domain.MemberSnapshot, len(room.Members)),
		Messages:      make([]domain.ChatMessage, len(room.Messages)),
		MemberHistory: make([]domain.MemberActivity, len(room.MemberHistory)),
	}
	copy(cp.Members, room.Members)
	copy(cp.Messages, room.Messages)
	copy(cp.MemberHistory, room.MemberHistory)
	return cp, true
}

// binding pairs a connection handle with its user record.
type binding struct {
	id   ConnID
	user *domain.User
}

// ConnRegistry owns the connection -> user mapping. Bindings keep insertion
// order so member snapshots are deterministic. Like RoomStore it relies on
// the Router's mutex for serialization.
type ConnRegistry struct {
	order []binding
	index map[ConnID]int
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{index: make(map[ConnID]int)}
}

// Bind inserts a user record for id. A connection may hold at most one
// binding at a time.
func (r *ConnRegistry) Bind(id ConnID, user *domain.User) error {
	if _, exists := r.index[id]; exists {
		return ErrAlreadyBound
	}
	r.index[id] = len(r.order)
	r.order = append(r.order, binding{id: id, user: user})
	return nil
}

// Lookup returns the user bound to id.
func (r *ConnRegistry) Lookup(id ConnID) (*domain.User, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.order[i].user, true
}

// Unbind removes the binding for id and returns the removed user.
func (r *ConnRegistry) Unbind(id ConnID) (*domain.User, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	user := r.order[i].user
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].id] = j
	}
	return user, true
}

// MembersOf returns snapshots of every user bound to room, in binding order.
func (r *ConnRegistry) MembersOf(room string) []domain.MemberSnapshot {
	members := []domain.MemberSnapshot{}
	for _, b := range r.order {
		if b.user.Room != room {
			continue
		}
		members = append(members, domain.MemberSnapshot{
			Name:     b.user.Name,
			Emoji:    b.user.Emoji,
			JoinedAt: b.user.JoinedAt,
		})
	}
	return members
}

// ConnsIn returns the handles of every connection bound to room, in binding
// order, skipping exclude when non-empty.
func (r *ConnRegistry) ConnsIn(room string, exclude ConnID) []ConnID {
	var ids []ConnID
	for _, b := range r.order {
		if b.user.Room != room || b.id == exclude {
			continue
		}
		ids = append(ids, b.id)
	}
	return ids
}

// Len returns the number of live bindings.
func (r *ConnRegistry) Len() int {
	return len(r.order)
}
