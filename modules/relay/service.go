package relay

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	domain "github.com/example/room-relay/domain/relay"
	"github.com/example/room-relay/modules/identity"
)

// roomIDAttempts bounds the collision-check loop on room creation. After the
// last attempt the id is used as-is; at that point the generator has failed
// five times against a 36^6 space and something else is wrong.
const roomIDAttempts = 5

// EventSink receives domain events after the corresponding state mutation
// and fan-out have completed. Implementations must not block.
type EventSink interface {
	RoomCreated(roomID, createdBy string, at time.Time)
	UserJoined(roomID string, user *domain.User)
	UserLeft(roomID string, user *domain.User, at time.Time)
	MessageRelayed(roomID string, msg domain.ChatMessage)
}

// Router is the protocol state machine. It interprets inbound envelopes,
// mutates the room store and connection registry, and fans out the resulting
// envelopes through the sender.
//
// One mutex serializes every inbound event across all connections, so the
// stores need no locking of their own. Nothing slow runs under the mutex:
// sends are non-blocking enqueues on the hub.
type Router struct {
	mu     sync.Mutex
	rooms  *RoomStore
	conns  *ConnRegistry
	sender Sender
	events EventSink
	logger *slog.Logger
	live   int
}

// NewRouter creates a router over the given stores. events may be nil.
func NewRouter(rooms *RoomStore, conns *ConnRegistry, sender Sender, events EventSink, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		rooms:  rooms,
		conns:  conns,
		sender: sender,
		events: events,
		logger: logger,
	}
}

// HandleConnect records a new live connection. The connection stays Unbound
// until it sends createRoom or joinRoom.
func (r *Router) HandleConnect(id ConnID) {
	r.mu.Lock()
	r.live++
	r.mu.Unlock()
	r.logger.Debug("connection opened", "connID", id)
}

// HandleMessage processes one inbound frame from id. Malformed frames and
// unknown types are logged and dropped; the connection stays open.
func (r *Router) HandleMessage(id ConnID, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("dropping malformed frame", "connID", id, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch env.Type {
	case TypeCreateRoom:
		r.handleCreateRoom(id, env.Payload)
	case TypeJoinRoom:
		r.handleJoinRoom(id, env.Payload)
	case TypeChat:
		r.handleChat(id, env.Payload)
	case TypeLeaveRoom:
		r.handleLeave(id, time.Now())
	default:
		r.logger.Warn("dropping unknown envelope type", "connID", id, "type", env.Type)
	}
}

// HandleClose runs the leave transition for a closed connection, if it was
// bound, and decrements the live counter.
func (r *Router) HandleClose(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handleLeave(id, time.Now())
	r.live--
	r.logger.Debug("connection closed", "connID", id)
}

// LiveConnections returns the number of open connections, bound or not.
func (r *Router) LiveConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// RoomCount returns the number of rooms in the store.
func (r *Router) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.Count()
}

// RoomSnapshot returns a copy of the room, safe for use outside the router.
func (r *Router) RoomSnapshot(roomID string) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.Snapshot(roomID)
}

// handleCreateRoom creates a room, binds the caller into it and replies with
// the caller's identity plus the room snapshot. Caller holds r.mu.
func (r *Router) handleCreateRoom(id ConnID, payload json.RawMessage) {
	var name string
	if err := json.Unmarshal(payload, &name); err != nil {
		r.logger.Warn("dropping createRoom with bad payload", "connID", id, "error", err)
		return
	}
	if _, bound := r.conns.Lookup(id); bound {
		r.logger.Warn("dropping createRoom from bound connection", "connID", id)
		return
	}

	roomID := r.newRoomID()
	room, err := r.rooms.Create(roomID)
	if err != nil {
		// Unreachable after the collision loop unless the store is shared
		// with another writer.
		r.logger.Error("room id collision", "roomID", roomID, "error", err)
		return
	}

	now := time.Now()
	user := &domain.User{
		Name:     name,
		Emoji:    identity.Emoji(),
		Room:     roomID,
		JoinedAt: now,
	}
	if err := r.conns.Bind(id, user); err != nil {
		r.logger.Error("bind failed", "connID", id, "error", err)
		return
	}

	r.rooms.AppendActivity(roomID, domain.MemberActivity{
		Name:      user.Name,
		Emoji:     user.Emoji,
		Action:    domain.ActionJoined,
		Timestamp: now,
	})
	r.updateRoomMembers(roomID)

	r.sendTo(id, TypeRoomCreated, IdentityPayload{
		RoomID: roomID,
		Name:   user.Name,
		Emoji:  user.Emoji,
		Room:   room,
	})

	if r.events != nil {
		r.events.RoomCreated(roomID, user.Name, now)
		r.events.UserJoined(roomID, user)
	}
	r.logger.Info("room created", "roomID", roomID, "name", user.Name)
}

// handleJoinRoom binds the caller into an existing room. A missing room is a
// domain error reported back to the caller; the connection stays Unbound.
// Caller holds r.mu.
func (r *Router) handleJoinRoom(id ConnID, payload json.RawMessage) {
	var req JoinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logger.Warn("dropping joinRoom with bad payload", "connID", id, "error", err)
		return
	}
	if _, bound := r.conns.Lookup(id); bound {
		r.logger.Warn("dropping joinRoom from bound connection", "connID", id)
		return
	}

	room, ok := r.rooms.Get(req.RoomID)
	if !ok {
		r.sendTo(id, TypeError, ErrorPayload{Message: "Room does not exist"})
		return
	}

	now := time.Now()
	user := &domain.User{
		Name:     req.Name,
		Emoji:    identity.Emoji(),
		Room:     req.RoomID,
		JoinedAt: now,
	}
	if err := r.conns.Bind(id, user); err != nil {
		r.logger.Error("bind failed", "connID", id, "error", err)
		return
	}

	r.rooms.AppendActivity(req.RoomID, domain.MemberActivity{
		Name:      user.Name,
		Emoji:     user.Emoji,
		Action:    domain.ActionJoined,
		Timestamp: now,
	})
	r.updateRoomMembers(req.RoomID)

	r.sendTo(id, TypeRoomJoined, IdentityPayload{
		RoomID: req.RoomID,
		Name:   user.Name,
		Emoji:  user.Emoji,
		Room:   room,
	})
	r.broadcast(req.RoomID, TypeUserJoined, PresencePayload{
		Name:      user.Name,
		Emoji:     user.Emoji,
		Timestamp: now,
	}, id)

	if r.events != nil {
		r.events.UserJoined(req.RoomID, user)
	}
	r.logger.Info("user joined room", "roomID", req.RoomID, "name", user.Name)
}

// handleChat appends a message to the caller's room and fans it out to every
// occupant, the sender included: the relay is the single source of truth for
// the message's canonical id and timestamp. A chat from an Unbound
// connection is a silent no-op. Caller holds r.mu.
func (r *Router) handleChat(id ConnID, payload json.RawMessage) {
	user, ok := r.conns.Lookup(id)
	if !ok {
		return
	}
	if !r.rooms.Exists(user.Room) {
		return
	}

	var req ChatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logger.Warn("dropping chat with bad payload", "connID", id, "error", err)
		return
	}

	now := time.Now()
	msg := domain.ChatMessage{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Text:      req.Message,
		Sender:    user.Name,
		Timestamp: now,
		Emoji:     user.Emoji,
	}
	r.rooms.AppendMessage(user.Room, msg)
	r.broadcast(user.Room, TypeNewMessage, msg, "")

	if r.events != nil {
		r.events.MessageRelayed(user.Room, msg)
	}
}

// handleLeave removes the caller's binding, records the departure and
// notifies the remaining occupants. Shared by leaveRoom and transport close;
// an Unbound caller is a silent no-op. Caller holds r.mu.
func (r *Router) handleLeave(id ConnID, now time.Time) {
	user, ok := r.conns.Lookup(id)
	if !ok {
		return
	}

	roomID := user.Room
	if r.rooms.Exists(roomID) {
		r.rooms.AppendActivity(roomID, domain.MemberActivity{
			Name:      user.Name,
			Emoji:     user.Emoji,
			Action:    domain.ActionLeft,
			Timestamp: now,
		})
	}

	r.conns.Unbind(id)
	r.updateRoomMembers(roomID)
	r.broadcast(roomID, TypeUserLeft, PresencePayload{
		Name:      user.Name,
		Emoji:     user.Emoji,
		Timestamp: now,
	}, "")

	if r.events != nil {
		r.events.UserLeft(roomID, user, now)
	}
	r.logger.Info("user left room", "roomID", roomID, "name", user.Name)
}

// updateRoomMembers recomputes the room's member snapshot from the registry
// and broadcasts it to every occupant. Full snapshot, never a delta: a client
// that misses one update is resynchronized by the next. Caller holds r.mu.
func (r *Router) updateRoomMembers(roomID string) {
	if !r.rooms.Exists(roomID) {
		return
	}
	members := r.conns.MembersOf(roomID)
	r.rooms.RecomputeMembers(roomID, members)
	r.broadcast(roomID, TypeMemberUpdate, MemberUpdatePayload{
		Members:     members,
		MemberCount: len(members),
	}, "")
}

// newRoomID draws ids until one misses the store, bounded by roomIDAttempts.
func (r *Router) newRoomID() string {
	id := identity.RoomID()
	for range roomIDAttempts - 1 {
		if !r.rooms.Exists(id) {
			return id
		}
		id = identity.RoomID()
	}
	return id
}

// broadcast encodes one envelope and enqueues it for every connection bound
// to roomID, skipping exclude when non-empty. Caller holds r.mu.
func (r *Router) broadcast(roomID, envType string, payload any, exclude ConnID) {
	data, err := encodeEnvelope(envType, payload)
	if err != nil {
		r.logger.Error("failed to encode broadcast envelope", "type", envType, "error", err)
		return
	}
	for _, id := range r.conns.ConnsIn(roomID, exclude) {
		if !r.sender.Send(id, data) {
			r.logger.Warn("dropped frame for slow or closed connection", "connID", id, "type", envType)
		}
	}
}

// sendTo encodes one envelope and enqueues it for a single connection.
func (r *Router) sendTo(id ConnID, envType string, payload any) {
	data, err := encodeEnvelope(envType, payload)
	if err != nil {
		r.logger.Error("failed to encode envelope", "type", envType, "error", err)
		return
	}
	if !r.sender.Send(id, data) {
		r.logger.Warn("dropped frame for slow or closed connection", "connID", id, "type", envType)
	}
}

func encodeEnvelope(envType string, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: envType, Payload: p})
}
