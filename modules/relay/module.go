package relay

import (
	"context"
	"log"
	"log/slog"
	"time"

	domain "github.com/example/room-relay/domain/relay"
	"github.com/example/room-relay/events"
	"github.com/go-monolith/mono"
)

// Module wraps the relay core as a mono module and publishes domain events
// to the application event bus.
type Module struct {
	router   *Router
	rooms    *RoomStore
	conns    *ConnRegistry
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
	_ EventSink                = (*Module)(nil)
)

// NewModule creates the relay module. sender is the broadcast hub;
// maxMessages caps the per-room message log (0 = never evict).
func NewModule(sender Sender, maxMessages int) *Module {
	m := &Module{
		rooms: NewRoomStore(maxMessages),
		conns: NewConnRegistry(),
	}
	m.router = NewRouter(m.rooms, m.conns, sender, m, slog.Default())
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.MessageRelayedV1.ToBase(),
	}
}

// Start logs readiness; all state is built in NewModule.
func (m *Module) Start(_ context.Context) error {
	log.Println("[relay] Module started - rooms and registry in process memory")
	return nil
}

// Stop discards nothing: state is process memory by design and dies with it.
func (m *Module) Stop(_ context.Context) error {
	log.Printf("[relay] Module stopped - %d rooms, %d live bindings discarded",
		m.rooms.Count(), m.conns.Len())
	return nil
}

// Router returns the protocol router for the transport layer to drive.
func (m *Module) Router() *Router {
	return m.router
}

// RoomCreated publishes a RoomCreated event.
func (m *Module) RoomCreated(roomID, createdBy string, at time.Time) {
	if m.eventBus == nil {
		return
	}
	ev := events.RoomCreatedEvent{RoomID: roomID, CreatedBy: createdBy, Timestamp: at}
	if err := events.RoomCreatedV1.Publish(m.eventBus, ev, nil); err != nil {
		slog.Warn("Failed to publish RoomCreated event", "error", err)
	}
}

// UserJoined publishes a UserJoined event.
func (m *Module) UserJoined(roomID string, user *domain.User) {
	if m.eventBus == nil {
		return
	}
	ev := events.UserJoinedEvent{
		RoomID:    roomID,
		Name:      user.Name,
		Emoji:     user.Emoji,
		Timestamp: user.JoinedAt,
	}
	if err := events.UserJoinedV1.Publish(m.eventBus, ev, nil); err != nil {
		slog.Warn("Failed to publish UserJoined event", "error", err)
	}
}

// UserLeft publishes a UserLeft event.
func (m *Module) UserLeft(roomID string, user *domain.User, at time.Time) {
	if m.eventBus == nil {
		return
	}
	ev := events.UserLeftEvent{
		RoomID:    roomID,
		Name:      user.Name,
		Emoji:     user.Emoji,
		Timestamp: at,
	}
	if err := events.UserLeftV1.Publish(m.eventBus, ev, nil); err != nil {
		slog.Warn("Failed to publish UserLeft event", "error", err)
	}
}

// MessageRelayed publishes a MessageRelayed event.
func (m *Module) MessageRelayed(roomID string, msg domain.ChatMessage) {
	if m.eventBus == nil {
		return
	}
	ev := events.MessageRelayedEvent{
		RoomID:    roomID,
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
	}
	if err := events.MessageRelayedV1.Publish(m.eventBus, ev, nil); err != nil {
		slog.Warn("Failed to publish MessageRelayed event", "error", err)
	}
}
