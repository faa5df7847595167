package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/example/room-relay/events"
)

func TestModule_CountsEvents(t *testing.T) {
	m := NewModule()
	ctx := context.Background()

	if err := m.handleRoomCreated(ctx, events.RoomCreatedEvent{RoomID: "R"}, nil); err != nil {
		t.Fatalf("handleRoomCreated() error: %v", err)
	}
	for range 2 {
		if err := m.handleUserJoined(ctx, events.UserJoinedEvent{RoomID: "R"}, nil); err != nil {
			t.Fatalf("handleUserJoined() error: %v", err)
		}
	}
	if err := m.handleUserLeft(ctx, events.UserLeftEvent{RoomID: "R"}, nil); err != nil {
		t.Fatalf("handleUserLeft() error: %v", err)
	}
	for range 3 {
		if err := m.handleMessageRelayed(ctx, events.MessageRelayedEvent{RoomID: "R"}, nil); err != nil {
			t.Fatalf("handleMessageRelayed() error: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.roomsCreated); got != 1 {
		t.Errorf("relay_rooms_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.joins); got != 2 {
		t.Errorf("relay_joins_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.leaves); got != 1 {
		t.Errorf("relay_leaves_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.messagesRelayed); got != 3 {
		t.Errorf("relay_messages_total = %v, want 3", got)
	}
}
