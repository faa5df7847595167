package relay

import (
	"errors"
	"testing"
	"time"

	domain "github.com/example/room-relay/domain/relay"
)

func TestRoomStore_CreateAndGet(t *testing.T) {
	store := NewRoomStore(0)

	room, err := store.Create("ABC123")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if room.ID != "ABC123" {
		t.Errorf("Create() room.ID = %q, want %q", room.ID, "ABC123")
	}
	if len(room.Members) != 0 || len(room.Messages) != 0 || len(room.MemberHistory) != 0 {
		t.Error("Create() room should start empty")
	}

	got, ok := store.Get("ABC123")
	if !ok {
		t.Fatal("Get() expected room to exist")
	}
	if got != room {
		t.Error("Get() returned a different room")
	}

	if _, ok := store.Get("nonexistent"); ok {
		t.Error("Get() nonexistent room should not exist")
	}
}

func TestRoomStore_CreateDuplicate(t *testing.T) {
	store := NewRoomStore(0)

	if _, err := store.Create("ABC123"); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if _, err := store.Create("ABC123"); !errors.Is(err, ErrRoomExists) {
		t.Errorf("Create() duplicate error = %v, want ErrRoomExists", err)
	}
}

func TestRoomStore_AppendMessage_NoCap(t *testing.T) {
	store := NewRoomStore(0)
	store.Create("R")

	for i := range 200 {
		store.AppendMessage("R", domain.ChatMessage{ID: string(rune('a' + i))})
	}

	room, _ := store.Get("R")
	if len(room.Messages) != 200 {
		t.Errorf("Expected 200 messages with no cap, got %d", len(room.Messages))
	}
}

func TestRoomStore_AppendMessage_Cap(t *testing.T) {
	store := NewRoomStore(3)
	store.Create("R")

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		store.AppendMessage("R", domain.ChatMessage{ID: id})
	}

	room, _ := store.Get("R")
	if len(room.Messages) != 3 {
		t.Fatalf("Expected 3 messages with cap 3, got %d", len(room.Messages))
	}
	if room.Messages[0].ID != "3" || room.Messages[2].ID != "5" {
		t.Errorf("Cap should keep the newest messages, got %v", room.Messages)
	}
}

func TestRoomStore_AppendActivity_OrderPreserved(t *testing.T) {
	store := NewRoomStore(0)
	store.Create("R")

	store.AppendActivity("R", domain.MemberActivity{Name: "Alice", Action: domain.ActionJoined})
	store.AppendActivity("R", domain.MemberActivity{Name: "Bob", Action: domain.ActionJoined})
	store.AppendActivity("R", domain.MemberActivity{Name: "Alice", Action: domain.ActionLeft})

	room, _ := store.Get("R")
	if len(room.MemberHistory) != 3 {
		t.Fatalf("Expected 3 history entries, got %d", len(room.MemberHistory))
	}
	if room.MemberHistory[2].Name != "Alice" || room.MemberHistory[2].Action != domain.ActionLeft {
		t.Errorf("History reordered: %v", room.MemberHistory)
	}
}

func TestRoomStore_AppendToMissingRoom(t *testing.T) {
	store := NewRoomStore(0)

	// Must be a no-op, not a panic.
	store.AppendMessage("missing", domain.ChatMessage{ID: "1"})
	store.AppendActivity("missing", domain.MemberActivity{Name: "Alice"})
	store.RecomputeMembers("missing", nil)
}

func TestRoomStore_Snapshot_Isolated(t *testing.T) {
	store := NewRoomStore(0)
	store.Create("R")
	store.AppendMessage("R", domain.ChatMessage{ID: "1", Text: "hi"})

	snap, ok := store.Snapshot("R")
	if !ok {
		t.Fatal("Snapshot() expected room to exist")
	}

	store.AppendMessage("R", domain.ChatMessage{ID: "2"})
	if len(snap.Messages) != 1 {
		t.Errorf("Snapshot should not see later appends, got %d messages", len(snap.Messages))
	}
}

func TestConnRegistry_BindLookupUnbind(t *testing.T) {
	reg := NewConnRegistry()
	user := &domain.User{Name: "Alice", Emoji: "🦊", Room: "R", JoinedAt: time.Now()}

	if err := reg.Bind("c1", user); err != nil {
		t.Fatalf("Bind() unexpected error: %v", err)
	}

	got, ok := reg.Lookup("c1")
	if !ok {
		t.Fatal("Lookup() expected binding to exist")
	}
	if got != user {
		t.Error("Lookup() returned a different user")
	}

	removed, ok := reg.Unbind("c1")
	if !ok || removed != user {
		t.Error("Unbind() should return the bound user")
	}
	if _, ok := reg.Lookup("c1"); ok {
		t.Error("Lookup() after Unbind() should miss")
	}
	if _, ok := reg.Unbind("c1"); ok {
		t.Error("Unbind() twice should miss")
	}
}

func TestConnRegistry_DoubleBind(t *testing.T) {
	reg := NewConnRegistry()
	reg.Bind("c1", &domain.User{Name: "Alice", Room: "R"})

	err := reg.Bind("c1", &domain.User{Name: "Mallory", Room: "R2"})
	if !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("Bind() rebinding error = %v, want ErrAlreadyBound", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Rejected rebind must not grow the registry, Len() = %d", reg.Len())
	}
}

func TestConnRegistry_MembersOf_Order(t *testing.T) {
	reg := NewConnRegistry()
	reg.Bind("c1", &domain.User{Name: "Alice", Room: "R"})
	reg.Bind("c2", &domain.User{Name: "Bob", Room: "other"})
	reg.Bind("c3", &domain.User{Name: "Carol", Room: "R"})
	reg.Bind("c4", &domain.User{Name: "Dan", Room: "R"})

	members := reg.MembersOf("R")
	want := []string{"Alice", "Carol", "Dan"}
	if len(members) != len(want) {
		t.Fatalf("MembersOf() returned %d members, want %d", len(members), len(want))
	}
	for i, name := range want {
		if members[i].Name != name {
			t.Errorf("MembersOf()[%d].Name = %q, want %q", i, members[i].Name, name)
		}
	}

	// Unbinding from the middle keeps the remaining order.
	reg.Unbind("c3")
	members = reg.MembersOf("R")
	if len(members) != 2 || members[0].Name != "Alice" || members[1].Name != "Dan" {
		t.Errorf("MembersOf() after middle unbind = %v", members)
	}

	// Re-deriving without intervening events is identical.
	again := reg.MembersOf("R")
	for i := range members {
		if members[i] != again[i] {
			t.Errorf("MembersOf() not stable at index %d", i)
		}
	}
}

func TestConnRegistry_ConnsIn_Exclude(t *testing.T) {
	reg := NewConnRegistry()
	reg.Bind("c1", &domain.User{Name: "Alice", Room: "R"})
	reg.Bind("c2", &domain.User{Name: "Bob", Room: "R"})

	ids := reg.ConnsIn("R", "c1")
	if len(ids) != 1 || ids[0] != "c2" {
		t.Errorf("ConnsIn() with exclusion = %v, want [c2]", ids)
	}

	ids = reg.ConnsIn("R", "")
	if len(ids) != 2 {
		t.Errorf("ConnsIn() without exclusion returned %d ids, want 2", len(ids))
	}
}
