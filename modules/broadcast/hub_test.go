package broadcast

import (
	"sync"
	"testing"
	"time"
)

// recordingConn collects written frames and signals each write.
type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
	wrote  chan struct{}
	closed chan struct{}
}

func newRecordingConn() *recordingConn {
	return &recordingConn{
		wrote:  make(chan struct{}, 64),
		closed: make(chan struct{}),
	}
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	c.wrote <- struct{}{}
	return nil
}

func (c *recordingConn) Close() error {
	close(c.closed)
	return nil
}

func (c *recordingConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// blockedConn stalls every write until released, simulating a slow consumer.
type blockedConn struct {
	release chan struct{}
}

func (c *blockedConn) WriteMessage(_ int, _ []byte) error {
	<-c.release
	return nil
}

func (c *blockedConn) Close() error { return nil }

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestHub_AttachSendDetach(t *testing.T) {
	hub := NewHub()
	conn := newRecordingConn()

	hub.Attach("c1", conn)
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}

	if !hub.Send("c1", []byte(`{"type":"memberUpdate"}`)) {
		t.Fatal("Send() to attached connection should succeed")
	}
	waitFor(t, conn.wrote, "frame delivery")
	if conn.frameCount() != 1 {
		t.Errorf("connection received %d frames, want 1", conn.frameCount())
	}

	hub.Detach("c1")
	waitFor(t, conn.closed, "connection close")
	if hub.Count() != 0 {
		t.Errorf("Count() after detach = %d, want 0", hub.Count())
	}
}

func TestHub_SendUnknownConnection(t *testing.T) {
	hub := NewHub()

	if hub.Send("ghost", []byte("x")) {
		t.Error("Send() to unattached connection should report failure")
	}
}

func TestHub_SendAfterDetach(t *testing.T) {
	hub := NewHub()
	conn := newRecordingConn()

	hub.Attach("c1", conn)
	hub.Detach("c1")
	waitFor(t, conn.closed, "connection close")

	if hub.Send("c1", []byte("x")) {
		t.Error("Send() after detach should report failure")
	}
}

func TestHub_SlowConsumerDoesNotBlock(t *testing.T) {
	hub := NewHub()
	conn := &blockedConn{release: make(chan struct{})}
	hub.Attach("c1", conn)
	defer func() {
		close(conn.release)
		hub.Detach("c1")
	}()

	// The writer takes one frame off the queue and blocks in WriteMessage;
	// everything past the queue capacity must be dropped, not block us.
	done := make(chan int)
	go func() {
		dropped := 0
		for range sendQueueSize + 2 {
			if !hub.Send("c1", []byte("frame")) {
				dropped++
			}
		}
		done <- dropped
	}()

	select {
	case dropped := <-done:
		if dropped == 0 {
			t.Error("expected frames to be dropped once the queue filled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send() blocked on a slow consumer")
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	conns := []*recordingConn{newRecordingConn(), newRecordingConn()}
	hub.Attach("c1", conns[0])
	hub.Attach("c2", conns[1])

	hub.CloseAll()

	for _, conn := range conns {
		waitFor(t, conn.closed, "connection close")
	}
	if hub.Count() != 0 {
		t.Errorf("Count() after CloseAll = %d, want 0", hub.Count())
	}
}
