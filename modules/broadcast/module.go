package broadcast

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// BroadcastModule owns the WebSocket hub and ties its lifetime to the
// application.
type BroadcastModule struct {
	hub *Hub
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*BroadcastModule)(nil)
	_ mono.HealthCheckableModule = (*BroadcastModule)(nil)
)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{hub: NewHub()}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module. Writers are started per connection on
// Attach, so there is nothing to run here.
func (m *BroadcastModule) Start(_ context.Context) error {
	log.Println("[broadcast] Module started - hub ready")
	return nil
}

// Stop shuts down the module and every attached connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	count := m.hub.Count()
	m.hub.CloseAll()
	log.Printf("[broadcast] Module stopped - %d connections closed", count)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"attached_connections": m.hub.Count(),
		},
	}
}

// GetHub returns the hub for the relay and server modules to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
