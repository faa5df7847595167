// Package metrics observes relay domain events and exposes Prometheus
// counters. It sits entirely on the event bus: the relay core does not know
// it exists.
package metrics

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/room-relay/events"
)

// Module consumes relay events and counts them.
type Module struct {
	registry *prometheus.Registry

	roomsCreated    prometheus.Counter
	joins           prometheus.Counter
	leaves          prometheus.Counter
	messagesRelayed prometheus.Counter
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventConsumerModule = (*Module)(nil)
)

// NewModule creates the metrics module with its own registry.
func NewModule() *Module {
	m := &Module{
		registry: prometheus.NewRegistry(),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_rooms_created_total",
			Help: "Rooms created since process start.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_joins_total",
			Help: "Successful room joins, room creations included.",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_leaves_total",
			Help: "Bindings removed by leaveRoom or transport close.",
		}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Chat messages appended and fanned out.",
		}),
	}
	m.registry.MustRegister(m.roomsCreated, m.joins, m.leaves, m.messagesRelayed)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "metrics"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	log.Println("[metrics] Module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[metrics] Module stopped")
	return nil
}

// RegisterEventConsumers subscribes to the relay's domain events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageRelayedV1, m.handleMessageRelayed, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageRelayed consumer: %w", err)
	}

	log.Println("[metrics] Registered event consumers: RoomCreated, UserJoined, UserLeft, MessageRelayed")
	return nil
}

// Handler serves the metrics registry over HTTP.
func (m *Module) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Module) handleRoomCreated(_ context.Context, _ events.RoomCreatedEvent, _ *mono.Msg) error {
	m.roomsCreated.Inc()
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, _ events.UserJoinedEvent, _ *mono.Msg) error {
	m.joins.Inc()
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, _ events.UserLeftEvent, _ *mono.Msg) error {
	m.leaves.Inc()
	return nil
}

func (m *Module) handleMessageRelayed(_ context.Context, _ events.MessageRelayedEvent, _ *mono.Msg) error {
	m.messagesRelayed.Inc()
	return nil
}
