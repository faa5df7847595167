package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/joho/godotenv"

	"github.com/example/room-relay/modules/broadcast"
	"github.com/example/room-relay/modules/metrics"
	"github.com/example/room-relay/modules/relay"
	"github.com/example/room-relay/modules/wsserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Room Relay - WebSocket fan-out over Fiber + EventBus ===")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	port := getEnv("PORT", "8080")
	maxMessages := getEnvInt("RELAY_MAX_MESSAGES", 0)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	broadcastModule := broadcast.NewModule()
	relayModule := relay.NewModule(broadcastModule.GetHub(), maxMessages)
	metricsModule := metrics.NewModule()
	serverModule := wsserver.NewModule(
		":"+port,
		relayModule.Router(),
		broadcastModule.GetHub(),
		metricsModule.Handler(),
	)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - relay: Core domain (protocol router + stores, event emitter)
	// - metrics: Event consumer (Prometheus counters)
	// - broadcast: Outbound fan-out (per-connection writer queues)
	// - ws-server: Driving adapter (Fiber WebSocket server)
	app.Register(relayModule)
	app.Register(metricsModule)
	app.Register(broadcastModule)
	app.Register(serverModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port, maxMessages)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port string, maxMessages int) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - Transport: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub, metrics only)")
	log.Println("  - State: process memory, discarded on restart")
	if maxMessages > 0 {
		log.Printf("  - Message log cap: %d per room", maxMessages)
	} else {
		log.Println("  - Message log cap: none (never evict)")
	}
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Client envelopes: createRoom, joinRoom, chat, leaveRoom")
	log.Println("  Server envelopes: roomCreated, roomJoined, error, newMessage,")
	log.Println("                    memberUpdate, userJoined, userLeft")
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", port)
	log.Println("  GET /health            - Health check")
	log.Println("  GET /metrics           - Prometheus metrics")
	log.Println("  GET /api/v1/rooms/:id  - Room snapshot (diagnostics)")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// getEnv returns the env var or a default.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses an int env var with a fallback.
func getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid %s %q, using default %d", k, v, def)
		return def
	}
	return n
}
