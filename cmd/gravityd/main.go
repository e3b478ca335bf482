package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/gravityboard/gravityd/internal/api"
	"github.com/gravityboard/gravityd/internal/config"
	"github.com/gravityboard/gravityd/internal/deadline"
	"github.com/gravityboard/gravityd/internal/focus"
	"github.com/gravityboard/gravityd/internal/gravity"
	"github.com/gravityboard/gravityd/internal/notify"
	"github.com/gravityboard/gravityd/internal/observability"
	"github.com/gravityboard/gravityd/internal/store"
)

// meteredSink forwards deadline events to the notification center and
// counts them
type meteredSink struct {
	center  *notify.Center
	metrics *observability.Metrics
}

func (s *meteredSink) Notify(ev deadline.Event) {
	s.center.Notify(ev)
	s.metrics.NotificationFired(string(ev.Threshold))
}

func main() {
	log.Println("gravityd - task gravity daemon")
	log.Println("==============================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	configPath := os.Getenv("GRAVITYD_CONFIG")
	if configPath == "" {
		configPath = "gravityd.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure state directory exists
	os.MkdirAll(cfg.StatePath, 0755)

	db, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	engine := gravity.NewEngine()

	focusSched := focus.NewScheduler(focus.WithStore(db))
	if err := focusSched.Load(); err != nil {
		log.Printf("Warning: failed to load active sessions: %v", err)
	}
	focusSched.StartSweeper(cfg.SweepInterval.Std())

	center := notify.NewCenter(db)
	if err := center.Load(); err != nil {
		log.Printf("Warning: failed to load notifications: %v", err)
	}

	deadlineSched := deadline.NewScheduler(db, &meteredSink{center: center, metrics: metrics},
		deadline.WithTickInterval(cfg.TickInterval.Std()))
	deadlineSched.Start()

	var discord *notify.DiscordEffector
	if cfg.DiscordEnabled() {
		discord, err = notify.NewDiscordEffector(cfg.Discord.Token, cfg.Discord.ChannelID, center)
		if err != nil {
			log.Fatalf("Failed to create Discord effector: %v", err)
		}
		if err := discord.Start(); err != nil {
			log.Fatalf("Failed to start Discord effector: %v", err)
		}
	} else {
		log.Println("[main] Discord delivery disabled (no token/channel configured)")
	}

	srv := api.New(db, engine, focusSched, center, deadlineSched, metrics)

	corsOpts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}
	if len(cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = cfg.AllowedOrigins
	} else {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	handler := cors.New(corsOpts).Handler(srv.Router())
	handler = handlers.LoggingHandler(os.Stdout, handler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("[main] Listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("[main] All subsystems started. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}

	deadlineSched.Stop()
	focusSched.Stop()
	if discord != nil {
		discord.Stop()
	}

	log.Println("[main] Goodbye!")
}
