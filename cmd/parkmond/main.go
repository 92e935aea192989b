package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-monitor-backend/config"
	"parking-monitor-backend/internal/api"
	"parking-monitor-backend/internal/db"
	"parking-monitor-backend/internal/model"
	"parking-monitor-backend/internal/monitor"
	"parking-monitor-backend/internal/notification"
	"parking-monitor-backend/internal/parse"
	"parking-monitor-backend/internal/remote"
	"parking-monitor-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Default dashboard geometry reported by the rendering surface on attach.
const (
	defaultViewportW = 1920
	defaultViewportH = 1080
	hoverCardW       = 280
	hoverCardH       = 160
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "parkmond ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	var layout []model.Slot
	if err := gormDB.Order("name").Find(&layout).Error; err != nil {
		logger.Fatalf("failed to load slot layout: %v", err)
	}
	if len(layout) == 0 {
		logger.Println("warning: slot layout is empty; provision slots before serving dashboards")
	}
	labels := make(map[string]string, len(layout))
	for _, slot := range layout {
		labels[slot.Name] = slot.Label
	}

	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)

	// Notification worker pool for vacancy pushes.
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	gateway := remote.NewGateway(&cfg.Remote)
	projector := monitor.NewProjector(layout, metrics)

	// Every committed projection is reconciled into the open/history tables;
	// slots that became vacant are handed to the notification pool.
	projector.OnUpdate(func(proj monitor.Projection) {
		vacated, err := appStore.RecordObservations(ctx, proj.PushedAt, observationsFrom(proj))
		if err != nil {
			logger.Printf("failed to record occupancy observations: %v", err)
			return
		}
		for _, slotName := range vacated {
			workerPool.Dispatch(slotName)
		}
	})

	session := monitor.NewSession(cfg, gateway, projector, labels,
		monitor.Size{W: defaultViewportW, H: defaultViewportH},
		monitor.Size{W: hoverCardW, H: hoverCardH},
		metrics)
	go session.Run(ctx)

	onSubscribeError := func(err error) {
		metrics.SubscriptionErrors.Inc()
		logger.Printf("remote store subscription error: %v", err)
	}
	go gateway.Subscribe(ctx, cfg.Remote.Paths.Occupancy, func(snap remote.Snapshot) {
		session.Post(monitor.PushReceived{Snap: snap})
	}, onSubscribeError)
	go gateway.Subscribe(ctx, cfg.Remote.Paths.Incidents, func(snap remote.Snapshot) {
		session.Post(monitor.IncidentsReceived{Snap: snap})
		if err := appStore.ImportIncidents(ctx, incidentsFrom(snap)); err != nil {
			logger.Printf("failed to import incidents: %v", err)
		}
	}, onSubscribeError)

	// Initialize router
	router := api.NewRouter(&cfg.Server, appStore, &webpushOptions, registry)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// observationsFrom flattens a projection's occupied records for persistence.
func observationsFrom(proj monitor.Projection) []store.Observation {
	observations := make([]store.Observation, 0, len(proj.Records))
	for _, rec := range proj.Records {
		if !rec.Occupied() {
			continue
		}
		obs := store.Observation{
			SlotName:      rec.SlotName,
			OccupantID:    rec.OccupantID,
			TransactionID: rec.TransactionID,
			VehicleType:   rec.VehicleType,
		}
		if ts, err := parse.Timestamp(rec.TimeIn); err == nil && ts != nil {
			obs.TimeIn = *ts
		}
		observations = append(observations, obs)
	}
	return observations
}

// remoteIncident is the remote store's incident shape; timestamps arrive in
// mixed representations.
type remoteIncident struct {
	IncidentID      string `json:"incidentId"`
	UID             string `json:"uid"`
	SlotName        string `json:"slotName"`
	Description     string `json:"description"`
	ImageURL        string `json:"imageUrl"`
	Timestamp       any    `json:"timestamp"`
	Status          string `json:"status"`
	ConfirmDeadline any    `json:"confirmDeadline"`
}

// incidentsFrom converts an incidents snapshot into local records.
func incidentsFrom(snap remote.Snapshot) []model.Incident {
	raw := map[string]remoteIncident{}
	if snap.Exists {
		if err := snap.Decode(&raw); err != nil {
			log.Printf("failed to decode incidents snapshot: %v", err)
			return nil
		}
	}

	incidents := make([]model.Incident, 0, len(raw))
	for key, rec := range raw {
		id := rec.IncidentID
		if id == "" {
			id = key
		}
		reportedAt := time.Now().UTC()
		if ts, err := parse.Timestamp(rec.Timestamp); err == nil && ts != nil {
			reportedAt = *ts
		}
		incident := model.Incident{
			IncidentID:  id,
			ReporterID:  rec.UID,
			SlotName:    rec.SlotName,
			Description: rec.Description,
			ImageURL:    rec.ImageURL,
			Status:      rec.Status,
			ReportedAt:  reportedAt,
		}
		if deadline, err := parse.Timestamp(rec.ConfirmDeadline); err == nil {
			incident.ConfirmDeadline = deadline
		}
		incidents = append(incidents, incident)
	}
	return incidents
}
