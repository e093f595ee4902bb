package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/energosync/internal/api"
	"github.com/tejusbharadwaj/energosync/internal/config"
	"github.com/tejusbharadwaj/energosync/internal/database"
	server "github.com/tejusbharadwaj/energosync/internal/grpc"
	"github.com/tejusbharadwaj/energosync/internal/host"
	"github.com/tejusbharadwaj/energosync/internal/logger"
	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
	"github.com/tejusbharadwaj/energosync/internal/platforms"
	"github.com/tejusbharadwaj/energosync/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the integration daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

// loadConfig reads configuration and applies its logging section to the global logger.
func loadConfig(path string) (*config.Config, error) {
	appConfig, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitLogger()
	logger.Configure(appConfig.Logging.Level, appConfig.Logging.Format)
	return appConfig, nil
}

func run(ctx context.Context, configPath string) error {
	appConfig, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.Log

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewHTTPClient(appConfig.Provider, log)
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("failed to log in to provider API: %w", err)
	}

	publisher, err := buildPublisher(ctx, appConfig, log)
	if err != nil {
		return err
	}

	entry, err := orchestrator.NewEntry(
		appConfig.Provider.Username,
		appConfig.Provider.Username,
		client,
		appConfig.Integration,
		orchestrator.WithLogger(log),
	)
	if err != nil {
		return err
	}
	hub := host.NewHub(entry.Entities(), publisher, clockwork.NewRealClock(), log)
	defer hub.Close()

	health := server.NewHealthChecker()
	entry.AddRefreshObserver(health.ObserveRefresh)

	srv := server.SetupServer(health, server.FromConfig(appConfig.Server))
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	monitoring := newMonitoringServer(appConfig.Server, health)

	errChan := make(chan error, 2)
	go func() {
		log.WithFields(logrus.Fields{"port": appConfig.Server.Port}).Info("Starting gRPC server")
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()
	go func() {
		log.WithFields(logrus.Fields{"port": appConfig.Server.MetricsPort}).Info("Starting monitoring server")
		if err := monitoring.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("monitoring server error: %w", err)
		}
	}()

	// the registration that completes the supported platforms runs the first refresh
	if err := platforms.SetupAll(ctx, entry, hub); err != nil {
		log.WithError(err).Error("Initial refresh failed")
	}

	cron := scheduler.NewScheduler(ctx, entry, appConfig.Integration.RefreshSchedule, log)
	if err := cron.Start(); err != nil {
		return fmt.Errorf("scheduler error: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal, initiating shutdown")
	case err = <-errChan:
		log.WithError(err).Error("Service error, initiating shutdown")
	}

	cron.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	unload(shutdownCtx, hub, entry, log)

	log.Info("Gracefully stopping server...")
	srv.GracefulStop()
	_ = monitoring.Shutdown(shutdownCtx)
	log.Info("Server stopped")

	return err
}

// unload stops every entity and reports it offline. Discovery configs stay retained
// so the host keeps the entities and their customisations across restarts.
func unload(ctx context.Context, hub *host.Hub, entry *orchestrator.Entry, log *logrus.Logger) {
	if err := hub.Unload(ctx); err != nil {
		log.WithError(err).Warn("Failed to report entities offline")
	}
	entry.Unload()
}

// buildPublisher combines every enabled host backend.
func buildPublisher(ctx context.Context, appConfig *config.Config, log *logrus.Logger) (host.Publisher, error) {
	var publishers host.MultiPublisher

	if appConfig.MQTT.Enabled {
		mqttPublisher, err := host.NewMQTTPublisher(appConfig.MQTT, log)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, mqttPublisher)
	}

	if appConfig.Kafka.Enabled {
		publishers = append(publishers, host.NewKafkaPublisher(appConfig.Kafka, log))
	}

	if appConfig.Database.Enabled {
		repo, err := database.NewPostgresRepo(appConfig.Database.ConnectionString())
		if err != nil {
			_ = publishers.Close()
			return nil, fmt.Errorf("failed to create repository: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			_ = publishers.Close()
			return nil, err
		}
		publishers = append(publishers, host.NewRecorder(repo))
	}

	if len(publishers) == 0 {
		log.Warn("No host backend enabled, entity states are not published")
	}
	return publishers, nil
}

func newMonitoringServer(cfg config.ServerConfig, health *server.HealthChecker) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/liveness", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/readiness", func(w http.ResponseWriter, req *http.Request) {
		if !health.Serving(server.ServiceName) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.MetricsPort),
		Handler:           logger.AccessLoggerMiddleware(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
