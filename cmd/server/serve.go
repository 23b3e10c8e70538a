package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/flight-tracker/internal/api"
	"github.com/yegors/flight-tracker/internal/aviationstack"
	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/internal/photos"
	"github.com/yegors/flight-tracker/internal/queue"
	"github.com/yegors/flight-tracker/internal/tracker"
	"github.com/yegors/flight-tracker/internal/weather"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flight tracker server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting flight tracker server",
		logger.String("version", Version),
		logger.String("config_path", configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flights := aviationstack.NewClient(aviationstack.Config{
		BaseURL:           cfg.Flights.APIBaseURL,
		AccessKey:         cfg.Flights.AccessKey,
		Timeout:           cfg.Flights.RequestTimeout(),
		RequestsPerSecond: cfg.Flights.RequestsPerSecond,
		Burst:             cfg.Flights.Burst,
		BreakerFailures:   uint32(cfg.Flights.BreakerFailures),
		BreakerTimeout:    cfg.Flights.BreakerTimeout(),
	}, log)
	if !flights.Configured() {
		log.Warn("No flight API access key configured; subscriptions will receive no updates",
			logger.String("env", config.AccessKeyEnv))
	}

	trackerService := tracker.NewService(tracker.Config{
		PollInterval: cfg.Flights.PollInterval(),
	}, flights, log)

	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	services := api.Services{
		Flights: flights,
		Tracker: trackerService,
		Clients: wsServer,
	}

	// Optional features stay nil interfaces when disabled
	var queueFeed tracker.QueueFeed
	var queueService *queue.Service
	if cfg.Queue.Enabled {
		queueService = queue.NewService(queue.Config{
			URL:          cfg.Queue.URL,
			Airport:      cfg.Queue.Airport,
			ElementClass: cfg.Queue.ElementClass,
			Interval:     cfg.Queue.Interval(),
			Timeout:      time.Duration(cfg.Queue.RequestTimeoutSeconds) * time.Second,
		}, wsServer, log)
		if err := queueService.Start(); err != nil {
			return fmt.Errorf("failed to start queue scraper: %w", err)
		}
		queueFeed = queueService
		services.Queue = queueService
	}

	var weatherService *weather.Service
	if cfg.Weather.Enabled {
		weatherService = weather.NewService(weather.Config{
			APIBaseURL:      cfg.Weather.APIBaseURL,
			RequestTimeout:  time.Duration(cfg.Weather.RequestTimeoutSeconds) * time.Second,
			MaxRetries:      cfg.Weather.MaxRetries,
			FetchMETAR:      cfg.Weather.FetchMETAR,
			FetchTAF:        cfg.Weather.FetchTAF,
			CacheExpiry:     time.Duration(cfg.Weather.CacheExpiryMinutes) * time.Minute,
			RefreshInterval: time.Duration(cfg.Weather.RefreshIntervalMinutes) * time.Minute,
			Prefetch:        cfg.Weather.PrefetchAirports,
		}, log)
		if err := weatherService.Start(); err != nil {
			return fmt.Errorf("failed to start weather service: %w", err)
		}
		services.Weather = weatherService
	}

	if cfg.Photos.Enabled {
		services.Photos = photos.NewClient(photos.Config{
			APIBaseURL: cfg.Photos.APIBaseURL,
			Timeout:    time.Duration(cfg.Photos.RequestTimeoutSeconds) * time.Second,
			MaxRetries: cfg.Photos.MaxRetries,
			CacheTTL:   time.Duration(cfg.Photos.CacheTTLMinutes) * time.Minute,
		}, log)
	}

	wsHandler := tracker.NewWebSocketHandler(trackerService, queueFeed, log)
	wsServer.SetMessageHandler(wsHandler)
	wsServer.SetConnectionHandler(wsHandler)

	router := api.NewRouter(services, wsServer, cfg, Version, log)
	handler := router.Routes()

	allPorts := append([]int{cfg.Server.Port}, cfg.Server.AdditionalPorts...)
	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	servers := make([]*http.Server, 0, len(allPorts))
	serveErr := make(chan error, len(allPorts))
	for _, port := range allPorts {
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", logger.String("addr", s.Addr), logger.Error(err))
				serveErr <- fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
		}(server)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("Shutting down server...", logger.String("signal", sig.String()))
	case runErr = <-serveErr:
		log.Info("Shutting down after listener failure")
	}

	// Stop background services first
	if queueService != nil {
		if err := queueService.Stop(); err != nil {
			log.Warn("Error stopping queue scraper", logger.Error(err))
		}
	}
	if weatherService != nil {
		if err := weatherService.Stop(); err != nil {
			log.Warn("Error stopping weather service", logger.Error(err))
		}
	}

	log.Info("Stopping flight poller...")
	trackerService.Stop()

	// Closes every WebSocket client
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
				return
			}
			log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
	return runErr
}
