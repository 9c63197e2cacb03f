package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"corsi-booking/internal/api/router"
	"corsi-booking/internal/config"
	"corsi-booking/internal/infrastructure/database"
	"corsi-booking/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	serverPort string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Course Booking HTTP server",
	Long: `Start the Course Booking HTTP server with full booking functionality.
This includes:
- Booking submission and form token endpoints
- Payment provider callback processing
- Course catalog and occupancy queries
- Async notification dispatch via queue workers
- Redis seat counters for concurrent submissions`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverPort, "port", "p", "8080", "Port for the booking server to listen on")
}

func startServer() {
	cfg := config.Get()
	if serverPort != "8080" {
		cfg.Server.Port = serverPort
	}

	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(db); err != nil {
		logger.Error("Failed to run database migrations: %v", err)
		os.Exit(1)
	}

	if err := database.HealthCheck(db); err != nil {
		logger.Error("Database health check failed: %v", err)
		os.Exit(1)
	}

	components := router.NewBookingRouterWithComponents(db)
	srv := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        components.Router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Starting Course Booking Server on port %s", cfg.Server.Port)
		logger.Info("Available endpoints:")
		logger.Info("  GET  /api/v1/bookings/token - Issue a one-time booking form token")
		logger.Info("  POST /api/v1/bookings - Submit a booking")
		logger.Info("  POST /api/v1/payments/callback - Payment provider order status callback")
		logger.Info("  GET  /api/v1/courses/{id} - Get a course with its occurrences")
		logger.Info("  GET  /api/v1/courses/{id}/occupancy - Per-occurrence seat report")
		logger.Info("  GET  /health - Health check")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start booking server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down Course Booking Server...")
	logger.Info("Stopping queue workers...")
	components.QueueService.StopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown: %v", err)
	}

	logger.Info("Course Booking Server exited")
}
