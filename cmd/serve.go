package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jsvoboda/memorymap/internal/blob"
	"github.com/jsvoboda/memorymap/internal/config"
	"github.com/jsvoboda/memorymap/internal/faceapi"
	"github.com/jsvoboda/memorymap/internal/gallery"
	"github.com/jsvoboda/memorymap/internal/match"
	"github.com/jsvoboda/memorymap/internal/store/postgres"
	"github.com/jsvoboda/memorymap/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Memory Map web server.
The server exposes the travel map API: the trips profile, country photo
galleries with uploads, face tagging and travel statistics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.FaceAPI.URL == "" {
		return errors.New("FACEAPI_URL environment variable is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	blobs, err := blob.NewStore(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to configure object storage: %w", err)
	}

	faceClient := faceapi.NewClient(cfg.FaceAPI.URL, cfg.FaceAPI.Dim)
	if !faceClient.IsAvailable(cmd.Context()) {
		fmt.Printf("Warning: face service at %s is not reachable, detection will be retried per upload\n", cfg.FaceAPI.URL)
	}

	photoRepo := postgres.NewPhotoRepository(pool)
	faceRepo := postgres.NewFaceRepository(pool)
	memberRepo := postgres.NewMemberRepository(pool)
	profileRepo := postgres.NewProfileRepository(pool)

	svc := gallery.NewService(
		photoRepo, faceRepo, memberRepo,
		blobs, faceClient,
		match.NewIndex(), cfg.FaceAPI.MatchThreshold,
		logger,
	)

	fmt.Printf("Building in-memory face index...\n")
	n, err := svc.WarmIndex(context.Background())
	if err != nil {
		// The index accelerates suggestions only, queries fall back to SQL.
		fmt.Printf("Warning: failed to build face index: %v\n", err)
	} else {
		fmt.Printf("Face index built with %d faces\n", n)
	}

	port, host, sessionSecret := resolveServeHostPort(cmd)

	server := web.NewServer(cfg, port, host, sessionSecret, svc, web.Repositories{
		Profiles: profileRepo,
		Photos:   photoRepo,
		Faces:    faceRepo,
		Members:  memberRepo,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Memory Map API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
