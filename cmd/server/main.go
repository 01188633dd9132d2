/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the club back-office server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse flags
  2. Initialize SQLite store
  3. Seed roles and the bootstrap admin account
  4. Configure HTTP router and the billing scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take defaults from environment variables, so both work:
  -port             PORT             HTTP server port (default: 8080)
  -db               DB_PATH          SQLite path (default: club.db)
  -jwt-secret       JWT_SECRET       Token signing secret (required)
  -admin-email      ADMIN_EMAIL      Bootstrap admin login
  -admin-password   ADMIN_PASSWORD   Bootstrap admin password
  -scheduler        SCHEDULER        Enable fee scheduler (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the billing scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/club.db" -jwt-secret="change-me"

  # Run with in-memory database
  ./server -db=":memory:" -jwt-secret="change-me"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Monthly fee generation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clubworks/club-backoffice/api"
	"github.com/clubworks/club-backoffice/billing"
	"github.com/clubworks/club-backoffice/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "club.db"), "SQLite database path")
	jwtSecret := flag.String("jwt-secret", envStr("JWT_SECRET", ""), "JWT signing secret")
	adminEmail := flag.String("admin-email", envStr("ADMIN_EMAIL", ""), "bootstrap admin email")
	adminPassword := flag.String("admin-password", envStr("ADMIN_PASSWORD", ""), "bootstrap admin password")
	schedulerOn := flag.Bool("scheduler", envBool("SCHEDULER", true), "enable the monthly fee scheduler")
	flag.Parse()

	if *jwtSecret == "" {
		log.Fatal("JWT secret is required (set -jwt-secret or JWT_SECRET)")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed roles and admin account
	if err := api.Seed(context.Background(), store, api.SeedConfig{
		AdminEmail:    *adminEmail,
		AdminPassword: *adminPassword,
	}); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	// Wire dependencies
	engine := billing.NewEngine(store)
	auth := api.NewAuth([]byte(*jwtSecret), store)
	handler := api.NewHandler(store, engine, auth)
	router := api.NewRouter(handler)

	// Billing scheduler
	scheduler := api.NewBillingScheduler(store, engine)
	scheduler.Enabled = *schedulerOn
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
