package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/joho/godotenv"

	"github.com/topea/contact-backend/api"
	"github.com/topea/contact-backend/email"
	"github.com/topea/contact-backend/monitor"
	"github.com/topea/contact-backend/ratelimit"
	"github.com/topea/contact-backend/util"
)

// Submission limits per client identifier.
const (
	maxRequestsPerWindow = 5
	rateLimitWindow      = time.Hour
)

// How long in-flight requests get to finish on shutdown before the
// process exits anyway.
const shutdownTimeout = 10 * time.Second

var defaultDevOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://localhost:4173",
}

func allowedOrigins() []string {
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		origins := strings.Split(env, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		return origins
	}
	return defaultDevOrigins
}

func main() {
	godotenv.Load()
	raven.SetDSN(os.Getenv("SENTRY_DSN"))

	emailConfig, err := email.MakeConfigFromEnv()
	if err != nil {
		log.Fatalf("couldn't configure email: %v", err)
	}

	limiter := ratelimit.New(maxRequestsPerWindow, rateLimitWindow)
	limiter.Start()

	securityMonitor := monitor.New()
	securityMonitor.Start()

	a := api.API{
		Limiter:        limiter,
		Emailer:        emailConfig,
		Monitor:        securityMonitor,
		AllowedOrigins: allowedOrigins(),
		ReportToken:    os.Getenv("SECURITY_REPORT_TOKEN"),
	}

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    ":" + util.EnvOrDefault("PORT", "8080"),
		Handler: a.RegisterHandlers(mux),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Serving on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-shutdown
	log.Println("Shutting down...")

	// Stop accepting new connections and let in-flight requests
	// finish, up to the forced-exit timeout.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}

	limiter.Stop()
	securityMonitor.Close()
	log.Println("Shutdown complete")
}
