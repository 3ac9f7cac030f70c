package main

import (
	"encoding/json"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/username/divledger/src/config"
	"github.com/username/divledger/src/database"
	"github.com/username/divledger/src/handlers"
	"github.com/username/divledger/src/logger"
	"github.com/username/divledger/src/profiles"
	"github.com/username/divledger/src/services"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, If-None-Match")
		w.Header().Set("Access-Control-Expose-Headers", "ETag")

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loadRegistry(path string) *profiles.Registry {
	f, err := os.Open(path)
	if err != nil {
		logger.L.Error("Failed to open profile document", "path", path, "error", err)
		stdlog.Fatalf("Failed to open profile document %s: %v", path, err)
	}
	defer f.Close()

	registry, err := profiles.Load(f)
	if err != nil {
		logger.L.Error("Failed to load profiles", "path", path, "error", err)
		stdlog.Fatalf("Failed to load profiles from %s: %v", path, err)
	}
	logger.L.Info("Profiles loaded", "path", path, "count", len(registry.Profiles()))
	return registry
}

func main() {
	localFile := flag.String("file", "", "ingest one local file and exit instead of serving HTTP")
	flag.Parse()

	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Divledger normalization service starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	registry := loadRegistry(config.Cfg.ProfilesPath)

	summaryCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	ingestService := services.NewIngestService(registry, config.Cfg.OutputDir, config.Cfg.DeadLetterDir, summaryCache)
	ingestHandler := handlers.NewIngestHandler(ingestService)

	if *localFile != "" {
		logger.L.Info("Local ingest mode", "file", *localFile)
		summary, err := ingestService.IngestFile(*localFile)
		if err != nil {
			logger.L.Error("Local ingest failed", "file", *localFile, "error", err)
			os.Exit(1)
		}
		json.NewEncoder(os.Stdout).Encode(summary)
		return
	}

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	rootMux.HandleFunc("POST /api/ingest", ingestHandler.HandleIngest)
	rootMux.HandleFunc("POST /api/events", ingestHandler.HandleStorageEvent)
	rootMux.HandleFunc("GET /api/batches/latest", ingestHandler.HandleGetLatestBatch)
	rootMux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Divledger normalization service is running"})
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
