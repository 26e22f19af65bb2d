package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"teamdrive/internal/auth"
	"teamdrive/internal/config"
	"teamdrive/internal/handler"
	"teamdrive/internal/httputil"
	"teamdrive/internal/middleware"
	"teamdrive/internal/notify"
	"teamdrive/internal/repository/postgres"
	"teamdrive/internal/service/access"
	"teamdrive/internal/service/bulk"
	"teamdrive/internal/service/entity"
	"teamdrive/internal/service/sessions"
	"teamdrive/internal/service/tree"
	storageS3 "teamdrive/internal/storage/s3"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	entityRepo := postgres.NewEntityRepository(repoConfig)
	grantRepo := postgres.NewGrantRepository(repoConfig)
	teamRepo := postgres.NewTeamRepository(repoConfig)
	shortcutRepo := postgres.NewShortcutRepository(repoConfig)
	activityRepo := postgres.NewActivityRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Blob storage
	store, err := storageS3.NewStore(ctx, storageS3.Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		KeyPrefix: cfg.S3KeyPrefix,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	// Fire-and-forget event delivery
	dispatcher := notify.NewDispatcher(&notify.LogSink{Logger: logger}, nil, logger)
	defer dispatcher.Close()

	editSessions := sessions.NewRegistry(logger)

	// Resolution and mutation services
	navigator := tree.NewNavigator(entityRepo, logger)
	resolver := access.NewResolver(entityRepo, grantRepo, teamRepo, navigator, logger)
	cachedResolver := access.NewCachedResolver(resolver)
	batch := bulk.NewExecutor(txManager, logger)

	mutator := entity.NewService(
		entityRepo,
		grantRepo,
		teamRepo,
		shortcutRepo,
		activityRepo,
		navigator,
		resolver,
		batch,
		store,
		dispatcher,
		editSessions,
		cachedResolver,
		logger,
	)

	accessHandler := handler.NewAccessHandler(cachedResolver, logger)
	entityHandler := handler.NewEntityHandler(mutator, logger)
	shareHandler := handler.NewShareHandler(mutator, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/entities/{id}/access", accessHandler.GetAccess)

	mux.HandleFunc("POST /api/entities/{id}/move", entityHandler.Move)
	mux.HandleFunc("POST /api/entities/{id}/copy", entityHandler.Copy)
	mux.HandleFunc("POST /api/entities/{id}/trash", entityHandler.Trash)
	mux.HandleFunc("POST /api/entities/{id}/restore", entityHandler.Restore)
	mux.HandleFunc("POST /api/entities/purge", entityHandler.Purge)

	mux.HandleFunc("PUT /api/entities/{id}/shares", shareHandler.Share)
	mux.HandleFunc("DELETE /api/entities/{id}/shares", shareHandler.Unshare)

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.Auth(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
