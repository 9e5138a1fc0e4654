package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clinic-backend-go/internal/ai"
	"clinic-backend-go/internal/api"
	"clinic-backend-go/internal/authz"
	"clinic-backend-go/internal/config"
	"clinic-backend-go/internal/core"
	"clinic-backend-go/internal/db"
	"clinic-backend-go/internal/diag"
	"clinic-backend-go/internal/middleware"
	"clinic-backend-go/internal/notify"
	"clinic-backend-go/internal/watch"
)

func main() {
	releaseMode := strings.EqualFold(os.Getenv("GIN_MODE"), "release")

	// .env is a development convenience; production sets the environment directly.
	if !releaseMode {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
		releaseMode = strings.EqualFold(os.Getenv("GIN_MODE"), "release")
	}

	// --- 1. Logger ---
	var zapLogger *zap.Logger
	var err error
	if releaseMode {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	clinicLocation, err := appConfig.Location()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid clinic timezone", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded",
		zap.String("storeBackend", appConfig.StoreBackend),
		zap.String("clinicTimezone", clinicLocation.String()),
	)

	// --- 3. Firebase Admin SDK (Auth always, Firestore unless the memory store is used) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	useFirestore := appConfig.StoreBackend == config.StoreFirestore
	if err := db.InitFirebase(initCtx, appConfig, useFirestore, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase Auth client is nil after initialization. Application cannot start.")
	}

	// --- 4. Document store ---
	var store db.DocumentStore
	if useFirestore {
		firestoreStore, err := db.NewFirestoreStore(db.GetFirestoreClient())
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create Firestore store", zap.Error(err))
		}
		store = firestoreStore
		defer db.GetFirestoreClient().Close()
	} else {
		zapLogger.Warn("Using the in-memory document store; data is lost on restart")
		store = db.NewMemoryStore()
	}

	// --- 5. Diagnostics bus and sinks ---
	bus := diag.NewBus(zapLogger)
	bus.Subscribe(diag.TopicPermissionError, diag.LogSink(zapLogger))

	var diagnostics api.DiagnosticsStore
	if appConfig.RedisURL != "" {
		redisClient, err := diag.NewRedisClient(initCtx, appConfig.RedisURL)
		if err != nil {
			zapLogger.Error("Redis unavailable, diagnostics will only be logged", zap.Error(err))
		} else {
			defer redisClient.Close()
			sink := diag.NewRedisSink(redisClient, appConfig.DiagnosticsStream, appConfig.DiagnosticsMaxLen)
			bus.Subscribe(diag.TopicPermissionError, sink.Handle)
			diagnostics = sink
			zapLogger.Info("Redis diagnostics sink enabled", zap.String("stream", appConfig.DiagnosticsStream))
		}
	}

	// --- 6. Services ---
	policy := authz.NewPolicy(store, appConfig.BootstrapAdminUID)
	writer := core.NewWriter(store, policy, bus, zapLogger)

	var notifier core.Notifier
	if mailer := notify.NewMailer(appConfig, zapLogger); mailer != nil {
		notifier = mailer
	}

	var generator ai.Generator
	if appConfig.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiGenerator(initCtx, appConfig.GeminiAPIKey, appConfig.GeminiModel)
		if err != nil {
			zapLogger.Error("Gemini client unavailable, AI flows disabled", zap.Error(err))
		} else {
			generator = gemini
		}
	} else {
		zapLogger.Warn("GEMINI_API_KEY not set, AI flows disabled")
	}

	services := api.Services{
		Catalog:       core.NewCatalogService(writer, zapLogger),
		Admins:        core.NewAdminService(writer, policy, zapLogger),
		Booking:       core.NewBookingService(writer, clinicLocation, zapLogger),
		Subscriptions: core.NewSubscriptionService(writer, zapLogger),
		Contact:       core.NewContactService(writer, notifier, zapLogger),
		Users:         core.NewUserService(writer),
		Flows:         ai.NewFlows(generator, zapLogger),
		Watch:         watch.Deps{Store: store, Guard: policy, Bus: bus, Logger: zapLogger},
		Diagnostics:   diagnostics,
	}
	zapLogger.Info("Core services initialized successfully.")

	// --- 7. Gin engine and global middleware ---
	if releaseMode || strings.EqualFold(appConfig.GinMode, "release") {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured. API might not be accessible from a web frontend.")
	}

	api.SetupRoutes(router, zapLogger, firebaseAuthClient, services)

	// --- 8. HTTP server ---
	// Live streams only end when their request context does, so shutdown cancels the base context.
	streamsCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamsCtx },
	}
	httpServer.RegisterOnShutdown(stopStreams)

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 9. Graceful shutdown ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown timed out, closing remaining connections", zap.Error(err))
		httpServer.Close()
	}
	zapLogger.Info("Server exiting gracefully.")
}
