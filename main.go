package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/auth"
	"dm-service/internal/config"
	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/services"
	"dm-service/internal/store"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	docs, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open document store")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.log", cfg.ServiceName, cfg.Env)

	var verifier auth.Verifier
	if cfg.AuthSecret != "" {
		verifier = auth.NewJWTVerifier(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience)
	} else {
		logger.Warn().Msg("AUTH_SECRET not set, sign-in disabled")
	}
	provider := auth.NewProvider(verifier, logger)
	provider.OnStateChange(func(_ string, identity *auth.Identity) {
		if identity != nil {
			observability.SessionStarted()
			return
		}
		observability.SessionEnded()
	})

	userRepo := repositories.NewUserRepo(docs, logger)
	headerRepo := repositories.NewHeaderRepo(docs, logger)
	messageRepo := repositories.NewMessageRepo(docs, logger)
	friendRepo := repositories.NewFriendRepo(docs, logger)

	chatService := services.NewChatService(userRepo, headerRepo, messageRepo, logger)
	friendService := services.NewFriendService(userRepo, friendRepo, logger)
	userService := services.NewUserService(userRepo, logger)

	hub := ws.NewHub(logger)

	authHandler := handlers.NewAuthHandler(provider, userService, auditEmitter)
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService)
	chatWS := ws.NewChatWebSocketHandler(hub, chatService, provider, originChecker(cfg.AllowedOrigins), logger)
	listWS := ws.NewListWebSocketHandler(hub, chatService, friendService, provider, originChecker(cfg.AllowedOrigins), logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(observability.RequestIDMiddleware())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(provider)

	router.POST("/auth/signin", authHandler.SignIn)
	router.POST("/auth/signout", authMiddleware, authHandler.SignOut)

	router.GET("/me", authMiddleware, userHandler.Me)
	router.PUT("/me/profile", authMiddleware, userHandler.CompleteProfile)

	router.GET("/friends", authMiddleware, friendHandler.ListFriends)
	router.POST("/friends", authMiddleware, friendHandler.AddFriend)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:header_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.GET("/users/:user_id/chat", authMiddleware, chatHandler.OpenChat)
	router.POST("/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/messages/:message_id/read", authMiddleware, chatHandler.MarkRead)

	router.GET("/ws/chats", listWS.HandleChats)
	router.GET("/ws/chats/:header_id", chatWS.Handle)
	router.GET("/ws/friends", listWS.HandleFriends)

	handlers.RegisterDebugRoutes(router.Group("/", authMiddleware), hub, auditEmitter, cfg.DebugRoutes)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: cors.New(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: !slices.Contains(cfg.AllowedOrigins, "*"),
		}).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("dm service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	hub.CloseAll()
	provider.Close()
	if err := docs.Close(); err != nil {
		logger.Error().Err(err).Msg("close document store")
	}
	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("close publisher")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown")
	}
}

// openStore builds the configured document store. Change notifications go
// through Redis when REDIS_URL is set so every instance sees every write.
func openStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	var feed store.Feed
	if cfg.RedisURL != "" {
		redisFeed, err := store.NewRedisFeed(ctx, cfg.RedisURL, cfg.ServiceName+":changes:")
		if err != nil {
			return nil, err
		}
		feed = redisFeed
	}

	switch cfg.StoreBackend {
	case "postgres":
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(database, feed), nil
	case "dynamodb":
		client, err := store.NewDynamoClient(ctx, cfg.DynamoRegion)
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(client, cfg.DynamoTablePrefix, feed), nil
	default:
		return store.NewMemoryStore(feed), nil
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
