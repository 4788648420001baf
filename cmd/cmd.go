package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/config"
	"tripwise-backend/internal/handlers"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/middleware"
	"tripwise-backend/internal/repository"
	"tripwise-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/valkey-io/valkey-go"
)

const uploadJanitorInterval = time.Minute

func Run() {
	var configPath string
	var migrateOnly bool

	flagSet := pflag.NewFlagSet("tripwise", pflag.ExitOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	flagSet.BoolVar(&migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.Parse(os.Args[1:])

	// Load .env before the config so ${VAR} references resolve
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("Failed to load .env file")
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := repository.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	if migrateOnly {
		return
	}

	// Change notices
	var broker livequery.Broker = livequery.NewLocalBroker()
	if cfg.Valkey.Addr != "" {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{cfg.Valkey.Addr},
			Password:    cfg.Valkey.Password,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to valkey")
		}
		defer client.Close()
		broker = livequery.NewValkeyBroker(client, cfg.Valkey.Channel)
		log.Info().Str("addr", cfg.Valkey.Addr).Msg("Using valkey change broker")
	}

	source := repository.NewDocumentSource(db)
	engine := livequery.NewEngine(source)
	defer engine.Close()
	go func() {
		if err := engine.Listen(ctx, broker); err != nil {
			log.Error().Err(err).Msg("Change listener stopped")
		}
	}()

	// Object storage and push
	store, err := services.NewS3Store(ctx, services.S3Options{
		Region:        cfg.AWS.Region,
		Bucket:        cfg.AWS.S3Bucket,
		AccessKey:     cfg.AWS.AccessKey,
		SecretKey:     cfg.AWS.SecretKey,
		Endpoint:      cfg.AWS.Endpoint,
		PublicBaseURL: cfg.AWS.PublicBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	var pusher services.Pusher
	if cfg.APNs.KeyFile != "" {
		apns, err := services.NewAPNsPusher(cfg.APNs.KeyFile, cfg.APNs.KeyID, cfg.APNs.TeamID, cfg.APNs.Topic, cfg.APNs.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		pusher = apns
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	tripRepo := repository.NewTripRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	sharedRepo := repository.NewSharedTripRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	convRepo := repository.NewConversationRepository(db)

	// Initialize services
	clk := clock.Real()
	dispatcher := services.NewDispatcher(broker)
	wsHub := services.NewWSHub()
	userService := services.NewUserService(userRepo, dispatcher, cfg.JWT.Secret, cfg.JWT.TTL, clk)
	tripService := services.NewTripService(tripRepo, source, dispatcher, clk)
	timelineService := services.NewTimelineService(timelineRepo, tripRepo, source, dispatcher)
	sharedService := services.NewSharedTripService(sharedRepo, tripRepo, userRepo, source, dispatcher, clk)
	friendService := services.NewFriendService(friendRepo, userRepo, source, dispatcher, clk)
	messageService := services.NewMessageService(convRepo, friendRepo, userRepo, source, dispatcher, wsHub, pusher, clk)
	photoService := services.NewPhotoService(
		store,
		services.NewUploadTracker(clk),
		userRepo,
		tripRepo,
		timelineRepo,
		dispatcher,
		services.PhotoLimits{
			MaxBatch:       cfg.Photos.MaxBatch,
			BatchTTL:       cfg.Photos.BatchTTL,
			PresignTTL:     cfg.AWS.PresignTTL,
			MaxPictureSize: cfg.Photos.MaxPictureSize,
		},
	)
	go photoService.RunJanitor(ctx, uploadJanitorInterval)
	views := services.NewViewRegistry(engine, clk)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	tripHandler := handlers.NewTripHandler(tripService, timelineService)
	socialHandler := handlers.NewSocialHandler(sharedService, friendService, messageService)
	photoHandler := handlers.NewPhotoHandler(photoService, cfg.Photos.MaxPictureSize)
	wsHandler := handlers.NewWebSocketHandler(wsHub, views, userService, photoService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", userHandler.SignUp)
		r.Post("/auth/signin", userHandler.SignIn)
		r.Post("/auth/anonymous", userHandler.SignInAnonymously)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/session", userHandler.Session)
			r.Get("/users", userHandler.Search)
			r.Get("/users/{user_id}", userHandler.GetProfile)
			r.Get("/users/{user_id}/shared-trips", socialHandler.UserPosts)
			r.Put("/users/me/username", userHandler.SetUsername)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)
			r.Put("/users/me/picture", photoHandler.SetProfilePicture)
			r.Delete("/users/me/picture", photoHandler.DeleteProfilePicture)

			r.Get("/trips", tripHandler.ListTrips)
			r.Post("/trips", tripHandler.CreateTrip)
			r.Get("/trips/{trip_id}", tripHandler.GetTrip)
			r.Put("/trips/{trip_id}", tripHandler.UpdateTrip)
			r.Delete("/trips/{trip_id}", tripHandler.DeleteTrip)
			r.Get("/trips/{trip_id}/days", tripHandler.TripDay)
			r.Get("/trips/{trip_id}/timeline", tripHandler.ListTimeline)
			r.Post("/trips/{trip_id}/timeline", tripHandler.CreateTimelineItem)
			r.Get("/trips/{trip_id}/timeline/{item_id}", tripHandler.GetTimelineItem)
			r.Put("/trips/{trip_id}/timeline/{item_id}", tripHandler.UpdateTimelineItem)
			r.Delete("/trips/{trip_id}/timeline/{item_id}", tripHandler.DeleteTimelineItem)

			r.Get("/shared-trips", socialHandler.Feed)
			r.Post("/shared-trips", socialHandler.Share)
			r.Put("/shared-trips/{shared_id}", socialHandler.EditPost)
			r.Delete("/shared-trips/{shared_id}", socialHandler.DeletePost)

			r.Get("/friends", socialHandler.ListFriends)
			r.Post("/friends", socialHandler.AddFriend)
			r.Delete("/friends/{friend_id}", socialHandler.RemoveFriend)

			r.Get("/conversations", socialHandler.Conversations)
			r.Get("/conversations/{other_user_id}/messages", socialHandler.Messages)
			r.Post("/conversations/{other_user_id}/messages", socialHandler.SendMessage)

			r.Post("/photos/batches", photoHandler.StartBatch)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Metrics
	r.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
