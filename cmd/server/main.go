package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/averlane/client-portal/internal/config"
	"github.com/averlane/client-portal/internal/database"
	"github.com/averlane/client-portal/internal/handler"
	"github.com/averlane/client-portal/internal/middleware"
	"github.com/averlane/client-portal/internal/notify"
	"github.com/averlane/client-portal/internal/queue"
	"github.com/averlane/client-portal/internal/repository"
	"github.com/averlane/client-portal/internal/router"
	queue_publisher "github.com/averlane/client-portal/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Nil client disables rate limiting rather than blocking startup.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}

	clients := repository.NewClientRepo(db)
	history := repository.NewStatusHistoryRepo(db)
	tracking := repository.NewTrackingRepo(db)
	invites := repository.NewInvitationRepo(db)
	operators := repository.NewOperatorRepo(db)

	dispatcher := notify.New(cfg, tracking)
	if dispatcher.Email == nil {
		log.Printf("email channel not configured; status emails will be skipped")
	}
	if dispatcher.SMS == nil {
		log.Printf("sms channel not configured; status texts will be skipped")
	}

	authHandler := handler.NewAuthHandler(cfg, operators)
	clientHandler := handler.NewClientHandler(clients, history, dispatcher, queue_publisher.PublishStageChanged)
	trackingHandler := handler.NewTrackingHandler(tracking, cfg.BaseURL)
	invitationHandler := handler.NewInvitationHandler(cfg, invites, operators, dispatcher)

	// Background consumer mirrors stage changes into logs/stage.log.
	go func() {
		if err := queue.StartStageConsumer(); err != nil {
			log.Printf("stage-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterPublic(e, trackingHandler, invitationHandler, limit)
	router.RegisterAuth(e, cfg, authHandler, clientHandler, trackingHandler, invitationHandler, limit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
