package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/aurelia-events/ticketing/internal/cache"
	"github.com/aurelia-events/ticketing/internal/clock"
	"github.com/aurelia-events/ticketing/internal/config"
	"github.com/aurelia-events/ticketing/internal/database"
	"github.com/aurelia-events/ticketing/internal/handler"
	"github.com/aurelia-events/ticketing/internal/queue"
	"github.com/aurelia-events/ticketing/internal/repository"
	"github.com/aurelia-events/ticketing/internal/reservation"
	"github.com/aurelia-events/ticketing/internal/router"
	"github.com/aurelia-events/ticketing/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("connect to mysql: %v", err)
	}

	rdb, err := config.NewRedisClient()
	if err != nil {
		// Holds and locks live in Redis; without it no reservation is safe.
		log.Fatalf("connect to redis: %v", err)
	}

	clk := clock.NewSystem()
	store := cache.NewRedisStore(rdb)
	resCfg := config.LoadReservationConfig()

	locker := cache.NewEventLocker(store, resCfg.LockTTL)
	holds := reservation.NewHoldStore(store, clk, resCfg.HoldTTL)
	eventRepo := repository.NewEventRepo(db)
	engine := reservation.NewEngine(eventRepo, locker, holds,
		reservation.WithLockRetry(resCfg.LockMaxRetries, resCfg.LockBaseDelay))

	orderRepo := repository.NewOrderRepo(db)
	publisher := queue.NewPublisher()
	purchases := service.NewPurchaseService(eventRepo, orderRepo, engine, publisher, clk)

	// The consumer keeps its own reconnect loop; run it for the lifetime of
	// the process.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterEvents(e, handler.NewEventHandler(eventRepo, holds))
	router.RegisterReservations(e,
		handler.NewReservationHandler(engine),
		handler.NewPurchaseHandler(purchases),
		config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
