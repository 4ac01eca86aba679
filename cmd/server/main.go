package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Anchinlu/restaurant-reservation/internal/broadcast"
	"github.com/Anchinlu/restaurant-reservation/internal/config"
	"github.com/Anchinlu/restaurant-reservation/internal/database"
	"github.com/Anchinlu/restaurant-reservation/internal/handler"
	"github.com/Anchinlu/restaurant-reservation/internal/middleware"
	"github.com/Anchinlu/restaurant-reservation/internal/queue"
	"github.com/Anchinlu/restaurant-reservation/internal/repository"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
	"github.com/Anchinlu/restaurant-reservation/internal/router"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("[server] database: %v", err)
	}
	defer db.Close()

	policy := timeslot.Policy{
		SlotDuration:  cfg.SlotDuration(),
		CleanupBuffer: cfg.CleanupBuffer(),
	}

	bookingRepo := repository.NewBookingRepo(db, policy)
	tableRepo := repository.NewTableRepo(db)
	userRepo := repository.NewUserRepo(db)

	// local fan-out for SSE clients plus the broker for everyone else
	hub := broadcast.NewHub()
	brokerURL := queue.BrokerURL()
	pub := broadcast.Tee{hub, queue.NewPublisher(brokerURL)}
	go queue.StartConsumer(brokerURL, hub)

	engine := reservation.New(bookingRepo, pub, reservation.Config{
		Policy:   policy,
		HoldTTL:  cfg.HoldTTL(),
		MaxHolds: cfg.MaxHoldLimit,
	})

	// background sweep so expired holds free tables even when nobody
	// is browsing availability
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweeper(sweepCtx, engine, cfg.SweepInterval())

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("[server] redis unavailable, rate limiting and caching disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())

	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(cfg, userRepo),
		Booking:   handler.NewBookingHandler(engine, bookingRepo),
		Browse:    handler.NewBrowseHandler(engine, tableRepo),
		Admin:     handler.NewAdminHandler(engine, bookingRepo),
		Events:    handler.NewEventsHandler(hub),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("[server] listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] start: %v", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] shutdown: %v", err)
	}
	log.Println("[server] stopped")
}

// runSweeper purges expired holds on a fixed interval until ctx is
// cancelled. Purged rows also show up in availability reads, the
// ticker just bounds how stale a table can look between requests.
func runSweeper(ctx context.Context, engine *reservation.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := engine.Sweep(ctx)
			if err != nil {
				log.Printf("[sweeper] purge: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[sweeper] released %d expired holds", n)
			}
		}
	}
}
