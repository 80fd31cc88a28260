package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/draft"
	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/pricing"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
	"github.com/iliyamo/venue-booking/internal/router"
	queue_publisher "github.com/iliyamo/venue-booking/internal/service"
	"github.com/iliyamo/venue-booking/internal/waitlist"
	"github.com/iliyamo/venue-booking/internal/wizard"
)

// store is everything the server needs from persistence.  Both the MySQL
// repositories and the in-memory store satisfy it.
type store interface {
	booking.Store
	waitlist.Store
	handler.EventStore
	handler.StaffStore
	CreateStaff(ctx context.Context, u *model.StaffUser) error
}

func main() {
	cfg := config.Load()
	clk := clock.NewSystem()

	var (
		st store
		db *sql.DB
	)
	switch cfg.Storage {
	case config.StorageMySQL:
		var err error
		db, err = database.Open(cfg)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		defer db.Close()
		st = repository.NewStore(db)
	default:
		mem := memory.New()
		seedEvents(context.Background(), mem, clk.Now())
		st = mem
	}
	if cfg.SeedStaff() {
		if err := seedStaff(context.Background(), st, cfg); err != nil {
			log.Fatalf("seed staff: %v", err)
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	var drafts draft.Store = draft.NewMemoryStore()
	if rdb != nil {
		defer rdb.Close()
		drafts = draft.NewRedisStore(rdb)
	} else {
		log.Printf("redis unavailable: drafts kept in memory, submit rate limiting off")
	}
	recovery := draft.New(drafts, clk, draft.WithTTL(cfg.DraftTTL), draft.WithPrefix(cfg.DraftPrefix))

	b := bus.New(bus.WithHistorySize(cfg.BusHistorySize), bus.WithClock(clk.Now))
	prices := pricing.DefaultTable()
	bookings := booking.NewService(st, prices, b, clk, booking.WithOverCapacityLimit(cfg.OverCapacityLimit))
	waitlists := waitlist.NewService(st, b, clk)
	allocator := waitlist.NewAllocator(st, b, clk)
	allocator.Attach()
	if cfg.BrokerEnabled {
		queue_publisher.Forward(b, queue_publisher.NewPublisher(cfg.RabbitURL), clk.Now)
	}

	disabled := make([]wizard.StepKey, 0, len(cfg.WizardDisabledSteps))
	for _, s := range cfg.WizardDisabledSteps {
		if s != "" {
			disabled = append(disabled, wizard.StepKey(s))
		}
	}
	sessions := wizard.NewRegistry(wizard.Deps{
		Capacity:     bookings.Ledger(),
		Submitter:    bookings,
		Waitlist:     waitlists,
		Drafts:       recovery,
		Clock:        clk,
		Flow:         wizard.DefaultFlow(disabled...),
		MaxPartySize: cfg.MaxPartySize,
	})

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, st, clk))
	router.RegisterPublic(e, &handler.PublicHandler{Events: st, Ledger: bookings.Ledger(), Waitlist: waitlists})
	router.RegisterWizard(e, &handler.WizardHandler{
		Sessions: sessions,
		Drafts:   recovery,
		Events:   st,
		Prices:   prices,
	}, middleware.NewTokenBucket(cfg.RateLimit, rdb, clk.Now))
	router.RegisterStaff(e, &handler.StaffHandler{
		Events:    st,
		Bookings:  bookings,
		Waitlist:  waitlists,
		Allocator: allocator,
		Bus:       b,
		Clock:     clk,
	}, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Janitor(ctx, 10*time.Minute, cfg.DraftTTL)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, storage=%s, broker=%v)", addr, cfg.Env, cfg.Storage, cfg.BrokerEnabled)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
