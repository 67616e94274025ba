package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AndyAnh174/banthuoc-flashsale/internal/adapter/handler"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/adapter/messaging"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/adapter/storage"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/clock"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/config"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/ledger"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/core/service"
	"github.com/AndyAnh174/banthuoc-flashsale/internal/port"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping mysql", zap.Error(err))
	}
	log.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	log.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	var events port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
		log.Info("kafka producer ready", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		log.Warn("no kafka brokers configured, sale events disabled")
	}

	// Core services
	clk := clock.NewSystem()
	lg := ledger.New()
	sessionService := service.NewSessionService(mysqlAdapter, clk, log)
	reservationService := service.NewReservationService(
		sessionService, lg, redisAdapter, events, clk, log, cfg.QueueSize,
		service.WithLockTimeout(cfg.LockTimeout),
	)
	adminService := service.NewAdminService(
		sessionService, lg, mysqlAdapter, mysqlAdapter, redisAdapter, events, clk, log, cfg.LockTimeout,
	)
	readService := service.NewReadService(sessionService, lg)

	// Rebuild the in-process state from the durable store.
	if err := restoreState(ctx, mysqlAdapter, redisAdapter, sessionService, reservationService, lg, log); err != nil {
		log.Fatal("failed to restore engine state", zap.Error(err))
	}

	// Persistence worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, reservationService, mysqlAdapter, log)
		}(i)
	}
	log.Info("started persistence workers", zap.Int("count", cfg.WorkerCount))

	// Background status sweep (advisory only)
	sweeper := service.NewSweeper(sessionService, events, log, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// HTTP server
	storefrontHandler := handler.NewStorefrontHandler(readService, reservationService, log)
	adminHandler := handler.NewAdminHandler(sessionService, adminService, readService, log)
	router := handler.NewRouter(storefrontHandler, adminHandler, log, handler.RouterConfig{
		JWTSecret:     cfg.JWTSecret,
		AllowOrigins:  cfg.AllowOrigins,
		PurchaseRPS:   cfg.PurchaseRPS,
		PurchaseBurst: cfg.PurchaseBurst,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: router,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	cancel()

	reservationService.Close()
	wg.Wait()
	log.Info("workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

// restoreState reloads sessions, items, counters and open reservations so the
// ledger picks up exactly where the last process stopped.
func restoreState(
	ctx context.Context,
	store *storage.MySQLAdapter,
	cache *storage.RedisAdapter,
	sessions *service.SessionService,
	reservations *service.ReservationService,
	lg *ledger.Ledger,
	log *zap.Logger,
) error {
	loadedSessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range loadedSessions {
		sessions.Restore(s)
	}

	items, err := store.ListItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		perUser, err := store.UserTotals(ctx, item.ID)
		if err != nil {
			return err
		}
		lg.Register(item, perUser)
		if err := cache.SetStock(ctx, item.ID, item.RemainingQuantity()); err != nil {
			log.Warn("failed to seed stock cache", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	loadedReservations, err := store.ListReservations(ctx)
	if err != nil {
		return err
	}
	for _, r := range loadedReservations {
		reservations.Restore(r)
	}

	log.Info("engine state restored",
		zap.Int("sessions", len(loadedSessions)),
		zap.Int("items", len(items)),
		zap.Int("reservations", len(loadedReservations)),
	)
	return nil
}

// workerLoop drains the persistence queue. A failed reservation write rolls
// the in-memory counters back so memory and disk never drift apart.
func workerLoop(id int, svc *service.ReservationService, db port.DatabaseRepository, log *zap.Logger) {
	for job := range svc.Jobs() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		switch job.Kind {
		case service.JobPersistReservation:
			if err := db.CreateReservation(ctx, job.Reservation); err != nil {
				log.Error("failed to persist reservation, rolling back",
					zap.Int("worker", id),
					zap.String("reservation_id", job.Reservation.ID),
					zap.Error(err),
				)
				svc.Rollback(ctx, job.Reservation)
			}
		case service.JobPersistRelease:
			if err := db.UpdateReservation(ctx, job.Reservation); err != nil {
				log.Error("CRITICAL: failed to persist release",
					zap.Int("worker", id),
					zap.String("reservation_id", job.Reservation.ID),
					zap.Error(err),
				)
			}
		}

		cancel()
	}
}
