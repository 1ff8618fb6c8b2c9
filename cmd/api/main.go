package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Windi-Fikriyansyah/localserve/internal/cache"
	"github.com/Windi-Fikriyansyah/localserve/internal/config"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/handlers"
	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/auth"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/directjob"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/job"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/moderation"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/review"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/user"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/wallet"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)
	go func() {
		log.Printf("[Metrics] listening on :%d", cfg.MetricsPort)
		if err := metrics.StartServer(cfg.MetricsPort, reg); err != nil {
			log.Printf("[Metrics] server stopped: %v", err)
		}
	}()

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[Redis] not reachable, running single-instance without cache: %v", err)
	} else {
		log.Println("[Redis] connected")
	}
	cancel()

	hub := realtime.NewHub(m)
	go hub.Run(ctx)
	broker := realtime.NewBroker(rdb, hub)
	go func() {
		if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Broker] stopped: %v", err)
		}
	}()

	walletSvc := wallet.NewWalletService(gdb)
	applier := effects.NewApplier(walletSvc, m)
	authSvc := auth.NewAuthService(gdb, cache.New(rdb), cfg.JWTSecret, cfg.JWTExpiresMin, cfg.StatusCacheTTL())
	chatSvc := chat.NewChatService(gdb, broker)
	notifSvc := notification.NewNotificationService(gdb, broker)

	reports := moderation.NewReportService(gdb, applier, authSvc)
	reports.Sessions = broker

	dispatcher := notification.NewDispatcher(gdb, notifSvc, m, cfg.DispatchInterval(), cfg.DispatchMaxAttempts)
	go dispatcher.Run(ctx)

	app := handlers.NewApp(handlers.Deps{
		Config:        cfg,
		Auth:          authSvc,
		Users:         user.NewUserService(gdb, chatSvc, walletSvc),
		Jobs:          job.NewJobService(gdb, applier, broker),
		DirectJobs:    directjob.NewDirectJobService(gdb, applier, broker),
		Reviews:       review.NewReviewService(gdb, applier),
		Reports:       reports,
		Notifications: notifSvc,
		Chat:          chatSvc,
		Hub:           hub,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
