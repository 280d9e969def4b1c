package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/api/handlers"
	"github.com/GlebTut/Auction-System-Project/internal/config"
	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/internal/infrastructure/leader"
	"github.com/GlebTut/Auction-System-Project/internal/infrastructure/memory"
	"github.com/GlebTut/Auction-System-Project/internal/infrastructure/mysql"
	redisinfra "github.com/GlebTut/Auction-System-Project/internal/infrastructure/redis"
	"github.com/GlebTut/Auction-System-Project/internal/infrastructure/websocket"
	"github.com/GlebTut/Auction-System-Project/internal/services"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting auction lifecycle service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize the Ledger backend
	var ledger domain.Ledger
	switch cfg.Storage.Backend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Error("Failed to open MySQL", "error", err)
			os.Exit(1)
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL")
		ledger = mysql.NewLedger(db)
	case "memory":
		log.Warn("Using in-memory ledger, state will not survive restarts")
		ledger = memory.NewLedger()
	}

	clock := domain.SystemClock{}

	// Event fanout and sweep leadership
	eventPublisher := redisinfra.NewEventPublisher(rdb)
	eventSubscriber := redisinfra.NewEventSubscriber(rdb, log)
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Core services
	issuer := services.NewPaymentIssuer(ledger, clock, log)
	acceptor := services.NewBidAcceptor(ledger, cfg.Bidding.RetryAttempts, log)
	closer := services.NewAuctionCloser(ledger, issuer, eventPublisher, cfg.Bidding.RetryAttempts, log)
	lifecycle := services.NewAuctionLifecycleService(
		ledger, clock, acceptor, closer, eventPublisher, cfg.Bidding.LedgerTimeout, log)

	// Viewer fanout
	connManager := websocket.NewConnectionManager(log)
	eventListener := services.NewEventListener(connManager, log)

	// Periodic sweep
	sweeper := services.NewSweepScheduler(lifecycle, leaderElection, cfg.Instance.ID, cfg.Sweep.Interval, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	auctionHandler := handlers.NewAuctionHandler(lifecycle, log)
	wsHandler := handlers.NewWebSocketHandler(lifecycle, connManager, log)

	api := e.Group("/api/v1")
	api.POST("/auctions", auctionHandler.CreateAuction)
	api.GET("/auctions/:id", auctionHandler.GetAuction)
	api.POST("/auctions/:id/bids", auctionHandler.PlaceBid)
	api.GET("/auctions/:id/bids", auctionHandler.GetBidHistory)
	api.POST("/auctions/:id/close", auctionHandler.CloseAuction)
	api.GET("/auctions/:id/payment", auctionHandler.GetPayment)

	e.GET("/ws/auctions/:id", wsHandler.HandleConnection)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-lifecycle",
			"timestamp": clock.Now().Format(time.RFC3339),
		})
	})

	// Start background services
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go func() {
		if err := sweeper.Start(runCtx); err != nil {
			log.Error("Failed to start sweep scheduler", "error", err)
		}
	}()

	go func() {
		if err := eventListener.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	go func() {
		for {
			became, err := leaderElection.BecomeLeader(runCtx, cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			select {
			case <-runCtx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction lifecycle service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stopBackground()
	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweep scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction lifecycle service stopped")
}
