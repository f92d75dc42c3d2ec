package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/checkout/internal/auth"
	"github.com/Skotchmaster/checkout/internal/cart"
	"github.com/Skotchmaster/checkout/internal/catalog"
	"github.com/Skotchmaster/checkout/internal/checkout"
	"github.com/Skotchmaster/checkout/internal/config"
	"github.com/Skotchmaster/checkout/internal/httpserver"
	"github.com/Skotchmaster/checkout/internal/ledger"
	"github.com/Skotchmaster/checkout/internal/logging"
	loggingmw "github.com/Skotchmaster/checkout/internal/middleware/logging"
	"github.com/Skotchmaster/checkout/internal/notify"
	"github.com/Skotchmaster/checkout/internal/orderstore"
	"github.com/Skotchmaster/checkout/internal/recon"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	dispatcher := notify.NewKafkaDispatcher(
		[]string{configuration.KAFKA_ADDRESS},
		configuration.ORDER_TOPIC,
		logger,
	)

	stockLedger := &ledger.Ledger{DB: db}
	store := &orderstore.Store{DB: db}
	cartSource := &cart.GormSource{DB: db}

	engine := &checkout.Engine{
		Ledger:  stockLedger,
		Store:   store,
		Catalog: &catalog.Reader{DB: db},
		Cart:    cartSource,
		Notify:  dispatcher,
	}

	sweeper := &recon.Sweeper{
		DB:        db,
		Ledger:    stockLedger,
		Log:       logger,
		Interval:  time.Minute,
		OlderThan: 5 * time.Minute,
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweeper.Run(sweepCtx)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	authMW := &auth.Middleware{JWTSecret: []byte(configuration.JWT_SECRET)}

	deps := httpserver.Deps{
		DB:              db,
		Auth:            authMW,
		CheckoutHandler: &httpserver.CheckoutHandler{Engine: engine, Cart: cartSource},
		OrderHandler:    &httpserver.OrderHandler{Engine: engine, Store: store},
		AdminHandler:    &httpserver.AdminHandler{Engine: engine, Store: store},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := dispatcher.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
