// Package main rental lifecycle API.
//
// @title           LendWorks Rental API
// @version         1.0
// @description     rental lifecycle service (handover, returns, timeline, lender dashboard).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	validator "github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/stevegwapss/lendworks/app/echoServer"
	dashboardctl "github.com/stevegwapss/lendworks/app/echoServer/controller/dashboard"
	rentalctl "github.com/stevegwapss/lendworks/app/echoServer/controller/rental"
	"github.com/stevegwapss/lendworks/app/echoServer/validation"
	"github.com/stevegwapss/lendworks/config"
	"github.com/stevegwapss/lendworks/migrations"
	listingrepo "github.com/stevegwapss/lendworks/repository/listing"
	paymentrepo "github.com/stevegwapss/lendworks/repository/payment"
	proofrepo "github.com/stevegwapss/lendworks/repository/proof"
	"github.com/stevegwapss/lendworks/repository/proofblob"
	rentalrepo "github.com/stevegwapss/lendworks/repository/rental"
	schedulerepo "github.com/stevegwapss/lendworks/repository/schedule"
	timelinerepo "github.com/stevegwapss/lendworks/repository/timeline"
	userrepo "github.com/stevegwapss/lendworks/repository/user"
	dashboardsvc "github.com/stevegwapss/lendworks/service/dashboard"
	"github.com/stevegwapss/lendworks/service/notify"
	rentalsvc "github.com/stevegwapss/lendworks/service/rental"
	"github.com/stevegwapss/lendworks/util/clock"
	"github.com/stevegwapss/lendworks/util/database"
	"github.com/stevegwapss/lendworks/util/httpx"
	"github.com/stevegwapss/lendworks/util/mongodb"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	mongoClient, err := mongodb.New(ctx, cfg.MongoURL)
	if err != nil {
		log.Error("mongo connect", "err", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	rentals := rentalrepo.New(db)
	schedules := schedulerepo.New(db)
	timeline := timelinerepo.New(db)
	proofs := proofrepo.New(db)
	listings := listingrepo.New(db)
	payments := paymentrepo.New(db)
	users := userrepo.New(db)
	blobs := proofblob.New(mongoClient, cfg.MongoDBName)

	clk := clock.NewSystem()

	var notifier notify.Notifier
	if cfg.BotToken != "" {
		bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpx.Client())
		if err != nil {
			log.Error("telegram bot", "err", err)
			os.Exit(1)
		}
		notifier = notify.NewTelegram(bot, users, log)
	} else {
		notifier = notify.NewLog(log)
	}

	rentalService := rentalsvc.New(
		database.RunInTx(db),
		rentals, schedules, timeline, proofs, listings,
		blobs, clk, notifier, log,
	)
	dashboardService := dashboardsvc.New(rentals, payments, clk)
	sweeper := rentalsvc.NewOverdueSweeper(rentals, clk, notifier, log)

	v := validator.New()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	echoServer.RegisterMiddlewares(e)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Rental:    &rentalctl.Controller{Svc: rentalService, V: v, Log: log},
		Dashboard: &dashboardctl.Controller{Svc: dashboardService, Log: log},
		JWTSecret: cfg.JWTSecret,
	})

	c := cron.New()
	if _, err := c.AddFunc("@daily", func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer scancel()
		n, err := sweeper.Sweep(sctx)
		if err != nil {
			log.Error("overdue sweep", "err", err)
			return
		}
		log.Info("overdue sweep done", "notified", n)
	}); err != nil {
		log.Error("cron", "err", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	if err := e.Start(":" + cfg.Port); err != nil {
		log.Error("server stopped", "err", err)
	}
}
