// Package main library rental API.
//
// @title           Library Rental API
// @version         1.0
// @description     Library rental service (catalog, orders, ratings).
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
	"os"
	"time"

	"libraryrental/app/echoServer"
	authctrl "libraryrental/app/echoServer/controller/auth"
	bookctrl "libraryrental/app/echoServer/controller/book"
	orderctrl "libraryrental/app/echoServer/controller/order"
	"libraryrental/app/echoServer/validation"
	"libraryrental/config"
	bookrepo "libraryrental/repository/book"
	orderrepo "libraryrental/repository/order"
	userrepo "libraryrental/repository/user"
	authsvc "libraryrental/service/auth"
	booksvc "libraryrental/service/book"
	ordersvc "libraryrental/service/order"
	"libraryrental/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: *sql.DB
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ur := userrepo.New(db)
	br := bookrepo.New(db)
	or := orderrepo.New(db)

	// services
	as := authsvc.New(ur, cfg.JWTSecret)
	bs := booksvc.New(br)
	osvc := ordersvc.New(or)

	// expiry sweeper
	sweeper := ordersvc.NewSweeper(or, time.Duration(cfg.BookingTTLHours)*time.Hour, log)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweeper.Run(sweepCtx, cfg.SweepInterval)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	orderC := &orderctrl.Controller{Svc: osvc, V: v, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:  authC,
		Book:  bookC,
		Order: orderC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Info("starting server", "port", port, "sweep_interval", cfg.SweepInterval.String())

	e.Logger.Fatal(e.Start(":" + port))
}
