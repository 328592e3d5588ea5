package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/billnotify/internal/config"
	"github.com/sumire/billnotify/internal/handler"
	"github.com/sumire/billnotify/internal/logger"
	"github.com/sumire/billnotify/internal/notify"
	"github.com/sumire/billnotify/internal/repository"
	"github.com/sumire/billnotify/internal/scheduler"
	"github.com/sumire/billnotify/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logger.New(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	slog.Info("database connected")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	userRepo := repository.NewUserRepository(db)
	billRepo := repository.NewBillRepository(db)
	logRepo := repository.NewNotificationLogRepository(db)

	var mailer notify.Mailer
	if cfg.EmailEnabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
		})
	} else {
		slog.Warn("SMTP_HOST not set, email reminders disabled")
	}

	hub := notify.NewHub()
	emailSender := notify.NewEmailSender(mailer, cfg.FrontendURL)
	slackSender := notify.NewSlackSender(cfg.SlackTimeout, cfg.FrontendURL)
	inAppSender := notify.NewInAppSender(hub)

	var reminders *service.ReminderService
	sched, err := scheduler.New("bill-reminders", scheduler.Config{
		Spec:       cfg.ReminderSchedule,
		Timezone:   cfg.ReminderTimezone,
		RunTimeout: cfg.ReminderRunTimeout,
	}, func(ctx context.Context) error {
		report, err := reminders.Run(ctx)
		slog.Info("reminder run finished", "report", report)
		return err
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	reminders = service.NewReminderService(userRepo, billRepo, logRepo, service.ReminderConfig{
		Location:                 sched.Location(),
		InAppLogRequiresDelivery: cfg.InAppLogRequiresDelivery,
	}, emailSender, slackSender, inAppSender)

	authSvc := service.NewAuthService(cfg.JWTSecret)
	notificationSvc := service.NewNotificationService(userRepo, logRepo, slackSender, inAppSender, hub)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handler.Register(e, authSvc,
		handler.NewNotificationHandler(notificationSvc, hub, cfg.SSEHeartbeat, cfg.SSEWriteTimeout),
		handler.NewBillHandler(sched.Location()),
	)

	// WriteTimeout stays zero: event streams are long-lived responses.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     e,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Shutdown()
	sched.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
