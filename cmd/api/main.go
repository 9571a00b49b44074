package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/tutor_booking/configs"
	"github.com/anjiri1684/tutor_booking/database"
	"github.com/anjiri1684/tutor_booking/events"
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/jobs"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/notifications"
	"github.com/anjiri1684/tutor_booking/repository"
	"github.com/anjiri1684/tutor_booking/routes"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/anjiri1684/tutor_booking/websocket"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const presenceRefresh = 30 * time.Second

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(settings.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(settings, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(settings config.Settings, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(settings.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := database.SeedAdmin(db, settings, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	users := repository.NewUserRepo(db, log)
	appts := repository.NewAppointmentRepo(db, log)
	msgs := repository.NewMessageRepo(db, log)
	notes := repository.NewNotificationRepo(db, log)
	slots := repository.NewAvailabilityRepo(db, log)

	hub := websocket.NewHub(log)
	var realtime services.Realtime = hub
	if settings.RedisAddr != "" {
		rdb, err := websocket.NewRedisClient(settings.RedisAddr, settings.RedisPassword, settings.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cluster := websocket.NewClusterChannel(hub, websocket.NewRedisBackplane(rdb), settings.RedisChannel, log)
		if err := cluster.StartForwarder(ctx); err != nil {
			return err
		}
		realtime = cluster
		log.Info("realtime presence shared through redis", "channel", settings.RedisChannel)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if settings.RabbitMQURL != "" {
		amqp, err := events.NewAMQPPublisher(settings.RabbitMQURL, log)
		if err != nil {
			return err
		}
		defer amqp.Close()
		publisher = amqp
	}

	mailer := notifications.NewMailer(settings.BrevoAPIKey, settings.EmailSender, settings.EmailSenderName, log)
	clock := services.SystemClock

	appointments := services.NewAppointmentService(db, users, appts, msgs, notes, publisher, mailer, clock, log)
	h := &handlers.Handler{
		Appointments:  appointments,
		Messaging:     services.NewMessagingService(db, users, appts, msgs, notes, realtime, clock, log),
		Notifications: services.NewNotificationService(db, notes, log),
		Availability:  services.NewAvailabilityService(db, users, slots, clock, log),
		Auth:          services.NewAuthService(users, settings.SecretKey, settings.SessionTTL, clock, log),
		Hub:           hub,
		SessionTTL:    settings.SessionTTL,
		SecureCookies: settings.Env == "production",
		Log:           log,
	}
	if settings.CloudinaryURL != "" {
		if h.Uploads, err = handlers.NewUploadSigner(settings.CloudinaryURL); err != nil {
			return err
		}
	}

	scheduler := cron.New()
	if _, err := jobs.Schedule(scheduler, settings.ReminderSchedule, jobs.NewReminderJob(appointments, time.Minute, log), log); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	app := routes.NewApp(h, routes.AppConfig{
		Secret:         settings.SecretKey,
		AllowOrigins:   settings.CORSOrigins,
		RequestTimeout: settings.RequestTimeout,
		AccessLog:      settings.Env != "production",
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx, presenceRefresh)
		return nil
	})
	g.Go(func() error {
		log.Info("server listening", "port", settings.Port)
		return app.Listen(":" + settings.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
