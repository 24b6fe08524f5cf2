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
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/conference-cms/internal/config"
	"github.com/iliyamo/conference-cms/internal/database"
	"github.com/iliyamo/conference-cms/internal/mail"
	"github.com/iliyamo/conference-cms/internal/middleware"
	"github.com/iliyamo/conference-cms/internal/model"
	"github.com/iliyamo/conference-cms/internal/queue"
	"github.com/iliyamo/conference-cms/internal/repository"
	"github.com/iliyamo/conference-cms/internal/router"
	"github.com/iliyamo/conference-cms/internal/service"
	"github.com/iliyamo/conference-cms/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, config.Load())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	// bare "conference-cms" serves too
	rootCmd.RunE = serveCmd.RunE
}

func serve(ctx context.Context, cfg config.Config) error {
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	mailer := mail.New(cfg.SMTP)
	audit := queue.NewAuditLog(cfg.ContentLogPath)
	var notify service.Notifier
	var inline *queue.Inline
	if cfg.RabbitMQURL != "" {
		notify = queue.NewPublisher(cfg.RabbitMQURL)
		startConsumers(ctx, cfg.RabbitMQURL, mailer, audit)
	} else {
		log.Println("rabbitmq not configured; notifications are handled inline")
		inline = &queue.Inline{Mail: mailer, Audit: audit}
		notify = inline
	}
	images := openImageStore(ctx)

	users := &service.UserService{
		Users:        repository.NewUserRepo(db),
		JWTSecret:    cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTTLMin,
		BcryptCost:   cfg.BcryptCost,
	}
	deps := router.Deps{
		JWTSecret:        cfg.JWTSecret,
		RecaptchaSiteKey: cfg.RecaptchaSiteKey,
		DB:               db,
		Users:            users,
		Reset: &service.ResetService{
			Users:       users.Users,
			Tokens:      repository.NewResetTokenRepo(db),
			Notify:      notify,
			TTLMin:      cfg.ResetTTLMin,
			FrontendURL: cfg.FrontendURL,
			BcryptCost:  cfg.BcryptCost,
		},
		Events: &service.ContentService[model.Event, *model.Event]{
			Kind:   "event",
			Store:  repository.NewContentRepo[model.Event](db, repository.EventsTable),
			Notify: notify,
			Cache:  cache,
		},
		Publications: &service.ContentService[model.Publication, *model.Publication]{
			Kind:   "publication",
			Store:  repository.NewContentRepo[model.Publication](db, repository.PublicationsTable),
			Notify: notify,
			Cache:  cache,
		},
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     cache,
	}
	// leave the interfaces nil rather than holding a nil *ImageStore
	if images != nil {
		deps.Images = images
		deps.ImageOpener = images
		deps.Events.Images = images
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.BodyLimit("60M"))
	router.Register(e, deps)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	if inline != nil {
		inline.Wait()
	}
	return err
}

// openImageStore returns nil when MinIO is not configured or unreachable;
// uploads are then rejected and image URLs answer 404.
func openImageStore(ctx context.Context) *storage.ImageStore {
	mcfg := config.LoadMinioConfig()
	if mcfg.Endpoint == "" {
		log.Println("minio not configured; image uploads disabled")
		return nil
	}
	store, err := storage.NewImageStore(mcfg)
	if err != nil {
		log.Printf("minio: %v; image uploads disabled", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		log.Printf("minio: ensure bucket %s: %v; image uploads disabled", mcfg.Bucket, err)
		return nil
	}
	return store
}

func startConsumers(ctx context.Context, url string, mailer queue.MailSender, audit *queue.AuditLog) {
	consumers := map[string]queue.HandlerFunc{
		queue.PasswordResetQueue:    queue.PasswordResetHandler(mailer),
		queue.ContentPublishedQueue: audit.Handler(),
	}
	for name, handle := range consumers {
		go func(name string, handle queue.HandlerFunc) {
			if err := queue.Consume(ctx, url, name, handle); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("consumer %s stopped: %v", name, err)
			}
		}(name, handle)
	}
}
