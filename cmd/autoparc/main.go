package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/middleware"
	appoutbox "autoparc/internal/app/outbox"
	"autoparc/internal/app/policies"
	"autoparc/internal/app/registry"
	"autoparc/internal/app/schedule"
	authsvc "autoparc/internal/app/services/auth"
	"autoparc/internal/app/uow"
	domainauth "autoparc/internal/domain/auth"
	domainuser "autoparc/internal/domain/user"
	kafkabroker "autoparc/internal/infra/broker/kafka"
	"autoparc/internal/infra/config"
	mongostore "autoparc/internal/infra/db/mongo"
	"autoparc/internal/infra/db/postgres"
	"autoparc/internal/infra/db/scylla"
	ginserver "autoparc/internal/infra/http/gin"
	"autoparc/internal/infra/inbox"
	"autoparc/internal/infra/obs"
	"autoparc/internal/infra/outbox"
	"autoparc/internal/infra/pdf"
	"autoparc/internal/infra/security"
	"autoparc/internal/infra/storage/cloudinary"
	"autoparc/internal/infra/storage/memory"
	s3store "autoparc/internal/infra/storage/s3"
	"autoparc/internal/realtime"
)

const outboxStaleAfter = 5 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(getenv("APP_ENV", "dev")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	var wg sync.WaitGroup
	for name, run := range app.background {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task stopped", "task", name, "error", err)
			}
		}(name, run)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "images", cfg.ImageStore)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	checks     map[string]obs.Check
	background map[string]func(context.Context) error
	closers    []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores is what the storage mode decides.
type stores struct {
	uow         uow.UoWFactory
	users       domainuser.Repository
	sessions    domainauth.SessionStore
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Outbox
	publisher   realtime.Publisher
	jobs        []schedule.Job
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		checks:     map[string]obs.Check{},
		background: map[string]func(context.Context) error{},
	}
	hub := realtime.NewHub(logger)

	var (
		st  stores
		err error
	)
	switch cfg.StorageMode {
	case "durable":
		st, err = buildDurable(ctx, cfg, logger, hub, app)
	default:
		st = buildMemory(cfg, logger, hub)
	}
	if err != nil {
		app.close()
		return nil, err
	}

	media := memory.NewObjectStore(cfg.PublicBaseURL + "/media")
	images, err := imageStore(cfg, logger, media)
	if err != nil {
		app.close()
		return nil, err
	}
	var reports policies.ObjectStore = media
	if cfg.UsesS3() {
		client, err := s3store.NewClient(s3Options(cfg, cfg.S3ReportsBucket), logger)
		if err != nil {
			app.close()
			return nil, err
		}
		reports = client
		app.checks["reports_bucket"] = client.Ping
	}

	buses := registry.Build(registry.Deps{
		Logger:      logger,
		UoW:         st.uow,
		Idempotency: st.idempotency,
		Outbox:      st.outbox,
		Encoder:     appoutbox.JSONEventEncoder{},
		Publisher:   st.publisher,
		Images:      images,
		Reports:     reports,
		Renderer:    pdf.ReportRenderer{Brand: "AutoParc"},
	})

	tokens, err := security.NewJWTIssuer(cfg.JWTSecret)
	if err != nil {
		app.close()
		return nil, err
	}
	auth := &authsvc.Service{
		Users:      st.users,
		Sessions:   st.sessions,
		Passwords:  security.BcryptHasher{Cost: cfg.BcryptCost},
		Tokens:     tokens,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	app.handlers = ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: auth, Queries: buses.Queries, Logger: logger},
		Listing:        ginserver.ListingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Chat:           ginserver.ChatHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Favorites:      ginserver.FavoritesHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Notification:   ginserver.NotificationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Expertise:      ginserver.ExpertiseHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		User:           ginserver.UserHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Realtime:       ginserver.RealtimeHandler{Hub: hub, Queries: buses.Queries, Logger: logger},
		Media:          &ginserver.MediaHandler{Store: media},
		AuthMiddleware: ginserver.AuthMiddleware{Service: auth, Logger: logger}.Handle,
	}

	jobs := []schedule.Job{{
		Name:  "sessions.purge",
		Every: cfg.SessionSweepInterval,
		Run: func(ctx context.Context) error {
			n, err := auth.PurgeExpired(ctx)
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
			return err
		},
	}}
	jobs = append(jobs, st.jobs...)
	if requeue, ok := st.outbox.(interface {
		Requeue(ctx context.Context, stale time.Duration) (int, error)
	}); ok {
		jobs = append(jobs, schedule.Job{
			Name:  "outbox.requeue",
			Every: time.Minute,
			Run: func(ctx context.Context) error {
				n, err := requeue.Requeue(ctx, outboxStaleAfter)
				if n > 0 {
					logger.Warn("stale outbox records requeued", "count", n)
				}
				return err
			},
		})
	}
	runner := &schedule.Runner{Logger: logger, Jobs: jobs}
	app.background["scheduler"] = runner.Run
	return app, nil
}

func buildMemory(cfg config.Config, logger *slog.Logger, hub *realtime.Hub) stores {
	factory := memory.NewFactory()
	replays := memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	purge := schedule.Job{
		Name:  "replays.purge",
		Every: time.Hour,
		Run: func(ctx context.Context) error {
			n, err := replays.Purge(ctx, time.Now())
			if n > 0 {
				logger.Debug("command replays purged", "count", n)
			}
			return err
		},
	}
	return stores{
		uow:         factory,
		users:       factory.UsersRepo,
		sessions:    memory.NewSessionStore(),
		idempotency: replays,
		outbox:      memory.NewOutbox(),
		publisher:   hub,
		jobs:        []schedule.Job{purge},
	}
}

// buildDurable connects Mongo for listings, users and reports, Postgres for
// favorites and notifications, Scylla for chats, and Kafka for the outbox
// relay and cross-instance realtime.
func buildDurable(ctx context.Context, cfg config.Config, logger *slog.Logger, hub *realtime.Hub, app *application) (stores, error) {
	mongoClient, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return stores{}, err
	}
	app.closers = append(app.closers, func() { _ = mongoClient.Close(context.Background()) })
	app.checks["mongo"] = mongoClient.Ping
	db := mongoClient.DB

	listings, err := mongostore.NewListingRepository(ctx, db)
	if err != nil {
		return stores{}, err
	}
	users, err := mongostore.NewUserRepository(ctx, db)
	if err != nil {
		return stores{}, err
	}
	reports, err := mongostore.NewReportRepository(ctx, db)
	if err != nil {
		return stores{}, err
	}
	sessions, err := mongostore.NewSessionStore(ctx, db)
	if err != nil {
		return stores{}, err
	}

	pool, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, err
	}
	app.closers = append(app.closers, pool.Close)
	app.checks["postgres"] = pool.Ping

	chatSession, err := scylla.NewSession(ctx, scylla.Options{
		Hosts:    cfg.ScyllaHosts,
		Keyspace: cfg.ScyllaKeyspace,
		Timeout:  cfg.ScyllaTimeout,
	}, logger)
	if err != nil {
		return stores{}, err
	}
	app.closers = append(app.closers, chatSession.Close)

	factory := mongostore.Factory{
		DB:                db,
		ListingsRepo:      listings,
		UsersRepo:         users,
		ReportsRepo:       reports,
		ChatsRepo:         scylla.NewChatRepository(chatSession, logger),
		FavoritesRepo:     postgres.NewFavoriteRepository(pool),
		NotificationsRepo: postgres.NewNotificationRepository(pool),
	}
	outboxStore, err := outbox.NewStore(ctx, db)
	if err != nil {
		return stores{}, err
	}

	replays, err := mongostore.NewIdempotencyStore(ctx, db, cfg.IdempotencyTTL)
	if err != nil {
		return stores{}, err
	}

	st := stores{
		uow:         factory,
		users:       users,
		sessions:    sessions,
		idempotency: replays,
		outbox:      outboxStore,
		publisher:   hub,
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured: outbox stays pending and realtime is local only")
		return st, nil
	}

	instance := uuid.NewString()
	producer, err := kafkabroker.NewProducer(cfg.KafkaBrokers, kafkabroker.NewConfig("autoparc-"+instance))
	if err != nil {
		return stores{}, err
	}
	app.closers = append(app.closers, func() { _ = producer.Close() })

	worker := &outbox.Worker{
		Store:    outboxStore,
		Producer: producer,
		Topic:    cfg.DomainEventsTopic(),
		Interval: cfg.OutboxPollInterval,
		ID:       instance,
		Backoff:  cfg.RetryBackoff,
		Logger:   logger,
	}
	app.background["outbox"] = worker.Run

	dedup, err := inbox.NewStore(ctx, db, "realtime-"+instance, time.Hour)
	if err != nil {
		return stores{}, err
	}
	bridge := &kafkabroker.RealtimeBridge{
		Local:    hub,
		Producer: producer,
		Topic:    cfg.RealtimeTopic(),
		Origin:   instance,
		Inbox:    dedup,
		Logger:   logger,
	}
	// each instance needs every realtime event, so the group is per instance
	consumer, err := kafkabroker.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID+"-"+instance,
		kafkabroker.NewConfig("autoparc-"+instance), bridge, logger)
	if err != nil {
		return stores{}, err
	}
	app.closers = append(app.closers, func() { _ = consumer.Close() })
	app.background["realtime-consumer"] = func(ctx context.Context) error {
		return consumer.Run(ctx, []string{cfg.RealtimeTopic()})
	}
	st.publisher = bridge
	return st, nil
}

func imageStore(cfg config.Config, logger *slog.Logger, media *memory.ObjectStore) (policies.ObjectStore, error) {
	switch cfg.ImageStore {
	case "s3":
		client, err := s3store.NewClient(s3Options(cfg, cfg.S3ImagesBucket), logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "cloudinary":
		store, err := cloudinary.New(cfg.CloudinaryURL, cfg.CloudinaryFolder, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return media, nil
	}
	return nil, fmt.Errorf("unknown image store %q", cfg.ImageStore)
}

func s3Options(cfg config.Config, bucket string) s3store.Options {
	return s3store.Options{
		Endpoint:      cfg.S3Endpoint,
		UseSSL:        cfg.S3UseSSL,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        bucket,
		PublicBaseURL: cfg.S3PublicEndpoint,
		PublicRead:    true,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
