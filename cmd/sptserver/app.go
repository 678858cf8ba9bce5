package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sptgo/gameserver/internal/config"
	"github.com/sptgo/gameserver/internal/errors"
	"github.com/sptgo/gameserver/pkg/blobstore"
	"github.com/sptgo/gameserver/pkg/middleware"
	"github.com/sptgo/gameserver/pkg/notifier"
	"github.com/sptgo/gameserver/pkg/router"
	"github.com/sptgo/gameserver/pkg/serializer"
	"github.com/sptgo/gameserver/pkg/server"
	"github.com/sptgo/gameserver/pkg/session"
)

// app is the wired process: every component built from one Config.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	router   *router.Router
	hub      *notifier.Hub
	activity *session.Service
	files    blobstore.Store
	server   *server.Server
	handler  http.Handler

	closers []func() error
}

// newApp builds every component. On error, anything already opened is
// closed before returning.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	built := false
	defer func() {
		if !built {
			a.closeResources()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := a.openActivityStore(ctx)
	if err != nil {
		return nil, err
	}
	a.activity = session.NewService(store, session.ServiceConfig{
		TTL:        cfg.ActivityTTL(),
		Logger:     logger,
		Registerer: a.registry,
	})

	files, err := a.openFileStore()
	if err != nil {
		return nil, err
	}
	a.files = files

	a.hub = notifier.NewHub(cfg.Notifier.QueueSize)
	sockets := notifier.NewWebSocketServer(a.hub, notifier.Config{
		KeepAlive:         cfg.KeepAlive(),
		MessagesPerSecond: rate.Limit(cfg.Notifier.MessagesPerSecond),
		Burst:             cfg.Notifier.Burst,
	}, logger)

	chain := serializer.NewChain(
		serializer.NewImageSerializer(a.files),
		serializer.NewBundleSerializer(a.files),
		serializer.NewNotifySerializer(a.hub, cfg.PollTimeout()),
	)

	a.router = router.New()
	a.router.Use(logActions(logger.With("component", "router")))
	registerRoutes(a.router, time.Now)

	listener := server.NewProtocolListener(a.router, chain, &server.ListenerConfig{
		Release:       cfg.Release,
		MaxBodySize:   cfg.MaxBodySize,
		Logger:        logger.With("component", "http"),
		RequestLogger: logger.With("component", "requests"),
		Registerer:    a.registry,
	})

	a.server = server.New(&server.ServerConfig{
		IP:          cfg.IP,
		Port:        cfg.Port,
		TLSCertFile: cfg.TLS.CertFile,
		TLSKeyFile:  cfg.TLS.KeyFile,
		WebSocket:   sockets,
		Activity:    a.activity,
		Logger:      logger.With("component", "server"),
		Registerer:  a.registry,
	}, listener)

	a.handler = a.buildHandler()
	built = true
	return a, nil
}

// buildHandler mounts the connection router behind the edge middleware.
// Everything except the metrics endpoint goes through the router.
func (a *app) buildHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.OpenTelemetry(middleware.WithTracerName("sptserver")),
		middleware.Prometheus(middleware.WithRegistry(a.registry)),
	)

	if a.config.MetricsPath != "-" {
		mux.Handle(a.config.MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
			Registry: a.registry,
		}))
	}
	mux.Handle("/*", a.server.Middleware(http.NotFoundHandler()))
	return mux
}

func (a *app) openActivityStore(ctx context.Context) (session.Store, error) {
	cfg := a.config.Activity
	switch cfg.Backend {
	case config.ActivityRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, errors.New("E120").
				WithField("activity.redisAddr").
				WithSuggestion("Check that redis is reachable at " + cfg.RedisAddr).
				Wrap(err)
		}
		return session.NewRedisStore(client, session.WithRedisKey(cfg.RedisKey)), nil

	case config.ActivitySQLite:
		path := a.config.SQLitePath()
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, errors.New("E120").WithField("activity.sqlitePath").Wrap(err)
		}
		a.closers = append(a.closers, db.Close)
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)

		store := session.NewSQLStore(db, session.WithSQLDialect(session.DialectSQLite))
		if err := store.CreateTable(ctx); err != nil {
			return nil, errors.New("E120").
				WithField("activity.sqlitePath").
				WithDetail("Could not create the activity table in " + path).
				Wrap(err)
		}
		return store, nil

	default:
		return session.NewMemoryStore(), nil
	}
}

func (a *app) openFileStore() (blobstore.Store, error) {
	cfg := a.config.Files
	if cfg.Backend != config.FilesS3 {
		dir := a.config.FilesPath()
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			return nil, errors.New("E121").
				WithField("files.dir").
				WithDetail(dir + " is not a directory")
		}
		return blobstore.NewDiskStore(dir), nil
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: aws.NewCredentialsCache(envCredentials{}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return blobstore.NewS3Store(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
}

// envCredentials reads the standard AWS_* variables on every retrieval.
type envCredentials struct{}

func (envCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("E121").
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 files backend")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}, nil
}

// run serves until a shutdown signal. The activity service runs alongside and
// is flushed on the way out.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.activity.Run(ctx)

	if err := a.server.RunHandler(a.handler); err != nil {
		return errors.New("E122").Wrap(err)
	}
	return nil
}

// Close flushes session activity and releases every backend.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.activity != nil {
		errs = append(errs, a.activity.Close(ctx))
	}
	errs = append(errs, a.closeResources())
	return stderrors.Join(errs...)
}

func (a *app) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return stderrors.Join(errs...)
}
