package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	oauthmod "github.com/dmitrymomot/oauthflow/modules/oauth"
	"github.com/dmitrymomot/oauthflow/pkg/binding"
	"github.com/dmitrymomot/oauthflow/pkg/config"
	"github.com/dmitrymomot/oauthflow/pkg/exchange"
	"github.com/dmitrymomot/oauthflow/pkg/httpserver"
	"github.com/dmitrymomot/oauthflow/pkg/logger"
	"github.com/dmitrymomot/oauthflow/pkg/pg"
	"github.com/dmitrymomot/oauthflow/pkg/profile"
	"github.com/dmitrymomot/oauthflow/pkg/provider"
	"github.com/dmitrymomot/oauthflow/pkg/redis"
	"github.com/dmitrymomot/oauthflow/pkg/session"
	"github.com/dmitrymomot/oauthflow/pkg/settings"
	"github.com/dmitrymomot/oauthflow/pkg/state"
	"github.com/dmitrymomot/oauthflow/pkg/userstore"
	oauthsvc "github.com/dmitrymomot/oauthflow/svc/oauth"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"oauthflow"`
}

func main() {
	var (
		appCfg   appConfig
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
		sessCfg  session.Config
		oauthCfg settings.Config
		modCfg   oauthmod.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&sessCfg)
	config.MustLoad(&oauthCfg)
	config.MustLoad(&modCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Env, appCfg.Name))
	logger.SetAsDefault(log)

	ctx := context.Background()

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "postgres connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "migration failed", logger.Error(err))
		os.Exit(1)
	}

	src := settings.NewEnvSource(oauthCfg)
	users := &userAdapter{store: userstore.NewPostgresStore(pool)}
	sessions := session.NewIssuer(redisClient, session.WithTTL(sessCfg.TTL))

	svc, err := oauthsvc.New(oauthsvc.Dependencies{
		Providers:   provider.NewRegistry(src),
		Exchange:    exchange.New(),
		Profiles:    profile.New(),
		States:      state.NewRedisStore(redisClient),
		Bindings:    binding.NewPostgresStore(pool),
		Users:       users,
		Provisioner: users,
		Sessions:    sessions,
		Settings:    src,
	}, oauthsvc.WithLogger(log))
	if err != nil {
		log.ErrorContext(ctx, "service init failed", logger.Error(err))
		os.Exit(1)
	}

	mod := oauthmod.New(svc, sessions, modCfg, oauthmod.WithLogger(log))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log,
		redis.Healthcheck(redisClient),
		pg.Healthcheck(pool),
	))
	r.Mount("/", mod.Handle())

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server stopped", logger.Error(err))
		os.Exit(1)
	}
}
