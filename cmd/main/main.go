package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dreambot/pkg"
	"dreambot/pkg/alerts"
	ttlcache "dreambot/pkg/cache"
	"dreambot/pkg/config"
	"dreambot/pkg/db"
	"dreambot/pkg/handlers"
	"dreambot/pkg/market"
	"dreambot/pkg/metrics"
	"dreambot/pkg/notify"
	"dreambot/pkg/util"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("DREAMBOT_CONFIG"))
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.Sentry.DSN,
		Environment:   cfg.Sentry.Environment,
		EnableTracing: false,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if cfg.Production() { // only report events in prod
				return event
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	defer sentry.Flush(2 * time.Second)

	logHandlers := []slog.Handler{
		tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel(),
		}),
		sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelWarn, slog.LevelError},
		}.NewSentryHandler(context.Background()),
	}
	if cfg.Log.File != "" {
		fileWriter, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			panic(err)
		}
		defer fileWriter.Close()
		logHandlers = append(logHandlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(slog.New(slog.NewMultiHandler(logHandlers...)))

	slog.Info("starting the bot...", slog.String("disgo.version", disgo.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		panic(err)
	}
	defer pool.Close()
	database := db.NewDB(pool, cfg.Database.QueryTimeout)
	alertStore := db.NewAlertStore(database)

	limit := rate.Inf
	if cfg.Market.Rate > 0 {
		limit = rate.Limit(cfg.Market.Rate)
	}
	marketClient := market.New(
		util.NewMarketClient(cfg.Market.Timeout, cfg.Market.UserAgent),
		cfg.Market.BaseURL,
		rate.NewLimiter(limit, max(cfg.Market.Burst, 1)),
		market.NewBackoffs(cfg.Market.MaxBackoff),
	)

	searches := ttlcache.New[string, []market.Item](cfg.Cache.TTL)
	guilds := ttlcache.New[snowflake.ID, config.Guild](cfg.Cache.TTL)
	reactionRoles := ttlcache.New[snowflake.ID, map[string]snowflake.ID](cfg.Cache.TTL)
	messages := ttlcache.New[snowflake.ID, pkg.LoggedMessage](cfg.Audit.MessageTTL)
	for _, c := range []interface{ Run(context.Context, time.Duration) }{searches, guilds, reactionRoles, messages} {
		go c.Run(ctx, cfg.Cache.SweepInterval)
	}

	catalog := market.NewCatalog(marketClient, searches)
	if err := catalog.Refresh(ctx); err != nil {
		slog.Warn("dreambot: error while loading the item catalog, retrying on schedule", tint.Err(err))
	} else {
		slog.Info("dreambot: loaded the item catalog", slog.Int("item.count", catalog.Len()))
	}
	scheduler := cron.New()
	if _, err := catalog.Schedule(scheduler, cfg.Catalog.Refresh, cfg.Market.Timeout); err != nil {
		panic(err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	b := &pkg.Bot{
		DB:      database,
		Alerts:  alertStore,
		Market:  marketClient,
		Catalog: catalog,
		Guilds:  guilds,

		ReactionRoles: reactionRoles,
		Messages:      messages,
	}
	h := handlers.NewHandler(b)

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentDirectMessages,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentGuildMembers,
				gateway.IntentMessageContent,
			),
			gateway.WithPresenceOpts(gateway.WithWatchingActivity("the Grand Exchange"))),
		// guilds, roles and members back the role hierarchy checks
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagRoles, cache.FlagMembers, cache.FlagChannels)),
		bot.WithEventManagerConfigOpts(bot.WithAsyncEventsEnabled()),
		bot.WithEventListeners(h, h.Listeners()))
	if err != nil {
		panic(err)
	}

	if err := client.OpenGateway(ctx); err != nil {
		panic(err)
	}

	engineOpts := []alerts.Option{
		alerts.WithItemNamer(catalog),
		alerts.WithInterval(cfg.Alerts.Interval),
		alerts.WithConcurrency(cfg.Alerts.Concurrency),
		alerts.WithFetchTimeout(cfg.Alerts.FetchTimeout),
	}
	if cfg.Redis.Addr != "" {
		engineOpts = append(engineOpts, alerts.WithLocker(alerts.NewRedisLocker(cfg.Redis.Addr)))
	}
	engine := alerts.NewEngine(alertStore, marketClient, notify.NewDiscord(client.Rest, catalog), engineOpts...)

	metricsServer := metrics.BootstrapServer(cfg.Metrics.Addr, database.Ping)

	slog.Info("dreambot is now running.")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dreambot: alert engine stopped", tint.Err(err))
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("dreambot: error while stopping the metrics server", tint.Err(err))
	}
	client.Close(shutdownCtx)
}
