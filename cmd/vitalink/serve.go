package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vitalinkhq/vitalink/internal/chat"
	"github.com/vitalinkhq/vitalink/internal/compose"
	"github.com/vitalinkhq/vitalink/internal/config"
	"github.com/vitalinkhq/vitalink/internal/credentials"
	"github.com/vitalinkhq/vitalink/internal/db"
	"github.com/vitalinkhq/vitalink/internal/dispatch"
	"github.com/vitalinkhq/vitalink/internal/handlers"
	"github.com/vitalinkhq/vitalink/internal/ingest"
	"github.com/vitalinkhq/vitalink/internal/link"
	"github.com/vitalinkhq/vitalink/internal/logger"
	"github.com/vitalinkhq/vitalink/internal/obs"
	"github.com/vitalinkhq/vitalink/internal/readings"
	"github.com/vitalinkhq/vitalink/internal/server"
	"github.com/vitalinkhq/vitalink/internal/transport/twilio"
	"github.com/vitalinkhq/vitalink/internal/whoop"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideCredentialStore,
			provideReadingsStore,
			provideStateCodec,
			provideLinkService,
			provideSweeper,
			provideWhoopClient,
			provideSender,
			providePipeline,
			provideChatClient,
			provideComposer,
			provideDispatcher,
			providePingHandler,
			provideWebhookHandler,
			provideLinkHandler,
			provideUploadHandler,
			provideServer,
		),
		fx.Invoke(
			startSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	obs.Init()
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return conn.Close() }})
	return conn, nil
}

func provideCredentialStore(log *slog.Logger, conn *sql.DB) *credentials.Store {
	return credentials.NewStore(log, conn)
}

func provideReadingsStore(log *slog.Logger, conn *sql.DB) *readings.Store {
	return readings.NewStore(log, conn)
}

func provideStateCodec(cfg config.Config) *link.StateCodec {
	return link.NewStateCodec(cfg.Link.StateSecret, cfg.Link.StateTTLDuration())
}

func provideLinkService(log *slog.Logger, cfg config.Config, codec *link.StateCodec, store *credentials.Store) *link.Service {
	redirectURL := cfg.Server.BaseURL + "/auth/callback"
	return link.NewService(log, cfg.Whoop, redirectURL, codec, store)
}

func provideSweeper(log *slog.Logger, cfg config.Config, service *link.Service, store *credentials.Store) *link.Sweeper {
	return link.NewSweeper(log, service, store, cfg.Link.SweepSchedule, cfg.Link.SweepHorizonDuration())
}

func provideWhoopClient(log *slog.Logger, cfg config.Config, store *credentials.Store, service *link.Service) *whoop.Client {
	return whoop.NewClient(log, cfg.Whoop.APIBase, store, service)
}

func provideSender(log *slog.Logger, cfg config.Config) *twilio.Sender {
	return twilio.NewSender(log, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber, "", cfg.Twilio.SendsPerSecond)
}

func providePipeline(log *slog.Logger, cfg config.Config, sender *twilio.Sender, store *readings.Store) *ingest.Pipeline {
	recognizer := ingest.NewExecRecognizer(cfg.Ingest.TesseractBin)
	converter := ingest.NewPopplerConverter(cfg.Ingest.PdfToTextBin, cfg.Ingest.PdfToPpmBin)
	return ingest.NewPipeline(log, sender, recognizer, converter, ingest.NewLineExtractor(), readings.Sink{Store: store})
}

func provideChatClient(log *slog.Logger, cfg config.Config) *chat.Client {
	timeout := time.Duration(cfg.Coach.TimeoutSeconds) * time.Second
	return chat.NewClient(log, cfg.Coach.BaseURL, cfg.Coach.APIKey, cfg.Coach.Model, timeout)
}

func provideComposer(log *slog.Logger, client *chat.Client) *compose.Composer {
	return compose.NewComposer(log, client)
}

func provideDispatcher(log *slog.Logger, creds *credentials.Store, linkSvc *link.Service, data *whoop.Client, trends *readings.Store, pipeline *ingest.Pipeline, composer *compose.Composer, sender *twilio.Sender) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(log, creds, linkSvc, data, trends, pipeline, composer, sender)
}

func providePingHandler(log *slog.Logger, conn *sql.DB) *handlers.PingHandler {
	return handlers.NewPingHandler(log, conn)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher *dispatch.Dispatcher) *handlers.WebhookHandler {
	validator := twilio.NewSignatureValidator(cfg.Twilio.AuthToken)
	return handlers.NewWebhookHandler(log, dispatcher, validator, cfg.Server.BaseURL)
}

func provideLinkHandler(log *slog.Logger, service *link.Service) *handlers.LinkHandler {
	return handlers.NewLinkHandler(log, service)
}

func provideUploadHandler(log *slog.Logger, pipeline *ingest.Pipeline) *handlers.UploadHandler {
	return handlers.NewUploadHandler(log, pipeline)
}

func provideServer(cfg config.Config, ping *handlers.PingHandler, webhook *handlers.WebhookHandler, linkHandler *handlers.LinkHandler, upload *handlers.UploadHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, ping, webhook, linkHandler, upload)
}

func startSweeper(lc fx.Lifecycle, sweeper *link.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start()
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
