package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/client"
	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/db"
	"github.com/incident-comms/bot/internal/handler"
	"github.com/incident-comms/bot/internal/logger"
	"github.com/incident-comms/bot/internal/model"
	"github.com/incident-comms/bot/internal/service"
)

// 종료 시 진행 중인 요청/처리를 기다리는 최대 시간
const shutdownTimeout = 10 * time.Second

type incidentStore interface {
	Backend() string
	SaveIncidentMessage(ctx context.Context, record model.IncidentRecord) (*model.SavedRecord, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 외부 클라이언트는 한 번만 생성해 주입
	gemini, err := client.NewGeminiClient(ctx, cfg.Gemini, log)
	if err != nil {
		return err
	}
	slackClient := client.NewSlackClient(cfg.Slack, log)

	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	statusWebhook := service.NewStatusWebhookService(cfg.StatusWebhook, metrics, log)
	incidents := service.NewIncidentService(gemini, store, statusWebhook, metrics, log)
	slackHandler := handler.NewSlackHandler(incidents, handler.SlackRepliers{Client: slackClient},
		cfg.Slack.CommandName, cfg.App.ProcessTimeout, log)

	router := handler.NewRouter(handler.RouterConfig{
		Slack:          slackHandler,
		SigningSecret:  cfg.Slack.SigningSecret,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting Slack incident communication bot",
			zap.String("addr", srv.Addr),
			zap.String("model", gemini.Model()),
			zap.String("store", store.Backend()),
			zap.Bool("status_webhook", statusWebhook.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	if err := slackHandler.Wait(shutdownCtx); err != nil {
		log.Warn("In-flight incident processing abandoned", zap.Error(err))
	}
	return nil
}

// newStore - STORE_BACKEND에 맞는 저장소 생성
func newStore(ctx context.Context, cfg config.Config, log *zap.Logger) (incidentStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := db.NewPostgres(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return pg, pg.Close, nil
	case config.StoreMemory:
		log.Warn("Using in-memory incident store, records are lost on restart")
		return db.NewMemoryStore(), func() {}, nil
	default:
		return client.NewSashidoClient(cfg.Sashido, log), func() {}, nil
	}
}
