package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/config"
	"github.com/esperancapontalsul/hope/backend/internal/handler"
	"github.com/esperancapontalsul/hope/backend/internal/logger"
	"github.com/esperancapontalsul/hope/backend/internal/model/persona"
	"github.com/esperancapontalsul/hope/backend/internal/scheduler"
	"github.com/esperancapontalsul/hope/backend/internal/service/ai"
	"github.com/esperancapontalsul/hope/backend/internal/service/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/intent"
	"github.com/esperancapontalsul/hope/backend/internal/service/knowledge"
	"github.com/esperancapontalsul/hope/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if envErr != nil {
		log.WithError(envErr).Debug("no .env file loaded, using system environment only")
	}
	if cfg.Session.Secret == config.DefaultSessionSecret {
		log.Warn("SESSION_SECRET is not set, session cookies are signed with the default key")
	}

	store := knowledge.NewFileStore(cfg.Knowledge.KnowledgeFile, cfg.Knowledge.ContactsFile, cfg.Knowledge.VersesFile, log)
	base := knowledge.NewBase(store, persona.Default(), log)
	sessions := session.NewStore(cfg.Session.TTL)

	var (
		aiService *ai.Service
		engine    *chat.Engine
	)
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI, log)
		if err != nil {
			log.WithError(err).Error("failed to initialize AI service, chat will answer with an apology")
		} else {
			engine, err = chat.NewEngine(aiService, log,
				chat.WithRetry(cfg.AI.MaxAttempts, cfg.AI.RetryBaseWait, cfg.AI.RetryMaxWait))
			if err != nil {
				log.WithError(err).Error("failed to initialize conversation engine")
			} else {
				log.WithField("model", cfg.AI.Model).Info("AI service initialized")
			}
		}
	} else {
		log.Warn("ark credentials not configured, skipping AI initialization")
	}

	var intents *intent.Router
	if cfg.AI.IntentRouter {
		var classifier intent.Classifier
		if aiService != nil {
			classifier = aiService
		}
		intents = intent.NewRouter(classifier, base, log)
	}

	jobs, err := scheduler.New(base, sessions, scheduler.Options{
		ReloadSpec: cfg.Knowledge.ReloadSpec,
		SweepSpec:  scheduler.DefaultSweepSpec,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to schedule background jobs")
	}
	jobs.Start()
	defer jobs.Stop()

	router := handler.NewRouter(handler.Deps{
		Engine:    engine,
		Intents:   intents,
		Knowledge: base,
		Sessions:  sessions,
		Session:   cfg.Session,
		Admin:     cfg.Admin,
		Logger:    log,
	})

	startServer(ctx, cfg.Server, router, log)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log logrus.FieldLogger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.WithField("addr", addr).Info("Hope backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Error("server error")
		return
	}
	log.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
