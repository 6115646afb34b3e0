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
	"github.com/rs/zerolog/log"

	"github.com/tbonnaves/chat-relay/internal/config"
	"github.com/tbonnaves/chat-relay/internal/handler"
	"github.com/tbonnaves/chat-relay/internal/logger"
	"github.com/tbonnaves/chat-relay/internal/service/ai"
	chatservice "github.com/tbonnaves/chat-relay/internal/service/chat"
	"github.com/tbonnaves/chat-relay/internal/service/relay"
	"github.com/tbonnaves/chat-relay/internal/service/rules"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, continuing with system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	store := chatservice.NewStore(cfg.Storage.HistoryDir)
	ruleSource := rules.NewFileSource(cfg.Storage.RulesFile)

	aiService, err := ai.NewService(ctx, cfg.Upstream)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upstream client")
	}

	relayService := relay.NewService(store, aiService, ruleSource, cfg.Auth.PrivateKey)

	log.Info().
		Str("history_dir", cfg.Storage.HistoryDir).
		Str("rules_file", cfg.Storage.RulesFile).
		Str("model", cfg.Upstream.Model).
		Int("sample_rate", cfg.Audio.SampleRate).
		Msg("chat relay configured")

	startServer(ctx, cfg.Server, handler.NewRouter(relayService))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("chat relay listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
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
