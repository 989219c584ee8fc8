package main

import (
	"MultiModalChatbot/internal/ai"
	"MultiModalChatbot/internal/app/orchestrator"
	"MultiModalChatbot/internal/config"
	"MultiModalChatbot/internal/service/image"
	"MultiModalChatbot/internal/service/tts"
	ttsgoogle "MultiModalChatbot/internal/service/tts/google"
	"MultiModalChatbot/internal/session"
	"MultiModalChatbot/internal/web"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// в режиме отладки человекочитаемые логи, иначе JSON
	var logger *zap.Logger
	if cfg.DebugMode {
		logger, err = zap.NewDevelopment()
		gin.SetMode(gin.DebugMode)
	} else {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sugar.Infow("Starting app",
		"DebugMode", cfg.DebugMode,
		"provider", cfg.AIProvider,
		"bind", cfg.BindAddr,
		"tts", cfg.TTS.Enabled,
	)

	client, err := ai.New(ctx, cfg, sugar)
	if err != nil {
		return fmt.Errorf("ai client: %w", err)
	}

	banner := ""
	if cfg.CredentialMissing() {
		banner = cfg.CredentialBanner()
		sugar.Warnw(banner, "provider", cfg.AIProvider)
	}

	// Озвучка необязательна: если клиент не поднялся, страница работает без неё
	var speech tts.Synthesizer
	if cfg.TTS.Enabled {
		ttsClient, err := ttsgoogle.New(ctx, cfg.TTS, sugar)
		if err != nil {
			sugar.Warnw("Text-to-speech disabled", "error", err)
		} else {
			defer func() { _ = ttsClient.Close() }()
			speech = ttsClient
		}
	}

	store := session.NewStore()
	orch := orchestrator.New(client, image.NewProcessor(cfg.ModelImageMaxWidth, cfg.MaxImagePixels), orchestrator.Options{
		CredentialMissing: cfg.CredentialMissing(),
		RequestTimeout:    cfg.RequestTimeout,
	}, sugar)

	server, err := web.New(web.Options{
		BindAddr:       cfg.BindAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Banner:         banner,
	}, store, orch, speech, sugar)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		return store.RunSweeper(gctx, cfg.SessionTTL, cfg.SessionSweepInterval, sugar)
	})

	err = g.Wait()
	sugar.Infow("Shutdown complete")
	return err
}
