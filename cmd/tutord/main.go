package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lawtutor/internal/ai"
	"lawtutor/internal/app"
	"lawtutor/internal/config"
	"lawtutor/internal/events"
	"lawtutor/internal/server"
	"lawtutor/internal/sharelink"
	"lawtutor/internal/storage"
	"lawtutor/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var blobs storage.BlobStore
	if cfg.MinioEndpoint != "" {
		blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	}

	var generator ai.Generator
	if cfg.GeneratorBaseURL != "" {
		generator = ai.NewOpenAICompatGenerator(cfg.GeneratorBaseURL, cfg.GeneratorAPIKey, cfg.GeneratorModel)
	}
	var transcriber ai.Transcriber
	if cfg.TranscriberBaseURL != "" {
		transcriber = ai.NewOpenAICompatTranscriber(cfg.TranscriberBaseURL, cfg.TranscriberAPIKey, cfg.TranscriberModel)
	}

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer publisher.Close()
	}

	var shares *sharelink.Signer
	if cfg.ShareLinkSecret != "" {
		shares = sharelink.NewSigner(cfg.ShareLinkSecret, 0)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		DataDir:        cfg.DataDir,
		Blobs:          blobs,
		Generator:      generator,
		Transcriber:    transcriber,
		Events:         publisher,
		ShareLinks:     shares,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                    appCore,
		RedisAddr:              cfg.RedisAddr,
		RedisPassword:          cfg.RedisPassword,
		ChatRateLimitPerMinute: cfg.ChatRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("tutor server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
