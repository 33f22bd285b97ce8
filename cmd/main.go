package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/logger"

	"github.com/Vovarama1992/sarvam_gateway/internal/config"
	"github.com/Vovarama1992/sarvam_gateway/internal/delivery"
	"github.com/Vovarama1992/sarvam_gateway/internal/docintel"
	"github.com/Vovarama1992/sarvam_gateway/internal/domain"
	"github.com/Vovarama1992/sarvam_gateway/internal/error_notificator"
	"github.com/Vovarama1992/sarvam_gateway/internal/infra"
	"github.com/Vovarama1992/sarvam_gateway/internal/ports"
	"github.com/Vovarama1992/sarvam_gateway/internal/sarvam"
	"github.com/Vovarama1992/sarvam_gateway/internal/speech"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const serviceName = "sarvam_gateway"

func main() {

	// =========================================================================
	// ENV / CONFIG
	// =========================================================================

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	baseLogger := infra.NewZap(cfg.Env, cfg.LogFile)
	defer baseLogger.Sync()
	zl := logger.NewZapLogger(baseLogger.Sugar())

	if cfg.Sarvam.APIKey == "" {
		zl.Log(logger.LogEntry{Level: "warn", Message: "SARVAM_API_KEY is not set, provider calls will fail", Service: serviceName})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// =========================================================================
	// OPTIONAL INFRASTRUCTURE (postgres history, s3 mirror, telegram alerts)
	// =========================================================================

	var history ports.HistoryRepo
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("db ping failed: %v", err)
		}

		history = infra.NewHistoryRepo(db)
		if err := history.EnsureSchema(ctx); err != nil {
			log.Fatalf("db schema: %v", err)
		}
	}

	var mirror speech.Mirror
	if cfg.S3.Enabled() {
		s3Client, err := infra.NewS3Client(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("failed to init s3: %v", err)
		}
		mirror = domain.NewArtifactMirror(s3Client)
	}

	var notifyInfra error_notificator.Notificator = error_notificator.NopInfra{}
	if cfg.Telegram.Enabled() {
		tg, err := error_notificator.NewTelegramInfra(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
		if err != nil {
			log.Fatalf("failed to init telegram notifier: %v", err)
		}
		notifyInfra = tg
	}
	errService := error_notificator.NewService(notifyInfra, zl)

	// =========================================================================
	// CLIENTS
	// =========================================================================

	sarvamClient := sarvam.NewClient(
		cfg.Sarvam.APIKey,
		sarvam.WithBaseURL(cfg.Sarvam.BaseURL),
		sarvam.WithPollInterval(cfg.DocIntel.PollInterval.Duration),
	)

	var synth speech.Synthesizer = speech.NewSarvamSynthesizer(sarvamClient)
	if cfg.TTS.Provider == config.ProviderOpenAI {
		synth = speech.NewOpenAISynthesizer(cfg.TTS.OpenAIAPIKey, cfg.TTS.OpenAIVoice)
	}

	// =========================================================================
	// DOMAIN SERVICES
	// =========================================================================

	// nil interfaces must stay untyped nil
	var (
		jobRecorder      docintel.JobRecorder
		artifactRecorder speech.ArtifactRecorder
	)
	if history != nil {
		jobRecorder = history
		artifactRecorder = history
	}

	docService := docintel.NewService(
		docintel.NewSarvamJobs(sarvamClient),
		jobRecorder,
		zl,
		docintel.Config{
			TempDir: cfg.Storage.TempDir,
			Timeout: cfg.DocIntel.JobTimeout.Duration,
		},
	)

	audioStore := speech.NewAudioStore(cfg.Storage.AudioDir)
	speechService := speech.NewService(synth, audioStore, mirror, artifactRecorder, zl)

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	rs := delivery.NewResponder(zl, errService)
	r := delivery.NewRouter(
		delivery.RouterOptions{RateLimitPerMinute: cfg.RateLimitPerMinute},
		zl,
		rs,
		delivery.NewDocumentHandler(docService, rs),
		delivery.NewSpeechHandler(speechService, audioStore, rs, cfg.PublicBaseURL),
	)

	// =========================================================================
	// START SERVER
	// =========================================================================

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			baseLogger.Error("shutdown", zap.Error(err))
		}
	}()

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "Server running on http://localhost" + cfg.Addr() + " (environment: " + cfg.Env + ")",
		Service: serviceName,
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
