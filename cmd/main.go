package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/sayword/adapters/llm"
	"github.com/satriahrh/sayword/adapters/memory"
	"github.com/satriahrh/sayword/adapters/mongo"
	"github.com/satriahrh/sayword/adapters/sqlite"
	"github.com/satriahrh/sayword/adapters/stt"
	"github.com/satriahrh/sayword/adapters/tts"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/api"
	"github.com/satriahrh/sayword/internal/auth"
	"github.com/satriahrh/sayword/internal/config"
	"github.com/satriahrh/sayword/internal/homophone"
	"github.com/satriahrh/sayword/internal/match"
	"github.com/satriahrh/sayword/internal/observe"
	"github.com/satriahrh/sayword/internal/websocket"
	"github.com/satriahrh/sayword/internal/wordlist"
	"github.com/satriahrh/sayword/usecase"
)

var version = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Debug() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())
	metrics := observe.DefaultMetrics()

	table, err := loadHomophones(cfg, logger)
	if err != nil {
		return err
	}
	words, err := wordlist.LoadOrDefault(cfg.WordsFile)
	if err != nil {
		return err
	}
	logger.Info("Word list loaded", zap.Int("count", len(words)))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	speechToText, closeSTT, err := openSTT(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSTT()

	hints, err := newHintService(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}

	textToSpeech, err := newTextToSpeech(cfg, logger)
	if err != nil {
		return err
	}

	resultService := usecase.NewResultService(store.results, metrics, logger)
	cleanup := usecase.NewResultCleanupService(store.results, cfg.ResultRetention, cfg.CleanupInterval, clock.New(), logger)

	hub := websocket.NewHub(websocket.Dependencies{
		Words:     words,
		Evaluator: match.NewEvaluator(table),
		Results:   resultService,
		Hints:     hints,
		STT:       speechToText,
		TTS:       textToSpeech,
		Metrics:   metrics,
		Audio: repositories.AudioConfig{
			SampleRate:      cfg.STTSampleRate,
			Encoding:        "LINEAR16",
			Language:        cfg.STTLanguage,
			MaxAlternatives: cfg.MaxAlternatives,
		},
		SilenceTimeout: cfg.SilenceTimeout,
		SettleDelay:    cfg.SettleDelay,
	}, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(observe.Middleware(metrics))

	api.InitRoutes(e, api.Services{
		Hub:     hub,
		Players: usecase.NewPlayerService(store.players, logger),
		Results: resultService,
		Issuer:  auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Words:   words,
		Ping:    store.ping,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return cleanup.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Server started", zap.String("port", cfg.Port), zap.String("store", cfg.Store), zap.String("stt", cfg.STT))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadHomophones(cfg *config.Config, logger *zap.Logger) (*homophone.Table, error) {
	if cfg.HomophonesFile == "" {
		return homophone.Default(logger)
	}
	return homophone.Load(cfg.HomophonesFile, logger)
}

// resultStore is the selected storage backend. ping is nil for the in-memory
// store.
type resultStore struct {
	players repositories.PlayerRepository
	results repositories.GameResultRepository
	ping    func(context.Context) error
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*resultStore, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, err := mongo.NewClient(ctx, mongo.ClientConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(ctx)
		}
		results, err := mongo.NewResultRepository(ctx, client.Database, logger)
		if err != nil {
			closeFn()
			return nil, err
		}
		return &resultStore{
			players: mongo.NewPlayerRepository(client.Database, logger),
			results: results,
			ping:    client.Ping,
			close:   closeFn,
		}, nil

	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened SQLite store", zap.String("path", cfg.SQLitePath))
		return &resultStore{
			players: db.Players(),
			results: db,
			ping:    db.Ping,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Failed to close SQLite store", zap.Error(err))
				}
			},
		}, nil

	default:
		return &resultStore{
			players: memory.NewPlayerRepository(),
			results: memory.NewResultRepository(),
			close:   func() {},
		}, nil
	}
}

func openSTT(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, func(), error) {
	switch cfg.STT {
	case config.STTGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return nil, nil, err
		}
		return google, func() { _ = google.Close() }, nil
	case config.STTMock:
		return stt.NewMockSpeechToText(logger), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func newHintService(ctx context.Context, cfg *config.Config, metrics *observe.Metrics, logger *zap.Logger) (*usecase.HintService, error) {
	fallback := llm.NewMockHintGenerator(logger)
	if cfg.GeminiAPIKey == "" {
		return usecase.NewHintService(fallback, nil, "mock", metrics, logger), nil
	}

	gemini, err := llm.NewGeminiHintGenerator(ctx, llm.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, logger)
	if err != nil {
		return nil, err
	}
	return usecase.NewHintService(gemini, fallback, "gemini", metrics, logger), nil
}

func newTextToSpeech(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	if cfg.ElevenLabsAPIKey == "" {
		return tts.NewMockTextToSpeech(logger), nil
	}
	elevenLabs, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
	}, logger)
	if err != nil {
		return nil, err
	}
	return elevenLabs, nil
}
