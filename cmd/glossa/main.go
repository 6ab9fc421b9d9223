package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sorvik/glossa/internal/api"
	"github.com/sorvik/glossa/internal/audio"
	"github.com/sorvik/glossa/internal/config"
	"github.com/sorvik/glossa/internal/display"
	"github.com/sorvik/glossa/internal/recognizer"
	"github.com/sorvik/glossa/internal/recording"
	"github.com/sorvik/glossa/internal/session"
	"github.com/sorvik/glossa/internal/storage/sqlite"
	"github.com/sorvik/glossa/internal/translation"
	"github.com/sorvik/glossa/internal/translation/gemini"
	"github.com/sorvik/glossa/internal/translation/openai"
	"github.com/sorvik/glossa/internal/websocket"
	"github.com/sorvik/glossa/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load .env before the config so API key fallbacks can see it
	godotenv.Load()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting glossa",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Create the recordings index and recorder (optional)
	var recordingStorage *sqlite.RecordingStorage
	var recorder session.Recorder
	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
			log.Error("Failed to create recordings directory", logger.Error(err), logger.String("path", cfg.Recording.Dir))
			os.Exit(1)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Recording.DBPath), 0o755); err != nil {
			log.Error("Failed to create recordings index directory", logger.Error(err), logger.String("path", cfg.Recording.DBPath))
			os.Exit(1)
		}

		recordingStorage, err = sqlite.NewRecordingStorage(cfg.Recording.DBPath, log)
		if err != nil {
			log.Error("Failed to create recordings index", logger.Error(err))
			os.Exit(1)
		}
		defer recordingStorage.Close()

		rec, err := recording.NewRecorder(cfg.Recording.Dir, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.ChunkDuration(), recordingStorage, log)
		if err != nil {
			log.Error("Failed to create recorder", logger.Error(err))
			os.Exit(1)
		}
		recorder = rec
		log.Info("Recording connections", logger.String("dir", cfg.Recording.Dir), logger.String("index", cfg.Recording.DBPath))
	}

	// Caption sinks: console, WebSocket hub, or both
	var sinks []display.Sink
	if cfg.Display.Console {
		sinks = append(sinks, display.NewConsoleSink(os.Stdout, cfg.Display.Color))
	}
	var wsServer *websocket.Server
	if cfg.Server.Enabled {
		wsServer = websocket.NewServer(log)
		go wsServer.Run()
		sinks = append(sinks, websocket.NewCaptionSink(wsServer))
	}
	sink := display.Multi(sinks...)

	// Create translation pipeline (optional)
	var dispatcher session.TranslationDispatcher
	var translationDispatcher *translation.Dispatcher
	if cfg.Translation.Enabled {
		var translator translation.Translator
		switch cfg.Translation.Provider {
		case "openai":
			translator, err = openai.NewClient(openai.Config{
				APIKey:         cfg.Translation.APIKey,
				BaseURL:        cfg.Translation.BaseURL,
				Model:          cfg.Translation.Model,
				TargetLanguage: cfg.Translation.TargetLanguage,
				Timeout:        time.Duration(cfg.Translation.TimeoutSeconds) * time.Second,
			}, log)
		default:
			translator, err = gemini.NewClient(context.Background(), gemini.Config{
				APIKey:         cfg.Translation.APIKey,
				Model:          cfg.Translation.Model,
				TargetLanguage: cfg.Translation.TargetLanguage,
			}, log)
		}
		if err != nil {
			log.Error("Failed to create translator", logger.Error(err), logger.String("provider", cfg.Translation.Provider))
			os.Exit(1)
		}

		translationDispatcher = translation.NewDispatcher(translator, sink, cfg.Translation.QueueSize, time.Duration(cfg.Translation.TimeoutSeconds)*time.Second, log)
		translationDispatcher.Start()
		dispatcher = translationDispatcher
		log.Info("Translating finalized transcripts",
			logger.String("provider", cfg.Translation.Provider),
			logger.String("model", cfg.Translation.Model),
			logger.String("target_language", cfg.Translation.TargetLanguage))
	}

	// Capture pipeline: microphone -> chunk buffer
	buffer := audio.NewChunkBuffer()
	supplier := audio.NewMicSupplier(audio.CaptureConfig{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		ChunkMs:    cfg.Audio.ChunkMs,
		Device:     cfg.Audio.Device,
	}, func(chunk []byte) bool {
		buffer.Push(chunk)
		return true
	}, log)

	// Recognizer dialer
	recognizerDialer := recognizer.NewDialer(recognizer.Config{
		URL:             cfg.Recognizer.URL,
		APIKey:          cfg.Recognizer.APIKey,
		Language:        cfg.Recognizer.Language,
		Model:           cfg.Recognizer.Model,
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		InterimResults:  cfg.Recognizer.InterimResults,
		MaxAlternatives: cfg.Recognizer.MaxAlternatives,
		DialRetries:     cfg.Recognizer.DialRetries,
		DialInterval:    time.Duration(cfg.Recognizer.DialIntervalSec) * time.Second,
	}, log)
	dialer := session.DialerFunc(func(ctx context.Context) (session.Stream, error) {
		return recognizerDialer.Dial(ctx)
	})

	// Resumable streaming session
	processor := session.NewProcessor(session.Config{
		ChunkDuration:  cfg.ChunkDuration(),
		StreamingLimit: cfg.StreamingLimit(),
		MaxOverlap:     cfg.MaxOverlap(),
	}, supplier, buffer, dialer, dispatcher, recorder, sink, log)

	if err := processor.Start(); err != nil {
		log.Error("Failed to start streaming session", logger.Error(err))
		os.Exit(1)
	}

	// Status API + caption stream (optional)
	var server *http.Server
	if cfg.Server.Enabled {
		router := api.NewRouter(processor, recordingStorage, cfg, log, wsServer)
		server = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router.Routes(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		go func() {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
			}
		}()
	}

	// Wait for interrupt signal or session end
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Shutting down...")
	case <-processor.Done():
		log.Info("Streaming session ended")
	}

	// Stop the session first so pending audio is flushed and the final
	// connection's recording is saved
	log.Info("Stopping streaming session...")
	sessionErr := processor.Stop()
	if sessionErr != nil {
		log.Error("Streaming session ended with error", logger.Error(sessionErr))
	}
	log.Info("Streaming session stopped.")

	if translationDispatcher != nil {
		log.Info("Stopping translation dispatcher...")
		translationDispatcher.Stop()
		log.Info("Translation dispatcher stopped.")
	}

	if server != nil {
		log.Info("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		} else {
			log.Info("HTTP server shutdown complete")
		}
		shutdownCancel()
	}

	if sessionErr != nil {
		log.Sync()
		if recordingStorage != nil {
			recordingStorage.Close()
		}
		os.Exit(1)
	}

	log.Info("glossa fully stopped")
}
