package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/lngsa1234/avari-socketio-backend/internal/adapters/http"
	wssignal "github.com/lngsa1234/avari-socketio-backend/internal/adapters/signal"
	"github.com/lngsa1234/avari-socketio-backend/internal/app"
	"github.com/lngsa1234/avari-socketio-backend/internal/config"
	"github.com/lngsa1234/avari-socketio-backend/internal/transcribe"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	reg := app.NewRegistry()
	hub := app.NewHub(reg)
	bridge := transcribe.NewBridge(&transcribe.Client{APIKey: cfg.DeepgramAPIKey})
	if cfg.DeepgramAPIKey == "" {
		log.Warn().Msg("DEEPGRAM_API_KEY not set, transcription disabled")
	}

	ctl := wssignal.NewSignalWSController(reg, hub, bridge, cfg.AllowedOrigin, cfg.SendBuffer, cfg.PingPeriod)

	go app.RunReaper(ctx, reg, cfg.ReaperInterval, cfg.MatchTTL)

	r := router.SetupRouter(ctx, cfg, reg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("avari signaling relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	notifyShutdown(reg)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// notifyShutdown tells every live connection the relay is going away,
// then closes the channels so clients fail over promptly.
func notifyShutdown(reg *app.Registry) {
	msg, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"server-shutdown", "server is shutting down"})

	for _, conn := range reg.Connections() {
		_ = conn.TrySend(msg)
	}
	// Give the write pumps a beat to flush before the close.
	time.Sleep(100 * time.Millisecond)
	for _, conn := range reg.Connections() {
		conn.Close()
	}
}
