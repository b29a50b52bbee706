package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	router "github.com/dkeye/StudioRelay/internal/adapters/http"
	sig "github.com/dkeye/StudioRelay/internal/adapters/signal"
	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/app/orch"
	"github.com/dkeye/StudioRelay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	policy, err := app.PolicyByName(cfg.SlowConsumer)
	if err != nil {
		log.Fatal().Err(err).Msg("bad slow consumer policy")
	}

	loop := app.NewLoop(cfg.LoopQueue)
	relay := orch.New(policy, app.NewJoinLimiter(cfg.JoinLimit, cfg.JoinInterval))
	ctl := sig.NewSignalWSController(relay, loop, sig.Settings{
		AllowedOrigin: cfg.AllowedOrigin,
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		PongWait:      cfg.PongWait,
		WriteWait:     cfg.WriteWait,
		SendBuffer:    cfg.SendBuffer,
	})

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// The loop outlives the HTTP server so that disconnects raised during
	// shutdown still get cleaned up.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	var wg conc.WaitGroup
	wg.Go(func() { loop.Run(loopCtx) })
	wg.Go(func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopLoop()
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
		return
	}
	zerolog.SetGlobalLevel(level)
}
