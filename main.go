package main

import (
	"context"
	"cuecard/app/client/gemini"
	"cuecard/app/client/speechkit"
	"cuecard/app/config"
	"cuecard/app/server"
	"cuecard/app/service/engine"
	"cuecard/app/service/history"
	"cuecard/app/service/queue"
	"cuecard/app/service/session"
	"cuecard/app/service/settings"
	"cuecard/app/service/surface"
	"cuecard/app/service/transcribe"
	"cuecard/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.ProvideValue(di, history.New())
	do.Provide(di, gemini.New)
	do.Provide(di, queue.New)
	do.Provide(di, surface.New)
	do.Provide(di, settings.New)
	do.Provide(di, engine.New)
	do.Provide(di, session.New)
	do.Provide(di, server.New)
	if cfg.Transcribe.Enabled {
		do.Provide(di, speechkit.New)
		do.Provide(di, transcribe.New)
	}

	slog.Info("Service started", "listen", cfg.Server.Listen)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*engine.Service](di).Run(appCtx)

	go func() {
		if err := do.MustInvoke[*server.Server](di).Run(appCtx); err != nil {
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	if cfg.Transcribe.Enabled {
		go func() {
			if err := do.MustInvoke[*transcribe.Service](di).Run(appCtx); err != nil {
				slog.Error("Transcription stopped", "error", err, mylog.TelegramKey, true)
			}
		}()
	}

	<-appCtx.Done()
}
