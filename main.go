// Command rps-duel-server runs the matchmaker, judge, and WebSocket
// listener that together pair clients for turn-based rock/paper/scissors
// duels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rps-duel-server/config"
	"rps-duel-server/judge"
	"rps-duel-server/loghandler"
	"rps-duel-server/matchmaker"
	"rps-duel-server/session"
	"rps-duel-server/transport"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug-level logging")
	configPath := flag.String("config", "conf.ini", "path to the INI configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Print("no .env file found; using environment variables and conf.ini")
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, level)))

	cfg := config.Load(*configPath)
	slog.Info("configuration loaded", "tag", "main", "port", cfg.Port, "ssl", cfg.EnableSSL,
		"move_deadline_ms", cfg.MoveDeadlineMS, "livecheck_deadline_ms", cfg.LiveCheckDeadlineMS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j := judge.New()
	mm := matchmaker.New(j, time.Duration(cfg.LiveCheckDeadlineMS)*time.Millisecond, cfg.CommandQueueDepth)
	go j.Run(ctx)
	go mm.Run(ctx)

	sessCfg := session.Config{
		MoveDeadline:      time.Duration(cfg.MoveDeadlineMS) * time.Millisecond,
		TurnPause:         time.Duration(cfg.TurnPauseMS) * time.Millisecond,
		EndGamePause:      time.Duration(cfg.EndGamePauseMS) * time.Millisecond,
		SessionGrace:      time.Duration(cfg.SessionGraceSec) * time.Second,
		MaxNameBytes:      cfg.MaxNameBytes,
		CommandQueueDepth: cfg.CommandQueueDepth,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.ServeWS(func(ch transport.Channel) {
		go session.New(ch, mm, j, sessCfg).Run(ctx)
	}))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down", "tag", "main")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var err error
	if cfg.EnableSSL {
		tlsCfg, tlsErr := transport.NewTLSConfig(cfg.CertFile, cfg.KeyFile)
		if tlsErr != nil {
			slog.Error("failed to load TLS materials", "tag", "main", "err", tlsErr)
			os.Exit(1)
		}
		srv.TLSConfig = tlsCfg
		slog.Info("listening", "tag", "main", "addr", srv.Addr, "tls", true)
		err = srv.ListenAndServeTLS("", "")
	} else {
		slog.Info("listening", "tag", "main", "addr", srv.Addr, "tls", false)
		err = srv.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "tag", "main", "err", err)
		os.Exit(1)
	}
	os.Exit(0)
}
