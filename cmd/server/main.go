package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"chatnow/internal/auth"
	"chatnow/internal/chat"
	"chatnow/internal/clock"
	"chatnow/internal/config"
	"chatnow/internal/db"
	"chatnow/internal/filter"
	clog "chatnow/internal/log"
	"chatnow/internal/mw"
	"chatnow/internal/server"
	"chatnow/internal/store"
	"chatnow/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	if err := applyFlags(&cfg, os.Args[1:]); err != nil {
		os.Exit(2)
	}
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	contentFilter, err := filter.Load(cfg.ProfanityWords)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProfanityWords).Msg("load profanity words")
	}
	log.Info().Int("words", contentFilter.Size()).Str("path", cfg.ProfanityWords).Msg("profanity filter loaded")
	gate, err := auth.NewAdminGate(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		log.Fatal().Err(err).Msg("admin gate")
	}

	hub := ws.NewHub()
	engine := chat.NewEngine(hub, store.New(gdb), contentFilter, gate, clock.Real(), chat.Options{
		RateLimitMax:     cfg.RateLimitMax,
		RateLimitWindow:  time.Duration(cfg.RateLimitWindowMS) * time.Millisecond,
		HistoryLimit:     cfg.HistoryLimit,
		MaxMessageLength: cfg.MaxMessageLength,
	})

	limiter := mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	limiter.Start(30 * time.Second)

	r := server.SetupRouter(cfg, server.Deps{Presence: engine, Hub: hub, Chat: engine, Limiter: limiter})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("db", cfg.DatabaseDriver).Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				// 先停止接收新连接，再断开已有的 WebSocket
				err := srv.Shutdown(ctx)
				hub.Close()
				return err
			},
			"chat": func(ctx context.Context) error {
				engine.Close()
				limiter.Stop()
				return nil
			},
			"db": func(ctx context.Context) error {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	)
	exitCode := <-wait
	log.Info().Int("exit_code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}
