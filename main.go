package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"presencehub/internal/activity"
	"presencehub/internal/config"
	"presencehub/internal/database/db_client"
	"presencehub/internal/fanout"
	"presencehub/internal/http/http_server"
	"presencehub/internal/presence"
	"presencehub/internal/redis/presencemirror"
	"presencehub/internal/redis/redis_client"
	"presencehub/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

//go:generate go tool swag init --v3.1 -o api_specs --outputTypes json

// @title		Presence Hub
// @version	1.0
// @description	Presence registry and group messaging over websockets.
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Registry + router, owned by this process for its whole lifetime
	registry := presence.NewRegistry()
	router := fanout.NewRouter(registry)

	// 4. Optional Postgres activity log
	var observers []ws.Observer
	stopRecorder := func() {}
	if cfg.ActivityLogEnabled {
		pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := activity.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("activity-schema", zap.Error(err))
		}
		recorder := activity.NewRecorder(pgDb, cfg.ActivityBatchSize)
		// The recorder outlives the signal context: departures produced while
		// the hub shuts down still have to be written.
		recCtx, cancelRec := context.WithCancel(context.WithoutCancel(ctx))
		recDone := make(chan struct{})
		go func() {
			defer close(recDone)
			recorder.Run(recCtx)
		}()
		stopRecorder = func() {
			cancelRec()
			<-recDone
		}
		observers = append(observers, recorder)
		Log.Debug("Activity log enabled")
	}

	// 5. Optional Redis presence mirror
	if cfg.PresenceMirrorEnabled {
		redisClient, err := redis_client.NewRedisClient(cfg.RedisPresenceHost, int(cfg.RedisPresencePort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		presencemirror.Run(ctx, redisClient, registry, cfg.PresenceMirrorInterval)
		Log.Debug("Presence mirror enabled")
	}

	// 6. WebSockets hub + server
	hub := ws.NewHub(router, registry, observers...)
	wsSrv := ws.NewWsServer(hub, ws.Options{
		SendBuffer:     cfg.WsSendBuffer,
		ReadLimit:      cfg.WsReadLimit,
		AllowedOrigins: cfg.WsAllowedOrigins,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, hub, registry)
	disposed := make(chan struct{})
	go func() {
		defer close(disposed)
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}

	// 8. Drain: every connection is detached before the recorder stops,
	// and the recorder stops before the database is closed.
	<-disposed
	stopRecorder()
	Log.Info("Server stopped")
}
