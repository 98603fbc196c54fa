package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/app"
	"github.com/cwrk-planet/chat-service/internal/logger"
	"github.com/cwrk-planet/chat-service/internal/memstore"
	"github.com/cwrk-planet/chat-service/internal/pg"
	"github.com/cwrk-planet/chat-service/internal/presence"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Driver)

	ctx := context.Background()

	// --- storage ---
	var stores service.Stores
	switch cfg.Store.Driver {
	case config.StoreMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		stores = app.MemoryStores(memstore.New())
	default:
		pool, err := pg.NewPool(ctx, pg.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Logging.Service,
		})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		stores = app.PostgresStores(pool)
	}

	// --- identity ---
	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// --- core ---
	core := app.NewCore(app.Options{
		Chat: service.ChatConfig{
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			StoreTimeout:     cfg.Chat.StoreTimeout,
			MentionTimeout:   cfg.Chat.MentionTimeout,
		},
		Presence: presence.Config{
			TypingTTL:     cfg.Presence.TypingTTL,
			SweepInterval: cfg.Presence.SweepInterval,
		},
	}, stores, service.LogMailer{Logger: slog.Default().With("component", "mailer")})
	if err := core.Start(); err != nil {
		log.Fatalf("presence: %v", err)
	}

	// --- WS ---
	wsServer := ws.NewServer(ws.Config{
		SendQueue:      cfg.WS.SendQueue,
		PingInterval:   cfg.WS.PingInterval,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, auth, core.Chat)

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(core.Channels, core.Chat),
		Auth:           auth,
		WS:             wsServer.HandleWS,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(cfg.GRPC.CallTimeout)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.SetServing(false)
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	// живые websocket-соединения Shutdown не трогает: их закрывает hub
	if err := core.Shutdown(ctxShutdown); err != nil {
		slog.Warn("core shutdown", "err", err)
	}
	grpcSrv.Stop()
	slog.Info("stopped")
}

func newAuthenticator(cfg config.Auth) (security.Authenticator, error) {
	if cfg.Mode != config.AuthJWT {
		return security.HeaderAuthenticator{}, nil
	}
	jc := security.JWTConfig{
		Secret:    []byte(cfg.JWT.Secret),
		Issuer:    cfg.JWT.Issuer,
		Audience:  cfg.JWT.Audience,
		ClockSkew: cfg.JWT.ClockSkew,
	}
	if cfg.JWT.PublicKeyPath != "" {
		key, err := security.LoadRSAPublicKeyFromPEM(cfg.JWT.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		jc.PublicKey = key
		jc.Secret = nil
	}
	return security.NewJWTAuthenticator(jc)
}
