// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// The relay binary is the Adak chat server: a WebSocket room with a
// REST admin surface, backed by an embedded BadgerDB store.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/adak/pkg/logging"
	"github.com/AleutianAI/adak/pkg/wire"
	"github.com/AleutianAI/adak/services/relay/config"
	"github.com/AleutianAI/adak/services/relay/handlers"
	"github.com/AleutianAI/adak/services/relay/hub"
	"github.com/AleutianAI/adak/services/relay/middleware"
	"github.com/AleutianAI/adak/services/relay/motd"
	"github.com/AleutianAI/adak/services/relay/observability"
	"github.com/AleutianAI/adak/services/relay/routes"
	"github.com/AleutianAI/adak/services/relay/store"
)

// shutdownTimeout bounds the graceful HTTP drain.
const shutdownTimeout = 10 * time.Second

// initTracer sets up the OTLP exporter when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. Tracing is off otherwise; the relay must run without a
// collector on a bare LAN box.
func initTracer(logger *slog.Logger) (func(context.Context), error) {
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		logger.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("adak-relay")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown OTLP exporter", slog.String("error", err.Error()))
		}
	}, nil
}

func main() {
	configPath := flag.String("config", "relay.yaml", "path to the relay config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "relay",
		JSON:    true,
	})
	defer logger.Close()
	slogger := logger.Slog()
	slog.SetDefault(slogger)

	cleanup, err := initTracer(slogger)
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	storeCfg := store.DefaultConfig()
	storeCfg.Path = cfg.Store.Path
	storeCfg.HistoryTTL = cfg.Store.HistoryTTL
	storeCfg.GCInterval = cfg.Store.GCInterval
	storeCfg.Logger = slogger
	st, err := store.Open(storeCfg)
	if err != nil {
		log.Fatalf("failed to open store at %s: %v", cfg.Store.Path, err)
	}

	room := hub.New(hub.Config{
		MessagesPerSecond: cfg.Limits.MessagesPerSecond,
		Burst:             cfg.Limits.Burst,
		Metrics:           metrics,
	})

	// MOTD is optional; changes broadcast to the room as INFO.
	var motdWatcher *motd.Watcher
	if cfg.MOTD.Path != "" {
		motdWatcher, err = motd.New(cfg.MOTD.Path, func(content string) {
			env, err := wire.NewResponseEnvelope(wire.ServerResponse{
				Status:  wire.StatusInfo,
				Content: "Message of the day:\n" + content,
			})
			if err != nil {
				return
			}
			frame, err := env.Encode()
			if err != nil {
				return
			}
			room.Broadcast(frame, "")
		}, slogger)
		if err != nil {
			log.Fatalf("failed to watch MOTD file %s: %v", cfg.MOTD.Path, err)
		}
		motdWatcher.Start()
	}

	chatDeps := handlers.ChatDeps{
		Store:   st,
		Hub:     room,
		Metrics: metrics,
		Logger:  slogger,
	}
	if motdWatcher != nil {
		chatDeps.MOTD = motdWatcher.Current
	}
	adminDeps := handlers.AdminDeps{
		Store:  st,
		Hub:    room,
		Logger: slogger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(slogger))
	router.Use(otelgin.Middleware("adak-relay"))
	routes.SetupRoutes(router, chatDeps, adminDeps, cfg.Admin.Token)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slogger.Info("relay listening",
			slog.String("addr", cfg.Server.Addr()),
			slog.String("protocol", wire.ProtocolVersion))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		slogger.Info("shutting down")

		// Order matters: stop accepting, tell the room goodbye, drain
		// HTTP, close the store last so in-flight writes land.
		room.Shutdown(handlers.ShutdownNotice)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Warn("http shutdown error", slog.String("error", err.Error()))
		}

		if motdWatcher != nil {
			motdWatcher.Stop()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		slogger.Error("relay exited with error", slog.String("error", err.Error()))
	}

	if err := st.Close(); err != nil {
		slogger.Error("store close failed", slog.String("error", err.Error()))
	}
	slogger.Info("relay stopped")
}
