package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chat-relay/auth"
	"chat-relay/blob"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/infrastructure/api"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/index"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server failure.
// Deferred closes run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Stores
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	messageIndex := index.NewMessageIndex(writer, log)
	defer func() {
		log.Info("Closing search index...")
		_ = messageIndex.Close()
	}()

	blobs, err := blob.NewDiskStore(config.UploadDir, strings.TrimSuffix(config.PublicURL, "/")+"/files", config.MaxUploadBytes, log)
	if err != nil {
		return err
	}

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// 4. Domain events, presence and routing
	conversations := repositories.NewConversationRepository(db, log)
	users := repositories.NewUserRepository(db, log)
	searchSink := sink.NewSearchSink(messageIndex, log, config.IndexBatchSize, config.IndexBufferTimeout)
	fanout := workers.NewEventFanout(log, metrics, config.EventBufferSize, config.SinkTimeout).
		Add(sink.NewPresenceSink(users, log), searchSink)
	presence := runtime.NewPresence(log, fanout)
	router := runtime.NewRouter(log, metrics)

	var moderator contract.IModerator
	if config.EnableModeration {
		dictionaries, err := moderation.LoadEmbedded()
		if err != nil {
			return fmt.Errorf("moderation dictionaries: %w", err)
		}
		languageModerator, err := moderation.NewLanguageModerator(dictionaries, censoredChar, log)
		if err != nil {
			return fmt.Errorf("moderation init: %w", err)
		}
		moderator = languageModerator
	}

	// 5. Services & transport
	dispatcher := ws.NewDispatcher(
		presence,
		router,
		services.NewConversationResolver(conversations, log),
		services.NewMessageService(conversations, router, fanout, moderator, messageIndex, metrics, log),
		services.NewCallRelay(presence, metrics, log),
		log,
	)
	opts := ws.DefaultOptions()
	opts.InboundQueue = config.InboundQueueSize
	opts.OutboundQueue = config.OutboundQueueSize
	opts.ReadLimit = config.MaxFrameBytes
	opts.RateLimit = rate.Limit(config.InboundRatePerSecond)
	opts.RateBurst = config.InboundBurst
	wsHandler := ws.NewHandler(dispatcher, auth.NewTokenVerifier(config.AuthSecret), opts, metrics, log)

	ready := func() bool { return !db.IsClosed() }
	health := server.NewHealthServer(ready, config.MetricInterval, log)

	// 6. Background workers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log)
	sup.Add(fanout, workers.NewHeartbeatWorker(log, metrics, presence, config.MetricInterval), health)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(ctx)
	}()

	// 7. Servers
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr: address,
		Handler: api.NewRouter(wsHandler, blobs, registry, ready, api.Config{
			MaxUploadBytes: config.MaxUploadBytes,
			AllowedOrigin:  config.AllowedOrigin,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		if err := health.Serve(listener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Server failed, shutting down", "error", runErr)
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	wsHandler.CloseAll()
	health.Stop()
	stop()
	sup.Stop()
	<-supervised
	if err := searchSink.Flush(); err != nil {
		log.Warn("Last index batch lost", "error", err)
	}
	log.Info("Program stopped cleanly")
	return runErr
}
