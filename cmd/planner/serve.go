package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/warp/workforce-planner/api"
	"github.com/warp/workforce-planner/config"
	"github.com/warp/workforce-planner/events"
	"github.com/warp/workforce-planner/store"
	"github.com/warp/workforce-planner/store/memory"
	"github.com/warp/workforce-planner/store/postgres"
	"github.com/warp/workforce-planner/store/sqlite"
)

// serveCmd runs the HTTP API until ctx is done.
//
// STARTUP SEQUENCE:
//  1. Load configuration, apply flags
//  2. Open the store
//  3. Connect the event publisher
//  4. Start the server; on SIGINT/SIGTERM drain for up to 30s
func serveCmd(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "configuration file (YAML)")
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	driver := fs.String("store", "", "store driver: memory, sqlite or postgres (overrides store.driver)")
	dsn := fs.String("dsn", "", "store DSN (overrides store.dsn)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitFailure
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *dsn != "" {
		cfg.Store.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitFailure
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Printf("Failed to initialize store: %v", err)
		return exitFailure
	}
	defer st.Close()

	pub, closePub, err := openPublisher(cfg.Events)
	if err != nil {
		log.Printf("Failed to initialize events: %v", err)
		return exitFailure
	}
	defer closePub()

	handler := api.NewHandler(st, pub, cfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Solver.MaxTimeLimit + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (store: %s)", cfg.Server.Addr, cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Printf("Server failed: %v", err)
			return exitFailure
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return exitFailure
	}
	log.Println("Server stopped")
	return exitOK
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DSN)
	default:
		return memory.New(), nil
	}
}

// openPublisher always publishes in-process; Redis is added when configured.
func openPublisher(cfg config.EventsConfig) (events.Publisher, func(), error) {
	broker := events.NewBroker()
	if cfg.RedisURL == "" {
		return broker, func() {}, nil
	}
	rp, err := events.NewRedisPublisher(cfg.RedisURL, cfg.ChannelPrefix)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Publishing run events to Redis (prefix %q)", cfg.ChannelPrefix)
	return events.Multi{broker, rp}, func() { rp.Close() }, nil
}
