package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	crud "github.com/gen64/mustwatch-api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsTable   = "metrics"
	metricsPattern = "GET /" + metricsTable
)

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Syntax: mustwatch [config.yaml|.toml|.ini|.json]\n")
		os.Exit(1)
	}

	path := ""
	if len(os.Args) == 2 {
		path = os.Args[1]
	}
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error with loadConfig: %s\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	conn, err := NewDB(&cfg.DB).GetConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	dialect, err := crud.DialectFor(cfg.DB.Driver)
	if err != nil {
		return err
	}

	metrics := crud.NewMetrics(prometheus.DefaultRegisterer)
	handler, err := newHandler(ctx, cfg, crud.NewSQLGateway(conn, dialect, &crud.GatewayOptions{Logger: logger, Metrics: metrics}), dialect, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           crud.Middleware(handler, logger, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newHandler binds every discovered table, the configured associations and
// the metrics endpoint to a new mux
func newHandler(ctx context.Context, cfg *Config, gw crud.Gateway, dialect crud.Dialect, logger *slog.Logger) (http.Handler, error) {
	c := crud.NewController(gw, logger)
	if err := c.Reserve(metricsPattern); err != nil {
		return nil, err
	}
	b, err := crud.NewBinder(crud.NewSchemaDiscoverer(gw, dialect, cfg.DB.Schema), c, crud.BinderOptions{
		Models:       modelsByTable,
		PKConvention: crud.PKConvention(cfg.API.PKConvention),
		// a table named metrics would take the route of the metrics endpoint
		Exclude: append([]string{metricsTable}, cfg.API.Exclude...),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	tables, err := b.Bind(ctx, mux)
	if err != nil {
		return nil, err
	}
	logger.Info("tables bound", "count", len(tables))

	for _, entity := range cfg.API.Associations {
		if _, err := c.RegisterAssociation(mux, crud.NewAssociation(entity)); err != nil {
			return nil, err
		}
		logger.Info("association bound", "entity", entity)
	}

	mux.Handle(metricsPattern, promhttp.Handler())
	return mux, nil
}
