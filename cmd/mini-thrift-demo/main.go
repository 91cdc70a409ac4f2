// Command mini-thrift-demo serves the fixture CombinedService, or calls one.
//
//	mini-thrift-demo -mode serve -config mini-thrift.yaml
//	mini-thrift-demo -mode call -name hello
package main

import (
	"context"
	"fmt"
	"mini-thrift/client"
	"mini-thrift/config"
	"mini-thrift/internal/fixture"
	"mini-thrift/log"
	"mini-thrift/middleware"
	"mini-thrift/persist"
	"mini-thrift/server"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func main() {
	opts := ParseFlags(os.Args[1:])
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := log.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch opts.Mode {
	case "serve":
		err = serve(cfg, logger)
	case "call":
		err = call(cfg, logger, opts.Name)
	default:
		err = errors.Newf("unknown mode %q", opts.Mode)
	}
	if err != nil {
		logger.Error("demo failed", zap.Error(err))
		os.Exit(1)
	}
}

func openStore(cfg config.StoreConfig) (persist.Store, func(), error) {
	if strings.ToLower(cfg.Kind) != "etcd" {
		return persist.NewMemoryStore(), func() {}, nil
	}
	s, err := persist.NewEtcdStore(cfg.Endpoints, cfg.Namespace, cfg.DialTimeout)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func observers(cfg *config.Config, logger *zap.Logger, service string) ([]middleware.Observer, error) {
	var obs []middleware.Observer
	if cfg.Observer.Logging {
		level, _ := log.ParseLevel(cfg.Observer.LogLevel)
		var o middleware.Observer = middleware.Logging(logger, level)
		if cfg.Observer.SampleRate > 0 {
			o = middleware.Sampled(cfg.Observer.SampleRate, cfg.Observer.SampleBurst, o)
		}
		obs = append(obs, o)
	}
	if cfg.Observer.Metrics {
		m := middleware.Metrics(service)
		reg := prometheus.NewRegistry()
		if err := m.Register(reg); err != nil {
			return nil, err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.Observer.MetricsAddress, mux); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		obs = append(obs, m)
	}
	if cfg.Observer.Tracing {
		obs = append(obs, middleware.Tracing())
	}
	return obs, nil
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := fixture.CombinedService
	obs, err := observers(cfg, logger, svc.Name)
	if err != nil {
		return err
	}
	popts := []server.ProcessorOption{server.WithProcessorLogger(logger), server.WithObservers(obs...)}
	if cfg.Observer.Tracing {
		tp := sdktrace.NewTracerProvider()
		defer func() { _ = tp.Shutdown(context.Background()) }()
		popts = append(popts, server.WithTracer(tp.Tracer("mini-thrift")))
	}
	processor, err := server.NewProcessor(svc, fixture.CombinedBindings(fixture.NewImpl(store)), popts...)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(processor,
		server.WithFormat(cfg.Server.WireFormat()),
		server.WithMaxMessageSize(cfg.Server.MaxMessageSize),
		server.WithTransport(cfg.Server.TransportOptions()...),
		server.WithMaxConns(cfg.Server.MaxConns),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(cfg.Server.Network, cfg.Server.Address) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case s := <-sig:
		logger.Info("shutting down", zap.Stringer("signal", s))
	}
	return srv.Shutdown(cfg.Server.ShutdownTimeout)
}

func call(cfg *config.Config, logger *zap.Logger, name string) error {
	ctx := context.Background()
	c, err := client.Dial(ctx, cfg.Server.Network, cfg.Client.Address,
		client.WithFormat(cfg.Server.WireFormat()),
		client.WithMaxMessageSize(cfg.Server.MaxMessageSize),
		client.WithDialTimeout(cfg.Client.DialTimeout),
		client.WithTransport(cfg.Server.TransportOptions()...),
		client.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer c.Close()
	stub := fixture.NewClient(c)

	if err := stub.Ping(ctx); err != nil {
		return err
	}
	echoed, err := stub.Echo(ctx, fixture.Simple{Key: name})
	if err != nil {
		return err
	}
	op, err := stub.Operation(ctx, "Mul", 0)
	if err != nil {
		return err
	}
	st, err := stub.GetStruct(ctx, 7)
	if err != nil {
		return err
	}
	logger.Info("calls succeeded",
		zap.String("echo", echoed.Key),
		zap.Stringer("operation", op),
		zap.Any("struct", st))
	return nil
}
