// internal/app/runtime.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-txflow/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-txflow/internal/blockchain/solbc/rpc"
	"github.com/rovshanmuradov/solana-txflow/internal/config"
	"github.com/rovshanmuradov/solana-txflow/internal/events"
	"github.com/rovshanmuradov/solana-txflow/internal/history"
	"github.com/rovshanmuradov/solana-txflow/internal/notify"
	"github.com/rovshanmuradov/solana-txflow/internal/storage"
	"github.com/rovshanmuradov/solana-txflow/internal/txflow"
	"github.com/rovshanmuradov/solana-txflow/internal/utils/logger"
)

const eventBufferSize = 256

// Options are the process level settings that do not belong to the config file.
type Options struct {
	// Console receives notifications. Logs go to LogConsole.
	Console    io.Writer
	LogConsole io.Writer
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
}

// Runtime wires the ledger connection, history and notifications around one Handler.
type Runtime struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *rpc.Pool
	Client    *solbc.Client
	Backend   *storage.Backend
	History   *history.Recorder
	Refresher *history.Refresher
	Bus       *events.Bus
	Notifier  *notify.BusNotifier
	Handler   *txflow.Handler
	Registry  *prometheus.Registry

	shutdown *ShutdownHandler
}

// New builds a runtime. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (rt *Runtime, err error) {
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Console = opts.LogConsole
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	rt = &Runtime{Config: cfg, Log: log, shutdown: NewShutdownHandler(log.Logger)}
	rt.shutdown.Add("logger", func(context.Context) error { return log.Sync() })
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	nodes := make([]rpc.NodeConfig, 0, len(cfg.RPCList))
	for _, url := range cfg.RPCList {
		nodes = append(nodes, rpc.NodeConfig{URL: url, RateLimit: cfg.RPCRateLimit, Burst: cfg.RPCBurst})
	}
	if rt.Pool, err = rpc.NewPool(nodes, cfg.Retries, log.Logger); err != nil {
		return rt, fmt.Errorf("create rpc pool: %w", err)
	}
	rt.Client = solbc.NewClient(rt.Pool, cfg.WebSocketURL, log.Logger)
	rt.shutdown.Add("ledger", func(context.Context) error {
		rt.Client.Close()
		return nil
	})

	rt.Backend, err = storage.Open(ctx, storage.Options{PostgresURL: cfg.PostgresURL, RedisAddr: cfg.RedisAddr}, log.Logger)
	if err != nil {
		return rt, fmt.Errorf("open history storage: %w", err)
	}
	rt.shutdown.Add("storage", func(context.Context) error { return rt.Backend.Close() })

	rt.History = history.NewRecorder(rt.Backend, cfg.HistoryMaxEntries, log.Logger)
	if err := rt.History.Restore(ctx); err != nil {
		log.Warn("Starting with empty history", zap.String("backend", rt.Backend.Name), zap.Error(err))
	}
	rt.Refresher = history.NewRefresher(rt.History, rt.Client, cfg.RefreshInterval, cfg.DropTimeout, log.Logger)

	rt.Bus = events.NewBus(log.Logger, eventBufferSize)
	rt.shutdown.Add("event-bus", rt.Bus.Shutdown)
	rt.Notifier = notify.NewBusNotifier(rt.Bus, log.Logger)
	if opts.Console != nil {
		renderer := notify.NewConsoleRenderer(rt.Bus, opts.Console)
		rt.shutdown.Add("console", func(ctx context.Context) error {
			err := rt.Bus.Flush(ctx)
			renderer.Close()
			return err
		})
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(collectors.NewGoCollector())
	rt.Handler = txflow.NewHandler(txflow.HandlerDeps{
		Conn:         rt.Client,
		History:      rt.History,
		Notifier:     rt.Notifier,
		Metrics:      txflow.NewMetrics(rt.Registry),
		InnerBuilder: txflow.PacketBuilder{Version: txflow.TxVersion(cfg.TxVersion)},
	}, txflow.Config{
		Commitment:       solanarpc.CommitmentType(cfg.Commitment),
		MaxParallelSends: cfg.MaxParallelSends,
		BlockhashRetries: cfg.Retries,
	}, log.Logger)
	rt.shutdown.Add("handler", rt.Handler.Wait)

	if opts.MetricsAddr != "" {
		if err := rt.serveMetrics(opts.MetricsAddr); err != nil {
			return rt, err
		}
	}

	log.Debug("Runtime ready",
		zap.Int("rpc_nodes", len(nodes)),
		zap.String("history_backend", rt.Backend.Name),
		zap.String("commitment", cfg.Commitment))
	return rt, nil
}

func (rt *Runtime) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Log.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	rt.shutdown.Add("metrics", srv.Shutdown)
	rt.Log.Info("Serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

// Close waits for in-flight transactions and releases every service.
func (rt *Runtime) Close(ctx context.Context) error {
	return rt.shutdown.Shutdown(ctx)
}
