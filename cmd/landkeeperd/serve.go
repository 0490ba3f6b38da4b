package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/landkeeper/engine/internal/demoland"
	"github.com/landkeeper/engine/internal/landconfig"
	"github.com/landkeeper/engine/pkg/identity"
	"github.com/landkeeper/engine/pkg/keeper"
	"github.com/landkeeper/engine/pkg/land"
	"github.com/landkeeper/engine/pkg/schemahttp"
	"github.com/landkeeper/engine/pkg/statetree"
	"github.com/landkeeper/engine/pkg/syncengine"
	"github.com/landkeeper/engine/pkg/telemetry"
	"github.com/landkeeper/engine/pkg/transport"
)

func serveCmd() *cobra.Command {
	var (
		addr        string
		envFile     string
		requireAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo lobby land host",
		Long: `serve starts an HTTP server exposing:

  • GET  /ws/{landId}   WebSocket transport (join, actions, client events)
  • GET  /schema        registered land type schemas
  • GET  /metrics       Prometheus metrics
  • GET  /healthz       liveness probe

It hosts one land type, "lobby", creating instances on demand as clients
join with a new landId.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, envFile, requireAuth)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&envFile, "env-file", "", "optional .env file to load before reading the environment")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", false, "require a bearer token matching the joining playerId")
	return cmd
}

func runServe(addr, envFile string, requireAuth bool) error {
	cfg, err := landconfig.Load(envFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	info("config digest: %s", cfg.Digest())

	demoland.RegisterSchema()

	metrics := telemetry.New(telemetry.WithNamespace(cfg.MetricsNamespace))
	tracer := telemetry.NewTracer("landkeeperd")

	schemaRegistry := schemahttp.NewRegistry()

	var gate transport.JoinGate
	if requireAuth {
		resolver := identity.ResolverFunc(func(ctx context.Context, credential string) (identity.Principal, error) {
			return identity.Principal{ID: credential}, nil
		})
		gate = identity.NewGate(resolver)
	}

	realm := land.NewRealm(logger)
	pathTable := demoland.BuildPathTable()

	realm.RegisterLandType(land.ManagerConfig{
		LandType: demoland.LandType,
		OnLandCreated: func(landID string) {
			info("land created: %s/%s", demoland.LandType, landID)
		},
		OnLandRemoved: func(landID string) {
			info("land removed: %s/%s", demoland.LandType, landID)
		},
	}, func(landID string) (*keeper.Keeper, *transport.Adapter, error) {
		tree := demoland.NewTree()
		tree.SetDirtyTracking(cfg.EnableDirtyTracking)

		k := keeper.New(keeper.Config{LandID: landID}, tree, nil, logger)
		demoland.RegisterHandlers(k)

		engine := syncengine.NewEngine()
		adapter := transport.NewAdapter(transport.Config{
			LandID:      landID,
			JoinTimeout: cfg.JoinTimeout,
		}, gate, k, engine, pathTable, logger)
		k.SetOutboundRouter(adapter)

		return k, adapter, nil
	})

	schemaRegistry.Register(schemahttp.LandTypeSchema{
		LandType:   demoland.LandType,
		NodeSchema: statetree.LookupSchema(demoland.LandType),
		TypeIDs:    []string{demoland.BumpScoreTypeID, demoland.SayTypeID},
	})

	router := land.NewRouter(realm)

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Mount("/schema", schemahttp.Router(schemaRegistry))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/ws/{landId}", wsHandler(router, logger))

	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runTickLoop(ctx, realm, cfg.TickPeriod, metrics, tracer, logger)

	errCh := make(chan error, 1)
	go func() {
		info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		warn("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpErr := srv.Shutdown(shutdownCtx)
		if err := realm.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return httpErr
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsHandler(router *land.Router, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		landID := chi.URLParam(r, "landId")
		entry, err := router.Resolve(demoland.LandType, landID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		session := entry.Adapter.Accept(conn)
		entry.Adapter.ReadPump(session)
	}
}

func runTickLoop(ctx context.Context, realm *land.Realm, period time.Duration, metrics *telemetry.Metrics, tracer *telemetry.Tracer, logger *slog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, span := tracer.StartTick(ctx, demoland.LandType, "", 0)
			start := time.Now()
			err := realm.TickAll(tickCtx)
			metrics.ObserveTick(demoland.LandType, time.Since(start), 0)
			telemetry.EndWithError(span, err)
			if err != nil {
				logger.Error("tick failed", "error", err)
			}

			lands := realm.AdminList()[demoland.LandType]
			metrics.SetActiveLands(demoland.LandType, len(lands))
		}
	}
}

func newLogger(cfg landconfig.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	switch cfg.LogFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	case "zerolog":
		return slog.New(landconfig.NewZerologHandler(level))
	default:
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
}
