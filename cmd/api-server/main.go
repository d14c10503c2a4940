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
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealflow/internal/auth"
	"dealflow/internal/backfill"
	"dealflow/internal/dashboard"
	"dealflow/internal/dataset"
	"dealflow/internal/events"
	"dealflow/internal/logging"
	"dealflow/internal/pipeline"
	"dealflow/internal/store"
	"dealflow/pkg/database"
	"dealflow/pkg/utils"
)

func main() {
	importOnStart := flag.Bool("import", false, "import the pipeline outputs into the database before serving")
	flag.Parse()

	cfg, err := utils.LoadConfig(utils.ConfigPath())
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		log.Fatalf("init logging failed: %v", err)
	}
	defer logging.Close()

	db := database.MustOpen(cfg.Database.Options())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	st := store.New(db)
	files := dataset.FilesFromConfig(cfg.Data)
	reload := func(ctx context.Context) error {
		counts, err := st.ImportFiles(ctx, files)
		if err != nil {
			return err
		}
		logger.Info("pipeline outputs imported", "deals", counts.Deals, "companies", counts.Companies,
			"investors", counts.Investors, "deal_investors", counts.DealInvestors)
		return nil
	}
	if *importOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := reload(ctx)
		cancel()
		if err != nil {
			log.Fatalf("initial import failed: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pipeline.NewMetrics(reg)

	lookup, err := backfill.FromConfig(cfg.Backfill, logger)
	if err != nil {
		log.Fatalf("backfill setup failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// run events: websocket here, line-delimited JSON on server.tcp_addr
	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub))
	tcpSrv := events.NewServer(cfg.Server.TCPAddr, hub)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Auth
	tokenSvc := auth.NewTokenService(cfg.Auth)
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc, auth.RegistrationPolicy(cfg.Auth.Registration))
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Dataset and insights (public), runs (operators)
	runs := &dashboard.RunManager{
		Store: st,
		NewRunner: func(runID string) dashboard.PipelineRunner {
			r := pipeline.NewRunner(pipeline.PathsFromConfig(cfg.Data), pipeline.Options{
				Lookup: lookup,
				Delay:  cfg.Backfill.Delay,
				RunID:  runID,
			}, logger)
			r.Metrics = metrics
			r.Notifier = hub
			return r
		},
		Reload: reload,
		Logger: logger,
	}
	(&probes{
		db:       db,
		store:    st,
		hub:      hub,
		runs:     runs,
		dbPath:   cfg.Database.Path,
		backfill: lookup != nil,
	}).register(router)

	dash := dashboard.NewHandler(st, runs)
	api := router.Group("/api")
	dash.RegisterRoutes(api)
	dash.RegisterRunRoutes(api, authHandler.Middleware())

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("HTTP API server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	slog.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if err := tcpSrv.Close(); err != nil {
		slog.Error("tcp shutdown error", "error", err)
	}
	runs.Shutdown()

	wg.Wait()
	slog.Info("servers stopped")
}
