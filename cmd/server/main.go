package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"megabots.dev/internal/observability"
	persistlog "megabots.dev/internal/persistence/log"
	"megabots.dev/internal/protocol"
	"megabots.dev/internal/sim/tuning"
	"megabots.dev/internal/sim/world"
	"megabots.dev/internal/transport/observer"
	"megabots.dev/internal/transport/ws"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var (
		addr       = flag.String("addr", envString("MB_ADDR", ":8080"), "http listen address")
		worldID    = flag.String("world", envString("MB_WORLD", "warehouse_1"), "world id")
		seed       = flag.Int64("seed", 0, "world seed (0 uses the tuning seed)")
		configDir  = flag.String("configs", envString("MB_CONFIGS", "./configs"), "config directory")
		dataDir    = flag.String("data", envString("MB_DATA", "./data"), "runtime data directory")
		tuningPath = flag.String("tuning", envString("MB_TUNING", ""), "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", envBool("MB_DISABLE_DB", false), "disable the sqlite tick/audit index")
		noJournal  = flag.Bool("disable_journal", envBool("MB_DISABLE_JOURNAL", false), "disable the replayable event journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	cfg, err := worldConfig(*worldID, tune.Seed, tune, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world config: %v", err)
	}
	w, err := world.New(cfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional read-model index; it never feeds back into the simulation.
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(*worldID, tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{tickLog, idx})
		w.SetAuditLogger(multiAuditLogger{auditLog, idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}
	if !*noJournal {
		journal := persistlog.NewJournalLogger(worldDir)
		defer journal.Close()
		w.SetJournal(journal)
	}

	validator, err := protocol.DefaultValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var idxStats observability.IndexSource
	if idx != nil {
		idxStats = idx
	}
	if err := observability.Register(reg, observability.NewCollector(*worldID, w, idxStats)); err != nil {
		logger.Fatalf("metrics: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitList(envString("MB_CORS_ORIGINS", "*")),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler(reg))

	if envBool("MB_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		obsSrv := observer.NewServer(w, logger)
		r.Route("/admin/v1", obsSrv.Routes)
	} else {
		logger.Printf("admin endpoints disabled (MB_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("MB_ENABLE_PPROF_HTTP", false) {
		r.Mount("/debug", middleware.Profiler())
	}

	wsSrv := ws.NewServer(w, validator, tune.ClientQueue, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	r.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s size=%dx%d robots=%d program=%s tick=%s/%dms",
		*worldID, cfg.Width, cfg.Height, len(cfg.Fleet), cfg.Program, cfg.TickMode, cfg.TickSpeedMs)
	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
