package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"cross/api/grpcserver"
	"cross/api/ws"
	"cross/domain/orderbook"
	"cross/infra/config"
	"cross/infra/kafka"
	"cross/infra/logger"
	"cross/infra/metrics"
	"cross/infra/sequence"
	"cross/infra/storage"
	entrywal "cross/infra/wal/entry"
	exitwal "cross/infra/wal/exit"
	"cross/jobs/broadcaster"
	"cross/service"
	"cross/snapshot"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config; empty uses defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(*cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// ---------------- Storage ----------------

	exitWAL, err := exitwal.Open(cfg.Outbox.Dir)
	if err != nil {
		return err
	}
	defer exitWAL.Close()

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	// ---------------- Service ----------------

	hub := ws.NewHub(exitWAL, ws.WithLogger(log), ws.WithMetrics(m))
	dispatcher := service.NewDispatcher(hub, exitWAL, cfg.Instrument.Symbol, cfg.Instrument.PriceScale,
		service.WithTape(cfg.Broker.Enabled),
		service.WithDispatchLogger(log),
	)

	opts := []service.Option{
		service.WithHistory(store),
		service.WithNotifier(dispatcher),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithInboxSize(cfg.Engine.InboxSize),
		service.WithReplyTimeout(cfg.Engine.ReplyTimeout),
	}
	walDir := ""
	if cfg.WAL.Enabled {
		entryWAL, err := entrywal.Open(entrywal.Config{
			Dir:             cfg.WAL.Dir,
			SegmentSize:     cfg.WAL.SegmentSize,
			SegmentDuration: cfg.WAL.SegmentDuration,
			Sync:            cfg.WAL.Sync,
		})
		if err != nil {
			return err
		}
		defer entryWAL.Close()
		opts = append(opts, service.WithJournal(entryWAL))
		walDir = cfg.WAL.Dir
	}

	svc := service.NewOrderService(orderbook.NewMatchingEngine(), orderbook.NewStopMonitor(), sequence.New(0), opts...)
	if err := svc.Recover(cfg.Snapshot.Dir, walDir); err != nil {
		return err
	}

	// The sequencer outlives the listeners so the final snapshot can go
	// through it.
	seqCtx, stopSeq := context.WithCancel(context.Background())
	defer stopSeq()
	seqDone := make(chan struct{})
	go func() {
		defer close(seqDone)
		_ = svc.Run(seqCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Background Jobs ----------------

	snapWriter := &snapshot.Writer{Dir: cfg.Snapshot.Dir}
	go svc.RunSnapshots(ctx, snapWriter, cfg.Snapshot.Interval)

	if cfg.Broker.Enabled {
		pub, err := kafka.New(cfg.Broker)
		if err != nil {
			return err
		}
		bc := broadcaster.New(exitWAL, pub, cfg.Instrument.Symbol, cfg.Broker.FlushInterval,
			broadcaster.WithMaxRetries(cfg.Broker.MaxRetries),
			broadcaster.WithLogger(log),
			broadcaster.WithMetrics(m),
		)
		defer bc.Close()
		go bc.Run(ctx)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	grpcSrv := grpcserver.NewGRPCServer(svc, log)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc server failed", "err", err)
			stop()
		}
	}()

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	httpSrv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	fmt.Printf("🚀 Cross engine [%s] running: grpc %s, http %s\n", cfg.Instrument.Symbol, cfg.Server.GRPCAddr, cfg.Server.HTTPAddr)
	<-ctx.Done()
	fmt.Println("🛑 Shutting down")

	// ---------------- Shutdown ----------------

	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	hub.Close()

	if snap, err := svc.TakeSnapshot(shutdownCtx, snapWriter); err != nil {
		log.Warn("final snapshot failed", "err", err)
	} else {
		log.Info("final snapshot written", "seq", snap.Seq)
	}
	stopSeq()
	<-seqDone
	return nil
}
