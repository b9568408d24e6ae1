// Command lobd runs the matching engine and its WebSocket dissemination
// server.
//
// Usage: lobd <listen_address> <listen_port> <io_threads>
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/luxfi/log"

	"github.com/marketwire/lob/pkg/config"
	"github.com/marketwire/lob/pkg/feed"
	"github.com/marketwire/lob/pkg/lob"
	"github.com/marketwire/lob/pkg/marketdata"
	"github.com/marketwire/lob/pkg/metrics"
	"github.com/marketwire/lob/pkg/websocket"
)

func usage() {
	fmt.Fprintf(os.Stderr,
		"Usage: lobd <listen_address> <listen_port> <io_threads>\n"+
			"Example:\n"+
			"    lobd 0.0.0.0 8080 1\n")
}

// multiSink fans one trade batch out to every dissemination consumer.
type multiSink []feed.TradeSink

func (m multiSink) PublishTrades(symbol string, trades []lob.Trade) {
	for _, sink := range m {
		sink.PublishTrades(symbol, trades)
	}
}

// aggregatorSink adapts the marketdata aggregator to the feed sink.
type aggregatorSink struct{ agg *marketdata.Aggregator }

func (s aggregatorSink) PublishTrades(symbol string, trades []lob.Trade) {
	s.agg.Record(symbol, trades)
}

func main() {
	if len(os.Args) != 4 {
		usage()
		os.Exit(1)
	}

	addr := os.Args[1]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil || port < 1 || port > 65535 {
		usage()
		os.Exit(1)
	}
	threads, err := strconv.Atoi(os.Args[3])
	if err != nil {
		usage()
		os.Exit(1)
	}
	if threads < 1 {
		threads = 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lobd: %v\n", err)
		os.Exit(1)
	}
	cfg.ListenAddr = addr
	cfg.ListenPort = port
	cfg.IOThreads = threads

	level, err := log.ToLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lobd: bad log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	logger := log.NewTestLogger(level)

	if err := run(cfg, logger); err != nil {
		logger.Error("lobd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger log.Logger) error {
	symbols, err := cfg.SymbolDepths()
	if err != nil {
		return err
	}

	// Registry first, symbols registered before any I/O starts.
	registry := lob.NewRegistry()
	for _, s := range symbols {
		registry.AddSymbol(s.Symbol, s.Depth)
		logger.Info("symbol registered", "symbol", s.Symbol, "depth", s.Depth)
	}

	m := metrics.New("lob")

	wsCfg := websocket.DefaultConfig()
	wsCfg.BroadcastWorkers = cfg.IOThreads
	wsCfg.SnapshotRefresh = cfg.SnapshotRefresh
	hub := websocket.NewServer(registry, logger, wsCfg)
	hub.Start()
	defer hub.Stop()

	var publisher *marketdata.Publisher
	if cfg.NATSURL != "" {
		publisher, err = marketdata.NewPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		logger.Info("trade ticks republished to NATS", "url", cfg.NATSURL)
	}
	aggregator := marketdata.NewAggregator(logger, publisher)

	sink := multiSink{hub, aggregatorSink{aggregator}}
	driver := feed.NewDriver(registry, sink, m, logger, feed.Config{
		TickInterval:  cfg.FeedInterval,
		PriceMid:      100,
		PriceSpread:   10,
		MaxQuantity:   50,
		FAKPercent:    15,
		CancelPercent: 15,
		ModifyPercent: 10,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		driver.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor(ctx, registry, hub, m)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/health", hub.HandleHealth)
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.ListenPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("lobd listening", "addr", server.Addr, "io_threads", cfg.IOThreads)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}

	wg.Wait()
	logger.Info("lobd shut down cleanly")
	return nil
}

// monitor refreshes the book and session gauges.
func monitor(ctx context.Context, registry *lob.Registry, hub *websocket.Server, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, symbol := range registry.Symbols() {
				if book, ok := registry.Book(symbol); ok {
					m.ObserveBook(book)
				}
			}
			clients, frames := hub.Stats()
			m.ObserveSessions(clients, frames)
		}
	}
}
