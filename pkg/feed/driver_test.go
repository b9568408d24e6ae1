package feed

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketwire/lob/pkg/lob"
)

type captureSink struct {
	batches map[string][][]lob.Trade
}

func (s *captureSink) PublishTrades(symbol string, trades []lob.Trade) {
	if s.batches == nil {
		s.batches = make(map[string][][]lob.Trade)
	}
	s.batches[symbol] = append(s.batches[symbol], trades)
}

func testLogger() log.Logger {
	level, _ := log.ToLevel("error")
	return log.NewTestLogger(level)
}

func TestDriverProducesTrades(t *testing.T) {
	registry := lob.NewRegistry()
	registry.AddSymbol("META", 5)
	registry.AddSymbol("AAPL", 3)

	sink := &captureSink{}
	cfg := DefaultConfig()
	cfg.Seed = 42
	driver := NewDriver(registry, sink, nil, testLogger(), cfg)

	for i := 0; i < 5000; i++ {
		driver.step()
	}

	require.NotEmpty(t, sink.batches, "a tight random walk must cross eventually")
	for symbol, batches := range sink.batches {
		book, ok := registry.Book(symbol)
		require.True(t, ok)
		for _, batch := range batches {
			assert.NotEmpty(t, batch, "empty batches must not be published")
		}
		// After any amount of flow the book must be non-crossed.
		if bid, ok := book.BestBid(); ok {
			if ask, ok := book.BestAsk(); ok {
				assert.Less(t, bid, ask)
			}
		}
	}
}

func TestDriverStopsOnCancel(t *testing.T) {
	registry := lob.NewRegistry()
	registry.AddSymbol("META", 5)

	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.Seed = 7
	driver := NewDriver(registry, &captureSink{}, nil, testLogger(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		driver.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop on context cancellation")
	}
}

func TestDriverEmptyRegistry(t *testing.T) {
	driver := NewDriver(lob.NewRegistry(), &captureSink{}, nil, testLogger(), DefaultConfig())
	driver.step() // must not panic
}
