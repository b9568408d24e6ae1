package marketdata

import (
	"testing"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketwire/lob/pkg/lob"
)

func testAggregator() *Aggregator {
	level, _ := log.ToLevel("error")
	return NewAggregator(log.NewTestLogger(level), nil)
}

func TestRecordAccumulates(t *testing.T) {
	agg := testAggregator()

	agg.Record("META", []lob.Trade{
		{Bid: lob.TradeLeg{OrderID: 1, Price: 10, Quantity: 3}, Ask: lob.TradeLeg{OrderID: 2, Price: 10, Quantity: 3}},
		{Bid: lob.TradeLeg{OrderID: 3, Price: 12, Quantity: 1}, Ask: lob.TradeLeg{OrderID: 2, Price: 10, Quantity: 1}},
	})

	stats, ok := agg.Snapshot("META")
	require.True(t, ok)
	assert.Equal(t, uint64(2), stats.Trades)
	assert.Equal(t, uint64(4), stats.Volume)
	assert.Equal(t, lob.Price(12), stats.LastPrice)
	// turnover = 10*3 + 12*1 = 42, vwap = 42/4 = 10.5
	assert.True(t, stats.Turnover.Equal(decimal.NewFromInt(42)), "turnover %s", stats.Turnover)
	assert.True(t, stats.VWAP.Equal(decimal.RequireFromString("10.5")), "vwap %s", stats.VWAP)
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	agg := testAggregator()

	_, ok := agg.Snapshot("NOPE")
	assert.False(t, ok)
}

func TestRecordEmptyBatch(t *testing.T) {
	agg := testAggregator()

	agg.Record("META", nil)
	_, ok := agg.Snapshot("META")
	assert.False(t, ok, "empty batch must not create stats")
	assert.Empty(t, agg.Symbols())
}

func TestNegativePriceTurnover(t *testing.T) {
	agg := testAggregator()

	agg.Record("SPREAD", []lob.Trade{
		{Bid: lob.TradeLeg{OrderID: 1, Price: -5, Quantity: 2}, Ask: lob.TradeLeg{OrderID: 2, Price: -5, Quantity: 2}},
	})

	stats, ok := agg.Snapshot("SPREAD")
	require.True(t, ok)
	assert.True(t, stats.Turnover.Equal(decimal.NewFromInt(-10)))
	assert.True(t, stats.VWAP.Equal(decimal.NewFromInt(-5)))
}
