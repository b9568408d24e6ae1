package marketdata

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marketwire/lob/pkg/lob"
)

// Publisher republishes executed trades to NATS, one message per trade on
// subject "trades.<symbol>". Best-effort: a failed publish is reported to
// the caller and never blocks matching.
type Publisher struct {
	nc *nats.Conn
}

// tradeTick is the published wire form of one trade.
type tradeTick struct {
	Symbol      string       `json:"symbol"`
	BidOrderID  lob.OrderID  `json:"bidOrderId"`
	BidPrice    lob.Price    `json:"bidPrice"`
	AskOrderID  lob.OrderID  `json:"askOrderId"`
	AskPrice    lob.Price    `json:"askPrice"`
	Quantity    lob.Quantity `json:"quantity"`
	PublishedAt int64        `json:"publishedAt"`
}

// NewPublisher connects to NATS with unbounded reconnects.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// PublishTrades emits one tick per trade on trades.<symbol>.
func (p *Publisher) PublishTrades(symbol string, trades []lob.Trade) error {
	subject := "trades." + symbol
	for _, trade := range trades {
		tick := tradeTick{
			Symbol:      symbol,
			BidOrderID:  trade.Bid.OrderID,
			BidPrice:    trade.Bid.Price,
			AskOrderID:  trade.Ask.OrderID,
			AskPrice:    trade.Ask.Price,
			Quantity:    trade.Bid.Quantity,
			PublishedAt: time.Now().UnixNano(),
		}
		payload, err := json.Marshal(tick)
		if err != nil {
			return fmt.Errorf("marshal trade tick: %w", err)
		}
		if err := p.nc.Publish(subject, payload); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	p.nc.Drain()
}
