package websocket

import (
	"strconv"
	"strings"

	"github.com/marketwire/lob/pkg/lob"
)

// snapshotHeader is the first line of every depth snapshot frame. The
// whitespace is part of the wire format.
const snapshotHeader = " Bids    \t\t  Asks   \n"

// RenderSnapshot formats a depth snapshot frame. Rows pair the top bids
// (highest first) with the top asks (lowest first); emission stops at the
// shorter side or at maxDepth, whichever comes first.
func RenderSnapshot(levels lob.BookLevels, maxDepth int) string {
	rows := maxDepth
	if len(levels.Bids) < rows {
		rows = len(levels.Bids)
	}
	if len(levels.Asks) < rows {
		rows = len(levels.Asks)
	}

	var sb strings.Builder
	sb.WriteString(snapshotHeader)
	for i := 0; i < rows; i++ {
		sb.WriteByte('$')
		sb.WriteString(strconv.FormatInt(int64(levels.Bids[i].Price), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(levels.Bids[i].Quantity), 10))
		sb.WriteString(" \t\t $")
		sb.WriteString(strconv.FormatInt(int64(levels.Asks[i].Price), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(levels.Asks[i].Quantity), 10))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderTrades formats a trade report frame: one segment per trade with a
// trailing comma, all segments concatenated into a single frame.
func RenderTrades(trades []lob.Trade) string {
	var sb strings.Builder
	for _, trade := range trades {
		sb.WriteString("Bid: ")
		sb.WriteString(strconv.FormatUint(trade.Bid.OrderID, 10))
		sb.WriteString(" Price: ")
		sb.WriteString(strconv.FormatInt(int64(trade.Bid.Price), 10))
		sb.WriteString(" Quantity: ")
		sb.WriteString(strconv.FormatUint(uint64(trade.Bid.Quantity), 10))
		sb.WriteString(" | Ask: ")
		sb.WriteString(strconv.FormatUint(trade.Ask.OrderID, 10))
		sb.WriteString(" Price: ")
		sb.WriteString(strconv.FormatInt(int64(trade.Ask.Price), 10))
		sb.WriteString(" Quantity: ")
		sb.WriteString(strconv.FormatUint(uint64(trade.Ask.Quantity), 10))
		sb.WriteByte(',')
	}
	return sb.String()
}
