package report

import (
	"io"

	"dex/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Sink interface {
	Deliver(trade common.Trade) error
}

type SinkFunc func(trade common.Trade) error

func (f SinkFunc) Deliver(trade common.Trade) error { return f(trade) }

func tradeFields(e *zerolog.Event, trade common.Trade) *zerolog.Event {
	return e.
		Stringer("id", trade.ID).
		Str("ticker", string(trade.Ticker)).
		Stringer("price", trade.Price).
		Stringer("quantity", trade.Quantity).
		Str("buyer", string(trade.Buyer())).
		Str("seller", string(trade.Seller())).
		Uint64("maker_order", trade.Maker.ID).
		Uint64("taker_order", trade.Taker.ID).
		Stringer("taker_side", trade.Taker.Side)
}

// LogSink writes each trade to the global logger at info level.
func LogSink() Sink {
	return SinkFunc(func(trade common.Trade) error {
		tradeFields(log.Info(), trade).Msg("trade executed")
		return nil
	})
}

// Journal writes one JSON object per trade to w.
type Journal struct {
	logger zerolog.Logger
}

func NewJournal(w io.Writer) *Journal {
	return &Journal{logger: zerolog.New(w)}
}

func (j *Journal) Deliver(trade common.Trade) error {
	tradeFields(j.logger.Log(), trade).
		Time("executed_at", trade.Timestamp).
		Send()
	return nil
}
