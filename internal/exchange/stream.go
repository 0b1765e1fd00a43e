package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvessey/crowd-trader/internal/logger"
)

const streamBaseURL = "wss://stream.binance.com:9443/stream"

// Reconnect policy: short fixed delay after a clean close, longer after an
// error.
const (
	reconnectDelayClean = 5 * time.Second
	reconnectDelayError = 10 * time.Second
)

// PriceUpdate is one streamed ticker observation.
type PriceUpdate struct {
	ProductID string
	Price     float64
	Timestamp int64
}

type streamEnvelope struct {
	Stream string         `json:"stream"`
	Data   miniTickerData `json:"data"`
}

type miniTickerData struct {
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	EventTime int64  `json:"E"`
}

// TickerStream feeds real-time price updates for the watchlist over the
// Binance miniTicker websocket.
type TickerStream struct {
	productIDs []string
	bySymbol   map[string]string
	logger     *logger.Logger
}

func NewTickerStream(productIDs []string, log *logger.Logger) *TickerStream {
	bySymbol := make(map[string]string, len(productIDs))
	for _, id := range productIDs {
		bySymbol[Symbol(id)] = id
	}
	return &TickerStream{productIDs: productIDs, bySymbol: bySymbol, logger: log}
}

// Run streams until the context is cancelled, reconnecting on disconnects.
func (t *TickerStream) Run(ctx context.Context, onUpdate func(PriceUpdate)) error {
	if len(t.productIDs) == 0 {
		return fmt.Errorf("ticker stream requires at least one product")
	}

	streams := make([]string, len(t.productIDs))
	for i, id := range t.productIDs {
		streams[i] = strings.ToLower(Symbol(id)) + "@miniTicker"
	}
	url := streamBaseURL + "?streams=" + strings.Join(streams, "/")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := t.consume(ctx, url, onUpdate)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := reconnectDelayClean
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			t.logger.Warn("ticker stream error, reconnecting", "error", err, "delay", reconnectDelayError.String())
			delay = reconnectDelayError
		} else {
			t.logger.Info("ticker stream disconnected, reconnecting", "delay", reconnectDelayClean.String())
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *TickerStream) consume(ctx context.Context, url string, onUpdate func(PriceUpdate)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	t.logger.Info("ticker stream connected", "products", strings.Join(t.productIDs, ","))

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			t.logger.Warn("failed to decode ticker message", "error", err)
			continue
		}

		productID, ok := t.bySymbol[env.Data.Symbol]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(env.Data.Close, 64)
		if err != nil {
			t.logger.Warn("invalid price in ticker message", "symbol", env.Data.Symbol, "error", err)
			continue
		}

		onUpdate(PriceUpdate{
			ProductID: productID,
			Price:     price,
			Timestamp: env.Data.EventTime / 1000,
		})
	}
}
