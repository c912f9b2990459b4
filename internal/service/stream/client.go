package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements BarStream over the feed's WebSocket. The feed emits
// one frame per closed candle; open candles never appear on this channel.
type Client struct {
	apiKey         string
	websocketURL   string
	instruments    []string
	timeframes     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new bar-feed stream client.
func New(apiKey, websocketURL string, instruments, timeframes []string, reconnectDelay, pingInterval time.Duration) drepo.BarStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		instruments:    instruments,
		timeframes:     timeframes,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("feed: connected")
	return nil
}

// Subscribe subscribes every configured instrument on every timeframe.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, inst := range c.instruments {
		for _, tf := range c.timeframes {
			msg := map[string]string{"type": "subscribe", "symbol": inst, "tf": tf}
			if err := c.conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("subscribe %s/%s: %w", inst, tf, err)
			}
		}
		log.Printf("feed: subscribed %s", inst)
	}
	return nil
}

type feedBar struct {
	S   string  `json:"s"`
	TF  string  `json:"tf"`
	T   int64   `json:"t"` // ms
	Seq uint64  `json:"seq"`
	O   float64 `json:"o"`
	H   float64 `json:"h"`
	L   float64 `json:"l"`
	C   float64 `json:"c"`
	V   float64 `json:"v"`
}

type feedMessage struct {
	Type string    `json:"type"`
	Data []feedBar `json:"data"`
}

// Read streams closed bars and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(bars)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-bar frames
					continue
				}
				if m.Type != "bar" {
					continue
				}
				for _, d := range m.Data {
					bar := &models.Bar{
						Instrument: d.S,
						Timeframe:  d.TF,
						Timestamp:  time.UnixMilli(d.T).UTC(),
						Seq:        d.Seq,
						Open:       d.O,
						High:       d.H,
						Low:        d.L,
						Close:      d.C,
						Volume:     d.V,
					}
					select {
					case bars <- bar:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
