package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sorvik/glossa/pkg/logger"
)

// Config holds connection parameters for the streaming recognizer service
type Config struct {
	URL             string
	APIKey          string
	Language        string
	Model           string
	SampleRate      int
	Channels        int
	InterimResults  bool
	MaxAlternatives int
	DialRetries     int
	DialInterval    time.Duration
}

// Dialer opens configured connections to the recognizer service
type Dialer struct {
	cfg    Config
	logger *logger.Logger
}

// NewDialer creates a dialer for the given recognizer endpoint
func NewDialer(cfg Config, log *logger.Logger) *Dialer {
	if cfg.DialRetries < 1 {
		cfg.DialRetries = 1
	}
	if cfg.DialInterval <= 0 {
		cfg.DialInterval = 2 * time.Second
	}
	return &Dialer{
		cfg:    cfg,
		logger: log.Named("recognizer"),
	}
}

// Dial establishes a WebSocket connection and sends the streaming
// configuration as the first message. Connection attempts are retried with a
// fixed interval before giving up.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	var conn *websocket.Conn
	var lastErr error
	for attempt := 1; attempt <= d.cfg.DialRetries; attempt++ {
		c, resp, err := dialer.DialContext(ctx, d.cfg.URL, header)
		if err == nil {
			conn = c
			break
		}
		lastErr = err
		status := 0
		if resp != nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		d.logger.Warn("Recognizer connection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", d.cfg.DialRetries),
			logger.Int("status", status),
			logger.Error(err))
		if attempt == d.cfg.DialRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.DialInterval):
		}
	}
	if conn == nil {
		return nil, fmt.Errorf("failed to connect to recognizer after %d attempts: %w", d.cfg.DialRetries, lastErr)
	}

	wc := &Conn{
		conn:      conn,
		logger:    d.logger,
		closeChan: make(chan struct{}),
	}

	start := StartMessage{
		Type: MessageTypeStart,
		Config: StreamingConfig{
			Encoding:        "pcm_s16le",
			SampleRateHertz: d.cfg.SampleRate,
			LanguageCode:    d.cfg.Language,
			Model:           d.cfg.Model,
			MaxAlternatives: d.cfg.MaxAlternatives,
			InterimResults:  d.cfg.InterimResults,
		},
	}
	if err := wc.sendJSON(start); err != nil {
		wc.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	d.logger.Debug("Recognizer connection established",
		logger.String("url", d.cfg.URL),
		logger.String("language", d.cfg.Language))
	return wc, nil
}

// Conn is one live WebSocket connection to the recognizer. Outbound sends are
// serialized with a mutex; Receive must be called from a single goroutine.
type Conn struct {
	conn      *websocket.Conn
	logger    *logger.Logger
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
}

func (c *Conn) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendAudio transmits one binary audio frame
func (c *Conn) SendAudio(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Receive blocks until the next recognizer response arrives. Frames that do
// not parse as JSON are logged and skipped; network errors are returned to
// the caller.
func (c *Conn) Receive() (*Response, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeChan:
				return nil, fmt.Errorf("connection closed")
			default:
			}
			return nil, fmt.Errorf("failed to read from recognizer: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("Skipping unparseable recognizer frame", logger.Error(err))
			continue
		}
		return &resp, nil
	}
}

// Close shuts down the connection. Safe to call multiple times and
// concurrently with Receive; a blocked Receive returns once the underlying
// connection closes.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeChan)
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}
