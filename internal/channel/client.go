// Package channel is the client side of the per-document broadcast channel
// that relays content snapshots and cursor positions between sessions.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"notespace/client/internal/content"
	"notespace/client/internal/metrics"
)

var ErrNotConnected = errors.New("sync channel not connected")

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Handler receives inbound messages from other sessions, already filtered
// and with canonical types.
type Handler func(Message)

// Identity is the user this session acts for.
type Identity struct {
	UserID   content.ID
	Username string
}

type Config struct {
	// BaseURL is the ws:// or wss:// root of the broadcast server.
	BaseURL        string
	ReconnectDelay time.Duration
	// CursorRate caps outbound cursor messages per second; zero disables the cap.
	CursorRate float64
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	cfg       Config
	identity  Identity
	sessionID string
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	state         State
	handlers      []Handler
	stateHandlers []func(State)
	closed        bool
	cancel        context.CancelFunc
	done          chan struct{}

	writeMu sync.Mutex
}

// New creates a client with a fresh session id. The id tags every message
// this client sends so its own echoes can be recognised.
func New(cfg Config, identity Identity) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:       cfg,
		identity:  identity,
		sessionID: uuid.NewString(),
		logger:    logger.With("component", "channel"),
		state:     StateDisconnected,
	}
	if cfg.CursorRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.CursorRate), 1)
	}
	return c
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) OnMessage(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// DocumentURL builds the channel endpoint for a document.
func DocumentURL(base string, documentID content.ID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/documents/" + url.PathEscape(documentID.String()) + "/")
	if err != nil {
		return "", fmt.Errorf("parse sync url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Connect opens the channel for documentID and keeps it open, reconnecting
// after abnormal closures, until Close is called or ctx ends. It returns the
// result of the first attempt; a failed first attempt keeps retrying in the
// background.
func (c *Client) Connect(ctx context.Context, documentID content.ID, token string) error {
	endpoint, err := DocumentURL(c.cfg.BaseURL, documentID, token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return errors.New("sync channel already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.closed = false
	c.mu.Unlock()

	first := make(chan error, 1)
	go c.run(runCtx, endpoint, first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) run(ctx context.Context, endpoint string, first chan<- error) {
	defer close(c.done)
	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			first <- err
		}
	}

	for {
		c.setState(StateConnecting)
		conn, _, err := c.cfg.Dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			c.logger.Warn("sync channel dial failed", "error", err)
			report(fmt.Errorf("dial sync channel: %w", err))
			c.setState(StateError)
			if !c.wait(ctx) {
				c.setState(StateDisconnected)
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			report(ErrNotConnected)
			c.setState(StateDisconnected)
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.setState(StateConnected)
		report(nil)
		if err := c.Send(Message{Type: TypeCursorConnect}); err != nil {
			c.logger.Warn("announce cursor", "error", err)
		}

		err = c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		closing := c.closed
		c.mu.Unlock()
		conn.Close()

		if closing || ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			c.setState(StateDisconnected)
			return
		}
		c.logger.Info("sync channel lost, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)
		c.setState(StateError)
		if !c.wait(ctx) {
			c.setState(StateDisconnected)
			return
		}
	}
}

// wait sleeps for the reconnect delay and reports whether to try again.
func (c *Client) wait(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("drop malformed channel message", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	msg.Type = msg.Type.Canonical()
	if !msg.Type.known() {
		c.logger.Debug("ignore channel message", "type", msg.Type)
		return
	}
	if msg.origin() == c.sessionID {
		return
	}
	c.cfg.Metrics.ChannelMessage("in", string(msg.Type))

	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Send stamps msg with this session's identity and writes it. Cursor
// messages over the configured rate are dropped, except departures.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if msg.Type == TypeDocumentUpdate {
		msg.SenderID = c.sessionID
	} else {
		msg.CursorID = c.sessionID
	}
	if msg.UserID == "" {
		msg.UserID = c.identity.UserID
	}
	if msg.Username == "" {
		msg.Username = c.identity.Username
	}
	if msg.Type == TypeCursorUpdate && msg.Position != nil && c.limiter != nil && !c.limiter.Allow() {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	c.cfg.Metrics.ChannelMessage("out", string(msg.Type))
	return nil
}

// Close detaches with a normal closure and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handlers := append(([]func(State))(nil), c.stateHandlers...)
	c.mu.Unlock()

	c.cfg.Metrics.ChannelState(string(s))
	for _, fn := range handlers {
		fn(s)
	}
}
