package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/infra"
)

// ClientConn is the read side of a subscriber connection.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens subscriber connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (ClientConn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (ClientConn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

// ScheduleFunc runs f after d.
type ScheduleFunc func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type ClientOptions struct {
	URL    string
	Dialer Dialer
	// Seed is the first reconnect delay; Ceiling defaults to 30*Seed.
	Seed    time.Duration
	Ceiling time.Duration
	// OnInvalidate fires when a completed or error envelope arrives, so the
	// owner can refetch its job list.
	OnInvalidate func(jobID string)
	OnProgress   func(event domain.ProgressEvent)
	Schedule     ScheduleFunc
	Logger       *infra.Logger
}

// Client keeps the latest progress event per job from a progress stream and
// reconnects with exponential backoff whenever the stream closes.
type Client struct {
	opts   ClientOptions
	logger infra.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      ClientConn
	connected bool
	closed    bool
	attempts  int
	timer     Timer
	entries   map[string]domain.ProgressEvent
	order     []string
}

func NewClient(opts ClientOptions) *Client {
	if opts.Seed <= 0 {
		opts.Seed = DefaultBackoffSeed
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = 30 * opts.Seed
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Schedule == nil {
		opts.Schedule = afterFunc
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "progress_client").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]domain.ProgressEvent),
	}
}

// Start schedules the first connection attempt and returns immediately.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timer != nil || c.conn != nil {
		return
	}
	c.timer = c.opts.Schedule(0, c.connect)
}

// Close stops reconnecting and closes the open connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Progress returns a copy of the job to latest event map.
func (c *Client) Progress() map[string]domain.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.ProgressEvent, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Current returns the earliest-inserted event still in flight.
func (c *Client) Current() (domain.ProgressEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.order {
		if ev, ok := c.entries[id]; ok && !ev.Stage.Terminal() {
			return ev, true
		}
	}
	return domain.ProgressEvent{}, false
}

func (c *Client) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	conn, err := c.opts.Dialer.Dial(c.ctx, c.opts.URL)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", c.opts.URL).Msg("dial failed")
		c.handleClose(nil)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()
	c.logger.Debug().Str("url", c.opts.URL).Msg("connected")

	go c.readLoop(conn)
}

func (c *Client) readLoop(conn ClientConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn)
			return
		}
		c.handleMessage(data)
	}
}

// handleClose schedules the next reconnect. conn is nil for a failed dial.
func (c *Client) handleClose(conn ClientConn) {
	c.mu.Lock()
	if c.closed || (conn != nil && c.conn != conn) {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.attempts++
	delay := Backoff(c.attempts, c.opts.Seed, c.opts.Ceiling)
	c.timer = c.opts.Schedule(delay, c.connect)
	attempt := c.attempts
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")
}

func (c *Client) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Debug().Err(err).Msg("ignoring malformed envelope")
		return
	}
	switch env.Type {
	case TypeProgress:
		var ev domain.ProgressEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil || ev.JobID == "" {
			return
		}
		c.apply(ev)
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(ev)
		}
	case TypeCompleted, TypeError:
		var ref struct {
			JobID string `json:"jobId"`
		}
		if err := json.Unmarshal(env.Data, &ref); err != nil {
			return
		}
		c.forget(ref.JobID)
		if c.opts.OnInvalidate != nil {
			c.opts.OnInvalidate(ref.JobID)
		}
	}
}

func (c *Client) apply(ev domain.ProgressEvent) {
	if ev.Stage.Terminal() {
		c.forget(ev.JobID)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[ev.JobID]; !ok {
		c.order = append(c.order, ev.JobID)
	}
	c.entries[ev.JobID] = ev
}

func (c *Client) forget(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[jobID]; !ok {
		return
	}
	delete(c.entries, jobID)
	for i, id := range c.order {
		if id == jobID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
