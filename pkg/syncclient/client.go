// Package syncclient subscribes to a sync relay room over server-sent events
// and reconnects with exponential backoff when the stream drops.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventHello = "hello"
	EventPatch = "patch"
	EventPing  = "ping"
)

type Handler func(Message)

type Options struct {
	// Endpoint is the relay URL, e.g. http://localhost:8787/sync.
	Endpoint string
	Room     string
	UID      string
	Token    string

	HTTPClient  *http.Client
	BaseDelay   time.Duration
	MaxAttempts int
}

// Client holds at most one open stream. After MaxAttempts consecutive
// failed reconnects it stops until Connect is called again.
type Client struct {
	endpoint    *url.URL
	room        string
	uid         string
	token       string
	httpClient  *http.Client
	baseDelay   time.Duration
	maxAttempts int

	mu        sync.Mutex
	handlers  map[string][]Handler
	active    *stream
	stopTimer func() bool
	epoch     int
	attempts  int
	gaveUp    bool

	jitter   func() float64
	schedule func(time.Duration, func()) func() bool
}

type stream struct {
	cancel context.CancelFunc
}

func New(opts Options) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimSpace(opts.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("parse endpoint: %q is not an absolute url", opts.Endpoint)
	}

	client := &Client{
		endpoint:    endpoint,
		room:        strings.TrimSpace(opts.Room),
		uid:         strings.TrimSpace(opts.UID),
		token:       opts.Token,
		httpClient:  opts.HTTPClient,
		baseDelay:   opts.BaseDelay,
		maxAttempts: opts.MaxAttempts,
		handlers:    make(map[string][]Handler),
		jitter:      rand.Float64,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	if client.room == "" {
		client.room = "default"
	}
	if client.uid == "" {
		client.uid = uuid.NewString()
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
	}
	if client.baseDelay <= 0 {
		client.baseDelay = DefaultBaseDelay
	}
	if client.maxAttempts <= 0 {
		client.maxAttempts = DefaultMaxAttempts
	}
	return client, nil
}

func (c *Client) UID() string {
	return c.uid
}

// On registers h for frames of the given kind (hello, patch or ping).
func (c *Client) On(kind string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

// Connect opens the stream unless one is already open. A pending reconnect
// is replaced by the immediate attempt.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectLocked()
}

func (c *Client) connectLocked() {
	if c.active != nil {
		return
	}
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.gaveUp = false

	ctx, cancel := context.WithCancel(context.Background())
	st := &stream{cancel: cancel}
	c.active = st
	go c.serve(ctx, st)
}

// Close ends the current stream and cancels any pending reconnect.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	if c.active != nil {
		c.active.cancel()
		c.active = nil
	}
}

// Attempts is the number of consecutive reconnects since the last hello.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// GaveUp reports whether the client stopped reconnecting.
func (c *Client) GaveUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gaveUp
}

func (c *Client) serve(ctx context.Context, st *stream) {
	err := c.run(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	st.cancel()
	if c.active != st {
		return
	}
	c.active = nil
	log.Printf("[sync] stream error room=%s uid=%s, reconnecting: %v", c.room, c.uid, err)
	c.scheduleReconnectLocked()
}

func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.maxAttempts {
		c.gaveUp = true
		log.Printf("[sync] max reconnect attempts reached room=%s uid=%s", c.room, c.uid)
		return
	}
	c.attempts++
	delay := Backoff(c.baseDelay, c.attempts, c.jitter())
	epoch := c.epoch
	c.stopTimer = c.schedule(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return
		}
		c.stopTimer = nil
		c.connectLocked()
	})
}

func (c *Client) run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return readEvents(resp.Body, c.dispatch)
}

func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	if msg.Type == EventHello {
		c.attempts = 0
		c.gaveUp = false
	}
	handlers := append([]Handler(nil), c.handlers[msg.Type]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Publish sends payload to the room once. Failures are logged and dropped.
func (c *Client) Publish(ctx context.Context, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(payload))
	if err != nil {
		log.Printf("[sync] publish error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[sync] publish error: %v", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[sync] publish failed: %d", resp.StatusCode)
	}
}

// PublishJSON encodes v and publishes it.
func (c *Client) PublishJSON(ctx context.Context, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[sync] publish encode error: %v", err)
		return
	}
	c.Publish(ctx, payload)
}

func (c *Client) url() string {
	u := *c.endpoint
	query := u.Query()
	query.Set("room", c.room)
	query.Set("uid", c.uid)
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
