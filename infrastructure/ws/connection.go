package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Options struct {
	InboundQueue  int
	OutboundQueue int
	ReadLimit     int64
	PongWait      time.Duration
	PingPeriod    time.Duration
	WriteWait     time.Duration
	RateLimit     rate.Limit // inbound events per second, 0 disables limiting
	RateBurst     int
}

func DefaultOptions() Options {
	return Options{
		InboundQueue:  64,
		OutboundQueue: 256,
		ReadLimit:     64 * 1024,
		PongWait:      60 * time.Second,
		PingPeriod:    54 * time.Second,
		WriteWait:     10 * time.Second,
		RateLimit:     20,
		RateBurst:     40,
	}
}

// Connection is one client socket. A read loop decodes frames into the
// inbound queue, a processing loop handles them one at a time in arrival
// order and a write loop drains the outgoing queue.
type Connection struct {
	id         string
	authUserID string
	ws         *websocket.Conn
	opts       Options
	limiter    *rate.Limiter
	inbound    chan event.Inbound
	outgoing   chan event.Outbound
	closed     chan struct{}
	closeOnce  sync.Once
	metrics    *observability.Metrics
	log        *slog.Logger
}

func newConnection(id, authUserID string, ws *websocket.Conn, opts Options, metrics *observability.Metrics, log *slog.Logger) *Connection {
	c := &Connection{
		id:         id,
		authUserID: authUserID,
		ws:         ws,
		opts:       opts,
		inbound:    make(chan event.Inbound, opts.InboundQueue),
		outgoing:   make(chan event.Outbound, opts.OutboundQueue),
		closed:     make(chan struct{}),
		metrics:    metrics,
		log:        log.With("connection_id", id),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(opts.RateLimit, opts.RateBurst)
	}
	return c
}

func (c *Connection) ID() string { return c.id }

// AuthUserID is the identity proven at handshake, empty when tokens are disabled.
func (c *Connection) AuthUserID() string { return c.authUserID }

// Send enqueues evt without blocking. A client that doesn't keep up with its
// queue is disconnected.
func (c *Connection) Send(evt event.Outbound) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.outgoing <- evt:
		return nil
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
		c.log.Warn("Outgoing queue full, closing connection", "event", evt.Name)
		c.Close()
		return fmt.Errorf("%w: connection %s", errors.ErrSlowConsumer, c.id)
	}
}

// Close stops the loops. The write loop closes the socket, which unblocks the reader.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// serve blocks until the connection is gone and the last inbound event is handled,
// then runs the disconnect cleanup.
func (c *Connection) serve(ctx context.Context, d *Dispatcher) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop()
	processed := make(chan struct{})
	go func() {
		defer close(processed)
		c.processLoop(ctx, d)
	}()

	c.readLoop()
	c.Close()
	<-processed
	d.Disconnect(c)
}

func (c *Connection) readLoop() {
	defer close(c.inbound)
	c.ws.SetReadLimit(c.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection lost", "error", err)
			}
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.reject("", errors.ErrRateLimited)
			continue
		}
		var in event.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Name == "" {
			c.reject("", fmt.Errorf("%w: frame must be {\"event\": ..., \"data\": ...}", errors.ErrProtocolViolation))
			continue
		}
		select {
		case c.inbound <- in:
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) processLoop(ctx context.Context, d *Dispatcher) {
	for in := range c.inbound {
		if err := d.Dispatch(ctx, c, in); err != nil {
			c.reject(in.Name, err)
		}
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		c.Close()
	}()

	for {
		select {
		case evt := <-c.outgoing:
			if err := c.write(evt); err != nil {
				c.log.Debug("Write failed", "event", evt.Name, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) write(evt event.Outbound) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		c.log.Error("Cannot encode outbound event", "event", evt.Name, "error", err)
		return nil
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// reject answers the originating connection only.
func (c *Connection) reject(name event.Name, err error) {
	msg, classified := errors.ClientMessage(err)
	if !classified {
		c.log.Error("Event failed", "event", name, "error", err)
	} else {
		c.log.Debug("Event rejected", "event", name, "error", err)
	}
	c.metrics.Rejected(reason(err))
	_ = c.Send(event.New(event.Error, event.ErrorPayload{Message: msg}))
}

func reason(err error) string {
	switch {
	case errors.Is(err, errors.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, errors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errors.ErrStoreFailure):
		return "store_failure"
	default:
		return "internal"
	}
}
