// Package telemetry streams simulation snapshots from the physics process to
// any number of observers over WebSocket. Delivery is at-most-once: neither
// side waits for the other, and a slow observer simply misses frames.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/simbridge/internal/codec"
	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/pkg/core"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

const instrumentationName = "github.com/OCAP2/simbridge/internal/telemetry"

const (
	defaultSendBuffer = 16
	defaultWriteWait  = 5 * time.Second
)

// ErrNotBound is returned by Publish before Bind succeeded or after Close.
var ErrNotBound = errors.New("publisher not bound")

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Path       string        // upgrade path, defaults to streaming.TelemetryPath
	Pace       time.Duration // sleep after each publish; zero disables pacing
	SendBuffer int           // frames queued per subscriber before dropping
	WriteWait  time.Duration
}

// Publisher broadcasts encoded snapshots to every connected subscriber.
type Publisher struct {
	cfg      PublisherConfig
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	clients  map[*client]struct{}
	closed   bool

	frames     metric.Int64Counter
	dropped    metric.Int64Counter
	suppressed metric.Int64Counter
}

type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewPublisher creates an unbound publisher.
func NewPublisher(cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if cfg.Path == "" {
		cfg.Path = streaming.TelemetryPath
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:      cfg,
		logger:   logger.With("component", "telemetry.publisher"),
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),

		frames:     intotel.Counter(instrumentationName, "telemetry.publisher.frames", "Snapshots broadcast"),
		dropped:    intotel.Counter(instrumentationName, "telemetry.publisher.dropped", "Frames dropped for slow subscribers"),
		suppressed: intotel.Counter(instrumentationName, "telemetry.publisher.suppressed", "Snapshots rejected as invalid"),
	}
}

// Bind starts listening on address (host:port) and serving subscribers.
func (p *Publisher) Bind(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("bind telemetry publisher: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(p.cfg.Path, p.handle)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ln.Close()
		return ErrNotBound
	}
	p.server = srv
	p.listener = ln
	p.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Telemetry server stopped", "error", err)
		}
	}()

	p.logger.Info("Telemetry publisher bound", "address", ln.Addr().String(), "path", p.cfg.Path)
	return nil
}

// Addr returns the bound address, or "" if not bound.
func (p *Publisher) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Subscribers returns the number of connected subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Publish encodes snapshot and hands it to every subscriber without
// waiting for delivery, then sleeps for the configured pace.
func (p *Publisher) Publish(snapshot core.SimulationSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		p.suppressed.Add(context.Background(), 1)
		return err
	}

	data, err := codec.Encode(snapshot)
	if err != nil {
		return err
	}

	if err := p.broadcast(data); err != nil {
		return err
	}

	if p.cfg.Pace > 0 {
		time.Sleep(p.cfg.Pace)
	}
	return nil
}

func (p *Publisher) broadcast(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.listener == nil {
		return ErrNotBound
	}

	ctx := context.Background()
	for c := range p.clients {
		select {
		case c.sendCh <- data:
		default:
			p.dropped.Add(ctx, 1)
		}
	}
	p.frames.Add(ctx, 1)
	return nil
}

func (p *Publisher) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("Subscriber upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn:   conn,
		sendCh: make(chan []byte, p.cfg.SendBuffer),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	p.clients[c] = struct{}{}
	p.mu.Unlock()

	p.logger.Info("Subscriber connected", "remote", r.RemoteAddr)

	go p.writeLoop(c)

	// Subscribers never send; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	p.remove(c)
	p.logger.Info("Subscriber disconnected", "remote", r.RemoteAddr)
}

func (p *Publisher) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait)); err != nil {
				p.remove(c)
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				p.logger.Debug("Telemetry write failed", "error", err)
				p.remove(c)
				return
			}
		}
	}
}

func (p *Publisher) remove(c *client) {
	c.once.Do(func() {
		p.mu.Lock()
		delete(p.clients, c)
		p.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	})
}

// Close stops serving and disconnects every subscriber.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	srv := p.server
	clients := make([]*client, 0, len(p.clients))
	for c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.remove(c)
	}

	if srv != nil {
		if err := srv.Close(); err != nil {
			return fmt.Errorf("close telemetry server: %w", err)
		}
	}
	p.logger.Info("Telemetry publisher closed")
	return nil
}
