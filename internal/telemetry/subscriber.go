package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/simbridge/internal/codec"
	intotel "github.com/OCAP2/simbridge/internal/otel"
	"github.com/OCAP2/simbridge/internal/queue"
	"github.com/OCAP2/simbridge/pkg/core"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

const (
	DefaultBufferSize = 10
	DefaultTimeout    = time.Second
	DefaultBackoff    = 500 * time.Millisecond
)

// ErrEmptyBuffer is returned by TakeNext when no snapshot is buffered.
var ErrEmptyBuffer = errors.New("telemetry buffer is empty")

// SubscriberConfig configures a Subscriber.
type SubscriberConfig struct {
	Path       string
	BufferSize int
	Timeout    time.Duration // read deadline per frame
	Backoff    time.Duration // sleep before redialing
}

// Subscriber receives snapshots into a small drop-oldest buffer. A single
// goroutine owns the connection and is the only writer to the buffer.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *slog.Logger
	buffer *queue.Ring[core.SimulationSnapshot]
	dialer *ws.Dialer

	mu      sync.Mutex
	url     string
	conn    *ws.Conn
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	received  metric.Int64Counter
	evicted   metric.Int64Counter
	malformed metric.Int64Counter
}

// NewSubscriber creates a subscriber. Zero config fields take their defaults.
func NewSubscriber(cfg SubscriberConfig, logger *slog.Logger) *Subscriber {
	if cfg.Path == "" {
		cfg.Path = streaming.TelemetryPath
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:    cfg,
		logger: logger.With("component", "telemetry.subscriber"),
		buffer: queue.NewRing[core.SimulationSnapshot](cfg.BufferSize),
		dialer: &ws.Dialer{HandshakeTimeout: cfg.Timeout},

		received:  intotel.Counter(instrumentationName, "telemetry.subscriber.received", "Snapshots received"),
		evicted:   intotel.Counter(instrumentationName, "telemetry.subscriber.evicted", "Buffered snapshots overwritten before being taken"),
		malformed: intotel.Counter(instrumentationName, "telemetry.subscriber.malformed", "Frames that failed to decode"),
	}
}

// Connect records the publisher address (host:port) and tries a first dial.
// A failed dial is not an error: the receive loop keeps retrying.
func (s *Subscriber) Connect(address string) error {
	u := url.URL{Scheme: "ws", Host: address, Path: s.cfg.Path}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("invalid telemetry address %q: %w", address, err)
	}

	s.mu.Lock()
	s.url = u.String()
	s.mu.Unlock()

	if err := s.dial(); err != nil {
		s.logger.Warn("Telemetry publisher not reachable yet", "url", u.String(), "error", err)
	}
	return nil
}

// StartListening starts the receive loop. Later calls are no-ops.
func (s *Subscriber) StartListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.receiveLoop(ctx)
}

// IsDataAvailable reports whether TakeNext would return a snapshot.
func (s *Subscriber) IsDataAvailable() bool {
	return s.buffer.Len() > 0
}

// TakeNext removes and returns the most recently received snapshot.
func (s *Subscriber) TakeNext() (core.SimulationSnapshot, error) {
	snap, ok := s.buffer.PopNewest()
	if !ok {
		return core.SimulationSnapshot{}, ErrEmptyBuffer
	}
	return snap, nil
}

// Buffered returns the number of snapshots waiting to be taken.
func (s *Subscriber) Buffered() int {
	return s.buffer.Len()
}

// Close stops the receive loop and closes the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		// Unblocks a pending read in the receive loop.
		err = conn.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Subscriber) dial() error {
	s.mu.Lock()
	target := s.url
	s.mu.Unlock()
	if target == "" {
		return errors.New("no telemetry address configured")
	}

	conn, _, err := s.dialer.Dial(target, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *Subscriber) current() *ws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Subscriber) drop(conn *ws.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Subscriber) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if conn := s.current(); conn != nil {
			s.drop(conn)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		conn := s.current()
		if conn == nil {
			if err := s.dial(); err != nil {
				s.waiting(ctx, err)
				continue
			}
			conn = s.current()
			if conn == nil {
				continue
			}
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
			s.drop(conn)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// gorilla connections are unusable after a read timeout, so any
			// read error means redial.
			s.drop(conn)
			s.waiting(ctx, err)
			continue
		}

		s.accept(ctx, data)
	}
}

func (s *Subscriber) accept(ctx context.Context, data []byte) {
	snap, err := codec.Decode[core.SimulationSnapshot](data)
	if err != nil {
		s.malformed.Add(ctx, 1)
		s.logger.Warn("Discarding malformed telemetry frame", "error", err, "bytes", len(data))
		return
	}

	s.received.Add(ctx, 1)
	if s.buffer.Push(snap) {
		s.evicted.Add(ctx, 1)
	}
}

func (s *Subscriber) waiting(ctx context.Context, cause error) {
	s.logger.Info("Waiting for telemetry", "reason", cause)
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.Backoff):
	}
}
