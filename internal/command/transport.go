package command

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	replyChSize = 16
	writeWait   = 5 * time.Second
)

// ErrClosed is returned by a transport after Close.
var ErrClosed = errors.New("command transport closed")

// Transport moves one request out and one reply back. Implementations are
// not expected to match replies to requests; Channel guarantees a single
// outstanding request.
type Transport interface {
	Send(data []byte) error
	// Receive blocks for the next reply, returning ErrTimeout after timeout.
	Receive(timeout time.Duration) ([]byte, error)
	// Drain discards replies that arrived after their caller gave up.
	// Replies carry no request ID, so a late reply that lands after Drain
	// and before the next Receive is taken as the answer to the new request.
	Drain()
	Close() error
}

// wsTransport is a Transport over a single WebSocket connection. A read
// goroutine feeds replyCh; writes happen synchronously on the caller.
type wsTransport struct {
	mu      sync.Mutex
	conn    *ws.Conn
	replyCh chan []byte
	done    chan struct{}
	closed  bool

	wsURL  string
	logger *slog.Logger
}

// Dial connects to a command backend at rawURL (ws://host:port/command).
func Dial(rawURL string, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &wsTransport{
		replyCh: make(chan []byte, replyChSize),
		done:    make(chan struct{}),
		wsURL:   rawURL,
		logger:  logger.With("component", "command.transport"),
	}

	conn, err := t.dialOnce()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return t, nil
}

func (t *wsTransport) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(t.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid command URL: %w", err)
	}
	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("command dial failed: %w", err)
	}
	return conn, nil
}

// readLoop routes every inbound message to replyCh until conn fails.
func (t *wsTransport) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			t.logger.Warn("Command connection read error", "error", err)
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			t.mu.Unlock()
			_ = conn.Close()
			return
		}

		select {
		case t.replyCh <- message:
		default:
			t.logger.Debug("Reply channel full, dropping", "bytes", len(message))
		}
	}
}

// Send writes data, redialing once if the previous connection was lost.
func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.conn == nil {
		conn, err := t.dialOnce()
		if err != nil {
			return err
		}
		t.conn = conn
		go t.readLoop(conn)
		t.logger.Info("Command connection re-established")
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(ws.TextMessage, data); err != nil {
		return fmt.Errorf("command write failed: %w", err)
	}
	return nil
}

func (t *wsTransport) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-t.replyCh:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-t.done:
		return nil, ErrClosed
	}
}

func (t *wsTransport) Drain() {
	for {
		select {
		case <-t.replyCh:
		default:
			return
		}
	}
}

// Close sends a close frame and stops the read goroutine.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
