package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/simbridge/internal/codec"
	"github.com/OCAP2/simbridge/internal/dispatcher"
	"github.com/OCAP2/simbridge/pkg/streaming"
)

// Server answers command requests over WebSocket. Each connection is
// served by one goroutine, so replies go out in request order. A failed
// verb gets an empty reply; the client sees a decode error for typed verbs.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger
	upgrader   ws.Upgrader
	path       string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	conns    map[*ws.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup

	ownsDispatcher bool
}

// NewServer creates a server routing requests through d. An empty path
// uses streaming.CommandPath.
func NewServer(d *dispatcher.Dispatcher, path string, logger *slog.Logger) *Server {
	if path == "" {
		path = streaming.CommandPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: d,
		logger:     logger.With("component", "backend.server"),
		upgrader:   ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		path:       path,
		conns:      make(map[*ws.Conn]struct{}),
	}
}

// Listen registers svc on a new dispatcher and serves it on address.
// Closing the server closes the dispatcher.
func Listen(address string, svc *Service, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := dispatcher.New(logger)
	if err != nil {
		return nil, err
	}
	svc.RegisterHandlers(d)

	s := NewServer(d, "", logger)
	s.ownsDispatcher = true
	if err := s.Bind(address); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// Dispatcher returns the dispatcher requests are routed through.
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

// Handler returns the HTTP handler serving the command endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handle)
	return mux
}

// Bind starts listening on address (host:port).
func (s *Server) Bind(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("bind backend: %w", err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Backend server stopped", "error", err)
		}
	}()
	s.logger.Info("Backend listening", "address", ln.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound address, or "" if not bound.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close disconnects every client and stops the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.server = nil
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Close()
	}
	s.wg.Wait()
	if s.ownsDispatcher {
		s.dispatcher.Close()
	}
	return err
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.wg.Done()
	}()

	s.logger.Debug("Client connected", "remote", r.RemoteAddr)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("Client disconnected", "remote", r.RemoteAddr, "error", err)
			return
		}
		reply := s.Serve(data)
		if err := conn.WriteMessage(ws.TextMessage, reply); err != nil {
			s.logger.Debug("Reply failed", "error", err)
			return
		}
	}
}

// Serve handles one encoded request and returns the reply text.
func (s *Server) Serve(data []byte) []byte {
	var req streaming.Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("Malformed request", "error", err)
		return []byte{}
	}
	args, err := req.StringArgs()
	if err != nil {
		s.logger.Warn("Malformed request arguments", "verb", req.Verb, "error", err)
		return []byte{}
	}

	result, err := s.dispatcher.Dispatch(dispatcher.Event{Command: req.Verb, Args: args})
	if err != nil {
		s.logger.Warn("Verb failed", "verb", req.Verb, "error", err)
		return []byte{}
	}
	if result == nil {
		return []byte{}
	}

	out, err := codec.Encode(result)
	if err != nil {
		s.logger.Error("Could not encode reply", "verb", req.Verb, "error", err)
		return []byte{}
	}
	return out
}
