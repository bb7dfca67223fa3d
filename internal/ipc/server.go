package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/winwatch/internal/metrics"
	"github.com/1broseidon/winwatch/internal/runtimepath"
	"github.com/1broseidon/winwatch/internal/watcher"
)

const (
	// DefaultQueueSize is the per-subscriber event queue length.
	DefaultQueueSize = 64

	writeTimeout = 5 * time.Second
)

// ServerConfig holds configuration for the IPC server.
type ServerConfig struct {
	// SocketPath defaults to runtimepath.SocketPath().
	SocketPath string
	// QueueSize bounds each SUBSCRIBE stream; events beyond it are dropped.
	QueueSize int
	Recent    *Recent
	// Metrics is optional.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	listener   net.Listener
	engine     *watcher.Engine
	recent     *Recent
	queueSize  int
	metrics    *metrics.Metrics
	logger     *slog.Logger
	startTime  time.Time

	subscribers atomic.Int64

	quit         chan struct{}
	wg           sync.WaitGroup
	shutdownMu   sync.Mutex
	shuttingDown bool
	conns        map[net.Conn]struct{}
}

// NewServer creates a new IPC server
func NewServer(engine *watcher.Engine, cfg ServerConfig) (*Server, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	recent := cfg.Recent
	if recent == nil {
		recent = NewRecent(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		socketPath: socketPath,
		engine:     engine,
		recent:     recent,
		queueSize:  queueSize,
		metrics:    cfg.Metrics,
		logger:     logger,
		startTime:  time.Now(),
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// A socket that still accepts connections belongs to a live daemon.
	if conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("daemon already listening on %s", s.socketPath)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing() {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) closing() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

func (s *Server) track(conn net.Conn) bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.shutdownMu.Lock()
	delete(s.conns, conn)
	s.shutdownMu.Unlock()
	conn.Close()
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Debug("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.send(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	if req.Command == CommandSubscribe {
		s.handleSubscribe(conn, reader, req.Payload)
		return
	}

	s.send(conn, s.handleCommand(req))
}

// handleCommand processes a request/response command
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandListWindows:
		return s.handleListWindows()
	case CommandGetActiveWindow:
		return s.handleGetActiveWindow()
	case CommandGetMonitors:
		return s.handleGetMonitors()
	case CommandRecentEvents:
		return s.handleRecentEvents(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleGetStatus() *Response {
	status := StatusData{
		Running:        s.engine.Running(),
		TrackedWindows: len(s.engine.Tracked()),
		Subscribers:    int(s.subscribers.Load()),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		PollIntervalMS: s.engine.Interval().Milliseconds(),
		Capabilities:   s.engine.Capabilities().Names(),
	}
	return okResponse(status)
}

func (s *Server) handleListWindows() *Response {
	windows, err := s.engine.Windows()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list windows: %v", err))
	}
	data := WindowsData{Windows: make([]WindowData, 0, len(windows))}
	for _, w := range windows {
		data.Windows = append(data.Windows, NewWindowData(w))
	}
	return okResponse(data)
}

func (s *Server) handleGetActiveWindow() *Response {
	w, err := s.engine.ActiveWindow()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get active window: %v", err))
	}
	return okResponse(NewWindowData(w))
}

func (s *Server) handleGetMonitors() *Response {
	monitors, err := s.engine.Monitors()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get monitors: %v", err))
	}
	data := MonitorsData{Monitors: make([]MonitorData, 0, len(monitors))}
	for _, m := range monitors {
		data.Monitors = append(data.Monitors, NewMonitorData(m))
	}
	return okResponse(data)
}

func (s *Server) handleRecentEvents(payload json.RawMessage) *Response {
	var req RecentEventsPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid recent events payload: %v", err))
		}
	}
	if req.Type != "" && !watcher.EventType(req.Type).Valid() {
		return NewErrorResponse(fmt.Sprintf("Unknown event type: %s", req.Type))
	}

	events := s.recent.Snapshot(req.Limit, req.Type)
	if events == nil {
		events = []EventRecord{}
	}
	return okResponse(EventsData{Events: events})
}

// subscriber is the queue between the polling goroutine and one stream.
type subscriber struct {
	types   []watcher.EventType
	queue   chan EventRecord
	dropped atomic.Int64
	metrics *metrics.Metrics
}

func newSubscriber(types []watcher.EventType, size int, m *metrics.Metrics) *subscriber {
	return &subscriber{types: types, queue: make(chan EventRecord, size), metrics: m}
}

// handle runs on the polling goroutine and never blocks it.
func (sub *subscriber) handle(ev watcher.Event) {
	if !slices.Contains(sub.types, ev.Type) {
		return
	}
	sub.offer(NewEventRecord(ev))
}

func (sub *subscriber) offer(rec EventRecord) bool {
	select {
	case sub.queue <- rec:
		return true
	default:
		sub.dropped.Add(1)
		if sub.metrics != nil {
			sub.metrics.DroppedEvents.Inc()
		}
		return false
	}
}

// handleSubscribe streams events until the client disconnects or the
// server stops. The stream holds one engine interest for its lifetime.
func (s *Server) handleSubscribe(conn net.Conn, reader *bufio.Reader, payload json.RawMessage) {
	var req SubscribePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.send(conn, NewErrorResponse(fmt.Sprintf("Invalid subscribe payload: %v", err)))
			return
		}
	}
	types, err := ParseEventTypes(req.Types)
	if err != nil {
		s.send(conn, NewErrorResponse(err.Error()))
		return
	}

	sub := newSubscriber(types, s.queueSize, s.metrics)
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	if !s.send(conn, okResponse(SubscribeData{Types: names, Queue: s.queueSize})) {
		return
	}

	handle := s.engine.SubscribeAll(sub.handle)
	s.subscriberAdded()
	defer func() {
		handle.Unsubscribe()
		s.subscriberRemoved()
		if n := sub.dropped.Load(); n > 0 {
			s.logger.Info("IPC subscriber dropped events", "dropped", n)
		}
	}()

	// The client sends nothing after the request; a read returning means
	// it hung up.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		io.Copy(io.Discard, reader)
	}()

	for {
		select {
		case rec := <-sub.queue:
			line, err := json.Marshal(rec)
			if err != nil {
				s.logger.Warn("IPC failed to marshal event", "error", err)
				continue
			}
			if !s.writeLine(conn, line) {
				return
			}
		case <-gone:
			return
		case <-s.quit:
			return
		}
	}
}

func (s *Server) subscriberAdded() {
	s.subscribers.Add(1)
	if s.metrics != nil {
		s.metrics.Subscribers.Inc()
	}
}

func (s *Server) subscriberRemoved() {
	s.subscribers.Add(-1)
	if s.metrics != nil {
		s.metrics.Subscribers.Dec()
	}
}

func okResponse(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// send writes resp as one line and reports whether it succeeded.
func (s *Server) send(conn net.Conn, resp *Response) bool {
	data, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("IPC failed to marshal response", "error", err)
		return false
	}
	return s.writeLine(conn, data)
}

func (s *Server) writeLine(conn net.Conn, data []byte) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(append(data, '\n')); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.logger.Debug("IPC write failed", "error", err)
		}
		return false
	}
	return true
}

// Stop closes the listener and every open connection, then waits for
// connection handlers to return.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	close(s.quit)
	for conn := range s.conns {
		conn.Close()
	}
	s.shutdownMu.Unlock()

	if s.listener == nil {
		return
	}
	s.listener.Close()
	s.wg.Wait()
	os.Remove(s.socketPath)
}
