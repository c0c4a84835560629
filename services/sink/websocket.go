package sink

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"telemetry-logger/utils"
)

const wsWriteTimeout = 2 * time.Second

// WebSocketSink broadcasts each record as one binary frame to every
// connected ground-station client. Each client has its own bounded queue;
// a slow client loses records without affecting the others or the loop.
type WebSocketSink struct {
	path       string
	clientBuf  int
	upgrader   websocket.Upgrader
	server     *http.Server
	mu         sync.RWMutex
	clients    map[*wsClient]struct{}
	closed     bool
	wg         sync.WaitGroup
	dropped    uint64
	broadcasts uint64
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.send) })
}

// NewWebSocketSink returns a sink serving clients on path. Call Serve to
// listen on an address, or mount Handler on an existing server.
func NewWebSocketSink(path string, clientBuf int) *WebSocketSink {
	if path == "" {
		path = "/records"
	}
	if clientBuf <= 0 {
		clientBuf = 256
	}
	return &WebSocketSink{
		path:      path,
		clientBuf: clientBuf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (s *WebSocketSink) Name() string { return "websocket" }

// Handler returns the HTTP handler that upgrades client connections.
func (s *WebSocketSink) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleUpgrade)
	return mux
}

// Serve listens on addr until ctx is cancelled or Close is called.
func (s *WebSocketSink) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	utils.L().Info("websocket sink listening  addr=%s path=%s", addr, s.path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebSocketSink) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.L().Warn("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, s.clientBuf)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	utils.L().Info("websocket client connected  remote=%s", r.RemoteAddr)
	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop owns all writes on the connection.
func (s *WebSocketSink) writeLoop(c *wsClient) {
	defer s.wg.Done()
	defer c.conn.Close()
	for rec := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, rec); err != nil {
			s.remove(c)
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

// readLoop only watches for the client going away.
func (s *WebSocketSink) readLoop(c *wsClient) {
	defer s.wg.Done()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

func (s *WebSocketSink) remove(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		c.stop()
		utils.L().Info("websocket client disconnected  remote=%s", c.conn.RemoteAddr())
	}
}

// Write queues a copy of record for every client. It never blocks.
func (s *WebSocketSink) Write(record []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return http.ErrServerClosed
	}
	if len(s.clients) == 0 {
		return nil
	}
	buf := append([]byte(nil), record...)
	var dropped bool
	for c := range s.clients {
		select {
		case c.send <- buf:
		default:
			dropped = true
			atomic.AddUint64(&s.dropped, 1)
		}
	}
	atomic.AddUint64(&s.broadcasts, 1)
	if dropped {
		return ErrDropped
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *WebSocketSink) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and stops the listener, if any.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := s.clients
	s.clients = map[*wsClient]struct{}{}
	srv := s.server
	s.mu.Unlock()

	for c := range clients {
		c.stop()
		// unblock readLoop
		_ = c.conn.SetReadDeadline(time.Now())
	}

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = srv.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}
