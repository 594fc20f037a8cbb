// Package websocket serves a live feed of published snapshots to browser
// clients.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/citytwin/component"
	"github.com/c360/citytwin/errors"
	"github.com/c360/citytwin/metric"
	"github.com/c360/citytwin/pkg/timestamp"
	"github.com/c360/citytwin/snapshot"
)

const (
	writeTimeout   = 5 * time.Second
	pingInterval   = 30 * time.Second
	clientSendSize = 4
)

// FeedDeps holds runtime dependencies for the websocket feed
type FeedDeps struct {
	Name            string
	Host            string
	Port            int
	Path            string
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Feed broadcasts each published snapshot to all connected websocket
// clients. Delivery is at most once: a client whose send buffer is full
// misses that snapshot and simply receives the next one, there is no
// queueing or replay.
type Feed struct {
	name string
	host string
	port int
	path string

	logger   *slog.Logger
	upgrader websocket.Upgrader

	server    *http.Server
	listener  net.Listener
	clients   map[*websocket.Conn]*client
	clientsMu sync.RWMutex

	shutdown  chan struct{}
	running   atomic.Bool
	startTime time.Time
	wg        sync.WaitGroup

	sent    atomic.Int64
	skipped atomic.Int64

	metrics *Metrics
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	closeFn sync.Once
}

// envelope wraps every feed message with a type tag and send time
type envelope struct {
	Type      string             `json:"type"`
	Timestamp int64              `json:"timestamp"`
	Payload   *snapshot.Document `json:"payload"`
}

var _ component.Discoverable = (*Feed)(nil)
var _ component.LifecycleComponent = (*Feed)(nil)

// Metrics holds Prometheus metrics for the feed
type Metrics struct {
	clientsConnected prometheus.Gauge
	connectionsTotal prometheus.Counter
	messagesSent     prometheus.Counter
	messagesSkipped  prometheus.Counter
	bytesSent        prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Currently connected feed clients",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Feed connections accepted since start",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Snapshot messages delivered to clients",
		}),
		messagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "messages_skipped_total",
			Help:      "Snapshot messages dropped for clients with full buffers",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Bytes delivered to feed clients",
		}),
	}

	_ = registry.RegisterGauge("websocket", "clients_connected", m.clientsConnected)
	_ = registry.RegisterCounter("websocket", "connections_total", m.connectionsTotal)
	_ = registry.RegisterCounter("websocket", "messages_sent", m.messagesSent)
	_ = registry.RegisterCounter("websocket", "messages_skipped", m.messagesSkipped)
	_ = registry.RegisterCounter("websocket", "bytes_sent", m.bytesSent)

	return m
}

// NewFeed creates a websocket feed
func NewFeed(deps FeedDeps) *Feed {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "websocket-feed")
	}

	host := deps.Host
	if host == "" {
		host = "0.0.0.0"
	}
	path := deps.Path
	if path == "" {
		path = "/ws"
	}

	return &Feed{
		name:   deps.Name,
		host:   host,
		port:   deps.Port,
		path:   path,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16384,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]*client),
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
}

// Meta returns the component metadata
func (f *Feed) Meta() component.Metadata {
	name := f.name
	if name == "" {
		name = "websocket-feed"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("live snapshot feed on %s:%d%s", f.host, f.port, f.path),
		Version:     "1.0.0",
	}
}

// InputPorts returns no ports; snapshots arrive through Broadcast
func (f *Feed) InputPorts() []component.Port {
	return nil
}

// OutputPorts returns the websocket network port
func (f *Feed) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "feed",
			Direction:   component.DirectionOutput,
			Required:    false,
			Description: "websocket snapshot feed",
			Config: component.NetworkPort{
				Protocol: "tcp",
				Host:     f.host,
				Port:     f.port,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (f *Feed) ConfigSchema() component.ConfigSchema {
	return component.ConfigSchema{}
}

// Health reports whether the feed server is accepting connections
func (f *Feed) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:   f.running.Load(),
		LastCheck: time.Now(),
		Uptime:    time.Since(f.startTime),
	}
}

// DataFlow returns delivery rates since start
func (f *Feed) DataFlow() component.FlowMetrics {
	sent := f.sent.Load()
	skipped := f.skipped.Load()

	var perSecond, errorRate float64
	if uptime := time.Since(f.startTime).Seconds(); uptime > 0 {
		perSecond = float64(sent) / uptime
	}
	if total := sent + skipped; total > 0 {
		errorRate = float64(skipped) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
	}
}

// Initialize validates the feed configuration
func (f *Feed) Initialize() error {
	if f.port <= 0 || f.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", f.port),
			"WebSocketFeed", "Initialize", "port validation")
	}
	return nil
}

// Start binds the listen socket and serves the feed
func (f *Feed) Start(_ context.Context) error {
	if f.running.Load() {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", f.host, f.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapTransient(err, "WebSocketFeed", "Start", "socket binding")
	}
	f.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(f.path, f.handleConnection)

	f.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	f.shutdown = make(chan struct{})
	f.running.Store(true)
	f.startTime = time.Now()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.logger.Error("feed server stopped", "error", err)
		}
	}()

	f.logger.Info("websocket feed listening", "addr", addr, "path", f.path)
	return nil
}

// Stop closes all client connections and shuts the server down
func (f *Feed) Stop(timeout time.Duration) error {
	if !f.running.Load() {
		return nil
	}
	f.running.Store(false)
	close(f.shutdown)

	f.clientsMu.Lock()
	for conn, c := range f.clients {
		c.close()
		delete(f.clients, conn)
	}
	f.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := f.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "WebSocketFeed", "Stop", "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"WebSocketFeed", "Stop", "graceful shutdown")
	}
}

// Broadcast fans one published document out to every connected client.
// Clients that cannot keep up miss this document.
func (f *Feed) Broadcast(doc *snapshot.Document) {
	if !f.running.Load() {
		return
	}

	data, err := json.Marshal(envelope{
		Type:      "snapshot",
		Timestamp: timestamp.Now(),
		Payload:   doc,
	})
	if err != nil {
		f.logger.Error("encoding broadcast", "error", err)
		return
	}

	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()

	for _, c := range f.clients {
		select {
		case c.send <- data:
			f.sent.Add(1)
			if f.metrics != nil {
				f.metrics.messagesSent.Inc()
				f.metrics.bytesSent.Add(float64(len(data)))
			}
		default:
			f.skipped.Add(1)
			if f.metrics != nil {
				f.metrics.messagesSkipped.Inc()
			}
		}
	}
}

// Addr returns the bound listen address, useful when port 0 was requested
func (f *Feed) Addr() string {
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

func (f *Feed) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}

	f.clientsMu.Lock()
	f.clients[conn] = c
	count := len(f.clients)
	f.clientsMu.Unlock()

	if f.metrics != nil {
		f.metrics.connectionsTotal.Inc()
		f.metrics.clientsConnected.Set(float64(count))
	}
	f.logger.Info("feed client connected", "remote", r.RemoteAddr, "clients", count)

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.writeLoop(c)
	}()
	go func() {
		defer f.wg.Done()
		f.readLoop(c)
	}()
}

// writeLoop owns all writes to one connection. The gorilla/websocket
// library panics on concurrent writes, so pings and data share this loop.
func (f *Feed) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer f.removeClient(c)

	for {
		select {
		case <-f.shutdown:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so control messages are processed and
// disconnects are noticed
func (f *Feed) readLoop(c *client) {
	defer f.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) removeClient(c *client) {
	f.clientsMu.Lock()
	if _, ok := f.clients[c.conn]; ok {
		delete(f.clients, c.conn)
		c.close()
	}
	count := len(f.clients)
	f.clientsMu.Unlock()

	if f.metrics != nil {
		f.metrics.clientsConnected.Set(float64(count))
	}
}

func (c *client) close() {
	c.closeFn.Do(func() {
		_ = c.conn.Close()
	})
}

// ClientCount returns the number of connected clients
func (f *Feed) ClientCount() int {
	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	return len(f.clients)
}
